package schema

// Decision is the outcome of one strategy evaluation.
type Decision struct {
	Engine         ModuleID
	Fired          bool
	IsBid          bool
	InstrumentID   uint32
	CollectionID   uint16
	Timestamp      uint32
	SequenceNumber uint64
	TradePrice     Price
	ReferencePrice Price
}
