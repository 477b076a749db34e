package schema

// BookEntry is the top of book for one instrument. A side's price is only
// meaningful when its present flag is set.
type BookEntry struct {
	BidPresent bool
	BidPrice   Price
	AskPresent bool
	AskPrice   Price
}

// BookUpdate is a top-level write request produced by the book updater.
type BookUpdate struct {
	InstrumentID uint32
	Side         Side
	Price        Price
	UncrossDepth uint8
}
