package schema

// InstrumentConfig holds the per-instrument strategy parameters.
type InstrumentConfig struct {
	InstrumentID uint32 `json:"instrumentId"`
	Enabled      bool   `json:"enabled"`

	TickToCancelThreshold    Price  `json:"tickToCancelThreshold"`
	TickToCancelCollectionID uint16 `json:"tickToCancelCollectionId"`

	TickToTradeBidPrice        Price  `json:"tickToTradeBidPrice"`
	TickToTradeBidCollectionID uint16 `json:"tickToTradeBidCollectionId"`
	TickToTradeAskPrice        Price  `json:"tickToTradeAskPrice"`
	TickToTradeAskCollectionID uint16 `json:"tickToTradeAskCollectionId"`
}
