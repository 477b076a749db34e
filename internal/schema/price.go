package schema

import "github.com/shopspring/decimal"

// Decimal renders the price with PricePrecision decimal places.
func (p Price) Decimal() decimal.Decimal {
	return p.Scaled(PricePrecision)
}

// Scaled renders the price with scale decimal places.
func (p Price) Scaled(scale int32) decimal.Decimal {
	return decimal.New(int64(p), -scale)
}

// PriceFromDecimal converts a decimal to a fixed-point price, truncating
// digits beyond PricePrecision.
func PriceFromDecimal(d decimal.Decimal) Price {
	return Price(d.Shift(PricePrecision).IntPart())
}

// ParsePrice reads a decimal string such as "101.25".
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return PriceFromDecimal(d), nil
}
