package ledger

import "math/bits"

// Converter maps native-currency amounts into a pair's token units and
// back. The pool prices both sides in currency units internally and
// converts at the transfer boundary.
type Converter interface {
	CurrencyToAsset(amount uint64) (uint64, error)
	AssetToCurrency(amount uint64) (uint64, error)
}

// LinearConverter scales by Numerator/Denominator in the
// currency-to-asset direction.
type LinearConverter struct {
	Numerator   uint64
	Denominator uint64
}

// UnitConverter maps one currency unit to one token unit.
func UnitConverter() LinearConverter {
	return LinearConverter{Numerator: 1, Denominator: 1}
}

func (c LinearConverter) CurrencyToAsset(amount uint64) (uint64, error) {
	return mulDiv(amount, c.Numerator, c.Denominator)
}

func (c LinearConverter) AssetToCurrency(amount uint64) (uint64, error) {
	return mulDiv(amount, c.Denominator, c.Numerator)
}

// mulDiv computes floor(a*b/d) with a 128-bit intermediate.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}
