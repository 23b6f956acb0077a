package server

import (
	"errors"
	"testing"

	"FairSwap/internal/cpmm"
	"FairSwap/internal/ledger"
	"FairSwap/internal/pool"
)

// The pair holds 1,000,000 currency against 2,000,000 tokens priced at
// two tokens per currency unit, so both sides are balanced in currency
// terms. Quotes must run the token reserve through the converter the
// same way the pool ledger does.
func quoteFixture(t *testing.T) (cpmm.Fee, ledger.LinearConverter, pool.Pair) {
	t.Helper()
	fee, err := cpmm.NewFee(3, 1000)
	if err != nil {
		t.Fatalf("NewFee: %v", err)
	}
	convert := ledger.LinearConverter{Numerator: 2, Denominator: 1}
	pair := pool.Pair{
		AssetID:          7,
		LiquidityTokenID: 8,
		CurrencyReserve:  1_000_000,
		TokenReserve:     2_000_000,
	}
	return fee, convert, pair
}

// ===== Test: quotes convert token units like the pool =====

func TestPriceQuote_CurrencyToAsset_ExactInput(t *testing.T) {
	fee, convert, pair := quoteFixture(t)

	input, output, err := priceQuote(fee, convert, pair, "currency_to_asset", "input", 1_000)
	if err != nil {
		t.Fatalf("priceQuote: %v", err)
	}
	if input != 1_000 {
		t.Fatalf("input = %d, want 1000", input)
	}
	// 996 currency-units out of the curve, doubled into token units.
	if output != 1_992 {
		t.Fatalf("output = %d tokens, want 1992", output)
	}
}

func TestPriceQuote_CurrencyToAsset_ExactOutput(t *testing.T) {
	fee, convert, pair := quoteFixture(t)

	input, output, err := priceQuote(fee, convert, pair, "currency_to_asset", "output", 1_992)
	if err != nil {
		t.Fatalf("priceQuote: %v", err)
	}
	if output != 1_992 {
		t.Fatalf("output = %d, want 1992", output)
	}
	if input != 1_000 {
		t.Fatalf("input = %d currency, want 1000", input)
	}
}

func TestPriceQuote_AssetToCurrency_ExactInput(t *testing.T) {
	fee, convert, pair := quoteFixture(t)

	input, output, err := priceQuote(fee, convert, pair, "asset_to_currency", "input", 2_000)
	if err != nil {
		t.Fatalf("priceQuote: %v", err)
	}
	if input != 2_000 {
		t.Fatalf("input = %d, want 2000", input)
	}
	if output != 996 {
		t.Fatalf("output = %d currency, want 996", output)
	}
}

func TestPriceQuote_AssetToCurrency_ExactOutput(t *testing.T) {
	fee, convert, pair := quoteFixture(t)

	input, output, err := priceQuote(fee, convert, pair, "asset_to_currency", "output", 996)
	if err != nil {
		t.Fatalf("priceQuote: %v", err)
	}
	if output != 996 {
		t.Fatalf("output = %d, want 996", output)
	}
	if input != 2_000 {
		t.Fatalf("input = %d tokens, want 2000", input)
	}
}

func TestPriceQuote_BadParams(t *testing.T) {
	fee, convert, pair := quoteFixture(t)

	if _, _, err := priceQuote(fee, convert, pair, "sideways", "input", 1); !errors.Is(err, errBadQuoteParam) {
		t.Fatalf("direction err = %v, want errBadQuoteParam", err)
	}
	if _, _, err := priceQuote(fee, convert, pair, "currency_to_asset", "both", 1); !errors.Is(err, errBadQuoteParam) {
		t.Fatalf("basis err = %v, want errBadQuoteParam", err)
	}
}
