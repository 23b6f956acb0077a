package cpmm_test

import (
	"errors"
	"math"
	"testing"

	"FairSwap/internal/cpmm"
)

func mustFee(t *testing.T, num, den uint64) cpmm.Fee {
	t.Helper()
	f, err := cpmm.NewFee(num, den)
	if err != nil {
		t.Fatalf("NewFee(%d, %d): %v", num, den, err)
	}
	return f
}

// ============================================================================
// Test: Fee
// ============================================================================

func TestNewFee_Valid(t *testing.T) {
	f := mustFee(t, 3, 1000)
	if f.Net() != 997 {
		t.Errorf("net: got %d, want 997", f.Net())
	}
}

func TestNewFee_ZeroDenominator_Fails(t *testing.T) {
	if _, err := cpmm.NewFee(3, 0); err == nil {
		t.Error("zero denominator should fail")
	}
}

func TestNewFee_NumeratorAboveDenominator_Fails(t *testing.T) {
	if _, err := cpmm.NewFee(1001, 1000); err == nil {
		t.Error("numerator above denominator should fail")
	}
}

// ============================================================================
// Test: OutputFor
// ============================================================================

func TestOutputFor_ReferenceCase(t *testing.T) {
	f := mustFee(t, 3, 1000)

	// 100 in against 1_000_000/1_000_000:
	// floor(100*997*1e6 / (1e6*1000 + 100*997)) = 99
	out, err := f.OutputFor(100, 1_000_000, 1_000_000)
	if err != nil {
		t.Fatalf("OutputFor: %v", err)
	}
	if out != 99 {
		t.Errorf("got %d, want 99", out)
	}
}

func TestOutputFor_ZeroFee(t *testing.T) {
	f := mustFee(t, 0, 1000)

	out, err := f.OutputFor(100, 1_000_000, 1_000_000)
	if err != nil {
		t.Fatalf("OutputFor: %v", err)
	}
	// floor(100*1000*1e6 / (1e9 + 1e5)) = 99
	if out != 99 {
		t.Errorf("got %d, want 99", out)
	}
}

func TestOutputFor_ZeroInput(t *testing.T) {
	f := mustFee(t, 3, 1000)

	out, err := f.OutputFor(0, 1_000_000, 1_000_000)
	if err != nil {
		t.Fatalf("OutputFor: %v", err)
	}
	if out != 0 {
		t.Errorf("zero input should quote zero output, got %d", out)
	}
}

func TestOutputFor_EmptyReserve_Fails(t *testing.T) {
	f := mustFee(t, 3, 1000)

	if _, err := f.OutputFor(100, 0, 1_000_000); !errors.Is(err, cpmm.ErrEmptyReserve) {
		t.Errorf("got %v, want ErrEmptyReserve", err)
	}
	if _, err := f.OutputFor(100, 1_000_000, 0); !errors.Is(err, cpmm.ErrEmptyReserve) {
		t.Errorf("got %v, want ErrEmptyReserve", err)
	}
}

func TestOutputFor_Overflow(t *testing.T) {
	f := mustFee(t, 3, 1000)

	_, err := f.OutputFor(math.MaxUint64, 1_000_000, 1_000_000)
	if !errors.Is(err, cpmm.ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
}

// ============================================================================
// Test: InputFor
// ============================================================================

func TestInputFor_ReferenceCase(t *testing.T) {
	f := mustFee(t, 3, 1000)

	// floor(1e6*99*1000 / ((1e6-99)*997)) + 1 = 100
	in, err := f.InputFor(99, 1_000_000, 1_000_000)
	if err != nil {
		t.Fatalf("InputFor: %v", err)
	}
	if in != 100 {
		t.Errorf("got %d, want 100", in)
	}
}

func TestInputFor_OutputEqualsReserve_Fails(t *testing.T) {
	f := mustFee(t, 3, 1000)

	_, err := f.InputFor(1_000_000, 1_000_000, 1_000_000)
	if !errors.Is(err, cpmm.ErrOverLiquidityBalance) {
		t.Errorf("got %v, want ErrOverLiquidityBalance", err)
	}
}

func TestInputFor_OutputAboveReserve_Fails(t *testing.T) {
	f := mustFee(t, 3, 1000)

	_, err := f.InputFor(2_000_000, 1_000_000, 1_000_000)
	if !errors.Is(err, cpmm.ErrOverLiquidityBalance) {
		t.Errorf("got %v, want ErrOverLiquidityBalance", err)
	}
}

func TestInputFor_RoundsUp(t *testing.T) {
	f := mustFee(t, 0, 1)

	// Without the +1 an exact division would quote 100; the quote must
	// still round against the trader.
	in, err := f.InputFor(100, 1_000, 1_000)
	if err != nil {
		t.Fatalf("InputFor: %v", err)
	}
	// floor(1000*100*1 / (900*1)) + 1 = 111 + 1 = 112
	if in != 112 {
		t.Errorf("got %d, want 112", in)
	}
}

// ============================================================================
// Test: quote round trips
// ============================================================================

func TestQuoteRoundTrip_NeverFavorsTrader(t *testing.T) {
	f := mustFee(t, 3, 1000)

	// Inputs small enough that the output quote moves with every unit
	// of input; past that point distinct inputs collapse onto one quote
	// and the inverse can only name the cheapest of them.
	const curReserve, assetReserve = 1_000_000, 1_000_000
	for _, x := range []uint64{2, 10, 99, 100, 101, 1_000, 54_321} {
		out, err := f.OutputFor(x, curReserve, assetReserve)
		if err != nil {
			t.Fatalf("OutputFor(%d): %v", x, err)
		}
		back, err := f.InputFor(out, curReserve, assetReserve)
		if err != nil {
			t.Fatalf("InputFor(%d): %v", out, err)
		}
		if back < x {
			t.Errorf("inputFor(outputFor(%d)) = %d, favors the trader", x, back)
		}
	}
}

func TestQuotedInputAlwaysCoversOutput(t *testing.T) {
	f := mustFee(t, 3, 1000)

	const curReserve, assetReserve = 1_000_000, 1_000_000
	for _, want := range []uint64{99, 100, 1_000, 54_321} {
		in, err := f.InputFor(want, curReserve, assetReserve)
		if err != nil {
			t.Fatalf("InputFor(%d): %v", want, err)
		}
		got, err := f.OutputFor(in, curReserve, assetReserve)
		if err != nil {
			t.Fatalf("OutputFor(%d): %v", in, err)
		}
		if got < want {
			t.Errorf("quoted input %d yields %d, short of requested %d", in, got, want)
		}
	}
}

func TestSwapRoundTrip_FeesAreLossy(t *testing.T) {
	f := mustFee(t, 3, 1000)

	const curReserve, assetReserve = 1_000_000, 1_000_000
	for _, x := range []uint64{10, 100, 5_000, 250_000} {
		out, err := f.OutputFor(x, curReserve, assetReserve)
		if err != nil {
			t.Fatalf("forward: %v", err)
		}
		// Swap the proceeds straight back against the post-swap reserves.
		back, err := f.OutputFor(out, assetReserve-out, curReserve+x)
		if err != nil {
			t.Fatalf("return: %v", err)
		}
		if back > x {
			t.Errorf("round trip of %d yielded %d, value created", x, back)
		}
	}
}

// ============================================================================
// Test: Swap resolution
// ============================================================================

func TestResolve_ExactInput(t *testing.T) {
	f := mustFee(t, 3, 1000)

	in, out, err := f.Resolve(cpmm.ExactInput(100, 99), 1_000_000, 1_000_000)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if in != 100 || out != 99 {
		t.Errorf("got (%d, %d), want (100, 99)", in, out)
	}
}

func TestResolve_ExactInput_Slippage(t *testing.T) {
	f := mustFee(t, 3, 1000)

	_, _, err := f.Resolve(cpmm.ExactInput(100, 100), 1_000_000, 1_000_000)
	if !errors.Is(err, cpmm.ErrSlippageExceeded) {
		t.Errorf("got %v, want ErrSlippageExceeded", err)
	}
}

func TestResolve_ExactOutput(t *testing.T) {
	f := mustFee(t, 3, 1000)

	in, out, err := f.Resolve(cpmm.ExactOutput(100, 99), 1_000_000, 1_000_000)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if in != 100 || out != 99 {
		t.Errorf("got (%d, %d), want (100, 99)", in, out)
	}
}

func TestResolve_ExactOutput_Slippage(t *testing.T) {
	f := mustFee(t, 3, 1000)

	_, _, err := f.Resolve(cpmm.ExactOutput(99, 99), 1_000_000, 1_000_000)
	if !errors.Is(err, cpmm.ErrSlippageExceeded) {
		t.Errorf("got %v, want ErrSlippageExceeded", err)
	}
}

func TestResolve_ZeroAmounts_Fail(t *testing.T) {
	f := mustFee(t, 3, 1000)

	cases := []cpmm.Swap{
		cpmm.ExactInput(0, 99),
		cpmm.ExactInput(100, 0),
		cpmm.ExactOutput(0, 99),
		cpmm.ExactOutput(100, 0),
	}
	for _, s := range cases {
		if _, _, err := f.Resolve(s, 1_000_000, 1_000_000); !errors.Is(err, cpmm.ErrTradeAmountIsZero) {
			t.Errorf("swap %+v: got %v, want ErrTradeAmountIsZero", s, err)
		}
	}
}
