// Package cpmm implements fee-adjusted constant-product pricing over
// unsigned integer reserves. All quotes round in favor of the pool:
// outputs round down, required inputs round up.
package cpmm

import (
	"errors"
	"math/bits"
)

var (
	// ErrOverflow is returned when an intermediate product or sum
	// exceeds the 64-bit range.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrOverLiquidityBalance is returned when an exact-output quote
	// asks for at least the entire output reserve.
	ErrOverLiquidityBalance = errors.New("requested output exceeds pool liquidity")

	// ErrSlippageExceeded is returned when a resolved quote violates
	// the caller's slippage bound.
	ErrSlippageExceeded = errors.New("slippage bound exceeded")

	// ErrTradeAmountIsZero is returned when a swap names a zero amount.
	ErrTradeAmountIsZero = errors.New("trade amount is zero")

	// ErrEmptyReserve is returned when a quote is requested against a
	// pool with a zero-sized reserve.
	ErrEmptyReserve = errors.New("pool reserve is empty")
)

// Fee is a proportional trading fee expressed as Numerator/Denominator,
// e.g. 3/1000 for a 0.3% fee. Numerator must not exceed Denominator.
type Fee struct {
	Numerator   uint64
	Denominator uint64
}

// NewFee validates and constructs a Fee.
func NewFee(numerator, denominator uint64) (Fee, error) {
	if denominator == 0 || numerator > denominator {
		return Fee{}, errors.New("fee numerator/denominator out of range")
	}
	return Fee{Numerator: numerator, Denominator: denominator}, nil
}

// Net returns the fraction of an input that trades after the fee,
// scaled by the denominator.
func (f Fee) Net() uint64 {
	return f.Denominator - f.Numerator
}

// OutputFor quotes the output for an exact input against the given
// reserves: floor((in * net * outRes) / (inRes * den + in * net)).
func (f Fee) OutputFor(inputAmount, inputReserve, outputReserve uint64) (uint64, error) {
	if inputReserve == 0 || outputReserve == 0 {
		return 0, ErrEmptyReserve
	}
	inputWithFee, err := mulCheck(inputAmount, f.Net())
	if err != nil {
		return 0, err
	}
	numerator, err := mulCheck(inputWithFee, outputReserve)
	if err != nil {
		return 0, err
	}
	scaledReserve, err := mulCheck(inputReserve, f.Denominator)
	if err != nil {
		return 0, err
	}
	denominator, err := addCheck(scaledReserve, inputWithFee)
	if err != nil {
		return 0, err
	}
	return numerator / denominator, nil
}

// InputFor quotes the input required for an exact output against the
// given reserves: floor((inRes * out * den) / ((outRes - out) * net)) + 1.
// The output must be strictly less than the output reserve.
func (f Fee) InputFor(outputAmount, inputReserve, outputReserve uint64) (uint64, error) {
	if inputReserve == 0 || outputReserve == 0 {
		return 0, ErrEmptyReserve
	}
	if outputAmount >= outputReserve {
		return 0, ErrOverLiquidityBalance
	}
	if f.Net() == 0 {
		return 0, ErrOverflow
	}
	scaled, err := mulCheck(inputReserve, outputAmount)
	if err != nil {
		return 0, err
	}
	numerator, err := mulCheck(scaled, f.Denominator)
	if err != nil {
		return 0, err
	}
	denominator, err := mulCheck(outputReserve-outputAmount, f.Net())
	if err != nil {
		return 0, err
	}
	return addCheck(numerator/denominator, 1)
}

// Basis selects which side of a swap is fixed.
type Basis int

const (
	// BasisInput fixes the input amount; the output floats above a
	// minimum.
	BasisInput Basis = iota
	// BasisOutput fixes the output amount; the input floats below a
	// maximum.
	BasisOutput
)

// Swap is a resolved-side swap request. Exactly the fields for its
// Basis are meaningful.
type Swap struct {
	Basis Basis

	// BasisInput
	InputAmount uint64
	MinOutput   uint64

	// BasisOutput
	MaxInput     uint64
	OutputAmount uint64
}

// ExactInput builds a Swap that fixes the input side.
func ExactInput(inputAmount, minOutput uint64) Swap {
	return Swap{Basis: BasisInput, InputAmount: inputAmount, MinOutput: minOutput}
}

// ExactOutput builds a Swap that fixes the output side.
func ExactOutput(maxInput, outputAmount uint64) Swap {
	return Swap{Basis: BasisOutput, MaxInput: maxInput, OutputAmount: outputAmount}
}

// Validate rejects swaps whose fixed or bounding amounts are zero.
func (s Swap) Validate() error {
	switch s.Basis {
	case BasisInput:
		if s.InputAmount == 0 || s.MinOutput == 0 {
			return ErrTradeAmountIsZero
		}
	case BasisOutput:
		if s.MaxInput == 0 || s.OutputAmount == 0 {
			return ErrTradeAmountIsZero
		}
	}
	return nil
}

// Resolve prices a Swap against reserves and returns the concrete
// (input, output) pair, enforcing the swap's slippage bound.
func (f Fee) Resolve(s Swap, inputReserve, outputReserve uint64) (input, output uint64, err error) {
	if err := s.Validate(); err != nil {
		return 0, 0, err
	}
	switch s.Basis {
	case BasisOutput:
		input, err = f.InputFor(s.OutputAmount, inputReserve, outputReserve)
		if err != nil {
			return 0, 0, err
		}
		if input > s.MaxInput {
			return 0, 0, ErrSlippageExceeded
		}
		return input, s.OutputAmount, nil
	default:
		output, err = f.OutputFor(s.InputAmount, inputReserve, outputReserve)
		if err != nil {
			return 0, 0, err
		}
		if output < s.MinOutput {
			return 0, 0, ErrSlippageExceeded
		}
		return s.InputAmount, output, nil
	}
}

func mulCheck(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

func addCheck(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}
