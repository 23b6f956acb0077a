package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"

	"FairSwap/internal/command"

	"github.com/google/uuid"
)

// ErrMissingID is returned for a command without an idempotency key.
var ErrMissingID = errors.New("missing command id")

// ErrMissingAccount is returned for a command without a caller.
var ErrMissingAccount = errors.New("missing account")

// ErrMissingTimestamp is returned for a command without a versioned
// timestamp. The core never reads the wall clock, so the timestamp is
// a required input.
var ErrMissingTimestamp = errors.New("missing timestamp")

// ParseRawCommand converts a RawCommand (JSON bytes + kind) into a
// typed command. The ingestion shell validates and converts raw
// messages before they are serialized into the core.
func ParseRawCommand(raw RawCommand, kind command.Kind) (command.Command, error) {
	var cmd command.Command

	switch kind {
	case command.KindCreatePair:
		cmd = &command.CreatePair{}
	case command.KindAddLiquidity:
		cmd = &command.AddLiquidity{}
	case command.KindRemoveLiquidity:
		cmd = &command.RemoveLiquidity{}
	case command.KindSwapCurrencyForAsset:
		cmd = &command.SwapCurrencyForAsset{}
	case command.KindSwapAssetForCurrency:
		cmd = &command.SwapAssetForCurrency{}
	case command.KindAddSwapCurrencyForAsset:
		cmd = &command.AddSwapCurrencyForAsset{}
	case command.KindAddSwapAssetForCurrency:
		cmd = &command.AddSwapAssetForCurrency{}
	case command.KindSettle:
		cmd = &command.Settle{}
	case command.KindDeposit:
		cmd = &command.Deposit{}
	default:
		return nil, fmt.Errorf("unknown command kind: %s", kind)
	}

	if err := json.Unmarshal(raw.Data, cmd); err != nil {
		return nil, fmt.Errorf("parse %s: %w", kind, err)
	}

	if err := validateCommand(cmd); err != nil {
		return nil, fmt.Errorf("validate %s: %w", kind, err)
	}

	return cmd, nil
}

// validateCommand checks the fields every command must carry. Amount
// and bound validation belongs to the core; the shell only rejects
// messages it cannot attribute or order.
func validateCommand(cmd command.Command) error {
	if cmd.CommandID() == uuid.Nil {
		return ErrMissingID
	}
	if cmd.Caller() == uuid.Nil {
		return ErrMissingAccount
	}
	if cmd.SubmittedAt().IsZero() {
		return ErrMissingTimestamp
	}

	// Swap specs additionally name a pricing basis.
	switch m := cmd.(type) {
	case *command.SwapCurrencyForAsset:
		if _, err := m.Spec.Resolve(); err != nil {
			return err
		}
	case *command.SwapAssetForCurrency:
		if _, err := m.Spec.Resolve(); err != nil {
			return err
		}
	}

	return nil
}
