package ingestion

import (
	"context"
	"fmt"
	"time"

	"FairSwap/internal/command"

	"github.com/google/uuid"
)

// AdminService provides manual command injection for operators. It is
// intended for genesis funding, test environments, and triggering a
// settlement by hand, not for high-throughput ingestion (use NATS for
// that).
type AdminService struct {
	commandChan chan<- command.Command
}

func NewAdminService(commandChan chan<- command.Command) *AdminService {
	return &AdminService{commandChan: commandChan}
}

// InjectDeposit funds an account with currency and, optionally, with
// the pair's asset.
func (s *AdminService) InjectDeposit(
	ctx context.Context,
	account uuid.UUID,
	asset uint32,
	currencyAmount, tokenAmount uint64,
) error {
	if currencyAmount == 0 && tokenAmount == 0 {
		return fmt.Errorf("deposit amount must be positive")
	}

	cmd := &command.Deposit{
		Meta: command.Meta{
			ID:        uuid.New(),
			Account:   account,
			AssetID:   asset,
			Timestamp: time.Now(),
		},
		CurrencyAmount: currencyAmount,
		TokenAmount:    tokenAmount,
	}

	return s.send(ctx, cmd)
}

// InjectSettle triggers a batch settlement for a pair.
func (s *AdminService) InjectSettle(ctx context.Context, caller uuid.UUID, asset uint32) error {
	cmd := &command.Settle{
		Meta: command.Meta{
			ID:        uuid.New(),
			Account:   caller,
			AssetID:   asset,
			Timestamp: time.Now(),
		},
	}

	return s.send(ctx, cmd)
}

// InjectCreatePair opens a new market by hand.
func (s *AdminService) InjectCreatePair(
	ctx context.Context,
	provider uuid.UUID,
	asset, liquidityToken uint32,
	currencyAmount, tokenAmount uint64,
) error {
	if currencyAmount == 0 || tokenAmount == 0 {
		return fmt.Errorf("initial amounts must be positive")
	}

	cmd := &command.CreatePair{
		Meta: command.Meta{
			ID:        uuid.New(),
			Account:   provider,
			AssetID:   asset,
			Timestamp: time.Now(),
		},
		LiquidityTokenID: liquidityToken,
		CurrencyAmount:   currencyAmount,
		TokenAmount:      tokenAmount,
	}

	return s.send(ctx, cmd)
}

func (s *AdminService) send(ctx context.Context, cmd command.Command) error {
	select {
	case s.commandChan <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
