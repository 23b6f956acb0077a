// Package command defines the typed operations the core applies, one
// per exchange extrinsic. Commands arrive from the ingestion layer,
// are serialized into the core, and their JSON encoding doubles as the
// replayable log payload.
package command

import (
	"errors"
	"time"

	"FairSwap/internal/cpmm"
	"FairSwap/internal/ledger"

	"github.com/google/uuid"
)

// Kind is the wire discriminator of a command.
type Kind string

const (
	KindCreatePair              Kind = "create_pair"
	KindAddLiquidity            Kind = "add_liquidity"
	KindRemoveLiquidity         Kind = "remove_liquidity"
	KindSwapCurrencyForAsset    Kind = "swap_currency_for_asset"
	KindSwapAssetForCurrency    Kind = "swap_asset_for_currency"
	KindAddSwapCurrencyForAsset Kind = "add_swap_currency_for_asset"
	KindAddSwapAssetForCurrency Kind = "add_swap_asset_for_currency"
	KindSettle                  Kind = "settle"
	KindDeposit                 Kind = "deposit"
)

// Command is implemented by every typed operation.
type Command interface {
	// CommandID is the stable idempotency key.
	CommandID() uuid.UUID

	// CommandKind returns the wire discriminator.
	CommandKind() Kind

	// Asset returns the pair the command addresses.
	Asset() ledger.AssetID

	// Caller returns the initiating account.
	Caller() uuid.UUID

	// SubmittedAt is the versioned input timestamp assigned upstream.
	SubmittedAt() time.Time
}

// Deadlined is implemented by commands carrying a height bound. The
// core rejects the command once its height counter passes the bound.
type Deadlined interface {
	DeadlineHeight() uint64
}

// Meta carries the fields shared by every command.
type Meta struct {
	ID        uuid.UUID `json:"id"`
	Account   uuid.UUID `json:"account"`
	AssetID   uint32    `json:"asset_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (m Meta) CommandID() uuid.UUID   { return m.ID }
func (m Meta) Asset() ledger.AssetID  { return ledger.AssetID(m.AssetID) }
func (m Meta) Caller() uuid.UUID      { return m.Account }
func (m Meta) SubmittedAt() time.Time { return m.Timestamp }

// SwapSpec is the wire form of a constant-product swap request.
type SwapSpec struct {
	Basis        string `json:"basis"`
	InputAmount  uint64 `json:"input_amount,omitempty"`
	MinOutput    uint64 `json:"min_output,omitempty"`
	MaxInput     uint64 `json:"max_input,omitempty"`
	OutputAmount uint64 `json:"output_amount,omitempty"`
}

const (
	BasisInput  = "input"
	BasisOutput = "output"
)

// ErrUnknownBasis is returned for a swap spec naming neither side.
var ErrUnknownBasis = errors.New("swap basis must be \"input\" or \"output\"")

// Resolve translates the wire spec into the pricing engine's form.
func (s SwapSpec) Resolve() (cpmm.Swap, error) {
	switch s.Basis {
	case BasisInput:
		return cpmm.ExactInput(s.InputAmount, s.MinOutput), nil
	case BasisOutput:
		return cpmm.ExactOutput(s.MaxInput, s.OutputAmount), nil
	default:
		return cpmm.Swap{}, ErrUnknownBasis
	}
}

// CreatePair opens a new market seeded with initial liquidity.
type CreatePair struct {
	Meta
	LiquidityTokenID uint32 `json:"liquidity_token_id"`
	CurrencyAmount   uint64 `json:"currency_amount"`
	TokenAmount      uint64 `json:"token_amount"`
}

func (c *CreatePair) CommandKind() Kind { return KindCreatePair }

// AddLiquidity joins an existing pair.
type AddLiquidity struct {
	Meta
	CurrencyAmount uint64 `json:"currency_amount"`
	MinLiquidity   uint64 `json:"min_liquidity"`
	MaxTokens      uint64 `json:"max_tokens"`
	Deadline       uint64 `json:"deadline"`
}

func (c *AddLiquidity) CommandKind() Kind      { return KindAddLiquidity }
func (c *AddLiquidity) DeadlineHeight() uint64 { return c.Deadline }

// RemoveLiquidity exits a pair proportionally.
type RemoveLiquidity struct {
	Meta
	LiquidityAmount uint64 `json:"liquidity_amount"`
	MinCurrency     uint64 `json:"min_currency"`
	MinTokens       uint64 `json:"min_tokens"`
	Deadline        uint64 `json:"deadline"`
}

func (c *RemoveLiquidity) CommandKind() Kind      { return KindRemoveLiquidity }
func (c *RemoveLiquidity) DeadlineHeight() uint64 { return c.Deadline }

// SwapCurrencyForAsset executes a direct currency-to-asset swap.
type SwapCurrencyForAsset struct {
	Meta
	Spec     SwapSpec `json:"swap"`
	Deadline uint64   `json:"deadline"`
}

func (c *SwapCurrencyForAsset) CommandKind() Kind      { return KindSwapCurrencyForAsset }
func (c *SwapCurrencyForAsset) DeadlineHeight() uint64 { return c.Deadline }

// SwapAssetForCurrency executes a direct asset-to-currency swap.
type SwapAssetForCurrency struct {
	Meta
	Spec     SwapSpec `json:"swap"`
	Deadline uint64   `json:"deadline"`
}

func (c *SwapAssetForCurrency) CommandKind() Kind      { return KindSwapAssetForCurrency }
func (c *SwapAssetForCurrency) DeadlineHeight() uint64 { return c.Deadline }

// AddSwapCurrencyForAsset enqueues a currency-side batch intent.
type AddSwapCurrencyForAsset struct {
	Meta
	AmountIn uint64 `json:"amount_in"`
	Deadline uint64 `json:"deadline"`
}

func (c *AddSwapCurrencyForAsset) CommandKind() Kind      { return KindAddSwapCurrencyForAsset }
func (c *AddSwapCurrencyForAsset) DeadlineHeight() uint64 { return c.Deadline }

// AddSwapAssetForCurrency enqueues an asset-side batch intent.
type AddSwapAssetForCurrency struct {
	Meta
	AmountIn uint64 `json:"amount_in"`
	Deadline uint64 `json:"deadline"`
}

func (c *AddSwapAssetForCurrency) CommandKind() Kind      { return KindAddSwapAssetForCurrency }
func (c *AddSwapAssetForCurrency) DeadlineHeight() uint64 { return c.Deadline }

// Settle clears the pair's current batch. Callable by any account.
type Settle struct {
	Meta
}

func (c *Settle) CommandKind() Kind { return KindSettle }

// Deposit funds an account with currency and, if TokenAmount is set,
// with the pair's asset. Operational command used for genesis funding
// and test environments.
type Deposit struct {
	Meta
	CurrencyAmount uint64 `json:"currency_amount"`
	TokenAmount    uint64 `json:"token_amount"`
}

func (c *Deposit) CommandKind() Kind { return KindDeposit }
