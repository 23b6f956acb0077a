package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"FairSwap/internal/command"
	"FairSwap/internal/event"
	"FairSwap/internal/ledger"
	"FairSwap/internal/observability"
	"FairSwap/internal/pool"
	"FairSwap/internal/settlement"

	"github.com/google/uuid"
)

// ErrDeadlinePassed is returned when a command's height bound has
// already elapsed.
var ErrDeadlinePassed = errors.New("command deadline passed")

// ErrUnknownCommand is returned for a command kind the core does not
// dispatch.
var ErrUnknownCommand = errors.New("unknown command kind")

// Config carries the trading parameters the core applies to every pair.
type Config struct {
	// Pool configures pricing and admission for direct trades
	Pool pool.Config

	// Settlement configures batch clearing
	Settlement settlement.Config

	// Convert maps currency amounts to asset amounts at the boundary
	Convert ledger.Converter

	// MinBalance is the existential deposit for currency accounts
	MinBalance uint64

	// DedupCapacity sizes the idempotency LRU
	DedupCapacity int
}

// Core is the single-threaded deterministic command processor. All
// trading state lives here; everything outside the core is a shell
// moving commands in and outputs out.
type Core struct {
	// mu serializes Process against the read accessors the query
	// surface uses. Commands arrive from more than one loop, and the
	// persist channel must see outputs in sequence order, so Process
	// holds the write lock through emission.
	mu sync.RWMutex

	sequence int64
	height   uint64

	cfg    Config
	state  *coreState
	hasher *StateHasher

	idempotency *IdempotencyChecker
	metrics     *observability.Metrics

	// replaying suppresses channel emission while the command log is
	// re-applied on startup
	replaying bool

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

// CoreOutput is one applied command's result, fanned out to the
// persistence and projection workers.
type CoreOutput struct {
	Envelope  *event.Envelope
	Events    []event.Event
	Transfers []ledger.Transfer

	// Pair is a post-commit snapshot of the command's pair, nil when
	// the command touched none
	Pair *pool.Pair

	// LiquidityIssuance is the pair's liquidity token issuance after
	// the command, zero when Pair is nil
	LiquidityIssuance uint64

	// Queue depths after the command, for the pair above
	QueueDepthCurrency int
	QueueDepthAsset    int
}

func NewCore(
	startSequence int64,
	cfg Config,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *Core {
	if cfg.DedupCapacity == 0 {
		cfg.DedupCapacity = 1_000_000
	}

	return &Core{
		sequence:       startSequence,
		cfg:            cfg,
		state:          newCoreState(cfg.MinBalance),
		hasher:         NewStateHasher(),
		idempotency:    NewIdempotencyChecker(cfg.DedupCapacity, dbChecker),
		metrics:        metrics,
		persistChan:    persistChan,
		projectionChan: projectionChan,
	}
}

// Process is the main pipeline. Each command runs against a clone of
// the trading state; the clone replaces the live state only on
// success, so rejection can never leave partial writes.
func (c *Core) Process(cmd command.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	kind := string(cmd.CommandKind())
	idempotencyKey := cmd.CommandID().String()

	// Step 1: Idempotency check (two-tier). Skipped during replay: the
	// log holds only applied commands, which the DB tier would all
	// report as duplicates.
	if !c.replaying && c.idempotency.IsDuplicate(kind, idempotencyKey) {
		if c.metrics != nil {
			c.metrics.CoreCommandsRejected.WithLabelValues(kind, "duplicate").Inc()
		}
		return nil
	}

	// Step 2: Deadline check. Height counts applied commands, so the
	// check is reproduced exactly when the log is replayed. A zero
	// deadline means the command never expires.
	if d, ok := cmd.(command.Deadlined); ok {
		if dl := d.DeadlineHeight(); dl > 0 && dl < c.height {
			if c.metrics != nil {
				c.metrics.CoreCommandsRejected.WithLabelValues(kind, "deadline").Inc()
			}
			return fmt.Errorf("%s at height %d: %w", kind, c.height, ErrDeadlinePassed)
		}
	}

	// Step 3: Dispatch against a clone
	working := c.state.clone()

	events, err := c.dispatch(working, cmd)
	if err != nil {
		if c.metrics != nil {
			c.metrics.CoreCommandsRejected.WithLabelValues(kind, "validation").Inc()
		}
		return fmt.Errorf("%s rejected: %w", kind, err)
	}

	// Step 4: Commit
	c.state = working
	c.height++

	// Step 5: State hash over the committed state
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}

	hashStart := time.Now()
	stateDigest := c.state.digest()
	prevHash := c.hasher.GetPrevHash()
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)
	if c.metrics != nil {
		c.metrics.CoreStateHashDur.Observe(time.Since(hashStart).Seconds())
	}

	envelope := &event.Envelope{
		Sequence:       c.sequence,
		CommandID:      cmd.CommandID(),
		IdempotencyKey: idempotencyKey,
		CommandKind:    kind,
		AssetID:        uint32(cmd.Asset()),
		Timestamp:      cmd.SubmittedAt(),
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := CoreOutput{
		Envelope:  envelope,
		Events:    events,
		Transfers: c.state.journal.Drain(),
	}

	if p, perr := c.state.pairs.Get(cmd.Asset()); perr == nil {
		snapshot := *p
		output.Pair = &snapshot
		output.LiquidityIssuance = c.state.assets.TotalIssuance(p.LiquidityTokenID)
		output.QueueDepthCurrency = c.state.book.Depth(cmd.Asset(), settlement.CurrencyToAsset)
		output.QueueDepthAsset = c.state.book.Depth(cmd.Asset(), settlement.AssetToCurrency)
	}

	c.sequence++

	// Step 6: Emit. Persist channel uses a BLOCKING send (backpressure:
	// no applied command may be lost). Projection channel uses a
	// NON-BLOCKING send; projections rebuild from the log if they fall
	// behind. Both are skipped during startup replay.
	if !c.replaying {
		c.persistChan <- output

		select {
		case c.projectionChan <- output:
		default:
			if c.metrics != nil {
				c.metrics.ProjectionDrops.WithLabelValues("core").Inc()
			}
		}
	}

	// Step 7: Mark processed
	c.idempotency.MarkProcessed(kind, idempotencyKey)

	c.recordMetrics(kind, output, time.Since(start))

	return nil
}

func (c *Core) dispatch(st *coreState, cmd command.Command) ([]event.Event, error) {
	pools := pool.New(c.cfg.Pool, st.pairs, st.bank, st.assets, c.cfg.Convert)

	switch m := cmd.(type) {
	case *command.CreatePair:
		events, err := pools.CreatePair(
			m.Caller(),
			m.Asset(),
			ledger.AssetID(m.LiquidityTokenID),
			m.CurrencyAmount,
			m.TokenAmount,
		)
		if err != nil {
			return nil, err
		}
		st.book.InitPair(m.Asset())
		return events, nil

	case *command.AddLiquidity:
		return pools.AddLiquidity(m.Caller(), m.Asset(), m.CurrencyAmount, m.MinLiquidity, m.MaxTokens)

	case *command.RemoveLiquidity:
		return pools.RemoveLiquidity(m.Caller(), m.Asset(), m.LiquidityAmount, m.MinCurrency, m.MinTokens)

	case *command.SwapCurrencyForAsset:
		swap, err := m.Spec.Resolve()
		if err != nil {
			return nil, err
		}
		return pools.SwapCurrencyForAsset(m.Caller(), m.Asset(), swap)

	case *command.SwapAssetForCurrency:
		swap, err := m.Spec.Resolve()
		if err != nil {
			return nil, err
		}
		return pools.SwapAssetForCurrency(m.Caller(), m.Asset(), swap)

	case *command.AddSwapCurrencyForAsset:
		engine := settlement.NewEngine(c.cfg.Settlement, st.pairs, st.book, st.bank, st.assets, c.cfg.Convert)
		return engine.EnqueueCurrencyForAsset(m.Caller(), m.Asset(), m.AmountIn)

	case *command.AddSwapAssetForCurrency:
		engine := settlement.NewEngine(c.cfg.Settlement, st.pairs, st.book, st.bank, st.assets, c.cfg.Convert)
		return engine.EnqueueAssetForCurrency(m.Caller(), m.Asset(), m.AmountIn)

	case *command.Settle:
		engine := settlement.NewEngine(c.cfg.Settlement, st.pairs, st.book, st.bank, st.assets, c.cfg.Convert)
		return engine.Settle(m.Asset())

	case *command.Deposit:
		return nil, c.applyDeposit(st, m)

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

// applyDeposit funds an account out of band. Token deposits create the
// asset class on first use, with the depositor as admin.
func (c *Core) applyDeposit(st *coreState, m *command.Deposit) error {
	if m.CurrencyAmount > 0 {
		if err := st.bank.Deposit(m.Caller(), m.CurrencyAmount); err != nil {
			return err
		}
	}

	if m.TokenAmount > 0 {
		asset := m.Asset()
		if !st.assets.Exists(asset) {
			if err := st.assets.Create(asset, m.Caller(), 1); err != nil {
				return err
			}
		}
		if err := st.assets.Mint(asset, m.Caller(), m.TokenAmount); err != nil {
			return err
		}
	}

	return nil
}

func (c *Core) recordMetrics(kind string, output CoreOutput, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}

	c.metrics.CoreCommandsApplied.WithLabelValues(kind).Inc()
	c.metrics.CoreCommandDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	c.metrics.CoreSequence.Set(float64(c.sequence))
	c.metrics.CoreHeight.Set(float64(c.height))

	assetLabel := fmt.Sprintf("%d", output.Envelope.AssetID)

	for _, evt := range output.Events {
		switch e := evt.(type) {
		case *event.SwappedCurrencyForAsset:
			c.metrics.SwapsExecuted.WithLabelValues(assetLabel, settlement.CurrencyToAsset.String()).Inc()
		case *event.SwappedAssetForCurrency:
			c.metrics.SwapsExecuted.WithLabelValues(assetLabel, settlement.AssetToCurrency.String()).Inc()
		case *event.AddedSwapCurrencyForAsset:
			c.metrics.IntentsQueued.WithLabelValues(assetLabel, settlement.CurrencyToAsset.String()).Inc()
		case *event.AddedSwapAssetForCurrency:
			c.metrics.IntentsQueued.WithLabelValues(assetLabel, settlement.AssetToCurrency.String()).Inc()
		case *event.SettlementPerformed:
			c.metrics.SettlementsPerformed.WithLabelValues(assetLabel).Inc()
			c.metrics.SettlementParticipants.WithLabelValues(assetLabel).Observe(float64(e.Participants))
		}
	}

	if output.Pair != nil {
		c.metrics.PairReserve.WithLabelValues(assetLabel, "currency").Set(float64(output.Pair.CurrencyReserve))
		c.metrics.PairReserve.WithLabelValues(assetLabel, "token").Set(float64(output.Pair.TokenReserve))
		c.metrics.IntentQueueDepth.WithLabelValues(assetLabel, settlement.CurrencyToAsset.String()).Set(float64(output.QueueDepthCurrency))
		c.metrics.IntentQueueDepth.WithLabelValues(assetLabel, settlement.AssetToCurrency.String()).Set(float64(output.QueueDepthAsset))
	}
}

// --- Startup & Introspection ---

// BeginReplay suppresses output emission while the persisted command
// log is re-applied.
func (c *Core) BeginReplay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaying = true
}

// EndReplay resumes normal emission.
func (c *Core) EndReplay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaying = false
}

// WarmLRU loads recent idempotency keys into the LRU cache so a warm
// restart avoids cold-path DB lookups.
func (c *Core) WarmLRU(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idempotency.WarmFromKeys(keys)
}

// Sequence returns the next sequence number to assign.
func (c *Core) Sequence() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sequence
}

// Height returns the number of applied commands, the deadline counter.
func (c *Core) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

// StateHash returns the current state hash (chain tip).
func (c *Core) StateHash() [32]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasher.GetPrevHash()
}

// DedupStats returns the idempotency tier hit counters.
func (c *Core) DedupStats() DedupStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idempotency.Stats()
}

// PairSnapshot returns a copy of a pair's current state.
func (c *Core) PairSnapshot(asset ledger.AssetID) (pool.Pair, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, err := c.state.pairs.Get(asset)
	if err != nil {
		return pool.Pair{}, err
	}
	return *p, nil
}

// FreeBalance returns an account's currency balance.
func (c *Core) FreeBalance(account uuid.UUID) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.bank.FreeBalance(account)
}

// AssetBalance returns an account's token balance.
func (c *Core) AssetBalance(asset ledger.AssetID, account uuid.UUID) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.assets.Balance(asset, account)
}

// QueueDepth returns the number of queued intents for a pair side.
func (c *Core) QueueDepth(asset ledger.AssetID, dir settlement.Direction) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.book.Depth(asset, dir)
}

// QueueTotal returns the cumulative escrowed amount for a pair side.
func (c *Core) QueueTotal(asset ledger.AssetID, dir settlement.Direction) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.book.CumulativeTotal(asset, dir)
}

// PairAssets returns the asset id of every open pair.
func (c *Core) PairAssets() []ledger.AssetID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pairs := c.state.pairs.All()
	assets := make([]ledger.AssetID, 0, len(pairs))
	for _, p := range pairs {
		assets = append(assets, p.AssetID)
	}
	return assets
}

// TokenIssuance returns the total issuance of an asset, zero when the
// asset does not exist.
func (c *Core) TokenIssuance(asset ledger.AssetID) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.assets.TotalIssuance(asset)
}
