package settlement_test

import (
	"errors"
	"testing"

	"FairSwap/internal/cpmm"
	"FairSwap/internal/event"
	"FairSwap/internal/ledger"
	"FairSwap/internal/pool"
	"FairSwap/internal/settlement"

	"github.com/google/uuid"
)

const testAsset ledger.AssetID = 7
const testLiquidityToken ledger.AssetID = 8

type fixture struct {
	engine   *settlement.Engine
	book     *settlement.Book
	pairs    *pool.Store
	bank     *ledger.Bank
	registry *ledger.Registry
	custody  uuid.UUID
}

// newFixture opens a 1M/1M pair with fee 3/1000 and fragment count 10.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	fee, err := cpmm.NewFee(3, 1000)
	if err != nil {
		t.Fatalf("NewFee: %v", err)
	}
	f := &fixture{
		book:     settlement.NewBook(),
		pairs:    pool.NewStore(),
		bank:     ledger.NewBank(1, nil),
		registry: ledger.NewRegistry(nil),
		custody:  uuid.New(),
	}
	provider := uuid.New()
	if err := f.bank.Deposit(provider, 10_000_000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := f.registry.Create(testAsset, provider, 1); err != nil {
		t.Fatalf("Create asset: %v", err)
	}
	if err := f.registry.Mint(testAsset, provider, 10_000_000); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	pl := pool.New(pool.Config{
		Fee:                fee,
		MinInitialCurrency: 1_000,
		MinInitialToken:    1_000,
		Custody:            f.custody,
	}, f.pairs, f.bank, f.registry, ledger.UnitConverter())
	if _, err := pl.CreatePair(provider, testAsset, testLiquidityToken, 1_000_000, 1_000_000); err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	f.book.InitPair(testAsset)

	f.engine = settlement.NewEngine(settlement.Config{
		Fee:       fee,
		Fragments: 10,
		MinQueue:  1,
		Custody:   f.custody,
	}, f.pairs, f.book, f.bank, f.registry, ledger.UnitConverter())
	return f
}

func (f *fixture) fundTrader(t *testing.T, currency, tokens uint64) uuid.UUID {
	t.Helper()
	trader := uuid.New()
	if currency > 0 {
		if err := f.bank.Deposit(trader, currency); err != nil {
			t.Fatalf("Deposit: %v", err)
		}
	}
	if tokens > 0 {
		if err := f.registry.Mint(testAsset, trader, tokens); err != nil {
			t.Fatalf("Mint: %v", err)
		}
	}
	return trader
}

func (f *fixture) enqueueCurrency(t *testing.T, buyer uuid.UUID, amount uint64) {
	t.Helper()
	if _, err := f.engine.EnqueueCurrencyForAsset(buyer, testAsset, amount); err != nil {
		t.Fatalf("EnqueueCurrencyForAsset: %v", err)
	}
}

func (f *fixture) enqueueAsset(t *testing.T, buyer uuid.UUID, amount uint64) {
	t.Helper()
	if _, err := f.engine.EnqueueAssetForCurrency(buyer, testAsset, amount); err != nil {
		t.Fatalf("EnqueueAssetForCurrency: %v", err)
	}
}

// ============================================================================
// Test: enqueue
// ============================================================================

func TestEnqueue_EscrowsAndRecords(t *testing.T) {
	f := newFixture(t)
	trader := f.fundTrader(t, 1_000, 0)

	events, err := f.engine.EnqueueCurrencyForAsset(trader, testAsset, 100)
	if err != nil {
		t.Fatalf("EnqueueCurrencyForAsset: %v", err)
	}
	added := events[0].(*event.AddedSwapCurrencyForAsset)
	if added.AmountIn != 100 {
		t.Errorf("event amount: got %d, want 100", added.AmountIn)
	}
	if got := f.bank.FreeBalance(trader); got != 900 {
		t.Errorf("trader balance: got %d, want 900", got)
	}
	if got := f.book.Depth(testAsset, settlement.CurrencyToAsset); got != 1 {
		t.Errorf("queue depth: got %d, want 1", got)
	}
	if got := f.book.Cumulative(testAsset, settlement.CurrencyToAsset, trader); got != 100 {
		t.Errorf("cumulative: got %d, want 100", got)
	}
}

func TestEnqueue_ZeroAmount_Fails(t *testing.T) {
	f := newFixture(t)
	trader := f.fundTrader(t, 1_000, 1_000)

	if _, err := f.engine.EnqueueCurrencyForAsset(trader, testAsset, 0); !errors.Is(err, cpmm.ErrTradeAmountIsZero) {
		t.Errorf("got %v, want ErrTradeAmountIsZero", err)
	}
	if _, err := f.engine.EnqueueAssetForCurrency(trader, testAsset, 0); !errors.Is(err, cpmm.ErrTradeAmountIsZero) {
		t.Errorf("got %v, want ErrTradeAmountIsZero", err)
	}
}

func TestEnqueue_Insolvent_Fails(t *testing.T) {
	f := newFixture(t)
	trader := f.fundTrader(t, 50, 50)

	if _, err := f.engine.EnqueueCurrencyForAsset(trader, testAsset, 100); !errors.Is(err, ledger.ErrBalanceTooLow) {
		t.Errorf("got %v, want ErrBalanceTooLow", err)
	}
	if _, err := f.engine.EnqueueAssetForCurrency(trader, testAsset, 100); !errors.Is(err, ledger.ErrNotEnoughTokens) {
		t.Errorf("got %v, want ErrNotEnoughTokens", err)
	}
	if got := f.book.Depth(testAsset, settlement.CurrencyToAsset); got != 0 {
		t.Errorf("failed enqueue must not join the queue, depth %d", got)
	}
}

func TestEnqueue_UnknownPair_Fails(t *testing.T) {
	f := newFixture(t)
	trader := f.fundTrader(t, 1_000, 0)

	if _, err := f.engine.EnqueueCurrencyForAsset(trader, 42, 100); !errors.Is(err, pool.ErrPairNotFound) {
		t.Errorf("got %v, want ErrPairNotFound", err)
	}
}

func TestEnqueue_RepeatAccumulates(t *testing.T) {
	f := newFixture(t)
	trader := f.fundTrader(t, 1_000, 0)

	f.enqueueCurrency(t, trader, 100)
	f.enqueueCurrency(t, trader, 200)

	if got := f.book.Depth(testAsset, settlement.CurrencyToAsset); got != 2 {
		t.Errorf("queue depth: got %d, want 2", got)
	}
	if got := f.book.Cumulative(testAsset, settlement.CurrencyToAsset, trader); got != 300 {
		t.Errorf("cumulative: got %d, want 300", got)
	}
}

// ============================================================================
// Test: settle gating
// ============================================================================

func TestSettle_EmptyQueues_Fails(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.Settle(testAsset); !errors.Is(err, settlement.ErrQueueTooSmall) {
		t.Errorf("got %v, want ErrQueueTooSmall", err)
	}
}

func TestSettle_OneSidedQueue_Fails(t *testing.T) {
	f := newFixture(t)
	trader := f.fundTrader(t, 1_000, 0)
	f.enqueueCurrency(t, trader, 100)

	if _, err := f.engine.Settle(testAsset); !errors.Is(err, settlement.ErrQueueTooSmall) {
		t.Errorf("got %v, want ErrQueueTooSmall", err)
	}
	if got := f.book.Depth(testAsset, settlement.CurrencyToAsset); got != 1 {
		t.Errorf("failed settle must leave the queue, depth %d", got)
	}
}

func TestSettle_UnknownPair_Fails(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.Settle(42); !errors.Is(err, pool.ErrPairNotFound) {
		t.Errorf("got %v, want ErrPairNotFound", err)
	}
}

// ============================================================================
// Test: batch clearing scenario
// ============================================================================

// Three accounts escrow 100 currency each, one account escrows 100
// tokens, fragment count 10. Every currency-side account must receive
// the identical token share regardless of submission order.
func TestSettle_BlendedPriceScenario(t *testing.T) {
	f := newFixture(t)

	first := f.fundTrader(t, 1_000, 0)
	second := f.fundTrader(t, 1_000, 0)
	third := f.fundTrader(t, 1_000, 0)
	seller := f.fundTrader(t, 0, 1_000)

	f.enqueueCurrency(t, first, 100)
	f.enqueueCurrency(t, second, 100)
	f.enqueueAsset(t, seller, 100)
	f.enqueueCurrency(t, third, 100)

	events, err := f.engine.Settle(testAsset)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	for _, buyer := range []uuid.UUID{first, second, third} {
		if got := f.registry.Balance(testAsset, buyer); got != 33 {
			t.Errorf("buyer token payout: got %d, want 33", got)
		}
	}
	if got := f.bank.FreeBalance(seller); got != 300 {
		t.Errorf("seller currency payout: got %d, want 300", got)
	}

	// Distributed totals never exceed the aggregated inputs.
	summary := events[len(events)-1].(*event.SettlementPerformed)
	if summary.CurrencyOut != 300 || summary.AssetOut != 100 {
		t.Errorf("summary: got (%d, %d), want (300, 100)", summary.CurrencyOut, summary.AssetOut)
	}
	if summary.Participants != 4 {
		t.Errorf("participants: got %d, want 4", summary.Participants)
	}

	// Rounding dust stays in the pool, bounded by the participant
	// count per side.
	if paid := uint64(3 * 33); summary.AssetOut-paid > 3 {
		t.Errorf("asset rounding dust too large: paid %d of %d", paid, summary.AssetOut)
	}
}

func TestSettle_ResetsQueuesAndCumulative(t *testing.T) {
	f := newFixture(t)
	buyer := f.fundTrader(t, 1_000, 0)
	seller := f.fundTrader(t, 0, 1_000)

	f.enqueueCurrency(t, buyer, 100)
	f.enqueueAsset(t, seller, 100)
	if _, err := f.engine.Settle(testAsset); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	if got := f.book.Depth(testAsset, settlement.CurrencyToAsset); got != 0 {
		t.Errorf("currency queue depth after settle: %d", got)
	}
	if got := f.book.Depth(testAsset, settlement.AssetToCurrency); got != 0 {
		t.Errorf("asset queue depth after settle: %d", got)
	}
	if got := f.book.Cumulative(testAsset, settlement.CurrencyToAsset, buyer); got != 0 {
		t.Errorf("cumulative after settle: %d", got)
	}
	if got := f.book.Cumulative(testAsset, settlement.AssetToCurrency, seller); got != 0 {
		t.Errorf("cumulative after settle: %d", got)
	}

	// The next batch starts clean.
	f.enqueueCurrency(t, buyer, 100)
	f.enqueueAsset(t, seller, 100)
	if _, err := f.engine.Settle(testAsset); err != nil {
		t.Fatalf("second Settle: %v", err)
	}
}

func TestSettle_WritesBackReserves(t *testing.T) {
	f := newFixture(t)
	buyer := f.fundTrader(t, 2_000_000, 0)
	seller := f.fundTrader(t, 0, 2_000_000)

	f.enqueueCurrency(t, buyer, 1_000_000)
	f.enqueueAsset(t, seller, 1_000_000)
	if _, err := f.engine.Settle(testAsset); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	// Symmetric 1M/1M flows against 1M/1M reserves with fragment
	// count 10 land the simulation back on the starting reserves.
	pair, err := f.pairs.Get(testAsset)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if pair.CurrencyReserve != 1_000_000 || pair.TokenReserve != 1_000_000 {
		t.Errorf("reserves: got (%d, %d), want (1_000_000, 1_000_000)",
			pair.CurrencyReserve, pair.TokenReserve)
	}
}

func TestSettle_DuplicateEntriesWeighOnce(t *testing.T) {
	f := newFixture(t)
	splitter := f.fundTrader(t, 1_000, 0)
	whole := f.fundTrader(t, 1_000, 0)
	seller := f.fundTrader(t, 0, 1_000)

	// One account splits 300 across three enqueues, another escrows
	// 300 at once. Their payouts must match exactly.
	f.enqueueCurrency(t, splitter, 100)
	f.enqueueCurrency(t, splitter, 100)
	f.enqueueCurrency(t, splitter, 100)
	f.enqueueCurrency(t, whole, 300)
	f.enqueueAsset(t, seller, 100)

	events, err := f.engine.Settle(testAsset)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	splitterTokens := f.registry.Balance(testAsset, splitter)
	wholeTokens := f.registry.Balance(testAsset, whole)
	if splitterTokens != wholeTokens {
		t.Errorf("equal cumulative must pay equally: split %d, whole %d", splitterTokens, wholeTokens)
	}

	// One distribution event per distinct account plus the summary.
	if len(events) != 4 {
		t.Errorf("got %d events, want 4", len(events))
	}
}

func TestSettle_AntiOrdering(t *testing.T) {
	f := newFixture(t)

	// Equal-sized intents submitted first and last on the same side.
	early := f.fundTrader(t, 1_000, 0)
	late := f.fundTrader(t, 1_000, 0)
	middle := f.fundTrader(t, 10_000, 0)
	seller := f.fundTrader(t, 0, 10_000)

	f.enqueueCurrency(t, early, 500)
	f.enqueueCurrency(t, middle, 9_000)
	f.enqueueAsset(t, seller, 5_000)
	f.enqueueCurrency(t, late, 500)

	if _, err := f.engine.Settle(testAsset); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	earlyTokens := f.registry.Balance(testAsset, early)
	lateTokens := f.registry.Balance(testAsset, late)
	if earlyTokens != lateTokens {
		t.Errorf("queue position changed the payout: early %d, late %d", earlyTokens, lateTokens)
	}
	if earlyTokens == 0 {
		t.Error("payout should be non-zero")
	}
}

// ============================================================================
// Test: leak checks
// ============================================================================

func TestSettle_CurrencyLeak(t *testing.T) {
	f := newFixture(t)
	buyer := f.fundTrader(t, 1_000, 0)
	seller := f.fundTrader(t, 0, 1_000)
	f.enqueueCurrency(t, buyer, 100)
	f.enqueueAsset(t, seller, 100)

	// Drain custody currency below what the post-clearing reserve
	// will require.
	drain := uuid.New()
	if err := f.bank.Transfer(f.custody, drain, 500, ledger.AllowDeath); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if _, err := f.engine.Settle(testAsset); !errors.Is(err, settlement.ErrCurrencyLeak) {
		t.Fatalf("got %v, want ErrCurrencyLeak", err)
	}
	if got := f.book.Depth(testAsset, settlement.CurrencyToAsset); got != 1 {
		t.Errorf("failed settle must not clear the queue, depth %d", got)
	}
	if got := f.book.Cumulative(testAsset, settlement.CurrencyToAsset, buyer); got != 100 {
		t.Errorf("failed settle must keep cumulative, got %d", got)
	}
}

func TestSettle_AssetLeak(t *testing.T) {
	f := newFixture(t)
	buyer := f.fundTrader(t, 1_000, 0)
	seller := f.fundTrader(t, 0, 1_000)
	f.enqueueCurrency(t, buyer, 100)
	f.enqueueAsset(t, seller, 100)

	drain := uuid.New()
	if err := f.registry.Transfer(testAsset, f.custody, drain, 500); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if _, err := f.engine.Settle(testAsset); !errors.Is(err, settlement.ErrAssetLeak) {
		t.Fatalf("got %v, want ErrAssetLeak", err)
	}
}

// ============================================================================
// Test: fragmented clearing
// ============================================================================

func TestFragmentedClearing_CurrencyFirstBias(t *testing.T) {
	// Symmetric flows: a perfectly unbiased clearing would leave both
	// reserves equal. The currency side moving first inside each
	// fragment leaves the currency reserve low.
	c1, a1, err := settlement.FragmentedClearing(1_000_000, 1_000_000, 3_000, 3_000, 1)
	if err != nil {
		t.Fatalf("FragmentedClearing: %v", err)
	}
	if c1 >= a1 {
		t.Errorf("single fragment should bias toward the currency side: c=%d a=%d", c1, a1)
	}

	c10, a10, err := settlement.FragmentedClearing(1_000_000, 1_000_000, 3_000, 3_000, 10)
	if err != nil {
		t.Fatalf("FragmentedClearing: %v", err)
	}

	bias1 := a1 - c1
	bias10 := diff(c10, a10)
	if bias10 > bias1 {
		t.Errorf("bias should shrink with fragment count: F=1 %d, F=10 %d", bias1, bias10)
	}
}

func TestFragmentedClearing_EmptyReserve_Fails(t *testing.T) {
	_, _, err := settlement.FragmentedClearing(0, 1_000_000, 100, 100, 10)
	if !errors.Is(err, cpmm.ErrEmptyReserve) {
		t.Errorf("got %v, want ErrEmptyReserve", err)
	}
}

func diff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
