package ledger

import "github.com/google/uuid"

type tokenClass struct {
	admin         uuid.UUID
	minBalance    uint64
	totalIssuance uint64
	balances      map[uuid.UUID]uint64
}

// Registry is the in-memory book of fungible token classes, including
// the liquidity tokens each pool mints against its providers.
type Registry struct {
	classes map[AssetID]*tokenClass
	journal *Journal
}

// NewRegistry constructs an empty registry recording into journal. A
// nil journal disables recording.
func NewRegistry(journal *Journal) *Registry {
	return &Registry{
		classes: make(map[AssetID]*tokenClass),
		journal: journal,
	}
}

// Create registers a new token class under asset.
func (r *Registry) Create(asset AssetID, admin uuid.UUID, minBalance uint64) error {
	if _, ok := r.classes[asset]; ok {
		return ErrTokenIDInUse
	}
	r.classes[asset] = &tokenClass{
		admin:      admin,
		minBalance: minBalance,
		balances:   make(map[uuid.UUID]uint64),
	}
	return nil
}

// Exists reports whether asset is a registered token class.
func (r *Registry) Exists(asset AssetID) bool {
	_, ok := r.classes[asset]
	return ok
}

// Balance returns the holding of account in asset, zero if either is
// unknown.
func (r *Registry) Balance(asset AssetID, account uuid.UUID) uint64 {
	c, ok := r.classes[asset]
	if !ok {
		return 0
	}
	return c.balances[account]
}

// TotalIssuance returns the outstanding supply of asset, zero if
// unknown.
func (r *Registry) TotalIssuance(asset AssetID) uint64 {
	c, ok := r.classes[asset]
	if !ok {
		return 0
	}
	return c.totalIssuance
}

// CanWithdraw reports whether account could give up amount of asset.
func (r *Registry) CanWithdraw(asset AssetID, account uuid.UUID, amount uint64) error {
	c, ok := r.classes[asset]
	if !ok {
		return ErrAssetNotFound
	}
	if c.balances[account] < amount {
		return ErrNotEnoughTokens
	}
	return nil
}

// Transfer moves amount of asset between accounts.
func (r *Registry) Transfer(asset AssetID, from, to uuid.UUID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	c, ok := r.classes[asset]
	if !ok {
		return ErrAssetNotFound
	}
	have := c.balances[from]
	if have < amount {
		return ErrNotEnoughTokens
	}
	next, err := addChecked(c.balances[to], amount)
	if err != nil {
		return err
	}
	if have == amount {
		delete(c.balances, from)
	} else {
		c.balances[from] = have - amount
	}
	c.balances[to] = next
	r.journal.record(Transfer{
		Asset:  asset,
		From:   from,
		To:     to,
		Amount: amount,
		Kind:   TransferKindMove,
	})
	return nil
}

// Mint issues amount of asset to account.
func (r *Registry) Mint(asset AssetID, to uuid.UUID, amount uint64) error {
	c, ok := r.classes[asset]
	if !ok {
		return ErrAssetNotFound
	}
	issuance, err := addChecked(c.totalIssuance, amount)
	if err != nil {
		return err
	}
	next, err := addChecked(c.balances[to], amount)
	if err != nil {
		return err
	}
	c.totalIssuance = issuance
	c.balances[to] = next
	r.journal.record(Transfer{
		Asset:  asset,
		To:     to,
		Amount: amount,
		Kind:   TransferKindMint,
	})
	return nil
}

// Burn destroys amount of asset held by account.
func (r *Registry) Burn(asset AssetID, from uuid.UUID, amount uint64) error {
	c, ok := r.classes[asset]
	if !ok {
		return ErrAssetNotFound
	}
	have := c.balances[from]
	if have < amount {
		return ErrNotEnoughTokens
	}
	if have == amount {
		delete(c.balances, from)
	} else {
		c.balances[from] = have - amount
	}
	c.totalIssuance -= amount
	r.journal.record(Transfer{
		Asset:  asset,
		From:   from,
		Amount: amount,
		Kind:   TransferKindBurn,
	})
	return nil
}

// Clone deep-copies the registry, rebinding it to journal.
func (r *Registry) Clone(journal *Journal) *Registry {
	next := &Registry{
		classes: make(map[AssetID]*tokenClass, len(r.classes)),
		journal: journal,
	}
	for id, c := range r.classes {
		copied := &tokenClass{
			admin:         c.admin,
			minBalance:    c.minBalance,
			totalIssuance: c.totalIssuance,
			balances:      make(map[uuid.UUID]uint64, len(c.balances)),
		}
		for k, v := range c.balances {
			copied.balances[k] = v
		}
		next.classes[id] = copied
	}
	return next
}
