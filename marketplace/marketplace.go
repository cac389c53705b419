// Copyright 2025 StagePass Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package marketplace implements the controlled resale marketplace: listing
// records, escrow-free atomic swaps of approved tickets for token payment,
// and the stake balances gating premium features.
package marketplace

import (
	"fmt"
	"time"

	"github.com/jinzhu/copier"

	"github.com/stagepass-io/stagepass/cbor"
	"github.com/stagepass-io/stagepass/core"
	"github.com/stagepass-io/stagepass/events"
	"github.com/stagepass-io/stagepass/fees"
	"github.com/stagepass-io/stagepass/host"
	"github.com/stagepass-io/stagepass/registry"
	"github.com/stagepass-io/stagepass/token"
)

// Defaults for the marketplace fee rate and premium stake minimum
const (
	DefaultFeeRateBps   = 250
	DefaultMinimumStake = 1000
)

// Governance methods dispatched by the marketplace
const (
	MethodUpdatePlatformFee  = "update-platform-fee"
	MethodUpdateMinimumStake = "update-minimum-stake"
	MethodRecoverTokens      = "recover-tokens"
)

// TicketRegistry is the read-and-delegated-transfer surface the marketplace
// consumes from the ticket registry. Cross-component access goes through
// these calls, never through shared storage.
type TicketRegistry interface {
	Ticket(id uint64) (registry.Ticket, bool)
	IsTicketValid(id uint64) bool
	ApprovedOperator(id uint64) (core.Identity, bool)
	DelegatedTransfer(caller core.Identity, ticketID uint64, to core.Identity, price uint64) error
}

// Listing is an active offer to sell a specific ticket at a stated price
type Listing struct {
	TicketID  uint64
	Seller    core.Identity
	Price     uint64
	Active    bool
	CreatedAt time.Time
}

// Config contains configuration options for the marketplace
type Config struct {
	Runtime      *host.Runtime
	Registry     TicketRegistry
	StakingToken token.Ledger
	Self         core.Identity
	Operator     core.Identity
	FeeRate      fees.Rate
	MinimumStake uint64
	Recoverable  map[string]token.Ledger
	Clock        func() time.Time
}

// ConfigOptionFunc is a function that modifies a Config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new Config with default values, applying any provided
// option functions
func NewConfig(options ...ConfigOptionFunc) Config {
	c := Config{
		FeeRate:      fees.Rate(DefaultFeeRateBps),
		MinimumStake: DefaultMinimumStake,
		Recoverable:  make(map[string]token.Ledger),
		Clock:        time.Now,
	}
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithRuntime sets the host runtime used for event emission
func WithRuntime(runtime *host.Runtime) ConfigOptionFunc {
	return func(c *Config) {
		c.Runtime = runtime
	}
}

// WithRegistry sets the ticket registry collaborator
func WithRegistry(reg TicketRegistry) ConfigOptionFunc {
	return func(c *Config) {
		c.Registry = reg
	}
}

// WithStakingToken sets the token unit listings and stakes settle in
func WithStakingToken(ledger token.Ledger) ConfigOptionFunc {
	return func(c *Config) {
		c.StakingToken = ledger
	}
}

// WithSelf sets the marketplace's own account identity (pool account and
// delegated-transfer operator)
func WithSelf(self core.Identity) ConfigOptionFunc {
	return func(c *Config) {
		c.Self = self
	}
}

// WithOperator sets the platform operator identity
func WithOperator(operator core.Identity) ConfigOptionFunc {
	return func(c *Config) {
		c.Operator = operator
	}
}

// WithFeeRate sets the marketplace fee rate
func WithFeeRate(rate fees.Rate) ConfigOptionFunc {
	return func(c *Config) {
		c.FeeRate = rate
	}
}

// WithMinimumStake sets the stake threshold for premium access
func WithMinimumStake(minimum uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.MinimumStake = minimum
	}
}

// WithRecoverableToken registers a token ledger that operator recovery may
// sweep from the marketplace account
func WithRecoverableToken(ledger token.Ledger) ConfigOptionFunc {
	return func(c *Config) {
		c.Recoverable[ledger.Name()] = ledger
	}
}

// WithClock sets the time source used for listing timestamps
func WithClock(clock func() time.Time) ConfigOptionFunc {
	return func(c *Config) {
		c.Clock = clock
	}
}

// Marketplace owns Listing records and stake balances
type Marketplace struct {
	core.Ownable
	guard        core.Guard
	runtime      *host.Runtime
	registry     TicketRegistry
	stakingToken token.Ledger
	recoverable  map[string]token.Ledger
	self         core.Identity
	clock        func() time.Time
	feeRate      fees.Rate
	minimumStake uint64
	listings     map[uint64]*Listing
	stakes       map[core.Identity]uint64
}

// New returns a new Marketplace for the provided config
func New(cfg Config) (*Marketplace, error) {
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("marketplace: no runtime provided")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("marketplace: no registry provided")
	}
	if cfg.StakingToken == nil {
		return nil, fmt.Errorf("marketplace: no staking token provided")
	}
	if cfg.Self.IsZero() {
		return nil, fmt.Errorf("marketplace: no self identity provided")
	}
	if cfg.Operator.IsZero() {
		return nil, fmt.Errorf("marketplace: no operator provided")
	}
	if _, err := fees.NewRate(cfg.FeeRate.Bps()); err != nil {
		return nil, err
	}
	m := &Marketplace{
		Ownable:      core.NewOwnable(cfg.Operator),
		runtime:      cfg.Runtime,
		registry:     cfg.Registry,
		stakingToken: cfg.StakingToken,
		recoverable:  cfg.Recoverable,
		self:         cfg.Self,
		clock:        cfg.Clock,
		feeRate:      cfg.FeeRate,
		minimumStake: cfg.MinimumStake,
		listings:     make(map[uint64]*Listing),
		stakes:       make(map[core.Identity]uint64),
	}
	cfg.Runtime.Register(m)
	return m, nil
}

// Self returns the marketplace's own account identity
func (m *Marketplace) Self() core.Identity {
	return m.self
}

// ListTicket creates the active listing for a ticket. An existing active
// listing for the same ticket is replaced by a fresh record.
func (m *Marketplace) ListTicket(caller core.Identity, ticketID uint64, price uint64) error {
	if err := m.guard.Enter(); err != nil {
		return err
	}
	defer m.guard.Exit()
	t, ok := m.registry.Ticket(ticketID)
	if !ok {
		return TicketInvalidError{TicketID: ticketID}
	}
	if caller != t.Owner {
		return NotOwnerError{TicketID: ticketID, Caller: caller}
	}
	if !m.registry.IsTicketValid(ticketID) {
		return TicketInvalidError{TicketID: ticketID}
	}
	if !t.Resellable {
		return NotResellableError{TicketID: ticketID}
	}
	if price > t.MaxResalePrice {
		return PriceExceedsCapError{
			TicketID:       ticketID,
			Price:          price,
			MaxResalePrice: t.MaxResalePrice,
		}
	}
	if op, ok := m.registry.ApprovedOperator(ticketID); !ok || op != m.self {
		return NotApprovedError{TicketID: ticketID}
	}
	m.listings[ticketID] = &Listing{
		TicketID:  ticketID,
		Seller:    caller,
		Price:     price,
		Active:    true,
		CreatedAt: m.clock(),
	}
	m.runtime.Emit(events.New(events.OpListTicket, events.ListingCreated{
		TicketID: ticketID,
		Seller:   caller,
		Price:    price,
	}))
	return nil
}

// PurchaseTicket atomically swaps the listed ticket for token payment. Funds
// move before the ownership flip; the listing is marked inactive only after
// every transfer has succeeded, so any failure aborts the whole operation
// with the listing still active and nothing spent.
func (m *Marketplace) PurchaseTicket(caller core.Identity, ticketID uint64, payment uint64) error {
	if err := m.guard.Enter(); err != nil {
		return err
	}
	defer m.guard.Exit()
	l, ok := m.listings[ticketID]
	if !ok || !l.Active {
		return ListingNotActiveError{TicketID: ticketID}
	}
	// Validity can change after listing, so revalidate at purchase time
	if !m.registry.IsTicketValid(ticketID) {
		return TicketInvalidError{TicketID: ticketID}
	}
	if payment < l.Price {
		return InsufficientPaymentError{Required: l.Price, Provided: payment}
	}
	fee, remainder := fees.Split(l.Price, m.feeRate)
	if err := m.stakingToken.TransferFrom(m.self, caller, m.self, payment); err != nil {
		return PaymentTransferFailedError{Err: err}
	}
	if err := m.stakingToken.Transfer(m.self, m.Owner(), fee); err != nil {
		return PaymentTransferFailedError{Err: err}
	}
	if err := m.stakingToken.Transfer(m.self, l.Seller, remainder); err != nil {
		return PaymentTransferFailedError{Err: err}
	}
	if excess := payment - l.Price; excess > 0 {
		if err := m.stakingToken.Transfer(m.self, caller, excess); err != nil {
			return PaymentTransferFailedError{Err: err}
		}
	}
	if err := m.registry.DelegatedTransfer(m.self, ticketID, caller, l.Price); err != nil {
		return err
	}
	l.Active = false
	m.runtime.Emit(events.New(events.OpPurchaseTicket, events.ListingSold{
		TicketID: ticketID,
		Seller:   l.Seller,
		Buyer:    caller,
		Price:    l.Price,
		Fee:      fee,
	}))
	return nil
}

// CancelListing deactivates the caller's listing. No funds move.
func (m *Marketplace) CancelListing(caller core.Identity, ticketID uint64) error {
	l, ok := m.listings[ticketID]
	if !ok || !l.Active {
		return ListingNotActiveError{TicketID: ticketID}
	}
	if caller != l.Seller {
		return NotSellerError{TicketID: ticketID, Caller: caller}
	}
	l.Active = false
	m.runtime.Emit(events.New(events.OpCancelListing, events.ListingCancelled{
		TicketID: ticketID,
		Seller:   caller,
	}))
	return nil
}

// StakeTokens moves tokens from the caller into the stake pool
func (m *Marketplace) StakeTokens(caller core.Identity, amount uint64) error {
	if amount == 0 {
		return InvalidAmountError{Amount: amount}
	}
	if err := m.guard.Enter(); err != nil {
		return err
	}
	defer m.guard.Exit()
	if err := m.stakingToken.TransferFrom(m.self, caller, m.self, amount); err != nil {
		return PaymentTransferFailedError{Err: err}
	}
	m.stakes[caller] += amount
	m.runtime.Emit(events.New(events.OpStakeTokens, events.StakeDeposited{
		Staker: caller,
		Amount: amount,
		Total:  m.stakes[caller],
	}))
	return nil
}

// WithdrawStake returns staked tokens to the caller. The stake balance is
// reduced before the outbound transfer.
func (m *Marketplace) WithdrawStake(caller core.Identity, amount uint64) error {
	if amount == 0 {
		return InvalidAmountError{Amount: amount}
	}
	if err := m.guard.Enter(); err != nil {
		return err
	}
	defer m.guard.Exit()
	if m.stakes[caller] < amount {
		return InsufficientStakeError{
			Staked:    m.stakes[caller],
			Requested: amount,
		}
	}
	m.stakes[caller] -= amount
	if err := m.stakingToken.Transfer(m.self, caller, amount); err != nil {
		return PaymentTransferFailedError{Err: err}
	}
	m.runtime.Emit(events.New(events.OpWithdrawStake, events.StakeWithdrawn{
		Staker:    caller,
		Amount:    amount,
		Remaining: m.stakes[caller],
	}))
	return nil
}

// HasPremiumAccess reports whether an identity's staked balance meets the
// configured minimum
func (m *Marketplace) HasPremiumAccess(id core.Identity) bool {
	return m.stakes[id] >= m.minimumStake
}

// StakeOf returns the staked balance for an identity
func (m *Marketplace) StakeOf(id core.Identity) uint64 {
	return m.stakes[id]
}

// MinimumStake returns the stake threshold for premium access
func (m *Marketplace) MinimumStake() uint64 {
	return m.minimumStake
}

// FeeRate returns the marketplace fee rate
func (m *Marketplace) FeeRate() fees.Rate {
	return m.feeRate
}

// Listing returns a copy of the listing record for a ticket
func (m *Marketplace) Listing(ticketID uint64) (Listing, bool) {
	l, ok := m.listings[ticketID]
	if !ok {
		return Listing{}, false
	}
	return *l, true
}

// UpdatePlatformFee replaces the marketplace fee rate. Operator only.
func (m *Marketplace) UpdatePlatformFee(caller core.Identity, bps uint64) error {
	if err := m.CheckOwner(caller); err != nil {
		return err
	}
	rate, err := fees.NewRate(bps)
	if err != nil {
		return err
	}
	m.feeRate = rate
	m.runtime.Emit(events.New(events.OpUpdatePlatformFee, events.PlatformFeeUpdated{
		Bps: bps,
	}))
	return nil
}

// UpdateMinimumStake replaces the premium access threshold. Operator only.
func (m *Marketplace) UpdateMinimumStake(caller core.Identity, amount uint64) error {
	if err := m.CheckOwner(caller); err != nil {
		return err
	}
	m.minimumStake = amount
	m.runtime.Emit(events.New(events.OpUpdateMinimumStake, events.MinimumStakeUpdated{
		Amount: amount,
	}))
	return nil
}

// RecoverTokens sweeps misdirected tokens from the marketplace account.
// Operator only. The staking token is never recoverable: that would sweep
// user stakes and sale proceeds in flight.
func (m *Marketplace) RecoverTokens(
	caller core.Identity,
	tokenName string,
	to core.Identity,
	amount uint64,
) error {
	if err := m.CheckOwner(caller); err != nil {
		return err
	}
	if tokenName == m.stakingToken.Name() {
		return CannotRecoverStakedError{Token: tokenName}
	}
	ledger, ok := m.recoverable[tokenName]
	if !ok {
		return UnknownTokenError{Token: tokenName}
	}
	if err := ledger.Transfer(m.self, to, amount); err != nil {
		return PaymentTransferFailedError{Err: err}
	}
	m.runtime.Emit(events.New(events.OpRecoverTokens, events.TokensRecovered{
		Token:  tokenName,
		To:     to,
		Amount: amount,
	}))
	return nil
}

// InvokeGovernance dispatches a governance payload to the marketplace
func (m *Marketplace) InvokeGovernance(caller core.Identity, method string, params []byte) error {
	switch method {
	case MethodUpdatePlatformFee:
		var tmpParams struct {
			Bps uint64
		}
		if err := cbor.Decode(params, &tmpParams); err != nil {
			return err
		}
		return m.UpdatePlatformFee(caller, tmpParams.Bps)
	case MethodUpdateMinimumStake:
		var tmpParams struct {
			Amount uint64
		}
		if err := cbor.Decode(params, &tmpParams); err != nil {
			return err
		}
		return m.UpdateMinimumStake(caller, tmpParams.Amount)
	case MethodRecoverTokens:
		var tmpParams struct {
			Token  string
			To     []byte
			Amount uint64
		}
		if err := cbor.Decode(params, &tmpParams); err != nil {
			return err
		}
		if len(tmpParams.To) != core.IdentitySize {
			return InvalidParameterError{Parameter: "to"}
		}
		return m.RecoverTokens(
			caller,
			tmpParams.Token,
			core.Identity(tmpParams.To),
			tmpParams.Amount,
		)
	default:
		return UnknownMethodError{Method: method}
	}
}

type marketplaceSnapshot struct {
	Operator     core.Identity
	FeeRate      fees.Rate
	MinimumStake uint64
	Listings     map[uint64]*Listing
	Stakes       map[core.Identity]uint64
}

func (m *Marketplace) Snapshot() (any, error) {
	snap := marketplaceSnapshot{
		Operator:     m.Owner(),
		FeeRate:      m.feeRate,
		MinimumStake: m.minimumStake,
		Listings:     make(map[uint64]*Listing, len(m.listings)),
		Stakes:       make(map[core.Identity]uint64, len(m.stakes)),
	}
	if err := copier.CopyWithOption(
		&snap.Listings,
		m.listings,
		copier.Option{DeepCopy: true},
	); err != nil {
		return nil, err
	}
	if err := copier.CopyWithOption(
		&snap.Stakes,
		m.stakes,
		copier.Option{DeepCopy: true},
	); err != nil {
		return nil, err
	}
	return snap, nil
}

func (m *Marketplace) Restore(snapshot any) error {
	snap, ok := snapshot.(marketplaceSnapshot)
	if !ok {
		return fmt.Errorf("unexpected snapshot type %T", snapshot)
	}
	m.SetOwner(snap.Operator)
	m.feeRate = snap.FeeRate
	m.minimumStake = snap.MinimumStake
	m.listings = snap.Listings
	m.stakes = snap.Stakes
	return nil
}
