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

// Package stagepass implements the ownership and governance core of a
// festival ticket exchange: primary issuance and controlled resale of
// tickets, a token-settled secondary marketplace with staking-based premium
// access, and M-of-N multi-party governance over platform parameters. Every
// public operation runs atomically inside the embedded ledger host: it
// either commits fully, with its events delivered exactly once, or leaves no
// trace.
package stagepass

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/stagepass-io/stagepass/core"
	"github.com/stagepass-io/stagepass/events"
	"github.com/stagepass-io/stagepass/fees"
	"github.com/stagepass-io/stagepass/governor"
	"github.com/stagepass-io/stagepass/host"
	"github.com/stagepass-io/stagepass/marketplace"
	"github.com/stagepass-io/stagepass/registry"
	"github.com/stagepass-io/stagepass/token"
)

// Component account identity seeds
var (
	governorSeed    = []byte("stagepass.governor")
	registrySeed    = []byte("stagepass.registry")
	marketplaceSeed = []byte("stagepass.marketplace")
)

// Exchange ties the ticket registry, marketplace, and governor together on a
// shared ledger host. Use New to create one.
type Exchange struct {
	logger           *slog.Logger
	clock            func() time.Time
	owners           []core.Identity
	required         uint64
	operator         core.Identity
	primaryRateBps   uint64
	secondaryRateBps uint64
	marketRateBps    uint64
	minimumStake     uint64
	stakingToken     token.Ledger
	recoverable      []token.Ledger

	runtime     *host.Runtime
	accounts    *host.Accounts
	registry    *registry.Registry
	marketplace *marketplace.Marketplace
	governor    *governor.Governor
}

// New creates a new Exchange with the provided options. Governance owners
// are required; everything else has a sensible default. When no platform
// operator is given, the governor itself is the operator, meaning all
// privileged parameter changes go through a quorum of owners.
func New(options ...ExchangeOptionFunc) (*Exchange, error) {
	e := &Exchange{
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:            time.Now,
		required:         1,
		primaryRateBps:   500,
		secondaryRateBps: 250,
		marketRateBps:    250,
		minimumStake:     1000,
	}
	for _, option := range options {
		option(e)
	}
	if e.stakingToken == nil {
		e.stakingToken = token.NewInMemory("STAGE")
	}
	governorID := core.NewIdentity(governorSeed)
	if e.operator.IsZero() {
		e.operator = governorID
	}
	e.runtime = host.NewRuntime(host.WithLogger(e.logger))
	e.accounts = host.NewAccounts()
	e.runtime.Register(e.accounts)
	if res, ok := e.stakingToken.(host.Resource); ok {
		e.runtime.Register(res)
	}
	for _, ledger := range e.recoverable {
		if res, ok := ledger.(host.Resource); ok {
			e.runtime.Register(res)
		}
	}
	primaryRate, err := fees.NewRate(e.primaryRateBps)
	if err != nil {
		return nil, err
	}
	secondaryRate, err := fees.NewRate(e.secondaryRateBps)
	if err != nil {
		return nil, err
	}
	marketRate, err := fees.NewRate(e.marketRateBps)
	if err != nil {
		return nil, err
	}
	gov, err := governor.New(governor.NewConfig(
		governor.WithRuntime(e.runtime),
		governor.WithAccounts(e.accounts),
		governor.WithSelf(governorID),
		governor.WithOwners(e.owners...),
		governor.WithRequired(e.required),
		governor.WithClock(e.clock),
	))
	if err != nil {
		return nil, fmt.Errorf("stagepass: %w", err)
	}
	e.governor = gov
	reg, err := registry.New(registry.NewConfig(
		registry.WithRuntime(e.runtime),
		registry.WithAccounts(e.accounts),
		registry.WithOperator(e.operator),
		registry.WithPrimaryRate(primaryRate),
		registry.WithSecondaryRate(secondaryRate),
		registry.WithClock(e.clock),
	))
	if err != nil {
		return nil, fmt.Errorf("stagepass: %w", err)
	}
	e.registry = reg
	marketOptions := []marketplace.ConfigOptionFunc{
		marketplace.WithRuntime(e.runtime),
		marketplace.WithRegistry(reg),
		marketplace.WithStakingToken(e.stakingToken),
		marketplace.WithSelf(core.NewIdentity(marketplaceSeed)),
		marketplace.WithOperator(e.operator),
		marketplace.WithFeeRate(marketRate),
		marketplace.WithMinimumStake(e.minimumStake),
		marketplace.WithClock(e.clock),
	}
	for _, ledger := range e.recoverable {
		marketOptions = append(
			marketOptions,
			marketplace.WithRecoverableToken(ledger),
		)
	}
	mkt, err := marketplace.New(marketplace.NewConfig(marketOptions...))
	if err != nil {
		return nil, fmt.Errorf("stagepass: %w", err)
	}
	e.marketplace = mkt
	gov.RegisterTarget(core.NewIdentity(registrySeed), reg)
	gov.RegisterTarget(mkt.Self(), mkt)
	return e, nil
}

// Subscribe registers a callback receiving the events of every committed
// operation, in emission order. Events of aborted operations are never
// delivered.
func (e *Exchange) Subscribe(sub host.SubscriberFunc) {
	e.runtime.Subscribe(sub)
}

// Accounts returns the native value accounts. Minting and transfer hooks are
// host-level setup, outside the operation surface.
func (e *Exchange) Accounts() *host.Accounts {
	return e.accounts
}

// StakingToken returns the token ledger used for marketplace settlement and
// staking
func (e *Exchange) StakingToken() token.Ledger {
	return e.stakingToken
}

// GovernorIdentity returns the governor's account identity, the target for
// governance transactions that administer the owner set
func (e *Exchange) GovernorIdentity() core.Identity {
	return e.governor.Self()
}

// RegistryIdentity returns the registry's governance target identity
func (e *Exchange) RegistryIdentity() core.Identity {
	return core.NewIdentity(registrySeed)
}

// MarketplaceIdentity returns the marketplace's account and governance
// target identity
func (e *Exchange) MarketplaceIdentity() core.Identity {
	return e.marketplace.Self()
}

// PlatformOperator returns the identity receiving platform fees and holding
// direct administrative rights
func (e *Exchange) PlatformOperator() core.Identity {
	return e.operator
}

// EncodeGovernancePayload builds a governance transaction payload from a
// method name and its parameter struct
func EncodeGovernancePayload(method string, params any) ([]byte, error) {
	return governor.EncodePayload(method, params)
}

// CreateEvent records a new event with the caller as organizer and returns
// its id
func (e *Exchange) CreateEvent(
	caller core.Identity,
	name string,
	startTime time.Time,
	basePrice uint64,
	maxTickets uint64,
) (uint64, error) {
	var id uint64
	err := e.runtime.Execute(events.OpCreateEvent, func() error {
		var err error
		id, err = e.registry.CreateEvent(
			caller,
			name,
			startTime,
			basePrice,
			maxTickets,
		)
		return err
	})
	return id, err
}

// IssueTicket sells a primary ticket for an event to the recipient,
// splitting the caller's payment between the platform and the organizer
func (e *Exchange) IssueTicket(
	caller core.Identity,
	eventID uint64,
	recipient core.Identity,
	resellable bool,
	maxResalePrice uint64,
	payment uint64,
) (uint64, error) {
	var id uint64
	err := e.runtime.Execute(events.OpIssueTicket, func() error {
		var err error
		id, err = e.registry.IssueTicket(
			caller,
			eventID,
			recipient,
			resellable,
			maxResalePrice,
			payment,
		)
		return err
	})
	return id, err
}

// TransferTicket resells a ticket directly, settling in native units at the
// secondary-sale fee rate
func (e *Exchange) TransferTicket(
	caller core.Identity,
	ticketID uint64,
	to core.Identity,
	price uint64,
	payment uint64,
) error {
	return e.runtime.Execute(events.OpTransferTicket, func() error {
		return e.registry.TransferTicket(caller, ticketID, to, price, payment)
	})
}

// BlacklistTicket permanently invalidates a ticket
func (e *Exchange) BlacklistTicket(caller core.Identity, ticketID uint64) error {
	return e.runtime.Execute(events.OpBlacklistTicket, func() error {
		return e.registry.BlacklistTicket(caller, ticketID)
	})
}

// ApproveTransfer delegates transfer rights for a ticket to an operator.
// Listing a ticket requires approving the marketplace first.
func (e *Exchange) ApproveTransfer(
	caller core.Identity,
	ticketID uint64,
	operator core.Identity,
) error {
	return e.runtime.Execute(events.OpApproveTransfer, func() error {
		return e.registry.ApproveTransfer(caller, ticketID, operator)
	})
}

// UpdateFeeRates replaces the registry fee rates. Operator only; use a
// governance transaction when the governor is the operator.
func (e *Exchange) UpdateFeeRates(
	caller core.Identity,
	primaryBps uint64,
	secondaryBps uint64,
) error {
	return e.runtime.Execute(events.OpUpdateFeeRates, func() error {
		return e.registry.UpdateFeeRates(caller, primaryBps, secondaryBps)
	})
}

// TransferRegistryOwnership hands the registry operator role to a new
// identity
func (e *Exchange) TransferRegistryOwnership(
	caller core.Identity,
	newOperator core.Identity,
) error {
	return e.runtime.Execute(events.OpTransferOwnership, func() error {
		return e.registry.TransferOwnership(caller, newOperator)
	})
}

// ListTicket puts a ticket up for sale on the marketplace at the given price
// in token units
func (e *Exchange) ListTicket(
	caller core.Identity,
	ticketID uint64,
	price uint64,
) error {
	return e.runtime.Execute(events.OpListTicket, func() error {
		return e.marketplace.ListTicket(caller, ticketID, price)
	})
}

// PurchaseTicket buys a listed ticket, settling the payment in token units
// and moving ticket ownership to the caller
func (e *Exchange) PurchaseTicket(
	caller core.Identity,
	ticketID uint64,
	payment uint64,
) error {
	return e.runtime.Execute(events.OpPurchaseTicket, func() error {
		return e.marketplace.PurchaseTicket(caller, ticketID, payment)
	})
}

// CancelListing withdraws the caller's active listing
func (e *Exchange) CancelListing(caller core.Identity, ticketID uint64) error {
	return e.runtime.Execute(events.OpCancelListing, func() error {
		return e.marketplace.CancelListing(caller, ticketID)
	})
}

// StakeTokens locks tokens from the caller toward premium access
func (e *Exchange) StakeTokens(caller core.Identity, amount uint64) error {
	return e.runtime.Execute(events.OpStakeTokens, func() error {
		return e.marketplace.StakeTokens(caller, amount)
	})
}

// WithdrawStake returns staked tokens to the caller
func (e *Exchange) WithdrawStake(caller core.Identity, amount uint64) error {
	return e.runtime.Execute(events.OpWithdrawStake, func() error {
		return e.marketplace.WithdrawStake(caller, amount)
	})
}

// UpdatePlatformFee replaces the marketplace fee rate. Operator only.
func (e *Exchange) UpdatePlatformFee(caller core.Identity, bps uint64) error {
	return e.runtime.Execute(events.OpUpdatePlatformFee, func() error {
		return e.marketplace.UpdatePlatformFee(caller, bps)
	})
}

// UpdateMinimumStake replaces the premium-access stake threshold. Operator
// only.
func (e *Exchange) UpdateMinimumStake(caller core.Identity, amount uint64) error {
	return e.runtime.Execute(events.OpUpdateMinimumStake, func() error {
		return e.marketplace.UpdateMinimumStake(caller, amount)
	})
}

// RecoverTokens sends tokens stranded in the marketplace account to the
// given recipient. The staking token is never recoverable.
func (e *Exchange) RecoverTokens(
	caller core.Identity,
	tokenName string,
	to core.Identity,
	amount uint64,
) error {
	return e.runtime.Execute(events.OpRecoverTokens, func() error {
		return e.marketplace.RecoverTokens(caller, tokenName, to, amount)
	})
}

// SubmitTransaction proposes a governance transaction and returns its id
func (e *Exchange) SubmitTransaction(
	caller core.Identity,
	target core.Identity,
	value uint64,
	payload []byte,
) (uint64, error) {
	var id uint64
	err := e.runtime.Execute(events.OpSubmitTransaction, func() error {
		var err error
		id, err = e.governor.SubmitTransaction(caller, target, value, payload)
		return err
	})
	return id, err
}

// ConfirmTransaction records the caller's confirmation of a governance
// transaction
func (e *Exchange) ConfirmTransaction(caller core.Identity, txID uint64) error {
	return e.runtime.Execute(events.OpConfirmTransaction, func() error {
		return e.governor.ConfirmTransaction(caller, txID)
	})
}

// RevokeConfirmation withdraws the caller's confirmation of a governance
// transaction
func (e *Exchange) RevokeConfirmation(caller core.Identity, txID uint64) error {
	return e.runtime.Execute(events.OpRevokeConfirmation, func() error {
		return e.governor.RevokeConfirmation(caller, txID)
	})
}

// ExecuteTransaction performs a governance transaction once quorum is met.
// A failed target call aborts the operation entirely, leaving the
// transaction executable.
func (e *Exchange) ExecuteTransaction(caller core.Identity, txID uint64) error {
	return e.runtime.Execute(events.OpExecuteTransaction, func() error {
		return e.governor.ExecuteTransaction(caller, txID)
	})
}

// Event returns a copy of an event record
func (e *Exchange) Event(id uint64) (registry.Event, bool) {
	var ev registry.Event
	var ok bool
	e.runtime.View(func() {
		ev, ok = e.registry.Event(id)
	})
	return ev, ok
}

// Ticket returns a copy of a ticket record
func (e *Exchange) Ticket(id uint64) (registry.Ticket, bool) {
	var t registry.Ticket
	var ok bool
	e.runtime.View(func() {
		t, ok = e.registry.Ticket(id)
	})
	return t, ok
}

// IsTicketValid reports whether a ticket exists, is valid, and is not
// blacklisted
func (e *Exchange) IsTicketValid(ticketID uint64) bool {
	var valid bool
	e.runtime.View(func() {
		valid = e.registry.IsTicketValid(ticketID)
	})
	return valid
}

// ApprovedOperator returns the operator holding transfer delegation for a
// ticket, if any
func (e *Exchange) ApprovedOperator(ticketID uint64) (core.Identity, bool) {
	var op core.Identity
	var ok bool
	e.runtime.View(func() {
		op, ok = e.registry.ApprovedOperator(ticketID)
	})
	return op, ok
}

// FeeRates returns the registry's primary and secondary sale fee rates
func (e *Exchange) FeeRates() (fees.Rate, fees.Rate) {
	var primary, secondary fees.Rate
	e.runtime.View(func() {
		primary, secondary = e.registry.FeeRates()
	})
	return primary, secondary
}

// Listing returns a copy of a ticket's listing record
func (e *Exchange) Listing(ticketID uint64) (marketplace.Listing, bool) {
	var l marketplace.Listing
	var ok bool
	e.runtime.View(func() {
		l, ok = e.marketplace.Listing(ticketID)
	})
	return l, ok
}

// StakeOf returns an identity's staked token balance
func (e *Exchange) StakeOf(id core.Identity) uint64 {
	var stake uint64
	e.runtime.View(func() {
		stake = e.marketplace.StakeOf(id)
	})
	return stake
}

// HasPremiumAccess reports whether an identity's stake meets the minimum
func (e *Exchange) HasPremiumAccess(id core.Identity) bool {
	var premium bool
	e.runtime.View(func() {
		premium = e.marketplace.HasPremiumAccess(id)
	})
	return premium
}

// MinimumStake returns the premium-access stake threshold
func (e *Exchange) MinimumStake() uint64 {
	var minimum uint64
	e.runtime.View(func() {
		minimum = e.marketplace.MinimumStake()
	})
	return minimum
}

// PlatformFee returns the marketplace fee rate
func (e *Exchange) PlatformFee() fees.Rate {
	var rate fees.Rate
	e.runtime.View(func() {
		rate = e.marketplace.FeeRate()
	})
	return rate
}

// Owners returns the current governance owner set
func (e *Exchange) Owners() []core.Identity {
	var owners []core.Identity
	e.runtime.View(func() {
		owners = e.governor.Owners()
	})
	return owners
}

// RequiredConfirmations returns the governance confirmation threshold
func (e *Exchange) RequiredConfirmations() uint64 {
	var required uint64
	e.runtime.View(func() {
		required = e.governor.Required()
	})
	return required
}

// TransactionCount returns the number of submitted governance transactions
func (e *Exchange) TransactionCount() uint64 {
	var count uint64
	e.runtime.View(func() {
		count = e.governor.TransactionCount()
	})
	return count
}

// Transaction returns a copy of a governance transaction record
func (e *Exchange) Transaction(txID uint64) (governor.Transaction, bool) {
	var t governor.Transaction
	var ok bool
	e.runtime.View(func() {
		t, ok = e.governor.Transaction(txID)
	})
	return t, ok
}

// ConfirmationCount returns the number of current-owner confirmations for a
// governance transaction
func (e *Exchange) ConfirmationCount(txID uint64) uint64 {
	var count uint64
	e.runtime.View(func() {
		count = e.governor.ConfirmationCount(txID)
	})
	return count
}

// IsConfirmedBy reports whether an owner has confirmed a governance
// transaction
func (e *Exchange) IsConfirmedBy(txID uint64, owner core.Identity) bool {
	var confirmed bool
	e.runtime.View(func() {
		confirmed = e.governor.IsConfirmedBy(txID, owner)
	})
	return confirmed
}

// TransactionIDs returns governance transaction ids filtered by pending
// and/or executed status
func (e *Exchange) TransactionIDs(pending bool, executed bool) []uint64 {
	var ids []uint64
	e.runtime.View(func() {
		ids = e.governor.TransactionIDs(pending, executed)
	})
	return ids
}
