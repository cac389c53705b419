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

// Package registry implements the ticket registry: event and ticket records,
// primary issuance, resale transfers, blacklisting, and transfer delegation.
// It enforces per-event supply caps and per-ticket resale-price ceilings and
// routes payment splits through the fee splitter.
package registry

import (
	"fmt"
	"time"

	"github.com/jinzhu/copier"

	"github.com/stagepass-io/stagepass/cbor"
	"github.com/stagepass-io/stagepass/core"
	"github.com/stagepass-io/stagepass/events"
	"github.com/stagepass-io/stagepass/fees"
	"github.com/stagepass-io/stagepass/host"
)

// Defaults for the primary and secondary sale fee rates, in basis points
const (
	DefaultPrimaryRateBps   = 500
	DefaultSecondaryRateBps = 250
)

// Governance methods dispatched by the registry
const (
	MethodUpdateFeeRates    = "update-fee-rates"
	MethodTransferOwnership = "transfer-ownership"
)

// Event is an organizer-defined sellable occasion with a ticket supply cap
// and base price. Events are never deleted.
type Event struct {
	ID          uint64
	Name        string
	StartTime   time.Time
	BasePrice   uint64
	MaxTickets  uint64
	TicketsSold uint64
	Organizer   core.Identity
}

// Ticket is a uniquely identified, ownable right tied to an Event
type Ticket struct {
	ID             uint64
	EventID        uint64
	OriginalPrice  uint64
	CurrentPrice   uint64
	OriginalOwner  core.Identity
	Owner          core.Identity
	Valid          bool
	Resellable     bool
	MaxResalePrice uint64
	Blacklisted    bool
}

// Config contains configuration options for the registry
type Config struct {
	Runtime       *host.Runtime
	Accounts      *host.Accounts
	Operator      core.Identity
	PrimaryRate   fees.Rate
	SecondaryRate fees.Rate
	Clock         func() time.Time
}

// ConfigOptionFunc is a function that modifies a Config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new Config with default values, applying any provided
// option functions
func NewConfig(options ...ConfigOptionFunc) Config {
	c := Config{
		PrimaryRate:   fees.Rate(DefaultPrimaryRateBps),
		SecondaryRate: fees.Rate(DefaultSecondaryRateBps),
		Clock:         time.Now,
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

// WithAccounts sets the native value accounts used for settlement
func WithAccounts(accounts *host.Accounts) ConfigOptionFunc {
	return func(c *Config) {
		c.Accounts = accounts
	}
}

// WithOperator sets the platform operator identity
func WithOperator(operator core.Identity) ConfigOptionFunc {
	return func(c *Config) {
		c.Operator = operator
	}
}

// WithPrimaryRate sets the primary-sale fee rate
func WithPrimaryRate(rate fees.Rate) ConfigOptionFunc {
	return func(c *Config) {
		c.PrimaryRate = rate
	}
}

// WithSecondaryRate sets the secondary-sale fee rate
func WithSecondaryRate(rate fees.Rate) ConfigOptionFunc {
	return func(c *Config) {
		c.SecondaryRate = rate
	}
}

// WithClock sets the time source used for schedule validation
func WithClock(clock func() time.Time) ConfigOptionFunc {
	return func(c *Config) {
		c.Clock = clock
	}
}

// Registry owns Event and Ticket records
type Registry struct {
	core.Ownable
	guard         core.Guard
	runtime       *host.Runtime
	accounts      *host.Accounts
	clock         func() time.Time
	primaryRate   fees.Rate
	secondaryRate fees.Rate
	nextEventID   uint64
	nextTicketID  uint64
	eventRecords  map[uint64]*Event
	tickets       map[uint64]*Ticket
	approvals     map[uint64]core.Identity
}

// New returns a new Registry for the provided config
func New(cfg Config) (*Registry, error) {
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("registry: no runtime provided")
	}
	if cfg.Accounts == nil {
		return nil, fmt.Errorf("registry: no accounts provided")
	}
	if cfg.Operator.IsZero() {
		return nil, fmt.Errorf("registry: no operator provided")
	}
	if _, err := fees.NewRate(cfg.PrimaryRate.Bps()); err != nil {
		return nil, err
	}
	if _, err := fees.NewRate(cfg.SecondaryRate.Bps()); err != nil {
		return nil, err
	}
	r := &Registry{
		Ownable:       core.NewOwnable(cfg.Operator),
		runtime:       cfg.Runtime,
		accounts:      cfg.Accounts,
		clock:         cfg.Clock,
		primaryRate:   cfg.PrimaryRate,
		secondaryRate: cfg.SecondaryRate,
		nextEventID:   1,
		nextTicketID:  1,
		eventRecords:  make(map[uint64]*Event),
		tickets:       make(map[uint64]*Ticket),
		approvals:     make(map[uint64]core.Identity),
	}
	cfg.Runtime.Register(r)
	return r, nil
}

// CreateEvent records a new event with the caller as organizer
func (r *Registry) CreateEvent(
	caller core.Identity,
	name string,
	startTime time.Time,
	basePrice uint64,
	maxTickets uint64,
) (uint64, error) {
	now := r.clock()
	if !startTime.After(now) {
		return 0, InvalidScheduleError{StartTime: startTime, Now: now}
	}
	if basePrice == 0 {
		return 0, InvalidParameterError{Parameter: "basePrice"}
	}
	if maxTickets == 0 {
		return 0, InvalidParameterError{Parameter: "maxTickets"}
	}
	id := r.nextEventID
	r.nextEventID++
	r.eventRecords[id] = &Event{
		ID:         id,
		Name:       name,
		StartTime:  startTime,
		BasePrice:  basePrice,
		MaxTickets: maxTickets,
		Organizer:  caller,
	}
	r.runtime.Emit(events.New(events.OpCreateEvent, events.EventCreated{
		EventID:    id,
		Name:       name,
		Organizer:  caller,
		StartTime:  startTime,
		BasePrice:  basePrice,
		MaxTickets: maxTickets,
	}))
	return id, nil
}

// IssueTicket creates a ticket against an event, splitting the payment
// between the platform and the organizer at the primary-sale rate
func (r *Registry) IssueTicket(
	caller core.Identity,
	eventID uint64,
	recipient core.Identity,
	resellable bool,
	maxResalePrice uint64,
	payment uint64,
) (uint64, error) {
	if err := r.guard.Enter(); err != nil {
		return 0, err
	}
	defer r.guard.Exit()
	ev, ok := r.eventRecords[eventID]
	if !ok {
		return 0, UnknownEventError{EventID: eventID}
	}
	if ev.TicketsSold >= ev.MaxTickets {
		return 0, SoldOutError{EventID: eventID, MaxTickets: ev.MaxTickets}
	}
	if payment < ev.BasePrice {
		return 0, InsufficientPaymentError{
			Required: ev.BasePrice,
			Provided: payment,
		}
	}
	// Commit the supply and ticket record before any outbound transfer
	ev.TicketsSold++
	id := r.nextTicketID
	r.nextTicketID++
	r.tickets[id] = &Ticket{
		ID:             id,
		EventID:        eventID,
		OriginalPrice:  payment,
		CurrentPrice:   payment,
		OriginalOwner:  recipient,
		Owner:          recipient,
		Valid:          true,
		Resellable:     resellable,
		MaxResalePrice: maxResalePrice,
	}
	fee, remainder := fees.Split(payment, r.primaryRate)
	if err := r.accounts.Transfer(caller, r.Owner(), fee); err != nil {
		return 0, PaymentTransferFailedError{Err: err}
	}
	if err := r.accounts.Transfer(caller, ev.Organizer, remainder); err != nil {
		return 0, PaymentTransferFailedError{Err: err}
	}
	r.runtime.Emit(events.New(events.OpIssueTicket, events.TicketIssued{
		TicketID:  id,
		EventID:   eventID,
		Recipient: recipient,
		Price:     payment,
		Fee:       fee,
	}))
	return id, nil
}

// TransferTicket resells a ticket directly for native value, splitting the
// payment between the platform and the previous owner at the secondary-sale
// rate. The caller must be the owner or the approved operator.
func (r *Registry) TransferTicket(
	caller core.Identity,
	ticketID uint64,
	to core.Identity,
	price uint64,
	payment uint64,
) error {
	if err := r.guard.Enter(); err != nil {
		return err
	}
	defer r.guard.Exit()
	t, ok := r.tickets[ticketID]
	if !ok {
		return UnknownTicketError{TicketID: ticketID}
	}
	if caller != t.Owner && caller != r.approvals[ticketID] {
		return NotOwnerOrApprovedError{TicketID: ticketID, Caller: caller}
	}
	if err := r.validateResale(t, price); err != nil {
		return err
	}
	if payment < price {
		return InsufficientPaymentError{Required: price, Provided: payment}
	}
	seller := t.Owner
	// Flip ownership before the outbound transfers
	t.Owner = to
	t.CurrentPrice = price
	delete(r.approvals, ticketID)
	fee, remainder := fees.Split(payment, r.secondaryRate)
	if err := r.accounts.Transfer(caller, r.Owner(), fee); err != nil {
		return PaymentTransferFailedError{Err: err}
	}
	if err := r.accounts.Transfer(caller, seller, remainder); err != nil {
		return PaymentTransferFailedError{Err: err}
	}
	r.runtime.Emit(events.New(events.OpTransferTicket, events.TicketTransferred{
		TicketID: ticketID,
		From:     seller,
		To:       to,
		Price:    price,
		Fee:      fee,
	}))
	return nil
}

// DelegatedTransfer moves ticket ownership on behalf of an approved operator
// that settles value itself (the marketplace settlement path). No native
// value moves through the registry.
func (r *Registry) DelegatedTransfer(
	caller core.Identity,
	ticketID uint64,
	to core.Identity,
	price uint64,
) error {
	t, ok := r.tickets[ticketID]
	if !ok {
		return UnknownTicketError{TicketID: ticketID}
	}
	if caller != r.approvals[ticketID] {
		return NotOwnerOrApprovedError{TicketID: ticketID, Caller: caller}
	}
	if err := r.validateResale(t, price); err != nil {
		return err
	}
	seller := t.Owner
	t.Owner = to
	t.CurrentPrice = price
	delete(r.approvals, ticketID)
	r.runtime.Emit(events.New(events.OpTransferTicket, events.TicketTransferred{
		TicketID: ticketID,
		From:     seller,
		To:       to,
		Price:    price,
	}))
	return nil
}

func (r *Registry) validateResale(t *Ticket, price uint64) error {
	if !t.Valid || t.Blacklisted {
		return TicketInvalidError{TicketID: t.ID}
	}
	if !t.Resellable {
		return NotResellableError{TicketID: t.ID}
	}
	if price > t.MaxResalePrice {
		return PriceExceedsCapError{
			TicketID:       t.ID,
			Price:          price,
			MaxResalePrice: t.MaxResalePrice,
		}
	}
	return nil
}

// BlacklistTicket permanently invalidates a ticket. Only the platform
// operator or the ticket's event organizer may blacklist. Irreversible.
func (r *Registry) BlacklistTicket(caller core.Identity, ticketID uint64) error {
	t, ok := r.tickets[ticketID]
	if !ok {
		return UnknownTicketError{TicketID: ticketID}
	}
	ev := r.eventRecords[t.EventID]
	if caller != r.Owner() && (ev == nil || caller != ev.Organizer) {
		return NotAuthorizedError{Caller: caller}
	}
	if !t.Valid {
		return AlreadyInvalidError{TicketID: ticketID}
	}
	t.Blacklisted = true
	t.Valid = false
	r.runtime.Emit(events.New(events.OpBlacklistTicket, events.TicketBlacklisted{
		TicketID: ticketID,
		By:       caller,
	}))
	return nil
}

// IsTicketValid reports whether a ticket exists, is valid, and is not
// blacklisted
func (r *Registry) IsTicketValid(ticketID uint64) bool {
	t, ok := r.tickets[ticketID]
	if !ok {
		return false
	}
	return t.Valid && !t.Blacklisted
}

// ApproveTransfer delegates transfer rights for a ticket to an operator.
// Approval is cleared automatically when ownership changes.
func (r *Registry) ApproveTransfer(
	caller core.Identity,
	ticketID uint64,
	operator core.Identity,
) error {
	t, ok := r.tickets[ticketID]
	if !ok {
		return UnknownTicketError{TicketID: ticketID}
	}
	if caller != t.Owner {
		return NotOwnerError{TicketID: ticketID, Caller: caller}
	}
	r.approvals[ticketID] = operator
	r.runtime.Emit(events.New(events.OpApproveTransfer, events.TransferApproved{
		TicketID: ticketID,
		Owner:    caller,
		Operator: operator,
	}))
	return nil
}

// ApprovedOperator returns the operator holding transfer delegation for a
// ticket, if any
func (r *Registry) ApprovedOperator(ticketID uint64) (core.Identity, bool) {
	op, ok := r.approvals[ticketID]
	return op, ok
}

// UpdateFeeRates replaces the primary and secondary sale fee rates. Only
// reachable through the operator/governance path.
func (r *Registry) UpdateFeeRates(
	caller core.Identity,
	primaryBps uint64,
	secondaryBps uint64,
) error {
	if err := r.CheckOwner(caller); err != nil {
		return err
	}
	primary, err := fees.NewRate(primaryBps)
	if err != nil {
		return err
	}
	secondary, err := fees.NewRate(secondaryBps)
	if err != nil {
		return err
	}
	r.primaryRate = primary
	r.secondaryRate = secondary
	r.runtime.Emit(events.New(events.OpUpdateFeeRates, events.FeeRatesUpdated{
		PrimaryBps:   primaryBps,
		SecondaryBps: secondaryBps,
	}))
	return nil
}

// TransferOwnership hands the platform operator role to a new identity. Only
// reachable through the operator/governance path.
func (r *Registry) TransferOwnership(caller core.Identity, newOperator core.Identity) error {
	if err := r.CheckOwner(caller); err != nil {
		return err
	}
	if newOperator.IsZero() {
		return InvalidParameterError{Parameter: "newOperator"}
	}
	previous := r.Owner()
	r.SetOwner(newOperator)
	r.runtime.Emit(events.New(events.OpTransferOwnership, events.OwnershipTransferred{
		Previous: previous,
		New:      newOperator,
	}))
	return nil
}

// FeeRates returns the current primary and secondary sale fee rates
func (r *Registry) FeeRates() (fees.Rate, fees.Rate) {
	return r.primaryRate, r.secondaryRate
}

// Event returns a copy of an event record
func (r *Registry) Event(id uint64) (Event, bool) {
	ev, ok := r.eventRecords[id]
	if !ok {
		return Event{}, false
	}
	return *ev, true
}

// Ticket returns a copy of a ticket record
func (r *Registry) Ticket(id uint64) (Ticket, bool) {
	t, ok := r.tickets[id]
	if !ok {
		return Ticket{}, false
	}
	return *t, true
}

// InvokeGovernance dispatches a governance payload to the registry
func (r *Registry) InvokeGovernance(caller core.Identity, method string, params []byte) error {
	switch method {
	case MethodUpdateFeeRates:
		var tmpParams struct {
			PrimaryBps   uint64
			SecondaryBps uint64
		}
		if err := cbor.Decode(params, &tmpParams); err != nil {
			return err
		}
		return r.UpdateFeeRates(caller, tmpParams.PrimaryBps, tmpParams.SecondaryBps)
	case MethodTransferOwnership:
		var tmpParams struct {
			NewOperator []byte
		}
		if err := cbor.Decode(params, &tmpParams); err != nil {
			return err
		}
		if len(tmpParams.NewOperator) != core.IdentitySize {
			return InvalidParameterError{Parameter: "newOperator"}
		}
		return r.TransferOwnership(caller, core.Identity(tmpParams.NewOperator))
	default:
		return UnknownMethodError{Method: method}
	}
}

type registrySnapshot struct {
	Operator      core.Identity
	PrimaryRate   fees.Rate
	SecondaryRate fees.Rate
	NextEventID   uint64
	NextTicketID  uint64
	EventRecords  map[uint64]*Event
	Tickets       map[uint64]*Ticket
	Approvals     map[uint64]core.Identity
}

func (r *Registry) Snapshot() (any, error) {
	snap := registrySnapshot{
		Operator:      r.Owner(),
		PrimaryRate:   r.primaryRate,
		SecondaryRate: r.secondaryRate,
		NextEventID:   r.nextEventID,
		NextTicketID:  r.nextTicketID,
		EventRecords:  make(map[uint64]*Event, len(r.eventRecords)),
		Tickets:       make(map[uint64]*Ticket, len(r.tickets)),
		Approvals:     make(map[uint64]core.Identity, len(r.approvals)),
	}
	if err := copier.CopyWithOption(
		&snap.EventRecords,
		r.eventRecords,
		copier.Option{DeepCopy: true},
	); err != nil {
		return nil, err
	}
	if err := copier.CopyWithOption(
		&snap.Tickets,
		r.tickets,
		copier.Option{DeepCopy: true},
	); err != nil {
		return nil, err
	}
	if err := copier.CopyWithOption(
		&snap.Approvals,
		r.approvals,
		copier.Option{DeepCopy: true},
	); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Registry) Restore(snapshot any) error {
	snap, ok := snapshot.(registrySnapshot)
	if !ok {
		return fmt.Errorf("unexpected snapshot type %T", snapshot)
	}
	r.SetOwner(snap.Operator)
	r.primaryRate = snap.PrimaryRate
	r.secondaryRate = snap.SecondaryRate
	r.nextEventID = snap.NextEventID
	r.nextTicketID = snap.NextTicketID
	r.eventRecords = snap.EventRecords
	r.tickets = snap.Tickets
	r.approvals = snap.Approvals
	return nil
}
