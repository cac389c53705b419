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

// Package governor implements M-of-N multi-party governance: a set of owners
// propose, confirm, and execute privileged transactions exactly once.
// Transactions are never deleted and serve as an audit trail.
package governor

import (
	"fmt"
	"time"

	"github.com/jinzhu/copier"

	"github.com/stagepass-io/stagepass/cbor"
	"github.com/stagepass-io/stagepass/core"
	"github.com/stagepass-io/stagepass/events"
	"github.com/stagepass-io/stagepass/host"
)

// Governance methods the governor dispatches against itself
const (
	MethodAddOwner          = "add-owner"
	MethodRemoveOwner       = "remove-owner"
	MethodChangeRequirement = "change-requirement"
)

// Target is implemented by components that accept governance calls
type Target interface {
	InvokeGovernance(caller core.Identity, method string, params []byte) error
}

// Payload is the CBOR-encoded body of a governance transaction
type Payload struct {
	Method string
	Params cbor.RawMessage
}

// EncodePayload builds a transaction payload from a method name and its
// parameter struct
func EncodePayload(method string, params any) ([]byte, error) {
	rawParams, err := cbor.Encode(params)
	if err != nil {
		return nil, err
	}
	return cbor.Encode(Payload{
		Method: method,
		Params: rawParams,
	})
}

// Transaction is a proposed privileged action. Confirmations are tracked per
// owner; an owner's confirmation counts at most once until revoked.
type Transaction struct {
	ID            uint64
	Target        core.Identity
	Value         uint64
	Payload       []byte
	PayloadDigest core.Digest
	Executed      bool
	SubmittedAt   time.Time
	Confirmations map[core.Identity]bool
}

// ConfirmedBy reports whether the given identity has confirmed
func (t *Transaction) ConfirmedBy(id core.Identity) bool {
	return t.Confirmations[id]
}

// Config contains configuration options for the governor
type Config struct {
	Runtime  *host.Runtime
	Accounts *host.Accounts
	Self     core.Identity
	Owners   []core.Identity
	Required uint64
	Clock    func() time.Time
}

// ConfigOptionFunc is a function that modifies a Config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new Config with default values, applying any provided
// option functions
func NewConfig(options ...ConfigOptionFunc) Config {
	c := Config{
		Clock: time.Now,
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

// WithAccounts sets the native value accounts used for value-bearing
// transactions
func WithAccounts(accounts *host.Accounts) ConfigOptionFunc {
	return func(c *Config) {
		c.Accounts = accounts
	}
}

// WithSelf sets the governor's own account identity
func WithSelf(self core.Identity) ConfigOptionFunc {
	return func(c *Config) {
		c.Self = self
	}
}

// WithOwners sets the initial governance owner set
func WithOwners(owners ...core.Identity) ConfigOptionFunc {
	return func(c *Config) {
		c.Owners = owners
	}
}

// WithRequired sets the confirmation threshold
func WithRequired(required uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.Required = required
	}
}

// WithClock sets the time source used for submission timestamps
func WithClock(clock func() time.Time) ConfigOptionFunc {
	return func(c *Config) {
		c.Clock = clock
	}
}

// Governor owns the governance owner set and transaction queue
type Governor struct {
	guard        core.Guard
	runtime      *host.Runtime
	accounts     *host.Accounts
	self         core.Identity
	clock        func() time.Time
	owners       []core.Identity
	required     uint64
	transactions []*Transaction
	targets      map[core.Identity]Target
}

// New returns a new Governor for the provided config. The owner set must be
// distinct and non-zero, with the threshold in [1, len(owners)].
func New(cfg Config) (*Governor, error) {
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("governor: no runtime provided")
	}
	if cfg.Accounts == nil {
		return nil, fmt.Errorf("governor: no accounts provided")
	}
	if cfg.Self.IsZero() {
		return nil, fmt.Errorf("governor: no self identity provided")
	}
	if len(cfg.Owners) == 0 {
		return nil, fmt.Errorf("governor: no owners provided")
	}
	seen := make(map[core.Identity]bool, len(cfg.Owners))
	for _, owner := range cfg.Owners {
		if owner.IsZero() {
			return nil, InvalidOwnerError{Owner: owner, Reason: "zero identity"}
		}
		if seen[owner] {
			return nil, InvalidOwnerError{Owner: owner, Reason: "duplicate"}
		}
		seen[owner] = true
	}
	if cfg.Required < 1 || cfg.Required > uint64(len(cfg.Owners)) {
		return nil, InvalidRequirementError{
			Required: cfg.Required,
			Owners:   uint64(len(cfg.Owners)),
		}
	}
	g := &Governor{
		runtime:  cfg.Runtime,
		accounts: cfg.Accounts,
		self:     cfg.Self,
		clock:    cfg.Clock,
		owners:   append([]core.Identity{}, cfg.Owners...),
		required: cfg.Required,
		targets:  make(map[core.Identity]Target),
	}
	// The governor is always a target of its own transactions
	g.targets[cfg.Self] = g
	cfg.Runtime.Register(g)
	return g, nil
}

// Self returns the governor's own account identity
func (g *Governor) Self() core.Identity {
	return g.self
}

// RegisterTarget adds a governance dispatch target for a component identity
func (g *Governor) RegisterTarget(id core.Identity, target Target) {
	g.targets[id] = target
}

// IsOwner reports whether an identity is in the current owner set
func (g *Governor) IsOwner(id core.Identity) bool {
	for _, owner := range g.owners {
		if owner == id {
			return true
		}
	}
	return false
}

// confirmationCount counts confirmations from identities that are still
// owners, so confirmations left behind by a removed owner never count toward
// quorum
func (g *Governor) confirmationCount(t *Transaction) uint64 {
	var count uint64
	for _, owner := range g.owners {
		if t.Confirmations[owner] {
			count++
		}
	}
	return count
}

func (g *Governor) stateOf(t *Transaction) State {
	if t.Executed {
		return StateExecuted
	}
	count := g.confirmationCount(t)
	switch {
	case count >= g.required:
		return StateExecutable
	case count > 0:
		return StateConfirmed
	}
	return StateProposed
}

// SubmitTransaction proposes a privileged action. Only owners may submit.
func (g *Governor) SubmitTransaction(
	caller core.Identity,
	target core.Identity,
	value uint64,
	payload []byte,
) (uint64, error) {
	if !g.IsOwner(caller) {
		return 0, NotOwnerError{Caller: caller}
	}
	id := uint64(len(g.transactions))
	digest := core.NewDigest(append(target.Bytes(), payload...))
	g.transactions = append(g.transactions, &Transaction{
		ID:            id,
		Target:        target,
		Value:         value,
		Payload:       append([]byte{}, payload...),
		PayloadDigest: digest,
		SubmittedAt:   g.clock(),
		Confirmations: make(map[core.Identity]bool),
	})
	g.runtime.Emit(events.New(events.OpSubmitTransaction, events.TransactionSubmitted{
		TransactionID: id,
		Submitter:     caller,
		Target:        target,
		Value:         value,
		PayloadDigest: digest,
	}))
	return id, nil
}

// ConfirmTransaction records the caller's confirmation. An owner's
// confirmation counts at most once until revoked.
func (g *Governor) ConfirmTransaction(caller core.Identity, txID uint64) error {
	t, err := g.transaction(caller, txID)
	if err != nil {
		return err
	}
	if t.Executed {
		return AlreadyExecutedError{TransactionID: txID}
	}
	if t.ConfirmedBy(caller) {
		return AlreadyConfirmedError{TransactionID: txID, Owner: caller}
	}
	if _, err := TransactionStateMap.Transition(
		g.stateOf(t),
		ActionConfirm,
		g.confirmationCount(t)+1,
		g.required,
	); err != nil {
		return err
	}
	t.Confirmations[caller] = true
	g.runtime.Emit(events.New(events.OpConfirmTransaction, events.TransactionConfirmed{
		TransactionID: txID,
		Owner:         caller,
		Confirmations: g.confirmationCount(t),
	}))
	return nil
}

// RevokeConfirmation withdraws the caller's confirmation
func (g *Governor) RevokeConfirmation(caller core.Identity, txID uint64) error {
	t, err := g.transaction(caller, txID)
	if err != nil {
		return err
	}
	if t.Executed {
		return AlreadyExecutedError{TransactionID: txID}
	}
	if !t.ConfirmedBy(caller) {
		return NotConfirmedError{TransactionID: txID, Owner: caller}
	}
	if _, err := TransactionStateMap.Transition(
		g.stateOf(t),
		ActionRevoke,
		g.confirmationCount(t)-1,
		g.required,
	); err != nil {
		return err
	}
	delete(t.Confirmations, caller)
	g.runtime.Emit(events.New(events.OpRevokeConfirmation, events.ConfirmationRevoked{
		TransactionID: txID,
		Owner:         caller,
		Confirmations: g.confirmationCount(t),
	}))
	return nil
}

// ExecuteTransaction performs the transaction's target call once quorum is
// met. The executed flag is set before the target call; a failed call aborts
// the whole operation, which rolls the flag back with everything else.
func (g *Governor) ExecuteTransaction(caller core.Identity, txID uint64) error {
	if err := g.guard.Enter(); err != nil {
		return err
	}
	defer g.guard.Exit()
	t, err := g.transaction(caller, txID)
	if err != nil {
		return err
	}
	if t.Executed {
		return AlreadyExecutedError{TransactionID: txID}
	}
	count := g.confirmationCount(t)
	if count < g.required {
		return QuorumNotMetError{
			TransactionID: txID,
			Confirmations: count,
			Required:      g.required,
		}
	}
	if _, err := TransactionStateMap.Transition(
		g.stateOf(t),
		ActionExecute,
		count,
		g.required,
	); err != nil {
		return err
	}
	// Checks-effects-interactions: consume the transaction before the call
	t.Executed = true
	if t.Value > 0 {
		if err := g.accounts.Transfer(g.self, t.Target, t.Value); err != nil {
			return TargetCallFailedError{TransactionID: txID, Err: err}
		}
	}
	if len(t.Payload) > 0 {
		target, ok := g.targets[t.Target]
		if !ok {
			return TargetCallFailedError{
				TransactionID: txID,
				Err:           UnknownTargetError{Target: t.Target},
			}
		}
		var payload Payload
		if err := cbor.Decode(t.Payload, &payload); err != nil {
			return TargetCallFailedError{TransactionID: txID, Err: err}
		}
		if err := target.InvokeGovernance(g.self, payload.Method, payload.Params); err != nil {
			return TargetCallFailedError{TransactionID: txID, Err: err}
		}
	}
	g.runtime.Emit(events.New(events.OpExecuteTransaction, events.TransactionExecuted{
		TransactionID: txID,
		Executor:      caller,
	}))
	return nil
}

func (g *Governor) transaction(caller core.Identity, txID uint64) (*Transaction, error) {
	if !g.IsOwner(caller) {
		return nil, NotOwnerError{Caller: caller}
	}
	if txID >= uint64(len(g.transactions)) {
		return nil, UnknownTransactionError{TransactionID: txID}
	}
	return g.transactions[txID], nil
}

// AddOwner extends the owner set. Self-governing: only reachable through an
// executed governance transaction targeting the governor.
func (g *Governor) AddOwner(caller core.Identity, newOwner core.Identity) error {
	if caller != g.self {
		return NotSelfError{Caller: caller}
	}
	if newOwner.IsZero() {
		return InvalidOwnerError{Owner: newOwner, Reason: "zero identity"}
	}
	if g.IsOwner(newOwner) {
		return InvalidOwnerError{Owner: newOwner, Reason: "duplicate"}
	}
	g.owners = append(g.owners, newOwner)
	g.runtime.Emit(events.New(events.OpAddOwner, events.OwnerAdded{
		Owner: newOwner,
	}))
	return nil
}

// RemoveOwner shrinks the owner set. Rejected if it would push the owner
// count below the current threshold.
func (g *Governor) RemoveOwner(caller core.Identity, owner core.Identity) error {
	if caller != g.self {
		return NotSelfError{Caller: caller}
	}
	idx := -1
	for i, o := range g.owners {
		if o == owner {
			idx = i
			break
		}
	}
	if idx < 0 {
		return UnknownOwnerError{Owner: owner}
	}
	if uint64(len(g.owners)-1) < g.required {
		return OwnerCountBelowThresholdError{
			Owners:   uint64(len(g.owners) - 1),
			Required: g.required,
		}
	}
	g.owners = append(g.owners[:idx], g.owners[idx+1:]...)
	g.runtime.Emit(events.New(events.OpRemoveOwner, events.OwnerRemoved{
		Owner: owner,
	}))
	return nil
}

// ChangeRequirement replaces the confirmation threshold
func (g *Governor) ChangeRequirement(caller core.Identity, required uint64) error {
	if caller != g.self {
		return NotSelfError{Caller: caller}
	}
	if required < 1 || required > uint64(len(g.owners)) {
		return InvalidRequirementError{
			Required: required,
			Owners:   uint64(len(g.owners)),
		}
	}
	g.required = required
	g.runtime.Emit(events.New(events.OpChangeRequirement, events.RequirementChanged{
		Required: required,
	}))
	return nil
}

// InvokeGovernance dispatches a governance payload against the governor
// itself
func (g *Governor) InvokeGovernance(caller core.Identity, method string, params []byte) error {
	var tmpParams struct {
		Owner    []byte
		Required uint64
	}
	if err := cbor.Decode(params, &tmpParams); err != nil {
		return err
	}
	switch method {
	case MethodAddOwner:
		if len(tmpParams.Owner) != core.IdentitySize {
			return InvalidOwnerError{Reason: "malformed identity"}
		}
		return g.AddOwner(caller, core.Identity(tmpParams.Owner))
	case MethodRemoveOwner:
		if len(tmpParams.Owner) != core.IdentitySize {
			return InvalidOwnerError{Reason: "malformed identity"}
		}
		return g.RemoveOwner(caller, core.Identity(tmpParams.Owner))
	case MethodChangeRequirement:
		return g.ChangeRequirement(caller, tmpParams.Required)
	default:
		return UnknownMethodError{Method: method}
	}
}

// Owners returns a copy of the current owner set in insertion order
func (g *Governor) Owners() []core.Identity {
	return append([]core.Identity{}, g.owners...)
}

// Required returns the confirmation threshold
func (g *Governor) Required() uint64 {
	return g.required
}

// TransactionCount returns the number of submitted transactions
func (g *Governor) TransactionCount() uint64 {
	return uint64(len(g.transactions))
}

// Transaction returns a copy of a transaction record
func (g *Governor) Transaction(txID uint64) (Transaction, bool) {
	if txID >= uint64(len(g.transactions)) {
		return Transaction{}, false
	}
	t := *g.transactions[txID]
	t.Payload = append([]byte{}, g.transactions[txID].Payload...)
	t.Confirmations = make(map[core.Identity]bool, len(g.transactions[txID].Confirmations))
	for owner, confirmed := range g.transactions[txID].Confirmations {
		t.Confirmations[owner] = confirmed
	}
	return t, true
}

// ConfirmationCount returns the number of current-owner confirmations for a
// transaction
func (g *Governor) ConfirmationCount(txID uint64) uint64 {
	if txID >= uint64(len(g.transactions)) {
		return 0
	}
	return g.confirmationCount(g.transactions[txID])
}

// IsConfirmedBy reports whether an owner has confirmed a transaction
func (g *Governor) IsConfirmedBy(txID uint64, owner core.Identity) bool {
	if txID >= uint64(len(g.transactions)) {
		return false
	}
	return g.transactions[txID].ConfirmedBy(owner)
}

// TransactionIDs returns the ids of transactions filtered by pending and/or
// executed status, in submission order
func (g *Governor) TransactionIDs(pending bool, executed bool) []uint64 {
	ids := []uint64{}
	for _, t := range g.transactions {
		if (t.Executed && executed) || (!t.Executed && pending) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

type governorSnapshot struct {
	Owners       []core.Identity
	Required     uint64
	Transactions []*Transaction
}

func (g *Governor) Snapshot() (any, error) {
	snap := governorSnapshot{
		Owners:   append([]core.Identity{}, g.owners...),
		Required: g.required,
	}
	if err := copier.CopyWithOption(
		&snap.Transactions,
		g.transactions,
		copier.Option{DeepCopy: true},
	); err != nil {
		return nil, err
	}
	return snap, nil
}

func (g *Governor) Restore(snapshot any) error {
	snap, ok := snapshot.(governorSnapshot)
	if !ok {
		return fmt.Errorf("unexpected snapshot type %T", snapshot)
	}
	g.owners = snap.Owners
	g.required = snap.Required
	g.transactions = snap.Transactions
	return nil
}
