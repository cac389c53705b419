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

// Package token defines the external fungible-token collaborator that the
// marketplace settles listings and stakes in. The core only calls the
// transfer operations and checks their error result; balance semantics are
// the collaborator's concern.
package token

import (
	"fmt"

	"github.com/jinzhu/copier"

	"github.com/stagepass-io/stagepass/core"
)

// Ledger is the transfer surface the marketplace consumes
type Ledger interface {
	// Name identifies the token unit for events and recovery configuration
	Name() string
	Transfer(from core.Identity, to core.Identity, amount uint64) error
	// TransferFrom moves tokens on behalf of spender, consuming allowance
	// granted by from
	TransferFrom(spender core.Identity, from core.Identity, to core.Identity, amount uint64) error
	Approve(owner core.Identity, spender core.Identity, amount uint64) error
	BalanceOf(id core.Identity) uint64
}

// InMemory is a Ledger backed by in-memory balances. It implements the host
// Resource interface so token movements roll back with the operation that
// made them.
type InMemory struct {
	name       string
	balances   map[core.Identity]uint64
	allowances map[core.Identity]map[core.Identity]uint64
}

// NewInMemory returns an empty in-memory token ledger
func NewInMemory(name string) *InMemory {
	return &InMemory{
		name:       name,
		balances:   make(map[core.Identity]uint64),
		allowances: make(map[core.Identity]map[core.Identity]uint64),
	}
}

func (l *InMemory) Name() string {
	return l.name
}

// Mint credits an account. It exists for test and deployment setup.
func (l *InMemory) Mint(id core.Identity, amount uint64) {
	l.balances[id] += amount
}

func (l *InMemory) BalanceOf(id core.Identity) uint64 {
	return l.balances[id]
}

func (l *InMemory) Transfer(from core.Identity, to core.Identity, amount uint64) error {
	if l.balances[from] < amount {
		return InsufficientBalanceError{
			Token:   l.name,
			Account: from,
			Balance: l.balances[from],
			Needed:  amount,
		}
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

func (l *InMemory) Approve(owner core.Identity, spender core.Identity, amount uint64) error {
	if _, ok := l.allowances[owner]; !ok {
		l.allowances[owner] = make(map[core.Identity]uint64)
	}
	l.allowances[owner][spender] = amount
	return nil
}

// Allowance returns the remaining amount spender may move on behalf of owner
func (l *InMemory) Allowance(owner core.Identity, spender core.Identity) uint64 {
	return l.allowances[owner][spender]
}

func (l *InMemory) TransferFrom(spender core.Identity, from core.Identity, to core.Identity, amount uint64) error {
	if l.allowances[from][spender] < amount {
		return InsufficientAllowanceError{
			Token:     l.name,
			Owner:     from,
			Spender:   spender,
			Allowance: l.allowances[from][spender],
			Needed:    amount,
		}
	}
	if err := l.Transfer(from, to, amount); err != nil {
		return err
	}
	l.allowances[from][spender] -= amount
	return nil
}

type inMemorySnapshot struct {
	Balances   map[core.Identity]uint64
	Allowances map[core.Identity]map[core.Identity]uint64
}

func (l *InMemory) Snapshot() (any, error) {
	snap := inMemorySnapshot{
		Balances:   make(map[core.Identity]uint64, len(l.balances)),
		Allowances: make(map[core.Identity]map[core.Identity]uint64, len(l.allowances)),
	}
	if err := copier.CopyWithOption(
		&snap.Balances,
		l.balances,
		copier.Option{DeepCopy: true},
	); err != nil {
		return nil, err
	}
	if err := copier.CopyWithOption(
		&snap.Allowances,
		l.allowances,
		copier.Option{DeepCopy: true},
	); err != nil {
		return nil, err
	}
	return snap, nil
}

func (l *InMemory) Restore(snapshot any) error {
	snap, ok := snapshot.(inMemorySnapshot)
	if !ok {
		return fmt.Errorf("unexpected snapshot type %T", snapshot)
	}
	l.balances = snap.Balances
	l.allowances = snap.Allowances
	return nil
}

// InsufficientBalanceError indicates the sending account cannot cover a
// token transfer
type InsufficientBalanceError struct {
	core.Resource
	Token   string
	Account core.Identity
	Balance uint64
	Needed  uint64
}

func (e InsufficientBalanceError) Error() string {
	return fmt.Sprintf(
		"%s: account %s has %d, needs %d",
		e.Token,
		e.Account,
		e.Balance,
		e.Needed,
	)
}

// InsufficientAllowanceError indicates the spender lacks allowance for a
// TransferFrom
type InsufficientAllowanceError struct {
	core.Resource
	Token     string
	Owner     core.Identity
	Spender   core.Identity
	Allowance uint64
	Needed    uint64
}

func (e InsufficientAllowanceError) Error() string {
	return fmt.Sprintf(
		"%s: spender %s allowed %d by %s, needs %d",
		e.Token,
		e.Spender,
		e.Allowance,
		e.Owner,
		e.Needed,
	)
}
