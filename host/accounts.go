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

package host

import (
	"fmt"

	"github.com/jinzhu/copier"

	"github.com/stagepass-io/stagepass/core"
)

// TransferHook is invoked when an identity receives a native transfer. Hooks
// model programmable recipients: returning an error rejects the transfer and
// aborts the surrounding operation.
type TransferHook func(from core.Identity, to core.Identity, amount uint64) error

// Accounts tracks native value unit balances. Primary and secondary ticket
// sales settle through it.
type Accounts struct {
	balances map[core.Identity]uint64
	hooks    map[core.Identity]TransferHook
}

// NewAccounts returns an empty Accounts ledger
func NewAccounts() *Accounts {
	return &Accounts{
		balances: make(map[core.Identity]uint64),
		hooks:    make(map[core.Identity]TransferHook),
	}
}

// Mint credits an account. It exists for host/test setup and is not part of
// the exchange's public operation surface.
func (a *Accounts) Mint(id core.Identity, amount uint64) {
	a.balances[id] += amount
}

// BalanceOf returns the native balance for an identity
func (a *Accounts) BalanceOf(id core.Identity) uint64 {
	return a.balances[id]
}

// SetTransferHook registers a hook invoked whenever id receives a transfer.
// Hooks are code, not durable state, and are not rolled back with snapshots.
func (a *Accounts) SetTransferHook(id core.Identity, hook TransferHook) {
	if hook == nil {
		delete(a.hooks, id)
		return
	}
	a.hooks[id] = hook
}

// Transfer moves native value between accounts, invoking the recipient's
// hook after the balance change. Zero-amount transfers are no-ops.
func (a *Accounts) Transfer(from core.Identity, to core.Identity, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if a.balances[from] < amount {
		return InsufficientFundsError{
			Account: from,
			Balance: a.balances[from],
			Needed:  amount,
		}
	}
	a.balances[from] -= amount
	a.balances[to] += amount
	if hook, ok := a.hooks[to]; ok {
		if err := hook(from, to, amount); err != nil {
			return TransferRejectedError{Recipient: to, Err: err}
		}
	}
	return nil
}

type accountsSnapshot struct {
	Balances map[core.Identity]uint64
}

func (a *Accounts) Snapshot() (any, error) {
	snap := accountsSnapshot{
		Balances: make(map[core.Identity]uint64, len(a.balances)),
	}
	if err := copier.CopyWithOption(
		&snap.Balances,
		a.balances,
		copier.Option{DeepCopy: true},
	); err != nil {
		return nil, err
	}
	return snap, nil
}

func (a *Accounts) Restore(snapshot any) error {
	snap, ok := snapshot.(accountsSnapshot)
	if !ok {
		return fmt.Errorf("unexpected snapshot type %T", snapshot)
	}
	a.balances = snap.Balances
	return nil
}

// InsufficientFundsError indicates the sending account cannot cover a native
// transfer
type InsufficientFundsError struct {
	core.Resource
	Account core.Identity
	Balance uint64
	Needed  uint64
}

func (e InsufficientFundsError) Error() string {
	return fmt.Sprintf(
		"account %s has %d, needs %d",
		e.Account,
		e.Balance,
		e.Needed,
	)
}

// TransferRejectedError indicates a recipient hook rejected an otherwise
// valid transfer
type TransferRejectedError struct {
	core.ExternalCall
	Recipient core.Identity
	Err       error
}

func (e TransferRejectedError) Error() string {
	return fmt.Sprintf("transfer rejected by recipient %s: %s", e.Recipient, e.Err)
}

func (e TransferRejectedError) Unwrap() error { return e.Err }
