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

package host_test

import (
	"errors"
	"testing"

	"github.com/stagepass-io/stagepass/core"
	"github.com/stagepass-io/stagepass/host"
	"github.com/stagepass-io/stagepass/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransfer(t *testing.T) {
	accounts := host.NewAccounts()
	accounts.Mint(test.Alice, 100)
	require.NoError(t, accounts.Transfer(test.Alice, test.Bob, 30))
	assert.Equal(t, uint64(70), accounts.BalanceOf(test.Alice))
	assert.Equal(t, uint64(30), accounts.BalanceOf(test.Bob))
}

func TestTransferZeroIsNoop(t *testing.T) {
	accounts := host.NewAccounts()
	require.NoError(t, accounts.Transfer(test.Alice, test.Bob, 0))
	assert.Equal(t, uint64(0), accounts.BalanceOf(test.Bob))
}

func TestTransferInsufficientFunds(t *testing.T) {
	accounts := host.NewAccounts()
	accounts.Mint(test.Alice, 10)
	err := accounts.Transfer(test.Alice, test.Bob, 11)
	assert.True(t, errors.Is(err, core.ErrResource))
	assert.Equal(t, uint64(10), accounts.BalanceOf(test.Alice))
}

func TestTransferHook(t *testing.T) {
	accounts := host.NewAccounts()
	accounts.Mint(test.Alice, 100)
	var observed uint64
	accounts.SetTransferHook(test.Bob, func(from core.Identity, to core.Identity, amount uint64) error {
		observed = amount
		return nil
	})
	require.NoError(t, accounts.Transfer(test.Alice, test.Bob, 25))
	assert.Equal(t, uint64(25), observed)
	assert.Equal(t, uint64(25), accounts.BalanceOf(test.Bob))
}

func TestTransferHookRejection(t *testing.T) {
	accounts := host.NewAccounts()
	accounts.Mint(test.Alice, 100)
	hookErr := errors.New("no thanks")
	accounts.SetTransferHook(test.Bob, func(core.Identity, core.Identity, uint64) error {
		return hookErr
	})
	err := accounts.Transfer(test.Alice, test.Bob, 25)
	assert.True(t, errors.Is(err, core.ErrExternalCall))
	assert.True(t, errors.Is(err, hookErr))
}

func TestAccountsSnapshotRestore(t *testing.T) {
	accounts := host.NewAccounts()
	accounts.Mint(test.Alice, 100)
	snap, err := accounts.Snapshot()
	require.NoError(t, err)
	require.NoError(t, accounts.Transfer(test.Alice, test.Bob, 60))
	require.NoError(t, accounts.Restore(snap))
	assert.Equal(t, uint64(100), accounts.BalanceOf(test.Alice))
	assert.Equal(t, uint64(0), accounts.BalanceOf(test.Bob))
}

func TestAccountsRestoreWrongType(t *testing.T) {
	accounts := host.NewAccounts()
	assert.Error(t, accounts.Restore("bogus"))
}
