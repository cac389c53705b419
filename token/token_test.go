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

package token_test

import (
	"errors"
	"testing"

	"github.com/stagepass-io/stagepass/core"
	"github.com/stagepass-io/stagepass/internal/test"
	"github.com/stagepass-io/stagepass/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryTransfer(t *testing.T) {
	ledger := token.NewInMemory("STAGE")
	assert.Equal(t, "STAGE", ledger.Name())
	ledger.Mint(test.Alice, 100)
	require.NoError(t, ledger.Transfer(test.Alice, test.Bob, 40))
	assert.Equal(t, uint64(60), ledger.BalanceOf(test.Alice))
	assert.Equal(t, uint64(40), ledger.BalanceOf(test.Bob))
	err := ledger.Transfer(test.Alice, test.Bob, 61)
	assert.True(t, errors.Is(err, core.ErrResource))
}

func TestInMemoryTransferFrom(t *testing.T) {
	ledger := token.NewInMemory("STAGE")
	ledger.Mint(test.Alice, 100)
	require.NoError(t, ledger.Approve(test.Alice, test.Bob, 50))
	assert.Equal(t, uint64(50), ledger.Allowance(test.Alice, test.Bob))
	require.NoError(t, ledger.TransferFrom(test.Bob, test.Alice, test.Carol, 30))
	assert.Equal(t, uint64(70), ledger.BalanceOf(test.Alice))
	assert.Equal(t, uint64(30), ledger.BalanceOf(test.Carol))
	// Allowance is consumed
	assert.Equal(t, uint64(20), ledger.Allowance(test.Alice, test.Bob))
	err := ledger.TransferFrom(test.Bob, test.Alice, test.Carol, 21)
	assert.True(t, errors.Is(err, core.ErrResource))
}

func TestInMemoryTransferFromInsufficientBalance(t *testing.T) {
	ledger := token.NewInMemory("STAGE")
	ledger.Mint(test.Alice, 10)
	require.NoError(t, ledger.Approve(test.Alice, test.Bob, 100))
	err := ledger.TransferFrom(test.Bob, test.Alice, test.Carol, 50)
	assert.True(t, errors.Is(err, core.ErrResource))
	assert.Equal(t, uint64(10), ledger.BalanceOf(test.Alice))
}

func TestInMemorySnapshotRestore(t *testing.T) {
	ledger := token.NewInMemory("STAGE")
	ledger.Mint(test.Alice, 100)
	require.NoError(t, ledger.Approve(test.Alice, test.Bob, 50))
	snap, err := ledger.Snapshot()
	require.NoError(t, err)
	require.NoError(t, ledger.TransferFrom(test.Bob, test.Alice, test.Carol, 50))
	require.NoError(t, ledger.Restore(snap))
	assert.Equal(t, uint64(100), ledger.BalanceOf(test.Alice))
	assert.Equal(t, uint64(0), ledger.BalanceOf(test.Carol))
	assert.Equal(t, uint64(50), ledger.Allowance(test.Alice, test.Bob))
}
