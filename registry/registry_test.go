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

package registry_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stagepass-io/stagepass/cbor"
	"github.com/stagepass-io/stagepass/core"
	"github.com/stagepass-io/stagepass/fees"
	"github.com/stagepass-io/stagepass/host"
	"github.com/stagepass-io/stagepass/internal/test"
	"github.com/stagepass-io/stagepass/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*host.Accounts, *registry.Registry) {
	t.Helper()
	runtime := host.NewRuntime()
	accounts := host.NewAccounts()
	runtime.Register(accounts)
	reg, err := registry.New(registry.NewConfig(
		registry.WithRuntime(runtime),
		registry.WithAccounts(accounts),
		registry.WithOperator(test.Operator),
		registry.WithClock(test.Clock(test.Time)),
	))
	require.NoError(t, err)
	return accounts, reg
}

func createTestEvent(
	t *testing.T,
	reg *registry.Registry,
	maxTickets uint64,
) uint64 {
	t.Helper()
	eventID, err := reg.CreateEvent(
		test.Alice,
		"Summer Fest",
		test.Time.Add(24*time.Hour),
		10000,
		maxTickets,
	)
	require.NoError(t, err)
	return eventID
}

// issueTestTicket funds Bob and issues him a resellable ticket
func issueTestTicket(
	t *testing.T,
	accounts *host.Accounts,
	reg *registry.Registry,
	eventID uint64,
) uint64 {
	t.Helper()
	accounts.Mint(test.Bob, 10000)
	ticketID, err := reg.IssueTicket(test.Bob, eventID, test.Bob, true, 15000, 10000)
	require.NoError(t, err)
	return ticketID
}

func TestCreateEvent(t *testing.T) {
	_, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	assert.Equal(t, uint64(1), eventID)
	ev, ok := reg.Event(eventID)
	require.True(t, ok)
	assert.Equal(t, "Summer Fest", ev.Name)
	assert.Equal(t, test.Alice, ev.Organizer)
	assert.Equal(t, uint64(10000), ev.BasePrice)
	assert.Equal(t, uint64(0), ev.TicketsSold)
}

func TestCreateEventValidation(t *testing.T) {
	_, reg := newTestRegistry(t)
	_, err := reg.CreateEvent(test.Alice, "Past Fest", test.Time.Add(-time.Hour), 100, 10)
	assert.True(t, errors.Is(err, core.ErrStateInvariant))
	_, err = reg.CreateEvent(test.Alice, "Free Fest", test.Time.Add(time.Hour), 0, 10)
	assert.True(t, errors.Is(err, core.ErrStateInvariant))
	_, err = reg.CreateEvent(test.Alice, "Empty Fest", test.Time.Add(time.Hour), 100, 0)
	assert.True(t, errors.Is(err, core.ErrStateInvariant))
}

func TestIssueTicket(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	ticketID := issueTestTicket(t, accounts, reg, eventID)
	assert.Equal(t, uint64(1), ticketID)
	ticket, ok := reg.Ticket(ticketID)
	require.True(t, ok)
	assert.Equal(t, test.Bob, ticket.Owner)
	assert.Equal(t, test.Bob, ticket.OriginalOwner)
	assert.True(t, ticket.Valid)
	assert.True(t, ticket.Resellable)
	assert.Equal(t, uint64(10000), ticket.OriginalPrice)
	// Primary rate is 5%: 500 to the operator, 9500 to the organizer
	assert.Equal(t, uint64(500), accounts.BalanceOf(test.Operator))
	assert.Equal(t, uint64(9500), accounts.BalanceOf(test.Alice))
	assert.Equal(t, uint64(0), accounts.BalanceOf(test.Bob))
	ev, _ := reg.Event(eventID)
	assert.Equal(t, uint64(1), ev.TicketsSold)
}

func TestIssueTicketInsufficientPayment(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	accounts.Mint(test.Bob, 9999)
	_, err := reg.IssueTicket(test.Bob, eventID, test.Bob, true, 15000, 9999)
	assert.True(t, errors.Is(err, core.ErrResource))
}

func TestIssueTicketUnknownEvent(t *testing.T) {
	_, reg := newTestRegistry(t)
	_, err := reg.IssueTicket(test.Bob, 42, test.Bob, true, 0, 10000)
	assert.True(t, errors.Is(err, core.ErrStateInvariant))
}

func TestIssueTicketSoldOut(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 2)
	issueTestTicket(t, accounts, reg, eventID)
	issueTestTicket(t, accounts, reg, eventID)
	accounts.Mint(test.Carol, 10000)
	_, err := reg.IssueTicket(test.Carol, eventID, test.Carol, true, 0, 10000)
	var soldOut registry.SoldOutError
	require.True(t, errors.As(err, &soldOut))
	assert.True(t, errors.Is(err, core.ErrStateInvariant))
	ev, _ := reg.Event(eventID)
	assert.Equal(t, uint64(2), ev.TicketsSold)
}

func TestTransferTicket(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	ticketID := issueTestTicket(t, accounts, reg, eventID)
	accounts.Mint(test.Carol, 12000)
	operatorBefore := accounts.BalanceOf(test.Operator)
	// Bob approves Carol, who pays 12000, within the 15000 cap
	require.NoError(t, reg.ApproveTransfer(test.Bob, ticketID, test.Carol))
	require.NoError(t, reg.TransferTicket(test.Carol, ticketID, test.Carol, 12000, 12000))
	ticket, _ := reg.Ticket(ticketID)
	assert.Equal(t, test.Carol, ticket.Owner)
	assert.Equal(t, test.Bob, ticket.OriginalOwner)
	assert.Equal(t, uint64(12000), ticket.CurrentPrice)
	// Secondary rate is 2.5%: 300 to the operator, 11700 to Bob
	assert.Equal(t, operatorBefore+300, accounts.BalanceOf(test.Operator))
	assert.Equal(t, uint64(11700), accounts.BalanceOf(test.Bob))
	assert.Equal(t, uint64(0), accounts.BalanceOf(test.Carol))
}

func TestTransferTicketNotOwner(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	ticketID := issueTestTicket(t, accounts, reg, eventID)
	err := reg.TransferTicket(test.Carol, ticketID, test.Carol, 100, 100)
	assert.True(t, errors.Is(err, core.ErrAuthorization))
}

func TestTransferTicketPriceExceedsCap(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	ticketID := issueTestTicket(t, accounts, reg, eventID)
	err := reg.TransferTicket(test.Bob, ticketID, test.Carol, 15001, 15001)
	var capErr registry.PriceExceedsCapError
	require.True(t, errors.As(err, &capErr))
	assert.True(t, errors.Is(err, core.ErrStateInvariant))
}

func TestTransferTicketNotResellable(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	accounts.Mint(test.Bob, 10000)
	ticketID, err := reg.IssueTicket(test.Bob, eventID, test.Bob, false, 0, 10000)
	require.NoError(t, err)
	err = reg.TransferTicket(test.Bob, ticketID, test.Carol, 0, 0)
	assert.True(t, errors.Is(err, core.ErrStateInvariant))
}

func TestTransferTicketInsufficientPayment(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	ticketID := issueTestTicket(t, accounts, reg, eventID)
	err := reg.TransferTicket(test.Bob, ticketID, test.Carol, 12000, 11999)
	assert.True(t, errors.Is(err, core.ErrResource))
}

func TestApproveTransfer(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	ticketID := issueTestTicket(t, accounts, reg, eventID)
	// Only the owner may approve
	err := reg.ApproveTransfer(test.Carol, ticketID, test.Dave)
	assert.True(t, errors.Is(err, core.ErrAuthorization))
	require.NoError(t, reg.ApproveTransfer(test.Bob, ticketID, test.Dave))
	op, ok := reg.ApprovedOperator(ticketID)
	require.True(t, ok)
	assert.Equal(t, test.Dave, op)
	// The approved operator can move the ticket
	accounts.Mint(test.Dave, 12000)
	require.NoError(t, reg.TransferTicket(test.Dave, ticketID, test.Carol, 12000, 12000))
	// Approval is cleared by the ownership change
	_, ok = reg.ApprovedOperator(ticketID)
	assert.False(t, ok)
}

func TestDelegatedTransfer(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	ticketID := issueTestTicket(t, accounts, reg, eventID)
	// Requires a standing approval, ownership alone is not enough
	err := reg.DelegatedTransfer(test.Bob, ticketID, test.Carol, 12000)
	assert.True(t, errors.Is(err, core.ErrAuthorization))
	require.NoError(t, reg.ApproveTransfer(test.Bob, ticketID, test.Dave))
	operatorBefore := accounts.BalanceOf(test.Operator)
	require.NoError(t, reg.DelegatedTransfer(test.Dave, ticketID, test.Carol, 12000))
	ticket, _ := reg.Ticket(ticketID)
	assert.Equal(t, test.Carol, ticket.Owner)
	assert.Equal(t, uint64(12000), ticket.CurrentPrice)
	// No native value moves on the delegated path
	assert.Equal(t, operatorBefore, accounts.BalanceOf(test.Operator))
}

func TestBlacklistTicket(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	ticketID := issueTestTicket(t, accounts, reg, eventID)
	// Neither the holder nor a stranger may blacklist
	err := reg.BlacklistTicket(test.Bob, ticketID)
	assert.True(t, errors.Is(err, core.ErrAuthorization))
	// The organizer may
	require.NoError(t, reg.BlacklistTicket(test.Alice, ticketID))
	assert.False(t, reg.IsTicketValid(ticketID))
	ticket, _ := reg.Ticket(ticketID)
	assert.True(t, ticket.Blacklisted)
	assert.False(t, ticket.Valid)
	// Blacklisting is terminal
	err = reg.BlacklistTicket(test.Alice, ticketID)
	assert.True(t, errors.Is(err, core.ErrAlreadyDone))
	// A blacklisted ticket can no longer move
	err = reg.TransferTicket(test.Bob, ticketID, test.Carol, 100, 100)
	assert.True(t, errors.Is(err, core.ErrStateInvariant))
}

func TestBlacklistTicketByOperator(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	ticketID := issueTestTicket(t, accounts, reg, eventID)
	require.NoError(t, reg.BlacklistTicket(test.Operator, ticketID))
	assert.False(t, reg.IsTicketValid(ticketID))
}

func TestUpdateFeeRates(t *testing.T) {
	_, reg := newTestRegistry(t)
	err := reg.UpdateFeeRates(test.Alice, 100, 100)
	assert.True(t, errors.Is(err, core.ErrAuthorization))
	require.NoError(t, reg.UpdateFeeRates(test.Operator, 300, 100))
	primary, secondary := reg.FeeRates()
	assert.Equal(t, uint64(300), primary.Bps())
	assert.Equal(t, uint64(100), secondary.Bps())
	// The 10% ceiling holds
	err = reg.UpdateFeeRates(test.Operator, 1001, 100)
	var rateErr fees.RateTooHighError
	assert.True(t, errors.As(err, &rateErr))
}

func TestTransferOwnership(t *testing.T) {
	_, reg := newTestRegistry(t)
	err := reg.TransferOwnership(test.Alice, test.Alice)
	assert.True(t, errors.Is(err, core.ErrAuthorization))
	require.NoError(t, reg.TransferOwnership(test.Operator, test.Dave))
	assert.Equal(t, test.Dave, reg.Owner())
	require.NoError(t, reg.UpdateFeeRates(test.Dave, 100, 100))
}

func TestInvokeGovernance(t *testing.T) {
	_, reg := newTestRegistry(t)
	params, err := cbor.Encode(struct {
		PrimaryBps   uint64
		SecondaryBps uint64
	}{PrimaryBps: 200, SecondaryBps: 75})
	require.NoError(t, err)
	// Authorization is still checked on the governance path
	err = reg.InvokeGovernance(test.Alice, registry.MethodUpdateFeeRates, params)
	assert.True(t, errors.Is(err, core.ErrAuthorization))
	require.NoError(t, reg.InvokeGovernance(test.Operator, registry.MethodUpdateFeeRates, params))
	primary, secondary := reg.FeeRates()
	assert.Equal(t, uint64(200), primary.Bps())
	assert.Equal(t, uint64(75), secondary.Bps())
	err = reg.InvokeGovernance(test.Operator, "no-such-method", params)
	assert.True(t, errors.Is(err, core.ErrExternalCall))
}

func TestSnapshotRestore(t *testing.T) {
	accounts, reg := newTestRegistry(t)
	eventID := createTestEvent(t, reg, 100)
	ticketID := issueTestTicket(t, accounts, reg, eventID)
	snap, err := reg.Snapshot()
	require.NoError(t, err)
	accounts.Mint(test.Carol, 12000)
	require.NoError(t, reg.ApproveTransfer(test.Bob, ticketID, test.Carol))
	require.NoError(t, reg.TransferTicket(test.Carol, ticketID, test.Carol, 12000, 12000))
	require.NoError(t, reg.Restore(snap))
	ticket, _ := reg.Ticket(ticketID)
	assert.Equal(t, test.Bob, ticket.Owner)
	assert.Equal(t, uint64(10000), ticket.CurrentPrice)
}
