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

package stagepass

import (
	"errors"
	"testing"
	"time"

	"github.com/stagepass-io/stagepass/core"
	"github.com/stagepass-io/stagepass/events"
	"github.com/stagepass-io/stagepass/governor"
	"github.com/stagepass-io/stagepass/internal/test"
	"github.com/stagepass-io/stagepass/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestExchange(t *testing.T, options ...ExchangeOptionFunc) *Exchange {
	t.Helper()
	exchangeOptions := append(
		[]ExchangeOptionFunc{
			WithGovernanceOwners(test.Alice, test.Bob, test.Carol),
			WithRequiredConfirmations(2),
			WithClock(test.Clock(test.Time)),
		},
		options...,
	)
	exchange, err := New(exchangeOptions...)
	require.NoError(t, err)
	return exchange
}

// sellTicketToBob creates an event run by Alice and issues Bob a resellable
// ticket with a 15000 resale cap
func sellTicketToBob(t *testing.T, exchange *Exchange) (uint64, uint64) {
	t.Helper()
	eventID, err := exchange.CreateEvent(
		test.Alice,
		"Summer Fest",
		test.Time.Add(24*time.Hour),
		10000,
		100,
	)
	require.NoError(t, err)
	exchange.Accounts().Mint(test.Bob, 10000)
	ticketID, err := exchange.IssueTicket(
		test.Bob,
		eventID,
		test.Bob,
		true,
		15000,
		10000,
	)
	require.NoError(t, err)
	return eventID, ticketID
}

func TestExchangeMarketplaceFlow(t *testing.T) {
	exchange := newTestExchange(t)
	_, ticketID := sellTicketToBob(t, exchange)
	// Primary-sale fee lands on the platform operator (the governor here)
	assert.Equal(t, uint64(500), exchange.Accounts().BalanceOf(exchange.PlatformOperator()))
	require.NoError(t, exchange.ApproveTransfer(test.Bob, ticketID, exchange.MarketplaceIdentity()))
	require.NoError(t, exchange.ListTicket(test.Bob, ticketID, 12000))
	staking := exchange.StakingToken().(interface {
		Mint(core.Identity, uint64)
	})
	staking.Mint(test.Carol, 12000)
	require.NoError(t, exchange.StakingToken().Approve(test.Carol, exchange.MarketplaceIdentity(), 12000))
	require.NoError(t, exchange.PurchaseTicket(test.Carol, ticketID, 12000))
	ticket, ok := exchange.Ticket(ticketID)
	require.True(t, ok)
	assert.Equal(t, test.Carol, ticket.Owner)
	// Token settlement: 300 fee to the operator, 11700 to Bob
	assert.Equal(t, uint64(300), exchange.StakingToken().BalanceOf(exchange.PlatformOperator()))
	assert.Equal(t, uint64(11700), exchange.StakingToken().BalanceOf(test.Bob))
	listing, _ := exchange.Listing(ticketID)
	assert.False(t, listing.Active)
}

func TestExchangeGovernanceFeeChange(t *testing.T) {
	exchange := newTestExchange(t)
	// With the governor as operator, no single owner can change fees
	err := exchange.UpdateFeeRates(test.Alice, 100, 100)
	assert.True(t, errors.Is(err, core.ErrAuthorization))
	payload, err := EncodeGovernancePayload(registry.MethodUpdateFeeRates, struct {
		PrimaryBps   uint64
		SecondaryBps uint64
	}{PrimaryBps: 100, SecondaryBps: 50})
	require.NoError(t, err)
	txID, err := exchange.SubmitTransaction(test.Alice, exchange.RegistryIdentity(), 0, payload)
	require.NoError(t, err)
	require.NoError(t, exchange.ConfirmTransaction(test.Alice, txID))
	// One confirmation is below the threshold of two
	err = exchange.ExecuteTransaction(test.Alice, txID)
	assert.True(t, errors.Is(err, core.ErrStateInvariant))
	require.NoError(t, exchange.ConfirmTransaction(test.Bob, txID))
	require.NoError(t, exchange.ExecuteTransaction(test.Carol, txID))
	primary, secondary := exchange.FeeRates()
	assert.Equal(t, uint64(100), primary.Bps())
	assert.Equal(t, uint64(50), secondary.Bps())
	tx, ok := exchange.Transaction(txID)
	require.True(t, ok)
	assert.True(t, tx.Executed)
}

func TestExchangeGovernanceOwnerChange(t *testing.T) {
	exchange := newTestExchange(t)
	payload, err := EncodeGovernancePayload(governor.MethodAddOwner, struct {
		Owner []byte
	}{Owner: test.Dave.Bytes()})
	require.NoError(t, err)
	txID, err := exchange.SubmitTransaction(test.Alice, exchange.GovernorIdentity(), 0, payload)
	require.NoError(t, err)
	require.NoError(t, exchange.ConfirmTransaction(test.Alice, txID))
	require.NoError(t, exchange.ConfirmTransaction(test.Carol, txID))
	require.NoError(t, exchange.ExecuteTransaction(test.Alice, txID))
	assert.Len(t, exchange.Owners(), 4)
	assert.Contains(t, exchange.Owners(), test.Dave)
}

func TestExchangeFailedGovernanceCallRollsBack(t *testing.T) {
	exchange := newTestExchange(t)
	// 1001 bps breaks the fee ceiling inside the registry
	payload, err := EncodeGovernancePayload(registry.MethodUpdateFeeRates, struct {
		PrimaryBps   uint64
		SecondaryBps uint64
	}{PrimaryBps: 1001, SecondaryBps: 50})
	require.NoError(t, err)
	txID, err := exchange.SubmitTransaction(test.Alice, exchange.RegistryIdentity(), 0, payload)
	require.NoError(t, err)
	require.NoError(t, exchange.ConfirmTransaction(test.Alice, txID))
	require.NoError(t, exchange.ConfirmTransaction(test.Bob, txID))
	err = exchange.ExecuteTransaction(test.Alice, txID)
	assert.True(t, errors.Is(err, core.ErrExternalCall))
	// The whole execution rolled back: still executable, rates untouched
	tx, ok := exchange.Transaction(txID)
	require.True(t, ok)
	assert.False(t, tx.Executed)
	assert.Equal(t, uint64(2), exchange.ConfirmationCount(txID))
	primary, _ := exchange.FeeRates()
	assert.Equal(t, uint64(500), primary.Bps())
}

func TestExchangeFailedPurchaseLeavesListingActive(t *testing.T) {
	exchange := newTestExchange(t)
	_, ticketID := sellTicketToBob(t, exchange)
	require.NoError(t, exchange.ApproveTransfer(test.Bob, ticketID, exchange.MarketplaceIdentity()))
	require.NoError(t, exchange.ListTicket(test.Bob, ticketID, 12000))
	// Carol never approved the marketplace to spend her tokens
	err := exchange.PurchaseTicket(test.Carol, ticketID, 12000)
	assert.True(t, errors.Is(err, core.ErrExternalCall))
	listing, _ := exchange.Listing(ticketID)
	assert.True(t, listing.Active)
	ticket, _ := exchange.Ticket(ticketID)
	assert.Equal(t, test.Bob, ticket.Owner)
	assert.Equal(t, uint64(0), exchange.StakingToken().BalanceOf(test.Bob))
}

func TestExchangeReentrantReceiverRejected(t *testing.T) {
	exchange := newTestExchange(t)
	eventID, err := exchange.CreateEvent(
		test.Alice,
		"Summer Fest",
		test.Time.Add(24*time.Hour),
		10000,
		100,
	)
	require.NoError(t, err)
	// Alice's payout hook tries to buy another ticket mid-settlement
	exchange.Accounts().SetTransferHook(test.Alice, func(from core.Identity, to core.Identity, amount uint64) error {
		_, err := exchange.registry.IssueTicket(test.Alice, eventID, test.Alice, false, 0, 0)
		return err
	})
	exchange.Accounts().Mint(test.Bob, 10000)
	_, err = exchange.IssueTicket(test.Bob, eventID, test.Bob, true, 15000, 10000)
	assert.True(t, errors.Is(err, core.ErrExternalCall))
	// The aborted issuance left nothing behind
	assert.Equal(t, uint64(10000), exchange.Accounts().BalanceOf(test.Bob))
	ev, ok := exchange.Event(eventID)
	require.True(t, ok)
	assert.Equal(t, uint64(0), ev.TicketsSold)
	_, ok = exchange.Ticket(1)
	assert.False(t, ok)
}

func TestExchangeEventsDeliveredOncePerCommit(t *testing.T) {
	exchange := newTestExchange(t)
	var received []events.Envelope
	exchange.Subscribe(func(env events.Envelope) {
		received = append(received, env)
	})
	_, ticketID := sellTicketToBob(t, exchange)
	require.Len(t, received, 2)
	assert.Equal(t, events.OpCreateEvent, received[0].Operation)
	assert.Equal(t, events.OpIssueTicket, received[1].Operation)
	// An aborted operation emits nothing
	err := exchange.BlacklistTicket(test.Dave, ticketID)
	assert.True(t, errors.Is(err, core.ErrAuthorization))
	assert.Len(t, received, 2)
	require.NoError(t, exchange.BlacklistTicket(test.Alice, ticketID))
	require.Len(t, received, 3)
	assert.Equal(t, events.OpBlacklistTicket, received[2].Operation)
	payload, ok := received[2].Payload.(events.TicketBlacklisted)
	require.True(t, ok)
	assert.Equal(t, ticketID, payload.TicketID)
	assert.Equal(t, test.Alice, payload.By)
}

func TestExchangeDirectOperatorAdministration(t *testing.T) {
	exchange := newTestExchange(t, WithPlatformOperator(test.Operator))
	assert.Equal(t, test.Operator, exchange.PlatformOperator())
	require.NoError(t, exchange.UpdateFeeRates(test.Operator, 100, 100))
	primary, _ := exchange.FeeRates()
	assert.Equal(t, uint64(100), primary.Bps())
	require.NoError(t, exchange.UpdateMinimumStake(test.Operator, 10))
	assert.Equal(t, uint64(10), exchange.MinimumStake())
	require.NoError(t, exchange.UpdatePlatformFee(test.Operator, 50))
	assert.Equal(t, uint64(50), exchange.PlatformFee().Bps())
}

func TestExchangeStakingFlow(t *testing.T) {
	exchange := newTestExchange(t)
	staking := exchange.StakingToken().(interface {
		Mint(core.Identity, uint64)
	})
	staking.Mint(test.Carol, 2000)
	require.NoError(t, exchange.StakingToken().Approve(test.Carol, exchange.MarketplaceIdentity(), 2000))
	require.NoError(t, exchange.StakeTokens(test.Carol, 1200))
	assert.True(t, exchange.HasPremiumAccess(test.Carol))
	assert.Equal(t, uint64(1200), exchange.StakeOf(test.Carol))
	require.NoError(t, exchange.WithdrawStake(test.Carol, 300))
	assert.Equal(t, uint64(900), exchange.StakeOf(test.Carol))
	assert.False(t, exchange.HasPremiumAccess(test.Carol))
	assert.Equal(t, uint64(1100), exchange.StakingToken().BalanceOf(test.Carol))
}

func TestExchangeRequiresOwners(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}
