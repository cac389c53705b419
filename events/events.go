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

// Package events defines the structured events emitted by the exchange. The
// event stream is the only interface consumed by the external analytics/UI
// layer: every successful state change emits exactly one event, and a failed
// operation emits nothing.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/stagepass-io/stagepass/cbor"
	"github.com/stagepass-io/stagepass/core"
)

// Operation names carried on event envelopes
const (
	OpCreateEvent         = "create-event"
	OpIssueTicket         = "issue-ticket"
	OpTransferTicket      = "transfer-ticket"
	OpBlacklistTicket     = "blacklist-ticket"
	OpApproveTransfer     = "approve-transfer"
	OpTransferOwnership   = "transfer-ownership"
	OpUpdateFeeRates      = "update-fee-rates"
	OpListTicket          = "list-ticket"
	OpPurchaseTicket      = "purchase-ticket"
	OpCancelListing       = "cancel-listing"
	OpStakeTokens         = "stake-tokens"
	OpWithdrawStake       = "withdraw-stake"
	OpUpdatePlatformFee   = "update-platform-fee"
	OpUpdateMinimumStake  = "update-minimum-stake"
	OpRecoverTokens       = "recover-tokens"
	OpSubmitTransaction   = "submit-transaction"
	OpConfirmTransaction  = "confirm-transaction"
	OpRevokeConfirmation  = "revoke-confirmation"
	OpExecuteTransaction  = "execute-transaction"
	OpAddOwner            = "add-owner"
	OpRemoveOwner         = "remove-owner"
	OpChangeRequirement   = "change-requirement"
)

// Envelope wraps a typed event payload with a unique id and the name of the
// operation that produced it
type Envelope struct {
	ID        uuid.UUID
	Operation string
	Payload   any
}

// New creates an Envelope for the given operation and payload
func New(operation string, payload any) Envelope {
	return Envelope{
		ID:        uuid.New(),
		Operation: operation,
		Payload:   payload,
	}
}

// MarshalCBOR encodes the envelope for external consumers
func (e Envelope) MarshalCBOR() ([]byte, error) {
	return cbor.Encode(struct {
		ID        string
		Operation string
		Payload   any
	}{
		ID:        e.ID.String(),
		Operation: e.Operation,
		Payload:   e.Payload,
	})
}

// TicketRegistry events

type EventCreated struct {
	EventID    uint64
	Name       string
	Organizer  core.Identity
	StartTime  time.Time
	BasePrice  uint64
	MaxTickets uint64
}

type TicketIssued struct {
	TicketID  uint64
	EventID   uint64
	Recipient core.Identity
	Price     uint64
	Fee       uint64
}

type TicketTransferred struct {
	TicketID uint64
	From     core.Identity
	To       core.Identity
	Price    uint64
	Fee      uint64
}

type TicketBlacklisted struct {
	TicketID uint64
	By       core.Identity
}

type TransferApproved struct {
	TicketID uint64
	Owner    core.Identity
	Operator core.Identity
}

type OwnershipTransferred struct {
	Previous core.Identity
	New      core.Identity
}

type FeeRatesUpdated struct {
	PrimaryBps   uint64
	SecondaryBps uint64
}

// Marketplace events

type ListingCreated struct {
	TicketID uint64
	Seller   core.Identity
	Price    uint64
}

type ListingSold struct {
	TicketID uint64
	Seller   core.Identity
	Buyer    core.Identity
	Price    uint64
	Fee      uint64
}

type ListingCancelled struct {
	TicketID uint64
	Seller   core.Identity
}

type StakeDeposited struct {
	Staker core.Identity
	Amount uint64
	Total  uint64
}

type StakeWithdrawn struct {
	Staker    core.Identity
	Amount    uint64
	Remaining uint64
}

type PlatformFeeUpdated struct {
	Bps uint64
}

type MinimumStakeUpdated struct {
	Amount uint64
}

type TokensRecovered struct {
	Token  string
	To     core.Identity
	Amount uint64
}

// MultiSigGovernor events

type TransactionSubmitted struct {
	TransactionID uint64
	Submitter     core.Identity
	Target        core.Identity
	Value         uint64
	PayloadDigest core.Digest
}

type TransactionConfirmed struct {
	TransactionID uint64
	Owner         core.Identity
	Confirmations uint64
}

type ConfirmationRevoked struct {
	TransactionID uint64
	Owner         core.Identity
	Confirmations uint64
}

type TransactionExecuted struct {
	TransactionID uint64
	Executor      core.Identity
}

type OwnerAdded struct {
	Owner core.Identity
}

type OwnerRemoved struct {
	Owner core.Identity
}

type RequirementChanged struct {
	Required uint64
}
