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

package marketplace

import (
	"fmt"

	"github.com/stagepass-io/stagepass/core"
)

// NotOwnerError indicates the caller does not own the ticket being listed
type NotOwnerError struct {
	core.Authorization
	TicketID uint64
	Caller   core.Identity
}

func (e NotOwnerError) Error() string {
	return fmt.Sprintf(
		"caller %s does not own ticket %d",
		e.Caller,
		e.TicketID,
	)
}

// NotSellerError indicates the caller did not create the listing
type NotSellerError struct {
	core.Authorization
	TicketID uint64
	Caller   core.Identity
}

func (e NotSellerError) Error() string {
	return fmt.Sprintf(
		"caller %s is not the seller of listing for ticket %d",
		e.Caller,
		e.TicketID,
	)
}

// TicketInvalidError indicates the ticket is unknown, invalidated, or
// blacklisted
type TicketInvalidError struct {
	core.StateInvariant
	TicketID uint64
}

func (e TicketInvalidError) Error() string {
	return fmt.Sprintf("ticket %d is not valid", e.TicketID)
}

// NotResellableError indicates the ticket was issued without resale rights
type NotResellableError struct {
	core.StateInvariant
	TicketID uint64
}

func (e NotResellableError) Error() string {
	return fmt.Sprintf("ticket %d is not resellable", e.TicketID)
}

// PriceExceedsCapError indicates a listing price above the ticket's resale
// ceiling
type PriceExceedsCapError struct {
	core.StateInvariant
	TicketID       uint64
	Price          uint64
	MaxResalePrice uint64
}

func (e PriceExceedsCapError) Error() string {
	return fmt.Sprintf(
		"price %d exceeds resale cap %d for ticket %d",
		e.Price,
		e.MaxResalePrice,
		e.TicketID,
	)
}

// NotApprovedError indicates the marketplace lacks transfer delegation for
// the ticket
type NotApprovedError struct {
	core.StateInvariant
	TicketID uint64
}

func (e NotApprovedError) Error() string {
	return fmt.Sprintf(
		"marketplace is not the approved operator for ticket %d",
		e.TicketID,
	)
}

// ListingNotActiveError indicates no active listing exists for the ticket
type ListingNotActiveError struct {
	core.StateInvariant
	TicketID uint64
}

func (e ListingNotActiveError) Error() string {
	return fmt.Sprintf("no active listing for ticket %d", e.TicketID)
}

// InsufficientPaymentError indicates a payment below the listing price
type InsufficientPaymentError struct {
	core.Resource
	Required uint64
	Provided uint64
}

func (e InsufficientPaymentError) Error() string {
	return fmt.Sprintf("payment %d below required %d", e.Provided, e.Required)
}

// InvalidAmountError indicates a zero stake or withdrawal amount
type InvalidAmountError struct {
	core.StateInvariant
	Amount uint64
}

func (e InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %d", e.Amount)
}

// InsufficientStakeError indicates a withdrawal beyond the staked balance
type InsufficientStakeError struct {
	core.Resource
	Staked    uint64
	Requested uint64
}

func (e InsufficientStakeError) Error() string {
	return fmt.Sprintf(
		"withdrawal of %d exceeds staked balance %d",
		e.Requested,
		e.Staked,
	)
}

// PaymentTransferFailedError indicates a token settlement transfer did not
// succeed
type PaymentTransferFailedError struct {
	core.ExternalCall
	Err error
}

func (e PaymentTransferFailedError) Error() string {
	return fmt.Sprintf("payment transfer failed: %s", e.Err)
}

func (e PaymentTransferFailedError) Unwrap() error { return e.Err }

// CannotRecoverStakedError indicates a recovery attempt against the staking
// token, which would sweep user funds
type CannotRecoverStakedError struct {
	core.StateInvariant
	Token string
}

func (e CannotRecoverStakedError) Error() string {
	return fmt.Sprintf("cannot recover staking token %s", e.Token)
}

// UnknownTokenError indicates a recovery request naming an unregistered token
type UnknownTokenError struct {
	core.StateInvariant
	Token string
}

func (e UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown token %q", e.Token)
}

// InvalidParameterError indicates a malformed governance parameter
type InvalidParameterError struct {
	core.StateInvariant
	Parameter string
}

func (e InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s", e.Parameter)
}

// UnknownMethodError indicates a governance payload naming a method the
// target does not dispatch
type UnknownMethodError struct {
	core.ExternalCall
	Method string
}

func (e UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown governance method %q", e.Method)
}
