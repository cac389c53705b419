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

package registry

import (
	"fmt"
	"time"

	"github.com/stagepass-io/stagepass/core"
)

// InvalidScheduleError indicates an event start time that is not strictly in
// the future
type InvalidScheduleError struct {
	core.StateInvariant
	StartTime time.Time
	Now       time.Time
}

func (e InvalidScheduleError) Error() string {
	return fmt.Sprintf(
		"event start time %s is not after %s",
		e.StartTime.Format(time.RFC3339),
		e.Now.Format(time.RFC3339),
	)
}

// InvalidParameterError indicates a zero base price or ticket supply
type InvalidParameterError struct {
	core.StateInvariant
	Parameter string
}

func (e InvalidParameterError) Error() string {
	return fmt.Sprintf("parameter %s must be greater than zero", e.Parameter)
}

// UnknownEventError indicates a reference to an event that does not exist
type UnknownEventError struct {
	core.StateInvariant
	EventID uint64
}

func (e UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event %d", e.EventID)
}

// UnknownTicketError indicates a reference to a ticket that does not exist
type UnknownTicketError struct {
	core.StateInvariant
	TicketID uint64
}

func (e UnknownTicketError) Error() string {
	return fmt.Sprintf("unknown ticket %d", e.TicketID)
}

// SoldOutError indicates issuance against an event at its supply cap
type SoldOutError struct {
	core.StateInvariant
	EventID    uint64
	MaxTickets uint64
}

func (e SoldOutError) Error() string {
	return fmt.Sprintf(
		"event %d sold out (%d tickets)",
		e.EventID,
		e.MaxTickets,
	)
}

// InsufficientPaymentError indicates a payment below the required price
type InsufficientPaymentError struct {
	core.Resource
	Required uint64
	Provided uint64
}

func (e InsufficientPaymentError) Error() string {
	return fmt.Sprintf(
		"payment %d below required %d",
		e.Provided,
		e.Required,
	)
}

// NotOwnerOrApprovedError indicates the caller neither owns the ticket nor
// holds transfer delegation for it
type NotOwnerOrApprovedError struct {
	core.Authorization
	TicketID uint64
	Caller   core.Identity
}

func (e NotOwnerOrApprovedError) Error() string {
	return fmt.Sprintf(
		"caller %s is neither owner nor approved operator of ticket %d",
		e.Caller,
		e.TicketID,
	)
}

// NotOwnerError indicates the caller does not own the ticket
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

// TicketInvalidError indicates the ticket is invalidated or blacklisted
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

// PriceExceedsCapError indicates a price above the ticket's resale ceiling
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

// NotAuthorizedError indicates the caller is neither the platform operator
// nor the event organizer
type NotAuthorizedError struct {
	core.Authorization
	Caller core.Identity
}

func (e NotAuthorizedError) Error() string {
	return fmt.Sprintf("caller %s is not authorized", e.Caller)
}

// AlreadyInvalidError indicates a blacklist attempt on an already invalid
// ticket
type AlreadyInvalidError struct {
	core.AlreadyDone
	TicketID uint64
}

func (e AlreadyInvalidError) Error() string {
	return fmt.Sprintf("ticket %d is already invalid", e.TicketID)
}

// PaymentTransferFailedError indicates an outbound settlement transfer did
// not succeed
type PaymentTransferFailedError struct {
	core.ExternalCall
	Err error
}

func (e PaymentTransferFailedError) Error() string {
	return fmt.Sprintf("payment transfer failed: %s", e.Err)
}

func (e PaymentTransferFailedError) Unwrap() error { return e.Err }

// UnknownMethodError indicates a governance payload naming a method the
// target does not dispatch
type UnknownMethodError struct {
	core.ExternalCall
	Method string
}

func (e UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown governance method %q", e.Method)
}
