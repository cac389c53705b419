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

package governor

import (
	"fmt"

	"github.com/stagepass-io/stagepass/core"
)

// NotOwnerError indicates the caller is not a governance owner
type NotOwnerError struct {
	core.Authorization
	Caller core.Identity
}

func (e NotOwnerError) Error() string {
	return fmt.Sprintf("caller %s is not a governance owner", e.Caller)
}

// NotSelfError indicates a self-administration call that did not come from
// an executed governance transaction targeting the governor
type NotSelfError struct {
	core.Authorization
	Caller core.Identity
}

func (e NotSelfError) Error() string {
	return fmt.Sprintf(
		"caller %s is not the governor; owner-set changes require an executed governance transaction",
		e.Caller,
	)
}

// UnknownTransactionError indicates a reference to a transaction that was
// never submitted
type UnknownTransactionError struct {
	core.StateInvariant
	TransactionID uint64
}

func (e UnknownTransactionError) Error() string {
	return fmt.Sprintf("unknown transaction %d", e.TransactionID)
}

// AlreadyExecutedError indicates an action on a transaction in its terminal
// state
type AlreadyExecutedError struct {
	core.AlreadyDone
	TransactionID uint64
}

func (e AlreadyExecutedError) Error() string {
	return fmt.Sprintf("transaction %d already executed", e.TransactionID)
}

// AlreadyConfirmedError indicates a repeated confirmation by the same owner
type AlreadyConfirmedError struct {
	core.AlreadyDone
	TransactionID uint64
	Owner         core.Identity
}

func (e AlreadyConfirmedError) Error() string {
	return fmt.Sprintf(
		"transaction %d already confirmed by %s",
		e.TransactionID,
		e.Owner,
	)
}

// NotConfirmedError indicates a revocation by an owner who has not confirmed
type NotConfirmedError struct {
	core.StateInvariant
	TransactionID uint64
	Owner         core.Identity
}

func (e NotConfirmedError) Error() string {
	return fmt.Sprintf(
		"transaction %d not confirmed by %s",
		e.TransactionID,
		e.Owner,
	)
}

// QuorumNotMetError indicates an execution attempt below the confirmation
// threshold
type QuorumNotMetError struct {
	core.StateInvariant
	TransactionID uint64
	Confirmations uint64
	Required      uint64
}

func (e QuorumNotMetError) Error() string {
	return fmt.Sprintf(
		"transaction %d has %d of %d required confirmations",
		e.TransactionID,
		e.Confirmations,
		e.Required,
	)
}

// TargetCallFailedError indicates the transaction's target call did not
// succeed; the whole execution rolls back, including the executed flag
type TargetCallFailedError struct {
	core.ExternalCall
	TransactionID uint64
	Err           error
}

func (e TargetCallFailedError) Error() string {
	return fmt.Sprintf(
		"target call for transaction %d failed: %s",
		e.TransactionID,
		e.Err,
	)
}

func (e TargetCallFailedError) Unwrap() error { return e.Err }

// InvalidOwnerError indicates a nil or duplicate owner identity
type InvalidOwnerError struct {
	core.StateInvariant
	Owner  core.Identity
	Reason string
}

func (e InvalidOwnerError) Error() string {
	return fmt.Sprintf("invalid owner %s: %s", e.Owner, e.Reason)
}

// UnknownOwnerError indicates a removal of an identity that is not an owner
type UnknownOwnerError struct {
	core.StateInvariant
	Owner core.Identity
}

func (e UnknownOwnerError) Error() string {
	return fmt.Sprintf("%s is not a governance owner", e.Owner)
}

// OwnerCountBelowThresholdError indicates a removal that would push the
// owner count below the confirmation threshold
type OwnerCountBelowThresholdError struct {
	core.StateInvariant
	Owners   uint64
	Required uint64
}

func (e OwnerCountBelowThresholdError) Error() string {
	return fmt.Sprintf(
		"removing an owner would leave %d owners below threshold %d",
		e.Owners,
		e.Required,
	)
}

// InvalidRequirementError indicates a threshold outside [1, owner count]
type InvalidRequirementError struct {
	core.StateInvariant
	Required uint64
	Owners   uint64
}

func (e InvalidRequirementError) Error() string {
	return fmt.Sprintf(
		"requirement %d outside valid range [1, %d]",
		e.Required,
		e.Owners,
	)
}

// UnknownTargetError indicates an executed transaction whose target has no
// registered dispatcher
type UnknownTargetError struct {
	core.ExternalCall
	Target core.Identity
}

func (e UnknownTargetError) Error() string {
	return fmt.Sprintf("no governance target registered for %s", e.Target)
}

// UnknownMethodError indicates a governance payload naming a method the
// governor does not dispatch
type UnknownMethodError struct {
	core.ExternalCall
	Method string
}

func (e UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown governance method %q", e.Method)
}
