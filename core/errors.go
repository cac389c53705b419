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

package core

import "errors"

// Kind classifies every operation failure so callers can distinguish failure
// families without matching on concrete error types
type Kind uint8

const (
	KindAuthorization Kind = iota + 1
	KindStateInvariant
	KindResource
	KindAlreadyDone
	KindExternalCall
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindStateInvariant:
		return "state-invariant"
	case KindResource:
		return "resource"
	case KindAlreadyDone:
		return "already-done"
	case KindExternalCall:
		return "external-call"
	}
	return "unknown"
}

// Sentinel errors for each failure kind so callers can use errors.Is
var (
	ErrAuthorization  = errors.New("authorization failure")
	ErrStateInvariant = errors.New("state invariant violation")
	ErrResource       = errors.New("insufficient resource")
	ErrAlreadyDone    = errors.New("already done")
	ErrExternalCall   = errors.New("external call failure")
)

// KindError is implemented by every failure surfaced by the core
type KindError interface {
	error
	Kind() Kind
}

// KindOf returns the failure kind for an error, or zero if the error does not
// originate from the core
func KindOf(err error) Kind {
	var ke KindError
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return 0
}

// Authorization is embedded by errors indicating the caller lacks a required
// role or ownership
type Authorization struct{}

func (Authorization) Kind() Kind { return KindAuthorization }

func (Authorization) Is(target error) bool { return target == ErrAuthorization }

// StateInvariant is embedded by errors indicating the operation would violate
// a supply cap, price cap, quorum, or uniqueness invariant
type StateInvariant struct{}

func (StateInvariant) Kind() Kind { return KindStateInvariant }

func (StateInvariant) Is(target error) bool { return target == ErrStateInvariant }

// Resource is embedded by errors indicating insufficient payment, balance, or
// stake
type Resource struct{}

func (Resource) Kind() Kind { return KindResource }

func (Resource) Is(target error) bool { return target == ErrResource }

// AlreadyDone is embedded by errors indicating a repeated one-shot action
// (double confirmation, double execution, re-blacklisting)
type AlreadyDone struct{}

func (AlreadyDone) Kind() Kind { return KindAlreadyDone }

func (AlreadyDone) Is(target error) bool { return target == ErrAlreadyDone }

// ExternalCall is embedded by errors indicating that a delegated payment,
// token transfer, or governance target call did not succeed
type ExternalCall struct{}

func (ExternalCall) Kind() Kind { return KindExternalCall }

func (ExternalCall) Is(target error) bool { return target == ErrExternalCall }
