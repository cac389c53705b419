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

import "fmt"

// Ownable is the owner-check capability. Components embed it to track their
// privileged operator identity and gate operator-only operations.
type Ownable struct {
	owner Identity
}

func NewOwnable(owner Identity) Ownable {
	return Ownable{owner: owner}
}

func (o *Ownable) Owner() Identity {
	return o.owner
}

// SetOwner replaces the operator identity. Callers are responsible for
// authorization checks before invoking this.
func (o *Ownable) SetOwner(owner Identity) {
	o.owner = owner
}

// CheckOwner returns a NotOperatorError unless the caller is the current
// operator
func (o *Ownable) CheckOwner(caller Identity) error {
	if caller != o.owner {
		return NotOperatorError{Caller: caller}
	}
	return nil
}

// NotOperatorError indicates the caller is not the component's operator
type NotOperatorError struct {
	Authorization
	Caller Identity
}

func (e NotOperatorError) Error() string {
	return fmt.Sprintf("caller %s is not the operator", e.Caller)
}

// Guard is the non-reentrancy capability: an explicit flag set for the
// duration of any function that reaches an external call, so a malicious
// recipient cannot re-invoke the same operation before the first
// invocation's effects are committed.
type Guard struct {
	entered bool
}

// Enter marks the guard as held. It must be paired with a deferred Exit.
func (g *Guard) Enter() error {
	if g.entered {
		return ReentrantCallError{}
	}
	g.entered = true
	return nil
}

func (g *Guard) Exit() {
	g.entered = false
}

// ReentrantCallError indicates a guarded operation was re-entered from an
// outbound transfer callback within the same host operation
type ReentrantCallError struct {
	StateInvariant
}

func (ReentrantCallError) Error() string {
	return "reentrant call rejected"
}
