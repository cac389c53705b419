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

// Package test provides shared fixtures for tests
package test

import (
	"time"

	"github.com/stagepass-io/stagepass/core"
)

// Deterministic participant identities
var (
	Alice    = Identity("alice")
	Bob      = Identity("bob")
	Carol    = Identity("carol")
	Dave     = Identity("dave")
	Operator = Identity("operator")
)

// Time is a fixed reference instant for clock fixtures
var Time = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Identity derives a deterministic identity from a name
func Identity(name string) core.Identity {
	return core.NewIdentity([]byte(name))
}

// Clock returns a time source frozen at the given instant
func Clock(at time.Time) func() time.Time {
	return func() time.Time {
		return at
	}
}
