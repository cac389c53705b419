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
	"log/slog"
	"time"

	"github.com/stagepass-io/stagepass/core"
	"github.com/stagepass-io/stagepass/token"
)

// ExchangeOptionFunc is a function that modifies Exchange settings
type ExchangeOptionFunc func(*Exchange)

// WithLogger specifies the logger to use. Defaults to discarding log output.
func WithLogger(logger *slog.Logger) ExchangeOptionFunc {
	return func(e *Exchange) {
		e.logger = logger
	}
}

// WithGovernanceOwners specifies the initial governance owner set. Required.
func WithGovernanceOwners(owners ...core.Identity) ExchangeOptionFunc {
	return func(e *Exchange) {
		e.owners = owners
	}
}

// WithRequiredConfirmations specifies the governance confirmation threshold.
// Defaults to 1.
func WithRequiredConfirmations(required uint64) ExchangeOptionFunc {
	return func(e *Exchange) {
		e.required = required
	}
}

// WithPlatformOperator specifies the identity receiving platform fees and
// holding direct administrative rights. Defaults to the governor itself, in
// which case parameter changes require a quorum of owners.
func WithPlatformOperator(operator core.Identity) ExchangeOptionFunc {
	return func(e *Exchange) {
		e.operator = operator
	}
}

// WithPrimaryRate specifies the primary-sale fee rate in basis points.
// Defaults to 500 (5%).
func WithPrimaryRate(bps uint64) ExchangeOptionFunc {
	return func(e *Exchange) {
		e.primaryRateBps = bps
	}
}

// WithSecondaryRate specifies the secondary-sale fee rate in basis points.
// Defaults to 250 (2.5%).
func WithSecondaryRate(bps uint64) ExchangeOptionFunc {
	return func(e *Exchange) {
		e.secondaryRateBps = bps
	}
}

// WithMarketplaceFee specifies the marketplace fee rate in basis points.
// Defaults to 250 (2.5%).
func WithMarketplaceFee(bps uint64) ExchangeOptionFunc {
	return func(e *Exchange) {
		e.marketRateBps = bps
	}
}

// WithMinimumStake specifies the staked-token threshold for premium access.
// Defaults to 1000.
func WithMinimumStake(minimum uint64) ExchangeOptionFunc {
	return func(e *Exchange) {
		e.minimumStake = minimum
	}
}

// WithStakingToken specifies the token ledger used for marketplace
// settlement and staking. Defaults to a fresh in-memory ledger named STAGE.
func WithStakingToken(ledger token.Ledger) ExchangeOptionFunc {
	return func(e *Exchange) {
		e.stakingToken = ledger
	}
}

// WithRecoverableToken registers a token ledger whose stranded balances the
// operator may recover from the marketplace account. May be given multiple
// times.
func WithRecoverableToken(ledger token.Ledger) ExchangeOptionFunc {
	return func(e *Exchange) {
		e.recoverable = append(e.recoverable, ledger)
	}
}

// WithClock specifies the time source. Defaults to time.Now.
func WithClock(clock func() time.Time) ExchangeOptionFunc {
	return func(e *Exchange) {
		e.clock = clock
	}
}
