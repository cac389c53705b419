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

// Package fees implements the platform fee splitter shared by the primary
// issuance and resale settlement paths.
package fees

import (
	"fmt"

	"github.com/stagepass-io/stagepass/core"
)

const (
	// RateDenominator is the basis-point denominator (10000 = 100%)
	RateDenominator = 10000
	// MaxRateBps is the hard ceiling for any platform fee rate (10%)
	MaxRateBps = 1000
)

// Rate is a platform fee rate in basis points
type Rate uint64

// NewRate validates a basis-point value against the hard ceiling
func NewRate(bps uint64) (Rate, error) {
	if bps > MaxRateBps {
		return 0, RateTooHighError{Rate: bps}
	}
	return Rate(bps), nil
}

func (r Rate) Bps() uint64 {
	return uint64(r)
}

func (r Rate) String() string {
	return fmt.Sprintf("%d.%02d%%", uint64(r)/100, uint64(r)%100)
}

// RateTooHighError indicates a fee rate above the hard ceiling
type RateTooHighError struct {
	core.StateInvariant
	Rate uint64
}

func (e RateTooHighError) Error() string {
	return fmt.Sprintf(
		"fee rate %d exceeds maximum of %d basis points",
		e.Rate,
		MaxRateBps,
	)
}

// Split divides amount into the platform fee and the remainder forwarded to
// the counterparty. The fee is floor(amount * rate / 10000), so
// fee + remainder always equals amount.
func Split(amount uint64, rate Rate) (fee uint64, remainder uint64) {
	// Split the multiplication to avoid overflow on large amounts
	quot := amount / RateDenominator
	rem := amount % RateDenominator
	fee = quot*uint64(rate) + rem*uint64(rate)/RateDenominator
	remainder = amount - fee
	return fee, remainder
}
