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

// Package core provides the shared kernel for the exchange: participant
// identities, payload digests, the error taxonomy, and the capability types
// (owner checks and non-reentrancy guards) composed by the other packages.
package core

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

const (
	IdentitySize = 28
	DigestSize   = 32

	// IdentityPrefix is the bech32 human-readable prefix for identities
	IdentityPrefix = "pass"
)

// Identity uniquely identifies a participant (organizer, fan, operator,
// governance owner, or a component account such as the marketplace pool).
// It is the blake2b-224 hash of an arbitrary seed.
type Identity [IdentitySize]byte

// NewIdentity derives an Identity from the provided seed bytes
func NewIdentity(seed []byte) Identity {
	tmpHash, err := blake2b.New(IdentitySize, nil)
	if err != nil {
		panic(
			fmt.Sprintf("unexpected error generating empty blake2b hash: %s", err),
		)
	}
	tmpHash.Write(seed)
	return Identity(tmpHash.Sum(nil))
}

func (i Identity) Bytes() []byte {
	return i[:]
}

func (i Identity) IsZero() bool {
	return i == Identity{}
}

// String returns the bech32 form of the identity
func (i Identity) String() string {
	// Convert data to base32 and encode as bech32
	convData, err := bech32.ConvertBits(i[:], 8, 5, true)
	if err != nil {
		panic(
			fmt.Sprintf("unexpected error converting data to base32: %s", err),
		)
	}
	encoded, err := bech32.Encode(IdentityPrefix, convData)
	if err != nil {
		panic(fmt.Sprintf("unexpected error encoding data as bech32: %s", err))
	}
	return encoded
}

func (i Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// NewIdentityFromBech32 decodes a bech32-encoded identity string
func NewIdentityFromBech32(encoded string) (Identity, error) {
	var i Identity
	prefix, data, err := bech32.DecodeNoLimit(encoded)
	if err != nil {
		return i, err
	}
	if prefix != IdentityPrefix {
		return i, fmt.Errorf("invalid identity prefix: %s", prefix)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return i, err
	}
	if len(decoded) != len(i) {
		return i, fmt.Errorf("invalid identity length: %d", len(decoded))
	}
	i = Identity(decoded)
	return i, nil
}

// Digest is a blake2b-256 hash used to fingerprint governance payloads for
// the audit trail
type Digest [DigestSize]byte

// NewDigest generates a Digest from the provided data
func NewDigest(data []byte) Digest {
	tmpHash, err := blake2b.New(DigestSize, nil)
	if err != nil {
		panic(
			fmt.Sprintf("unexpected error generating empty blake2b hash: %s", err),
		)
	}
	tmpHash.Write(data)
	return Digest(tmpHash.Sum(nil))
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) Bytes() []byte {
	return d[:]
}
