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

// Package cbor provides the deterministic CBOR codec used for governance
// payloads and for serializing emitted events to external consumers.
package cbor

import (
	"bytes"
	"sync"

	_cbor "github.com/fxamacker/cbor/v2"
)

// RawMessage is a raw encoded CBOR value
type RawMessage = _cbor.RawMessage

var (
	cachedEncMode     _cbor.EncMode
	cachedEncModeErr  error
	cachedEncModeOnce sync.Once

	cachedDecMode     _cbor.DecMode
	cachedDecModeErr  error
	cachedDecModeOnce sync.Once
)

func getEncMode() (_cbor.EncMode, error) {
	cachedEncModeOnce.Do(func() {
		opts := _cbor.EncOptions{
			// Make sure that maps have ordered keys
			Sort: _cbor.SortCoreDeterministic,
		}
		cachedEncMode, cachedEncModeErr = opts.EncMode()
	})
	return cachedEncMode, cachedEncModeErr
}

func getDecMode() (_cbor.DecMode, error) {
	cachedDecModeOnce.Do(func() {
		opts := _cbor.DecOptions{
			ExtraReturnErrors: _cbor.ExtraDecErrorUnknownField,
		}
		cachedDecMode, cachedDecModeErr = opts.DecMode()
	})
	return cachedDecMode, cachedDecModeErr
}

func Encode(data any) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	em, err := getEncMode()
	if err != nil {
		return nil, err
	}
	enc := em.NewEncoder(buf)
	err = enc.Encode(data)
	return buf.Bytes(), err
}

func Decode(dataBytes []byte, dest any) error {
	dm, err := getDecMode()
	if err != nil {
		return err
	}
	dec := dm.NewDecoder(bytes.NewReader(dataBytes))
	return dec.Decode(dest)
}
