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

// Package host implements the atomic-transaction ledger host. Each top-level
// operation runs to completion as a single atomic unit: the runtime snapshots
// every registered resource before the operation, restores all of them if it
// fails, and publishes buffered events to subscribers only after it commits.
// Operations are totally ordered; there is no shared mutable state visible
// across concurrently pending operations.
package host

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/stagepass-io/stagepass/events"
)

// Resource is implemented by any component whose durable state participates
// in atomic operations. Snapshot must return a deep copy that Restore can
// apply to roll the resource back to its pre-operation state.
type Resource interface {
	Snapshot() (any, error)
	Restore(snapshot any) error
}

// SubscriberFunc receives committed event envelopes
type SubscriberFunc func(events.Envelope)

// Runtime serializes top-level operations and provides all-or-nothing
// execution over the registered resources
type Runtime struct {
	mu          sync.Mutex
	logger      *slog.Logger
	resources   []Resource
	pending     []events.Envelope
	subscribers []SubscriberFunc
}

// RuntimeOptionFunc is a function that modifies the Runtime
type RuntimeOptionFunc func(*Runtime)

// WithLogger specifies the logger to use. Defaults to discarding log output
func WithLogger(logger *slog.Logger) RuntimeOptionFunc {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// NewRuntime returns a new Runtime with the specified options
func NewRuntime(options ...RuntimeOptionFunc) *Runtime {
	r := &Runtime{}
	for _, option := range options {
		option(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Register adds a resource to the set snapshotted around each operation.
// Resources must be registered before the first operation runs.
func (r *Runtime) Register(res Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources = append(r.resources, res)
}

// Subscribe adds a subscriber for committed events
func (r *Runtime) Subscribe(sub SubscriberFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, sub)
}

// Emit buffers an event for delivery on commit. It must only be called from
// within an executing operation.
func (r *Runtime) Emit(env events.Envelope) {
	r.pending = append(r.pending, env)
}

// Execute runs fn as a single atomic operation. On error, every registered
// resource is restored to its pre-operation snapshot and buffered events are
// discarded. On success, buffered events are delivered to subscribers in
// emission order.
//
// Outbound transfer hooks run inside the operation and must not call back
// into Execute; re-entry into component operations is rejected by their
// non-reentrancy guards.
func (r *Runtime) Execute(operation string, fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshots := make([]any, len(r.resources))
	for i, res := range r.resources {
		snap, err := res.Snapshot()
		if err != nil {
			return fmt.Errorf("snapshot resource %d: %w", i, err)
		}
		snapshots[i] = snap
	}
	r.pending = r.pending[:0]
	if err := fn(); err != nil {
		for i, res := range r.resources {
			if restoreErr := res.Restore(snapshots[i]); restoreErr != nil {
				// A failed restore leaves the state inconsistent and is not
				// recoverable by the caller
				panic(
					fmt.Sprintf(
						"failed to restore resource %d after aborted operation %s: %s",
						i,
						operation,
						restoreErr,
					),
				)
			}
		}
		r.pending = nil
		r.logger.Debug(
			"operation aborted",
			"operation", operation,
			"error", err,
		)
		return err
	}
	for _, env := range r.pending {
		for _, sub := range r.subscribers {
			sub(env)
		}
	}
	r.pending = nil
	return nil
}

// View runs fn under the same lock as Execute so reads observe a consistent
// committed state. No snapshots are taken; fn must not mutate resources.
func (r *Runtime) View(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}
