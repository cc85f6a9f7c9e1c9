// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slab

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"
)

// writer serializes slab completions into index order. Each
// reservation gets a forwarding goroutine that compresses the payload
// and passes it to the single run goroutine, which owns the reorder
// buffer and performs all appends.
type writer struct {
	file *File

	// slots bounds reservations that have not yet been appended.
	slots *semaphore.Weighted

	completions  chan SlabData
	reservations sync.WaitGroup
	done         chan struct{}

	// stop is closed by finish. Reservations still without data then
	// give up instead of holding Close open.
	stop chan struct{}

	mu          sync.Mutex
	nextReserve uint32
	closing     bool
	abandoned   []uint32
	unsupplied  []uint32
	err         error

	// Owned by run.
	nextWrite uint32
	pending   map[uint32][]byte
}

func newWriter(file *File, depth int, first uint32) *writer {
	w := &writer{
		file:        file,
		slots:       semaphore.NewWeighted(int64(depth)),
		completions: make(chan SlabData, depth),
		done:        make(chan struct{}),
		stop:        make(chan struct{}),
		nextReserve: first,
		nextWrite:   first,
		pending:     make(map[uint32][]byte),
	}
	go w.run()
	return w
}

// Reserve allocates the next slab index and returns a channel on which
// exactly one SlabData for that index must be sent, or which must be
// closed to abandon the reservation. Data must be sent before Close is
// called; a reservation still empty at Close fails it. Reserve blocks
// while QueueDepth reservations are outstanding.
func (f *File) Reserve() (uint32, chan<- SlabData, error) {
	if f.writer == nil {
		return 0, nil, ErrReadOnly
	}
	return f.writer.reserve()
}

// WriteSlab reserves the next index and submits data for it. A failure
// from an earlier write is returned immediately.
func (f *File) WriteSlab(data []byte) error {
	index, submit, err := f.Reserve()
	if err != nil {
		return err
	}
	submit <- SlabData{Index: index, Data: data}
	return nil
}

func (w *writer) reserve() (uint32, chan<- SlabData, error) {
	if err := w.failure(); err != nil {
		return 0, nil, err
	}
	if err := w.slots.Acquire(context.Background(), 1); err != nil {
		return 0, nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closing {
		w.slots.Release(1)
		return 0, nil, ErrClosed
	}
	if err := w.failureLocked(); err != nil {
		w.slots.Release(1)
		return 0, nil, err
	}

	index := w.nextReserve
	w.nextReserve++
	submit := make(chan SlabData, 1)
	w.reservations.Add(1)
	go w.forward(index, submit)
	return index, submit, nil
}

func (w *writer) forward(index uint32, submit <-chan SlabData) {
	defer w.reservations.Done()

	var (
		completion SlabData
		ok         bool
	)
	select {
	case completion, ok = <-submit:
	case <-w.stop:
		// A send that completed before Close is already buffered.
		select {
		case completion, ok = <-submit:
		default:
			w.mu.Lock()
			w.unsupplied = append(w.unsupplied, index)
			w.mu.Unlock()
			w.slots.Release(1)
			return
		}
	}
	if !ok {
		w.mu.Lock()
		w.abandoned = append(w.abandoned, index)
		w.mu.Unlock()
		w.slots.Release(1)
		return
	}

	payload, err := compress(completion.Data, w.file.compression)
	if err != nil {
		w.fail(fmt.Errorf("compressing slab %d: %w", completion.Index, err))
		w.slots.Release(1)
		return
	}
	w.completions <- SlabData{Index: completion.Index, Data: payload}
}

func (w *writer) run() {
	defer close(w.done)
	for completion := range w.completions {
		if w.failure() != nil {
			w.slots.Release(1)
			continue
		}
		if _, duplicate := w.pending[completion.Index]; duplicate || completion.Index < w.nextWrite {
			w.fail(fmt.Errorf("%s: slab %d completed twice", w.file.path, completion.Index))
			w.slots.Release(1)
			w.discardPending()
			continue
		}

		w.pending[completion.Index] = completion.Data
		if err := w.flush(); err != nil {
			w.fail(err)
			w.discardPending()
		}
	}
}

// flush appends every pending slab that is next in index order.
func (w *writer) flush() error {
	for {
		payload, ok := w.pending[w.nextWrite]
		if !ok {
			return nil
		}
		delete(w.pending, w.nextWrite)
		err := w.file.appendFrame(payload)
		w.slots.Release(1)
		if err != nil {
			return err
		}
		w.nextWrite++
	}
}

func (w *writer) discardPending() {
	for index := range w.pending {
		delete(w.pending, index)
		w.slots.Release(1)
	}
}

// finish stops accepting reservations, collects the data already sent
// for outstanding ones, and reports any gap, including reservations
// that never received data.
func (w *writer) finish() error {
	w.mu.Lock()
	if !w.closing {
		w.closing = true
		close(w.stop)
	}
	w.mu.Unlock()

	w.reservations.Wait()
	close(w.completions)
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if len(w.abandoned) == 0 && len(w.unsupplied) == 0 && len(w.pending) == 0 && w.nextWrite == w.nextReserve {
		return nil
	}

	gap := &GapError{
		Path:       w.file.path,
		Written:    w.nextWrite,
		Reserved:   w.nextReserve,
		Abandoned:  slices.Sorted(slices.Values(w.abandoned)),
		Unsupplied: slices.Sorted(slices.Values(w.unsupplied)),
	}
	for index := range w.pending {
		gap.Pending = append(gap.Pending, index)
	}
	slices.Sort(gap.Pending)
	return gap
}

func (w *writer) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func (w *writer) failure() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failureLocked()
}

// failureLocked returns the first write error, or an error naming the
// first abandoned reservation: once an index is abandoned no later
// slab can reach the disk.
func (w *writer) failureLocked() error {
	if w.err != nil {
		return w.err
	}
	if len(w.abandoned) > 0 {
		return fmt.Errorf("%s: reservation for slab %d was abandoned", w.file.path, w.abandoned[0])
	}
	return nil
}
