// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned when work is submitted after shutdown.
var ErrQueueClosed = errors.New("dream: queue closed")

// ErrQueueBusy is returned by trySubmit when the user's buffer is full.
var ErrQueueBusy = errors.New("dream: queue busy")

// queueDepth bounds pending tasks per user. Feedback arrives at human
// speed; the buffer exists only to absorb a retrain scheduled behind a
// burst of updates.
const queueDepth = 64

// queueSet serializes all profile mutations per user. Feedback updates,
// cluster retraining and resets for one user run strictly in submission
// order on a single goroutine, which is what makes the load-modify-save
// cycle one logical unit without optimistic concurrency checks.
type queueSet struct {
	mu     sync.Mutex
	queues map[string]chan func()
	wg     sync.WaitGroup

	// inflight counts submits that passed the closed check but have not
	// landed on a channel yet. close waits for it before closing any
	// channel, so a send can never hit a closed channel.
	inflight sync.WaitGroup
	closed   bool
}

func newQueueSet() *queueSet {
	return &queueSet{queues: make(map[string]chan func())}
}

// queueFor returns the user's channel, starting its drain goroutine on
// first use, and registers an in-flight send. Caller must hold q.mu and
// must call q.inflight.Done after the send resolves.
func (q *queueSet) queueFor(userID string) chan func() {
	ch, ok := q.queues[userID]
	if !ok {
		ch = make(chan func(), queueDepth)
		q.queues[userID] = ch
		q.wg.Add(1)
		go q.drain(ch)
	}
	q.inflight.Add(1)
	return ch
}

// submit enqueues task on the user's queue, fire-and-forget. Must not be
// called from a task already running on that queue: a full buffer would
// block the drain goroutine on its own channel. Queued work uses
// trySubmit instead.
func (q *queueSet) submit(userID string, task func()) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	ch := q.queueFor(userID)
	q.mu.Unlock()

	ch <- task
	q.inflight.Done()
	return nil
}

// trySubmit enqueues task without blocking, returning ErrQueueBusy when
// the user's buffer is full. Safe to call from a task running on the same
// queue.
func (q *queueSet) trySubmit(userID string, task func()) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	ch := q.queueFor(userID)
	q.mu.Unlock()

	defer q.inflight.Done()
	select {
	case ch <- task:
		return nil
	default:
		return ErrQueueBusy
	}
}

// run enqueues task and waits for it to finish or ctx to expire. The task
// still runs to completion on the queue even if the caller stops waiting.
func (q *queueSet) run(ctx context.Context, userID string, task func()) error {
	done := make(chan struct{})
	if err := q.submit(userID, func() {
		defer close(done)
		task()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *queueSet) drain(ch chan func()) {
	defer q.wg.Done()
	for task := range ch {
		task()
	}
}

// close stops accepting work and waits for every queue to drain. In-flight
// submits land before the channels close; the drain goroutines keep
// consuming until then, so those sends cannot block forever.
func (q *queueSet) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.inflight.Wait()

	q.mu.Lock()
	for _, ch := range q.queues {
		close(ch)
	}
	q.mu.Unlock()

	q.wg.Wait()
}
