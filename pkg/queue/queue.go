// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"fmt"
	"os"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timshannon/badgerhold"
)

// QueuedMessage is one outbound message awaiting confirmed delivery. The
// sequence id is assigned at enqueue time, is never reused and orders
// messages within a destination.
type QueuedMessage struct {
	SequenceId uint64 `badgerhold:"key"`

	ConversationId string
	Destination    string
	Payload        []byte

	AttemptCount int
	NextRetryAt  time.Time
	CreatedAt    time.Time
	LastError    string
	Stalled      bool
}

// Store is a durable delivery queue. Records are persisted before Enqueue
// returns; a crash before the first delivery attempt loses nothing. A crash
// between a successful send and MarkDelivered may duplicate a send, which
// the receiving side must tolerate (at-least-once delivery).
type Store struct {
	bh *badgerhold.Store
}

// NewStore creates a new Store or opens an existing one from the given path.
func NewStore(dir string) (s *Store, err error) {
	opts := badgerhold.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Logger = log.StandardLogger()
	opts.Options.ValueLogFileSize = 1<<28 - 1

	if dirErr := os.MkdirAll(dir, 0700); dirErr != nil {
		err = dirErr
		return
	}

	if bh, bhErr := badgerhold.Open(opts); bhErr != nil {
		err = bhErr
	} else {
		s = &Store{bh: bh}
	}
	return
}

// Close the Store. It must not be used afterwards.
func (s *Store) Close() error {
	return s.bh.Close()
}

// Enqueue persists a new outbound message, due immediately. This is a local
// write only; it never blocks on network I/O.
func (s *Store) Enqueue(conversationId, destination string, payload []byte) (qm QueuedMessage, err error) {
	if destination == "" {
		err = fmt.Errorf("destination must not be empty")
		return
	}

	now := time.Now()
	qm = QueuedMessage{
		ConversationId: conversationId,
		Destination:    destination,
		Payload:        payload,

		NextRetryAt: now,
		CreatedAt:   now,
	}

	if err = s.bh.Insert(badgerhold.NextSequence(), &qm); err != nil {
		return
	}

	log.WithFields(log.Fields{
		"sequence":    qm.SequenceId,
		"destination": destination,
	}).Debug("Enqueued message")

	return
}

// GetPending returns all due records, ordered by destination and sequence
// id. A record is withheld while an earlier record for the same destination
// is not yet due, so within a destination earlier messages are always
// attempted first.
func (s *Store) GetPending(now time.Time) (pending []QueuedMessage, err error) {
	var all []QueuedMessage
	if err = s.bh.Find(&all, nil); err != nil {
		return
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Destination != all[j].Destination {
			return all[i].Destination < all[j].Destination
		}
		return all[i].SequenceId < all[j].SequenceId
	})

	blocked := make(map[string]bool)
	for _, qm := range all {
		if blocked[qm.Destination] {
			continue
		}

		if qm.NextRetryAt.After(now) {
			blocked[qm.Destination] = true
			continue
		}

		pending = append(pending, qm)
	}
	return
}

// MarkDelivered removes a confirmed record. Removing an already removed
// sequence id is a no-op, guarding against duplicate acknowledgements.
func (s *Store) MarkDelivered(sequenceId uint64) error {
	err := s.bh.Delete(sequenceId, QueuedMessage{})
	if err == badgerhold.ErrNotFound {
		return nil
	}
	return err
}

// MarkFailed records a failed delivery attempt: the attempt count increases
// by one, the next retry time follows the backoff schedule and the record is
// flagged as stalled from the StalledAttempts'th attempt on.
func (s *Store) MarkFailed(sequenceId uint64, cause string) (qm QueuedMessage, err error) {
	if err = s.bh.Get(sequenceId, &qm); err != nil {
		return
	}

	qm.AttemptCount++
	qm.NextRetryAt = time.Now().Add(RetryDelay(qm.AttemptCount))
	qm.LastError = cause
	qm.Stalled = qm.AttemptCount >= StalledAttempts

	if err = s.bh.Update(sequenceId, &qm); err != nil {
		return
	}

	logger := log.WithFields(log.Fields{
		"sequence": sequenceId,
		"attempt":  qm.AttemptCount,
		"error":    cause,
	})
	if qm.Stalled {
		logger.Warn("Message delivery is stalled")
	} else {
		logger.Debug("Marked message as failed")
	}

	return
}

// Clear drops all records, e.g., on logout.
func (s *Store) Clear() error {
	return s.bh.DeleteMatching(&QueuedMessage{}, nil)
}

// Count is the amount of undelivered messages.
func (s *Store) Count() (n int, err error) {
	var ms []QueuedMessage
	if err = s.bh.Find(&ms, nil); err == nil {
		n = len(ms)
	}
	return
}

// CountStalled is the amount of undelivered messages flagged as stalled.
func (s *Store) CountStalled() (n int, err error) {
	var ms []QueuedMessage
	if err = s.bh.Find(&ms, badgerhold.Where("Stalled").Eq(true)); err == nil {
		n = len(ms)
	}
	return
}
