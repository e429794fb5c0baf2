// Package eventjournal implements the durability boundary spec.md's
// Non-goals name as the substitute for persistent auction storage: every
// correlated post-auction outcome is appended to an external journal
// (Redis, Memcache, Postgres, Aerospike, or Cassandra) selected by URI
// scheme, rather than kept in any router-local store.
package eventjournal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/snappy"

	"github.com/rtbexchange/router/postauction"
)

// Sink durably records one Emitted event. Implementations must not block
// the post-auction loop indefinitely; EmitAdapter applies no timeout of its
// own around Record.
type Sink interface {
	Record(postauction.Emitted) error
	Close() error
}

// journalEntry is the wire shape written to every backend, snappy
// compressed before transmission (spec §11 "compresses event-journal
// payloads before handoff to a durability sink").
type journalEntry struct {
	RequestID   string    `json:"request_id"`
	AgentID     string    `json:"agent_id"`
	Type        string    `json:"type"`
	PriceMicros int64     `json:"price_micros,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func encode(e postauction.Emitted) ([]byte, error) {
	entry := journalEntry{
		RequestID:   e.RequestID,
		AgentID:     e.AgentID,
		Type:        string(e.Type),
		PriceMicros: e.PriceMicros,
		Currency:    e.Currency,
		Timestamp:   e.Timestamp,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

// journalKey is the per-event key every keyed backend (Redis, Memcache,
// Aerospike) stores the compressed payload under.
func journalKey(e postauction.Emitted) string {
	return fmt.Sprintf("rtbexchange:event:%s:%s", e.RequestID, e.Type)
}

// MultiSink fans one Record call out to every configured backend (e.g. one
// durability sink plus an analytics sink), matching --log-uri accepting a
// list of URIs (spec §6).
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink { return &MultiSink{sinks: sinks} }

func (m *MultiSink) Record(e postauction.Emitted) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Record(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// EmitAdapter adapts Sink to postauction.EventSink, logging (rather than
// propagating) a failed Record: the correlation loop's own state must
// advance regardless of whether the durability write succeeded.
type EmitAdapter struct {
	Sink   Sink
	OnFail func(postauction.Emitted, error)
}

func (a *EmitAdapter) Emit(e postauction.Emitted) {
	if err := a.Sink.Record(e); err != nil && a.OnFail != nil {
		a.OnFail(e, err)
	}
}
