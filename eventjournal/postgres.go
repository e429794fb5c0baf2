package eventjournal

import (
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/rtbexchange/router/postauction"
)

// PostgresSink journals events as rows in an append-only table, for
// deployments that want a queryable audit trail rather than a short-TTL
// cache. Callers are expected to have already created the target table:
//
//	CREATE TABLE event_journal (
//	    request_id text, agent_id text, event_type text,
//	    price_micros bigint, currency text, recorded_at timestamptz
//	);
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresSink{db: db}, nil
}

const insertEventSQL = `INSERT INTO event_journal
	(request_id, agent_id, event_type, price_micros, currency, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

func (s *PostgresSink) Record(e postauction.Emitted) error {
	_, err := s.db.Exec(insertEventSQL, e.RequestID, e.AgentID, string(e.Type), e.PriceMicros, e.Currency, e.Timestamp)
	return err
}

func (s *PostgresSink) Close() error { return s.db.Close() }
