package eventjournal

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/rtbexchange/router/postauction"
)

func TestPostgresSinkRecordInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sink := &PostgresSink{db: db}

	ts := time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_journal")).
		WithArgs("req-1", "agent-1", "win", int64(3001), "USD", ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = sink.Record(postauction.Emitted{
		RequestID: "req-1", AgentID: "agent-1", Type: postauction.EventWin,
		PriceMicros: 3001, Currency: "USD", Timestamp: ts,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkRecordPropagatesDBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sink := &PostgresSink{db: db}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_journal")).
		WillReturnError(errors.New("connection reset"))

	err = sink.Record(postauction.Emitted{RequestID: "req-2", Type: postauction.EventClick})
	require.Error(t, err)
}

func TestPostgresSinkClose(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	sink := &PostgresSink{db: db}
	require.NoError(t, sink.Close())
}
