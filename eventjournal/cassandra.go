package eventjournal

import (
	"github.com/gocql/gocql"

	"github.com/rtbexchange/router/postauction"
)

const insertEventCQL = `INSERT INTO event_journal
	(request_id, agent_id, event_type, price_micros, currency, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?)`

// CassandraSink journals events into a Cassandra keyspace, for deployments
// that need the durability tier to scale horizontally across regions.
type CassandraSink struct {
	session *gocql.Session
}

func NewCassandraSink(hosts []string, keyspace string) (*CassandraSink, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	return &CassandraSink{session: session}, nil
}

func (s *CassandraSink) Record(e postauction.Emitted) error {
	return s.session.Query(insertEventCQL,
		e.RequestID, e.AgentID, string(e.Type), e.PriceMicros, e.Currency, e.Timestamp).Exec()
}

func (s *CassandraSink) Close() error {
	s.session.Close()
	return nil
}
