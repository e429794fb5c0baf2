package eventjournal

import (
	as "github.com/aerospike/aerospike-client-go"

	"github.com/rtbexchange/router/postauction"
)

const aerospikeNamespace = "rtbexchange"
const aerospikeSet = "event_journal"
const aerospikeBin = "payload"
const aerospikeTTLSeconds = 24 * 60 * 60

// AerospikeSink journals events into an Aerospike namespace, for
// deployments already running Aerospike as their low-latency key-value
// tier alongside the router.
type AerospikeSink struct {
	client *as.Client
}

func NewAerospikeSink(host string, port int) (*AerospikeSink, error) {
	client, err := as.NewClient(host, port)
	if err != nil {
		return nil, err
	}
	return &AerospikeSink{client: client}, nil
}

func (s *AerospikeSink) Record(e postauction.Emitted) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}
	key, err := as.NewKey(aerospikeNamespace, aerospikeSet, journalKey(e))
	if err != nil {
		return err
	}
	policy := as.NewWritePolicy(0, aerospikeTTLSeconds)
	return s.client.PutBins(policy, key, as.NewBin(aerospikeBin, payload))
}

func (s *AerospikeSink) Close() error {
	s.client.Close()
	return nil
}
