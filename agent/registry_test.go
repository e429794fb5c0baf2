package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtbexchange/router/errortypes"
)

func validConfig(account string) *Config {
	return &Config{
		Account:        account,
		BidProbability: 1,
		BidControl:     BidControlRelay,
		Creatives:      []Creative{{ID: "cr-1", Width: 300, Height: 250}},
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("agent-1", validConfig("acct-1")))

	cfg, err := r.Lookup("agent-1")
	require.NoError(t, err)
	require.Equal(t, "agent-1", cfg.AgentID)
	require.Equal(t, "acct-1", cfg.Account)
}

func TestRegistryLookupUnknownAgent(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("missing")
	require.Error(t, err)
	var unknown *errortypes.AgentUnknown
	require.ErrorAs(t, err, &unknown)
}

func TestRegistryRegisterRejectsInvalidConfig(t *testing.T) {
	r := NewRegistry()
	err := r.Register("agent-1", &Config{Account: ""})
	require.Error(t, err)
	_, lookupErr := r.Lookup("agent-1")
	require.Error(t, lookupErr)
}

func TestRegistryUnregisterRemovesAgent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("agent-1", validConfig("acct-1")))
	r.Unregister("agent-1")

	_, err := r.Lookup("agent-1")
	require.Error(t, err)
}

func TestRegistryRegisterOverReplacesAndDiffsSilently(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("agent-1", validConfig("acct-1")))

	updated := validConfig("acct-1")
	updated.BidProbability = 0.5
	require.NoError(t, r.Register("agent-1", updated))

	cfg, err := r.Lookup("agent-1")
	require.NoError(t, err)
	require.Equal(t, 0.5, cfg.BidProbability)
}

func TestRegistrySnapshotIsolatedFromFutureWrites(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("agent-1", validConfig("acct-1")))

	snap := r.Snapshot()
	require.Len(t, snap, 1)

	require.NoError(t, r.Register("agent-2", validConfig("acct-2")))
	require.Len(t, snap, 1, "prior snapshot must not observe a later write")
	require.Len(t, r.Snapshot(), 2)
}
