package agent

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"

	"github.com/rtbexchange/router/errortypes"
	"github.com/rtbexchange/router/logger"
)

// snapshot is the immutable map readers see; Registry never mutates one in
// place, it always builds and publishes a whole new one (spec §4.2, §5).
type snapshot map[string]*Config

// Registry holds the current set of AgentConfigs. Updates are published
// atomically: readers either see the old snapshot or the new one, never a
// mix (spec §4.2). Copy-on-write of the whole map is acceptable because
// update rate is orders of magnitude below read rate (spec's own
// implementation note), matching the pattern currencies.RateConverter uses
// for its rates table.
type Registry struct {
	current atomic.Value // holds snapshot

	// writeMu serializes register/unregister so concurrent writers build
	// their copy-on-write snapshot from a consistent base.
	writeMu sync.Mutex
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(snapshot{})
	return r
}

// Register validates, compiles, and publishes cfg under agentID. Replaces
// any prior config under the same id.
func (r *Registry) Register(agentID string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Compile(); err != nil {
		return err
	}
	cfg.AgentID = agentID

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.current.Load().(snapshot)
	if prior, existed := old[agentID]; existed {
		logConfigDiff(agentID, prior, cfg)
	}
	next := make(snapshot, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[agentID] = cfg
	r.current.Store(next)
	logger.Infof("agent registry: registered %s (account=%s)", agentID, cfg.Account)
	return nil
}

// logConfigDiff logs an ascii diff between an agent's outgoing and incoming
// config on hot-reload, so a human watching logs can see exactly what
// changed in a --bidder bundle reload without having to diff the files
// themselves.
func logConfigDiff(agentID string, prior, next *Config) {
	priorJSON, err := json.Marshal(prior)
	if err != nil {
		return
	}
	nextJSON, err := json.Marshal(next)
	if err != nil {
		return
	}

	diff, err := gojsondiff.New().Compare(priorJSON, nextJSON)
	if err != nil || !diff.Modified() {
		return
	}

	var priorMap map[string]any
	if err := json.Unmarshal(priorJSON, &priorMap); err != nil {
		return
	}
	rendered, err := formatter.NewAsciiFormatter(priorMap, formatter.AsciiFormatterConfig{}).Format(diff)
	if err != nil {
		return
	}
	logger.Infof("agent registry: %s config changed:\n%s", agentID, rendered)
}

// Unregister removes agentID, if present.
func (r *Registry) Unregister(agentID string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.current.Load().(snapshot)
	if _, ok := old[agentID]; !ok {
		return
	}
	next := make(snapshot, len(old)-1)
	for k, v := range old {
		if k != agentID {
			next[k] = v
		}
	}
	r.current.Store(next)
	logger.Infof("agent registry: unregistered %s", agentID)
}

// Lookup returns the config currently registered under agentID.
func (r *Registry) Lookup(agentID string) (*Config, error) {
	snap := r.current.Load().(snapshot)
	cfg, ok := snap[agentID]
	if !ok {
		return nil, &errortypes.AgentUnknown{AgentID: agentID}
	}
	return cfg, nil
}

// Snapshot returns the current generation of all registered configs.
// Callers hold the returned slice's configs read-only; the registry never
// mutates a Config after publishing it.
func (r *Registry) Snapshot() []*Config {
	snap := r.current.Load().(snapshot)
	out := make([]*Config, 0, len(snap))
	for _, cfg := range snap {
		out = append(out, cfg)
	}
	return out
}
