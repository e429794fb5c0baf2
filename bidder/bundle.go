package bidder

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rtbexchange/router/agent"
	"github.com/rtbexchange/router/errortypes"
)

// bidderBundle is the on-disk shape of the --bidder configuration file
// (spec §6): the set of agents this router process serves, plus the URL
// each one's dispatch payloads get POSTed to.
type bidderBundle struct {
	Endpoints map[string]string        `json:"endpoints"`
	Agents    map[string]json.RawMessage `json:"agents"` // agentID -> inline AgentConfig document
}

// LoadBundle reads the --bidder file and returns both the endpoint map
// HTTPChannel needs and the agent configs the registry should register.
func LoadBundle(path string) (*StaticEndpoints, map[string]*agent.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var bundle bidderBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, nil, err
	}

	configs := make(map[string]*agent.Config, len(bundle.Agents))
	var badConfigs []error
	for agentID, raw := range bundle.Agents {
		cfg, err := agent.LoadConfigBytes(raw)
		if err != nil {
			badConfigs = append(badConfigs, fmt.Errorf("%s: %w", agentID, err))
			continue
		}
		configs[agentID] = cfg
	}
	if len(badConfigs) > 0 {
		return nil, nil, errortypes.NewAggregateErrors("invalid agent configs in bundle", badConfigs)
	}

	return &StaticEndpoints{urls: bundle.Endpoints}, configs, nil
}
