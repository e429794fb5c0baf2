package bidder

import (
	"encoding/json"
	"os"
)

// StaticEndpoints is the AgentEndpoints HTTPChannel uses in production: a
// fixed agentID -> URL map loaded once from the --bidder configuration
// file (spec §6 `--bidder <file>`).
type StaticEndpoints struct {
	urls map[string]string
}

// LoadEndpoints reads a JSON object {"agentId": "http://host:port/path", ...}.
func LoadEndpoints(path string) (*StaticEndpoints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var urls map[string]string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, err
	}
	return &StaticEndpoints{urls: urls}, nil
}

func (e *StaticEndpoints) URLFor(agentID string) (string, bool) {
	url, ok := e.urls[agentID]
	return url, ok
}
