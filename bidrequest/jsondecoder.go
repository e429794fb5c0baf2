package bidrequest

import (
	"encoding/json"
	"time"

	"github.com/buger/jsonparser"
)

// jsonEnvelope is the wire shape a generic JSON exchange connector decodes
// into before being reshaped to the uniform BidRequest (spec §6).
type jsonEnvelope struct {
	ID              string            `json:"id"`
	Spots           []AdSpot          `json:"spots"`
	UserIDs         map[string]string `json:"user_ids"`
	URL             string            `json:"url"`
	Language        string            `json:"language"`
	Location        string            `json:"location"`
	UserAgent       string            `json:"user_agent"`
	TimeAvailableMs float64           `json:"time_available_ms"`
	Segments        map[string][]string `json:"segments"`
	AdTags          []string          `json:"ad_tags"`
}

// JSONDecoder decodes a generic JSON-envelope exchange's bid requests. Real
// exchange connectors with their own wire protocol implement
// server.ExchangeDecoder directly; this one exists for exchanges (and
// tests) that already speak the uniform shape as JSON.
type JSONDecoder struct{}

func (JSONDecoder) Decode(body []byte) (*BidRequest, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	userIDs := make(map[UserIDSource]string, len(env.UserIDs))
	for k, v := range env.UserIDs {
		userIDs[UserIDSource(k)] = v
	}

	req := &BidRequest{
		ID:            env.ID,
		Spots:         env.Spots,
		UserIDs:       userIDs,
		URL:           env.URL,
		Language:      env.Language,
		Location:      env.Location,
		UserAgent:     env.UserAgent,
		ArrivedAt:     time.Now(),
		TimeAvailable: time.Duration(env.TimeAvailableMs) * time.Millisecond,
		Segments:      env.Segments,
		AdTags:        env.AdTags,
		RawPayload:    body,
	}

	// If the envelope omitted a top-level ad-tags array but the payload
	// nests one a level deeper (a common exchange quirk), pull it out
	// without paying for a second full unmarshal.
	if len(req.AdTags) == 0 {
		if tag, err := jsonparser.GetString(body, "extension", "adTag"); err == nil && tag != "" {
			req.AdTags = []string{tag}
		}
	}

	return req, nil
}
