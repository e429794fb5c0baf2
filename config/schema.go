package config

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/rtbexchange/router/errortypes"
)

// agentConfigSchema is the structural shape of one AgentConfig document on
// disk, checked before the document is handed to the registry (spec §3's
// invariants are checked separately, in struct-validation, since a JSON
// Schema can express "is this the right shape" but not "fixed CPM present
// iff bid-control != relay").
const agentConfigSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["account", "externalId", "bidProbability", "bidControl"],
  "properties": {
    "account": {"type": "string", "minLength": 1},
    "externalId": {"type": "string"},
    "test": {"type": "boolean"},
    "bidProbability": {"type": "number", "minimum": 0, "maximum": 1},
    "minTimeAvailableMs": {"type": "number", "minimum": 0},
    "maxInFlight": {"type": "integer", "minimum": 0},
    "roundRobinGroup": {"type": "string"},
    "roundRobinWeight": {"type": "integer", "minimum": 0},
    "bidControl": {"type": "string", "enum": ["relay", "relay_with_fixed_price", "fixed_only_no_relay"]},
    "fixedCpmMicros": {"type": "integer", "minimum": 0},
    "creatives": {"type": "array"}
  }
}`

var agentConfigSchemaLoader = gojsonschema.NewStringLoader(agentConfigSchema)

// ValidateAgentConfigDocument checks a decoded agent-config document (as a
// generic JSON tree) against the schema above before any struct unmarshal
// happens, so a malformed document on disk is a ConfigInvalid at load time
// rather than a panic or a silently-zeroed field deep in the filter pipeline.
func ValidateAgentConfigDocument(doc any) error {
	result, err := gojsonschema.Validate(agentConfigSchemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &errortypes.ConfigInvalid{Message: fmt.Sprintf("schema validation failed to run: %v", err)}
	}
	if !result.Valid() {
		msg := "agent configuration document is invalid:"
		for _, e := range result.Errors() {
			msg += " " + e.String() + ";"
		}
		return &errortypes.ConfigInvalid{Message: msg}
	}
	return nil
}
