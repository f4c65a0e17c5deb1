package dispatch

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// pushEventsSchemaJSON is the pushEventsRequest schema (§4.7 step 1, §6):
// the same shape schema.py's get_model_schema loaded from doc/models/ in
// the original implementation, carried inline here since this module has
// no doc/models/ directory of its own to load from.
const pushEventsSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["datasetId", "events"],
	"properties": {
		"datasetId": {"type": "string", "minLength": 1},
		"events": {
			"type": "array",
			"items": {"type": "object"}
		},
		"mergeOn": {
			"type": "array",
			"items": {"type": "string"}
		},
		"version": {"type": "string"},
		"apiVersion": {"type": "integer", "enum": [1, 2]}
	},
	"additionalProperties": false
}`

func compilePushEventsSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(pushEventsSchemaJSON)))
	if err != nil {
		return nil, fmt.Errorf("dispatch: parse pushEventsRequest schema: %w", err)
	}
	const resourceURL = "pushEventsRequest.json"
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return nil, fmt.Errorf("dispatch: add pushEventsRequest schema resource: %w", err)
	}

	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("dispatch: compile pushEventsRequest schema: %w", err)
	}
	return schema, nil
}
