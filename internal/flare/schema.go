package flare

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/OrlandoBitencourt/flare/internal/domain"
)

const flagEntrySchema = `{
	"type": "object",
	"required": ["flagKey", "value"],
	"properties": {
		"flagKey": {"type": "string"},
		"value": {"type": "boolean"},
		"variant": {"type": ["string", "null"]},
		"reason": {"type": ["string", "null"]},
		"flagMetadata": {
			"type": ["object", "null"],
			"required": ["updatedAt"],
			"properties": {
				"scopeAlias": {"type": ["string", "null"]},
				"scopeId": {"type": ["string", "null"]},
				"updatedAt": {"type": "string", "format": "date-time"}
			}
		}
	}
}`

var (
	evaluateAllSchema = mustSchema(`{
		"type": "object",
		"required": ["flags"],
		"properties": {
			"flags": {"type": "array", "items": ` + flagEntrySchema + `}
		}
	}`)

	evaluateSchema = mustSchema(flagEntrySchema)
)

func mustSchema(source string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic("flare: invalid response schema: " + err.Error())
	}
	return schema
}

// validatePayload checks body against schema. Malformed JSON and schema
// violations both surface as a ParseError.
func validatePayload(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return domain.NewParseError("malformed response body", err)
	}
	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	return domain.NewParseError("unexpected response shape: "+strings.Join(messages, "; "), nil)
}
