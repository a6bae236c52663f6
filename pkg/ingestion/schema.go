package ingestion

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Payload schemas per topic family. They pin down only what the normalizer
// actually reads; upstream platforms add fields freely.
const baseEntitySchema = `{
	"type": "object",
	"required": ["id"],
	"properties": {
		"id": {"type": ["string", "integer"]}
	}
}`

const customerSchema = `{
	"type": "object",
	"required": ["id", "email"],
	"properties": {
		"id": {"type": ["string", "integer"]},
		"email": {"type": "string", "minLength": 3}
	}
}`

var topicFamilySchemas = map[string]*gojsonschema.Schema{}

func init() {
	for family, raw := range map[string]string{
		"customers": customerSchema,
		"contacts":  customerSchema,
	} {
		topicFamilySchemas[family] = mustCompileSchema(raw)
	}

	defaultSchema = mustCompileSchema(baseEntitySchema)
}

var defaultSchema *gojsonschema.Schema

func mustCompileSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(err)
	}

	return schema
}

// validatePayload checks the raw payload against the topic family's schema.
func validatePayload(topic string, raw []byte) error {
	family, _, _ := strings.Cut(topic, "/")

	schema, ok := topicFamilySchemas[family]
	if !ok {
		schema = defaultSchema
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}

		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(details, "; "))
	}

	return nil
}
