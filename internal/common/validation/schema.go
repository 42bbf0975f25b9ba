// Package validation wraps JSON-schema checks applied to reasoning-service
// output. The service response is untrusted input; anything that fails its
// schema is rejected before it reaches the typed models.
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateJSON validates a raw JSON document against a schema given as a Go
// map. Returns the collected violation descriptions on failure.
func ValidateJSON(document []byte, schemaMap map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	documentLoader := gojsonschema.NewBytesLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("schema validation failed: %v", errs)
	}

	return nil
}
