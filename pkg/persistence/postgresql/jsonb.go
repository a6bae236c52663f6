package postgresql

import (
	"encoding/json"
	"fmt"
)

// marshalJSONB encodes a value for a JSONB column, mapping nil slices and
// maps to their empty JSON form so columns never hold SQL NULL.
func marshalJSONB(value any, empty string) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSONB value: %w", err)
	}

	if string(data) == "null" {
		return []byte(empty), nil
	}

	return data, nil
}

func unmarshalJSONB(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB value: %w", err)
	}

	return nil
}
