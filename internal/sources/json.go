package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/yegors/co-notam/internal/notam"
)

// DecodeJSON reads raw records from a JSON array, or from an object that
// wraps the array under "notams", "items" or "data".
func DecodeJSON(r io.Reader) ([]RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read NOTAM JSON: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var records []RawRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", notam.ErrMalformedInput, err)
		}
		return records, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", notam.ErrMalformedInput, err)
	}
	for _, key := range []string{"notams", "items", "data"} {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		var records []RawRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", notam.ErrMalformedInput, key, err)
		}
		return records, nil
	}
	return nil, fmt.Errorf("%w: no NOTAM array in JSON object", notam.ErrMalformedInput)
}
