package datastore

import (
	"github.com/goccy/go-json"
)

// encodeJSON renders a value for a JSON column written through a map
// update. Nil maps and slices become SQL NULL.
func encodeJSON(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return nil, nil
		}
	case []string:
		if t == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
