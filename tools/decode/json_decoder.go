package decode

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// JSON decodes a raw JSON payload into an arbitrary struct T.
// T is typically a per-frame business payload, e.g. JoinData / SignalData.
// Struct fields are read via their `json` tags.
func JSON[T any](raw json.RawMessage) (*T, error) {
	var out T
	if len(raw) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}
	return &out, nil
}
