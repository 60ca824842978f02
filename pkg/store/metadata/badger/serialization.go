package badger

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/dittodav/pkg/store/metadata"
)

// encodeResource serializes a resource record to JSON.
func encodeResource(res *metadata.Resource) ([]byte, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource %s: %w", res.Path, err)
	}
	return data, nil
}

// decodeResource deserializes a resource record from JSON.
func decodeResource(data []byte) (*metadata.Resource, error) {
	var res metadata.Resource
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode resource: %w", err)
	}
	return &res, nil
}
