package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/docker/docker/api/types/container"
)

// CreateOptions is the creation-options view of a job manifest: the
// container name and an optional platform string. Field names are
// Pascal-cased to match Docker's own wire convention.
type CreateOptions struct {
	Name     string  `json:"Name"`
	Platform *string `json:"Platform,omitempty"`
}

// decodeManifest deserializes the filter's output value into both views
// required by the spec: creation options, and the engine-native
// container configuration. raw is re-marshaled to JSON and decoded
// twice because gojq yields native Go values (maps, slices, scalars),
// not JSON bytes.
func decodeManifest(raw any) (CreateOptions, *container.Config, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return CreateOptions{}, nil, fmt.Errorf("generated manifest is invalid: %w", err)
	}

	var options CreateOptions
	if err := json.Unmarshal(encoded, &options); err != nil {
		return CreateOptions{}, nil, fmt.Errorf("generated manifest is invalid: %w", err)
	}
	if options.Name == "" {
		return CreateOptions{}, nil, fmt.Errorf("generated manifest is invalid: missing Name")
	}

	var cfg container.Config
	if err := json.Unmarshal(encoded, &cfg); err != nil {
		return CreateOptions{}, nil, fmt.Errorf("generated manifest is invalid: %w", err)
	}

	return options, &cfg, nil
}
