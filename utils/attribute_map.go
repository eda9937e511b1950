package utils

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// AttributeMap is a loosely typed set of configuration attributes, usually decoded from JSON.
type AttributeMap map[string]interface{}

// ReadAttributeMapFile loads a JSON object from path. A missing file is an error.
func ReadAttributeMapFile(path string) (AttributeMap, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read attributes from %q", path)
	}
	var attrs AttributeMap
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, errors.Wrapf(err, "failed to parse attributes in %q", path)
	}
	return attrs, nil
}
