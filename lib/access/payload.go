// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ParsePayload parses a role payload written as JSON with comments
// and trailing commas.
func ParsePayload(data []byte) (*RolePayload, error) {
	var payload RolePayload
	if err := json.Unmarshal(jsonc.ToJSON(data), &payload); err != nil {
		return nil, fmt.Errorf("parsing role payload: %w", err)
	}
	return &payload, nil
}

// LoadPayload reads a role payload file. Files ending in .yaml or .yml
// are parsed as YAML; everything else as JSONC.
func LoadPayload(path string) (*RolePayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var payload RolePayload
		if err := yaml.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%s: parsing role payload: %w", path, err)
		}
		return &payload, nil
	default:
		payload, err := ParsePayload(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return payload, nil
	}
}
