package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cancer-risk-screening/internal/domain"
)

// readPatients reads one profile or a list of profiles from path, or from stdin when path is "-".
func readPatients(path string, stdin io.Reader) ([]domain.PatientProfile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read patient file %s: %w", path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("patient file %s is empty", path)
	}

	patients, err := decodePatients(data, isJSON(path, data))
	if err != nil {
		return nil, fmt.Errorf("patient file %s: %w", path, err)
	}
	return patients, nil
}

func isJSON(path string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return true
	case ".yaml", ".yml":
		return false
	}
	return data[0] == '{' || data[0] == '['
}

func decodePatients(data []byte, asJSON bool) ([]domain.PatientProfile, error) {
	list := data[0] == '['
	if !asJSON {
		var probe any
		if err := yaml.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
		_, list = probe.([]any)
	}

	if list {
		var patients []domain.PatientProfile
		if err := unmarshal(data, &patients, asJSON); err != nil {
			return nil, err
		}
		return patients, nil
	}

	var patient domain.PatientProfile
	if err := unmarshal(data, &patient, asJSON); err != nil {
		return nil, err
	}
	return []domain.PatientProfile{patient}, nil
}

func unmarshal(data []byte, v any, asJSON bool) error {
	if asJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode YAML: %w", err)
	}
	return nil
}
