// Package filestore persists the material list as a flat JSON file. It backs
// the local-cache Store contract: Save overwrites the whole list, Load
// returns an empty list when the file is absent or corrupt.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/GanpatGang/GanpatStudy/core/material"
)

type jsonStore struct {
	path string
}

var _ material.Store = (*jsonStore)(nil)

func NewJSONStore(path string) material.Store {
	return &jsonStore{path: path}
}

func (s *jsonStore) Load() ([]material.Material, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []material.Material{}, nil
		}
		return nil, errors.Wrap(err, "reading store file")
	}

	var records []material.Material
	if err = json.Unmarshal(data, &records); err != nil {
		// corrupt cache; start over rather than failing the caller
		return []material.Material{}, nil
	}
	if records == nil {
		records = []material.Material{}
	}
	return records, nil
}

func (s *jsonStore) Save(records []material.Material) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "creating store directory")
	}
	data, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "encoding records")
	}
	if err = os.WriteFile(s.path, data, 0o644); err != nil {
		return errors.Wrap(err, "writing store file")
	}
	return nil
}
