// Copyright (C) 2025 The Redrock Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package store implements the JSON-file persistence layer backing the
// account, role and service-settings databases. Each named database is one
// pretty-printed JSON file below the writable data directory.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DB reads and writes named JSON database files in a single directory.
type DB struct {
	dir string
}

// Open ensures the data directory exists and returns a handle to it.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}

	return &DB{dir: dir}, nil
}

// Dir returns the underlying data directory.
func (db *DB) Dir() string {
	return db.dir
}

func (db *DB) path(name string) string {
	return filepath.Join(db.dir, name+".json")
}

// Load unmarshals the named database into v. The second return value is
// false when the file does not exist yet; the caller then seeds defaults.
func (db *DB) Load(name string, v any) (bool, error) {
	raw, err := os.ReadFile(db.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("reading database %s: %w", name, err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("parsing database %s: %w", name, err)
	}

	return true, nil
}

// Save writes the named database atomically: marshal, write to a temp file,
// rename over the target. Mutating operations call this synchronously before
// reporting success, so the durable copy never lags the in-memory one.
func (db *DB) Save(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding database %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(db.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for database %s: %w", name, err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("writing database %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("closing database %s: %w", name, err)
	}

	if err := os.Rename(tmpName, db.path(name)); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("replacing database %s: %w", name, err)
	}

	return nil
}
