package memory

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// schemaVersion guards the on-disk layout so it can be migrated later.
const schemaVersion = 1

type envelope struct {
	SchemaVersion int     `json:"schemaVersion"`
	Entries       []Entry `json:"entries"`
}

// FileStore persists long-term memory as a JSON envelope on disk.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Persist writes all entries atomically (write to temp file, then rename).
func (f *FileStore) Persist(entries []Entry) error {
	data, err := json.Marshal(envelope{SchemaVersion: schemaVersion, Entries: entries})
	if err != nil {
		return eris.Wrap(err, "marshal memory envelope")
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "create memory directory")
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "write memory file")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return eris.Wrap(err, "replace memory file")
	}
	return nil
}

// Load reads the envelope back. A missing file is not an error; an
// unrecognized schema version loads as empty so the engine can start clean.
func (f *FileStore) Load() ([]Entry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "read memory file")
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, eris.Wrap(err, "decode memory envelope")
	}
	if env.SchemaVersion != schemaVersion {
		return nil, nil
	}
	return env.Entries, nil
}
