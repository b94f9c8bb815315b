package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const SchemaVersionV1 uint32 = 1

type Manifest struct {
	SchemaVersion uint32 `json:"schema_version"`
	Digest        string `json:"digest"`
}

func manifestPath(dir string) string {
	return filepath.Join(dir, "MANIFEST.json")
}

func readManifest(dir string) (*Manifest, error) {
	b, err := os.ReadFile(manifestPath(dir)) // #nosec G304 -- dir is derived from operator-controlled datadir.
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "manifest json")
	}
	return &m, nil
}

// writeManifestAtomic: write temp, fsync temp, rename, fsync dir.
func writeManifestAtomic(dir string, m *Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "manifest json")
	}
	b = append(b, '\n')

	final := manifestPath(dir)
	tmp := final + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304 -- tmp path is derived from operator-controlled datadir.
	if err != nil {
		return errors.Wrap(err, "manifest open tmp")
	}
	_, werr := f.Write(b)
	serr := f.Sync()
	cerr := f.Close()
	if werr != nil {
		return errors.Wrap(werr, "manifest write tmp")
	}
	if serr != nil {
		return errors.Wrap(serr, "manifest fsync tmp")
	}
	if cerr != nil {
		return errors.Wrap(cerr, "manifest close tmp")
	}
	if err := os.Rename(tmp, final); err != nil {
		return errors.Wrap(err, "manifest rename")
	}

	d, err := os.Open(dir) // #nosec G304 -- dir is derived from operator-controlled datadir.
	if err != nil {
		return errors.Wrap(err, "manifest fsync dir open")
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return errors.Wrap(err, "manifest fsync dir")
	}
	return errors.Wrap(d.Close(), "manifest fsync dir close")
}
