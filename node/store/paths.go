package store

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// StoreDir returns the on-disk directory of the transaction store:
//
//	datadir/ledger/
func StoreDir(datadir string) string {
	return filepath.Join(datadir, "ledger")
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return errors.Wrapf(err, "mkdir %s", path)
	}
	return nil
}
