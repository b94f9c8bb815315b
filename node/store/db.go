// Package store persists backchain transactions in bbolt. A transaction is
// written to tx_unverified as soon as it is downloaded and moved to
// tx_verified in a single bbolt transaction once it has been checked.
package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"zkledger.dev/node/ledger"
)

var (
	bucketUnverified = []byte("tx_unverified")
	bucketVerified   = []byte("tx_verified")
)

var ErrNotFound = errors.New("store: transaction not found")

type DB struct {
	dir      string
	db       *bolt.DB
	manifest *Manifest
}

// Open opens or creates the store under datadir. digest is recorded in the
// manifest on first open; reopening with another digest fails because
// transaction ids would not match.
func Open(datadir string, digest string) (*DB, error) {
	if datadir == "" {
		return nil, errors.New("datadir required")
	}
	if digest == "" {
		return nil, errors.New("digest required")
	}
	dir := StoreDir(datadir)
	if err := ensureDir(filepath.Join(dir, "db")); err != nil {
		return nil, err
	}

	m, err := readManifest(dir)
	switch {
	case os.IsNotExist(errors.Cause(err)):
		m = &Manifest{SchemaVersion: SchemaVersionV1, Digest: digest}
		if err := writeManifestAtomic(dir, m); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, errors.Wrap(err, "read manifest")
	case m.SchemaVersion > SchemaVersionV1:
		return nil, errors.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	case m.Digest != digest:
		return nil, errors.Errorf("store was created with digest %q, not %q", m.Digest, digest)
	}

	bdb, err := bolt.Open(filepath.Join(dir, "db", "kv.db"), 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open bbolt")
	}
	if err := bdb.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketUnverified, bucketVerified} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return errors.Wrapf(err, "create bucket %s", string(b))
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return &DB{dir: dir, db: bdb, manifest: m}, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Dir() string { return d.dir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

func (d *DB) PutUnverified(wtx *ledger.WireTransaction) error {
	b, err := wtx.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode transaction")
	}
	id := wtx.ID()
	return d.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketVerified).Get(id[:]) != nil {
			return nil
		}
		return tx.Bucket(bucketUnverified).Put(id[:], b)
	})
}

func (d *DB) GetUnverified(id ledger.SecureHash) (*ledger.WireTransaction, bool, error) {
	return d.get(bucketUnverified, id)
}

func (d *DB) GetVerified(id ledger.SecureHash) (*ledger.WireTransaction, bool, error) {
	return d.get(bucketVerified, id)
}

func (d *DB) IsVerified(id ledger.SecureHash) (bool, error) {
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(bucketVerified).Get(id[:]) != nil
		return nil
	})
	return ok, err
}

// PutVerified records a transaction checked outside the resolver, such as
// one issued locally.
func (d *DB) PutVerified(wtx *ledger.WireTransaction) error {
	b, err := wtx.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode transaction")
	}
	id := wtx.ID()
	return d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketUnverified).Delete(id[:]); err != nil {
			return err
		}
		return tx.Bucket(bucketVerified).Put(id[:], b)
	})
}

// MarkVerified moves id from tx_unverified to tx_verified. The move is
// durable when it returns.
func (d *DB) MarkVerified(id ledger.SecureHash) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		un := tx.Bucket(bucketUnverified)
		v := un.Get(id[:])
		if v == nil {
			if tx.Bucket(bucketVerified).Get(id[:]) != nil {
				return nil
			}
			return errors.Wrap(ErrNotFound, id.String())
		}
		if err := tx.Bucket(bucketVerified).Put(id[:], append([]byte(nil), v...)); err != nil {
			return err
		}
		return un.Delete(id[:])
	})
}

// ListUnverified returns the ids waiting for verification in key order.
func (d *DB) ListUnverified() ([]ledger.SecureHash, error) {
	var out []ledger.SecureHash
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUnverified).ForEach(func(k, _ []byte) error {
			if len(k) != len(ledger.SecureHash{}) {
				return errors.Errorf("bad key length %d", len(k))
			}
			var id ledger.SecureHash
			copy(id[:], k)
			out = append(out, id)
			return nil
		})
	})
	return out, err
}

func (d *DB) get(bucket []byte, id ledger.SecureHash) (*ledger.WireTransaction, bool, error) {
	var raw []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(id[:])
		if v == nil {
			return nil
		}
		raw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	wtx, err := ledger.UnmarshalWireTransaction(raw)
	if err != nil {
		return nil, false, errors.Wrapf(err, "decode %s", id)
	}
	if wtx.ID() != id {
		return nil, false, errors.Errorf("stored transaction %s hashes to %s", id, wtx.ID())
	}
	return wtx, true, nil
}
