package assetdb

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/rawbytedev/reflar"
)

var (
	archivesBucket = []byte("archives")
	guidsBucket    = []byte("guids")
)

// BoltDatabase keeps all assets in a single bbolt file. Bucket "archives"
// maps asset paths to container bytes and bucket "guids" maps GUIDs to
// asset paths.
type BoltDatabase struct {
	bdb *bbolt.DB
	log *slog.Logger
}

var _ Database = (*BoltDatabase)(nil)

func OpenBolt(path string, opts Options) (*BoltDatabase, error) {
	bdb, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", reflar.ErrIOFailure, err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{archivesBucket, guidsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("%w: %w", reflar.ErrIOFailure, err)
	}
	return &BoltDatabase{bdb: bdb, log: opts.logger()}, nil
}

// Bolt exposes the underlying database.
func (d *BoltDatabase) Bolt() *bbolt.DB { return d.bdb }

func (d *BoltDatabase) SaveArchive(a *reflar.Archive, p string) error {
	p, err := cleanAssetPath(p)
	if err != nil {
		return err
	}
	id, err := GUIDOf(a)
	if err != nil {
		return err
	}
	data, err := reflar.MarshalBundle(a)
	if err != nil {
		return err
	}
	err = d.bdb.Update(func(tx *bbolt.Tx) error {
		archives, guids := tx.Bucket(archivesBucket), tx.Bucket(guidsBucket)
		if other := guids.Get(id[:]); other != nil && string(other) != p {
			return fmt.Errorf("%w: %v is %s", ErrGUIDConflict, id, other)
		}
		if old := archives.Get([]byte(p)); old != nil {
			if info, err := Inspect(p, old); err == nil && info.GUID != id {
				if err := guids.Delete(info.GUID[:]); err != nil {
					return err
				}
			}
		}
		if err := archives.Put([]byte(p), data); err != nil {
			return err
		}
		return guids.Put(id[:], []byte(p))
	})
	if err != nil {
		return err
	}
	d.log.Debug("asset saved", "path", p, "guid", id, "bytes", len(data))
	return nil
}

func (d *BoltDatabase) LoadArchive(a *reflar.Archive, p string) error {
	p, err := cleanAssetPath(p)
	if err != nil {
		return err
	}
	var data []byte
	err = d.bdb.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(archivesBucket).Get([]byte(p))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		// Values are only valid inside the transaction.
		data = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return err
	}
	return reflar.ReadBundle(a, data)
}

func (d *BoltDatabase) PathOf(guid uuid.UUID) (string, error) {
	var p string
	err := d.bdb.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(guidsBucket).Get(guid[:])
		if v == nil {
			return fmt.Errorf("%w: %v", ErrNotFound, guid)
		}
		p = string(v)
		return nil
	})
	return p, err
}

func (d *BoltDatabase) ListAssets(dir string, recursive bool) ([]AssetInfo, error) {
	dir = cleanPath(dir)
	var prefix []byte
	if dir != "" {
		prefix = []byte(dir + "/")
	}
	var infos []AssetInfo
	err := d.bdb.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(archivesBucket).Cursor()
		k, v := c.First()
		if prefix != nil {
			k, v = c.Seek(prefix)
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			p := string(k)
			if !within(p, dir, recursive) {
				continue
			}
			info, err := Inspect(p, v)
			if err != nil {
				d.log.Warn("skipping unreadable asset", "path", p, "err", err)
				continue
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", reflar.ErrIOFailure, err)
	}
	return infos, nil
}

func (d *BoltDatabase) Close() error {
	return d.bdb.Close()
}
