package assetdb

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rawbytedev/reflar"
)

// DirDatabase keeps one container file per asset under a root directory.
// The GUID index is rebuilt from the files when the database is opened.
type DirDatabase struct {
	root string
	log  *slog.Logger

	mu    sync.RWMutex
	guids map[uuid.UUID]string
	paths map[string]uuid.UUID
}

var _ Database = (*DirDatabase)(nil)

func OpenDir(root string, opts Options) (*DirDatabase, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", reflar.ErrIOFailure, err)
	}
	d := &DirDatabase{
		root:  root,
		log:   opts.logger(),
		guids: make(map[uuid.UUID]string),
		paths: make(map[string]uuid.UUID),
	}
	infos, err := d.ListAssets("", true)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if other, ok := d.guids[info.GUID]; ok {
			return nil, fmt.Errorf("%w: %v in %s and %s", ErrGUIDConflict, info.GUID, other, info.Path)
		}
		d.guids[info.GUID] = info.Path
		d.paths[info.Path] = info.GUID
	}
	d.log.Debug("asset directory indexed", "root", root, "assets", len(infos))
	return d, nil
}

func (d *DirDatabase) file(p string) string {
	return filepath.Join(d.root, filepath.FromSlash(p)+Extension)
}

func (d *DirDatabase) SaveArchive(a *reflar.Archive, p string) error {
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

	d.mu.Lock()
	defer d.mu.Unlock()
	if other, ok := d.guids[id]; ok && other != p {
		return fmt.Errorf("%w: %v is %s", ErrGUIDConflict, id, other)
	}
	name := d.file(p)
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("%w: %w", reflar.ErrIOFailure, err)
	}
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", reflar.ErrIOFailure, err)
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", reflar.ErrIOFailure, err)
	}
	if old, ok := d.paths[p]; ok && old != id {
		delete(d.guids, old)
	}
	d.guids[id] = p
	d.paths[p] = id
	d.log.Debug("asset saved", "path", p, "guid", id, "bytes", len(data))
	return nil
}

func (d *DirDatabase) LoadArchive(a *reflar.Archive, p string) error {
	p, err := cleanAssetPath(p)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(d.file(p))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	} else if err != nil {
		return fmt.Errorf("%w: %w", reflar.ErrIOFailure, err)
	}
	return reflar.ReadBundle(a, data)
}

func (d *DirDatabase) PathOf(guid uuid.UUID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.guids[guid]
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrNotFound, guid)
	}
	return p, nil
}

// ListAssets reads every asset file below dir. Files that are not valid
// archives with a GUID are skipped.
func (d *DirDatabase) ListAssets(dir string, recursive bool) ([]AssetInfo, error) {
	dir = cleanPath(dir)
	base := filepath.Join(d.root, filepath.FromSlash(dir))
	var infos []AssetInfo
	err := filepath.WalkDir(base, func(name string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			if name != base && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, Extension) {
			return nil
		}
		rel, err := filepath.Rel(d.root, name)
		if err != nil {
			return err
		}
		p := strings.TrimSuffix(filepath.ToSlash(rel), Extension)
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		info, err := Inspect(p, data)
		if err != nil {
			d.log.Warn("skipping unreadable asset", "path", p, "err", err)
			return nil
		}
		infos = append(infos, info)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", reflar.ErrIOFailure, err)
	}
	slices.SortFunc(infos, func(x, y AssetInfo) int { return strings.Compare(x.Path, y.Path) })
	return infos, nil
}

func (d *DirDatabase) Close() error { return nil }
