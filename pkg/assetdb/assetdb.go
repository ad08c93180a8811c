// Package assetdb stores archives by asset path and indexes them by the GUID
// of their main object.
package assetdb

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"reflect"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/rawbytedev/reflar"
	"github.com/rawbytedev/reflar/pkg/registry"
)

// Extension is appended to asset paths by DirDatabase.
const Extension = ".rfa"

// GUIDKey is the field key of Asset.GUID inside the main object's body.
const GUIDKey = "Asset::GUID"

var (
	ErrNoGUID       = errors.New("assetdb: main object has no GUID")
	ErrGUIDConflict = errors.New("assetdb: GUID already belongs to another path")
	ErrNotFound     = errors.New("assetdb: asset not found")
	ErrBadPath      = errors.New("assetdb: invalid asset path")
)

// Asset is embedded by every type that is stored as a top-level asset.
type Asset struct {
	GUID uuid.UUID
}

func NewAsset() Asset { return Asset{GUID: uuid.New()} }

// Register adds Asset to r under the name its field keys are derived from.
// It must run before types embedding Asset are registered.
func Register(r *registry.Types) error {
	_, err := r.Register(reflect.TypeFor[Asset](), registry.WithName("Asset"))
	return err
}

func init() {
	if err := Register(registry.Default); err != nil {
		panic(err)
	}
}

// AssetInfo describes a stored archive without loading its objects.
type AssetInfo struct {
	Path     string
	GUID     uuid.UUID
	TypeName string
	// Checksum is the xxhash64 of the stored container bytes.
	Checksum uint64
}

// Database maps asset paths to archives.
type Database interface {
	SaveArchive(a *reflar.Archive, path string) error
	LoadArchive(a *reflar.Archive, path string) error
	PathOf(guid uuid.UUID) (string, error)
	ListAssets(dir string, recursive bool) ([]AssetInfo, error)
	Close() error
}

type Options struct {
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// GUIDOf returns the GUID recorded for the main object of a.
func GUIDOf(a *reflar.Archive) (uuid.UUID, error) {
	n, err := a.MainProperty(GUIDKey)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrNoGUID, err)
	}
	s, err := n.Str()
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrNoGUID, err)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrNoGUID, err)
	}
	if id == uuid.Nil {
		return uuid.Nil, ErrNoGUID
	}
	return id, nil
}

// Inspect decodes a stored container far enough to describe it.
func Inspect(p string, data []byte) (AssetInfo, error) {
	a, err := reflar.UnmarshalBundle(data, reflar.Options{})
	if err != nil {
		return AssetInfo{}, err
	}
	id, err := GUIDOf(a)
	if err != nil {
		return AssetInfo{}, err
	}
	name, err := a.MainType()
	if err != nil {
		return AssetInfo{}, err
	}
	return AssetInfo{Path: p, GUID: id, TypeName: name, Checksum: xxhash.Sum64(data)}, nil
}

// cleanPath turns an asset path into its canonical slash separated form
// without a leading slash. The root directory is "".
func cleanPath(p string) string {
	c := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	return strings.TrimSuffix(c, Extension)
}

func cleanAssetPath(p string) (string, error) {
	c := cleanPath(p)
	if c == "" {
		return "", fmt.Errorf("%w: %q", ErrBadPath, p)
	}
	return c, nil
}

// within reports whether asset p lies in dir, directly unless recursive.
func within(p, dir string, recursive bool) bool {
	rel := p
	if dir != "" {
		if !strings.HasPrefix(p, dir+"/") {
			return false
		}
		rel = p[len(dir)+1:]
	}
	return recursive || !strings.Contains(rel, "/")
}
