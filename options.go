package reflar

import (
	"io"
	"log/slog"

	"github.com/rawbytedev/reflar/pkg/document"
	"github.com/rawbytedev/reflar/pkg/registry"
)

// Options configures an Archive. The zero value is usable.
type Options struct {
	// Registry resolves type names. registry.Default when nil.
	Registry registry.Registry
	// Format is used by Encode, Decode and the file helpers.
	Format document.Format
	// Compress enables zstd compression of archive files.
	Compress bool
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Registry == nil {
		o.Registry = registry.Default
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
