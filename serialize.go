package reflar

import (
	"fmt"
	"os"
	"reflect"

	"github.com/rawbytedev/reflar/pkg/container"
)

// Serialize starts a save session on a and writes the graph reachable from
// v. v is usually a pointer; other values are copied first.
func Serialize(v any, a *Archive) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return fmt.Errorf("%w: got nil", ErrNotPointer)
	}
	if rv.Kind() != reflect.Pointer {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		rv = p
	} else if rv.IsNil() {
		return fmt.Errorf("%w: got nil %v", ErrNotPointer, rv.Type())
	}
	if p := planFor(rv.Type()); p.kind != codecPointer {
		return unsupportedf("%v: %s", rv.Type(), p.reason)
	}
	if err := a.PrepareSave(); err != nil {
		return err
	}
	c := a.ctx
	id := c.identify(rv)
	c.root.Entry(KeyMainID).SetUint(id)
	c.written[id] = true
	key := bodyKey(id)
	if err := a.saveBody(c.data.Entry(key), rv.Elem()); err != nil {
		return atPath(KeyData, atPath(key, err))
	}
	c.log.Debug("serialized", "type", rv.Type().Elem(), "objects", c.nextID, "extra", c.extra.Len())
	return nil
}

// Deserialize starts a load session on a and reads the main object into the
// value ptr points to. When ptr points to an interface the object is built
// from the type name recorded in the document.
func Deserialize(ptr any, a *Archive) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: got %T", ErrNotPointer, ptr)
	}
	if err := a.PrepareLoad(); err != nil {
		return err
	}
	c := a.ctx
	id := c.mainID
	elem := rv.Elem()

	switch planFor(rv.Type()).kind {
	case codecPointer:
		t, err := a.typeOf(elem.Type())
		if err != nil {
			return err
		}
		name, named, err := typeName(a.cur)
		if err != nil {
			return err
		}
		if named && name != t.Name() {
			return malformedf("document holds a %q, not a %s", name, t.Name())
		}
		c.objects[id] = rv
		if err := a.loadBody(a.cur, elem, t); err != nil {
			return atPath(KeyData, atPath(bodyKey(id), err))
		}
	case codecUnsupported:
		if elem.Kind() != reflect.Interface {
			return unsupportedf("%v", rv.Type())
		}
		obj, err := a.resolve(id, nil, ownerShared)
		if err != nil {
			return err
		}
		if !obj.Type().AssignableTo(elem.Type()) {
			return malformedf("%v does not implement %v", obj.Type(), elem.Type())
		}
		elem.Set(obj)
	default:
		return unsupportedf("%v", rv.Type())
	}
	return a.finishLoad()
}

// SaveArchive returns the encoded document and the extra buffer of a.
func SaveArchive(a *Archive) (doc, extra []byte, err error) {
	return a.Encode()
}

// LoadArchive builds an archive from an encoded document and its extra
// buffer, ready for Deserialize.
func LoadArchive(doc, extra []byte, opts Options) (*Archive, error) {
	a := NewArchive(opts)
	if err := a.Decode(doc, extra); err != nil {
		return nil, err
	}
	return a, nil
}

// MarshalBundle frames a's document and extra buffer in the container
// format, compressed when the archive options ask for it.
func MarshalBundle(a *Archive) ([]byte, error) {
	doc, extra, err := a.Encode()
	if err != nil {
		return nil, err
	}
	var flags container.Flags
	if a.ctx.opts.Compress {
		flags |= container.FlagZstd
	}
	b := &container.Bundle{Format: a.ctx.opts.Format, Doc: doc, Extra: extra}
	return b.Encode(flags)
}

// UnmarshalBundle is the inverse of MarshalBundle. The document format and
// compression recorded in data override opts.
func UnmarshalBundle(data []byte, opts Options) (*Archive, error) {
	a := NewArchive(opts)
	if err := ReadBundle(a, data); err != nil {
		return nil, err
	}
	return a, nil
}

// ReadBundle replaces the document of a with the one framed in data and
// adopts its format and compression.
func ReadBundle(a *Archive, data []byte) error {
	var b container.Bundle
	flags, err := b.Decode(data)
	if err != nil {
		return malformed(err)
	}
	a.ctx.opts.Format = b.Format
	a.ctx.opts.Compress = flags&container.FlagZstd != 0
	return a.Decode(b.Doc, b.Extra)
}

func SaveToFile(a *Archive, path string) error {
	data, err := MarshalBundle(a)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	a.ctx.log.Debug("archive written", "path", path, "bytes", len(data))
	return nil
}

func LoadFromFile(path string, opts Options) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return UnmarshalBundle(data, opts)
}
