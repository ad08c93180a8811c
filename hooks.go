package reflar

import (
	"encoding"
	"reflect"

	"github.com/rawbytedev/reflar/pkg/document"
)

// Saver is implemented by types that write their own document shape. The
// archive passed in is positioned at the value's node.
type Saver interface {
	SaveArchive(a *Archive) error
}

// Loader reads what the matching Saver wrote. Both must be implemented on
// the pointer type for either to be used.
type Loader interface {
	LoadArchive(a *Archive) error
}

func (a *Archive) saveCustom(n *document.Node, v reflect.Value) error {
	v = addressable(v)
	return v.Addr().Interface().(Saver).SaveArchive(a.Scoped(n))
}

func (a *Archive) loadCustom(n *document.Node, v reflect.Value) error {
	return v.Addr().Interface().(Loader).LoadArchive(a.Scoped(n))
}

func saveText(n *document.Node, v reflect.Value) error {
	v = addressable(v)
	b, err := v.Addr().Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return err
	}
	n.SetString(string(b))
	return nil
}

func loadText(n *document.Node, v reflect.Value) error {
	s, err := n.Str()
	if err != nil {
		return malformed(err)
	}
	if err := v.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
		return malformed(err)
	}
	return nil
}
