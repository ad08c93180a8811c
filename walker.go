package reflar

import (
	"reflect"

	"github.com/rawbytedev/reflar/pkg/document"
	"github.com/rawbytedev/reflar/pkg/registry"
)

func fieldKey(t registry.Type, f registry.Field) string {
	return t.Name() + "::" + f.Name
}

// writeFields stores every enabled field of t, then recurses into each
// embedded base. v is the struct value described by t.
func (a *Archive) writeFields(n *document.Node, t registry.Type, v reflect.Value) error {
	for _, f := range t.Fields() {
		key := fieldKey(t, f)
		fv := v.FieldByIndex(f.Index)
		if err := a.saveValue(n.Entry(key), fv, fieldOpts{extra: f.Extra}); err != nil {
			return atPath(key, err)
		}
	}
	for _, b := range t.Bases() {
		if err := a.writeFields(n, b.Type, v.FieldByIndex(b.Index)); err != nil {
			return err
		}
	}
	return nil
}

// readFields is the load counterpart of writeFields. Fields missing from n
// are an error unless they are tagged optional, in which case they keep
// their current value.
func (a *Archive) readFields(n *document.Node, t registry.Type, v reflect.Value) error {
	for _, f := range t.Fields() {
		key := fieldKey(t, f)
		child, ok := n.Get(key)
		if !ok {
			if f.Optional {
				continue
			}
			return atPath(key, malformedf("missing field"))
		}
		fv := v.FieldByIndex(f.Index)
		if err := a.loadValue(child, fv, fieldOpts{extra: f.Extra}); err != nil {
			return atPath(key, err)
		}
	}
	for _, b := range t.Bases() {
		if err := a.readFields(n, b.Type, v.FieldByIndex(b.Index)); err != nil {
			return err
		}
	}
	return nil
}
