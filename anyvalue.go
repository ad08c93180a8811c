package reflar

import (
	"fmt"
	"reflect"

	"github.com/rawbytedev/reflar/pkg/document"
	"github.com/rawbytedev/reflar/pkg/registry"
)

// saveInterface writes the dynamic value of an interface. Pointers go
// through the identity table and their body records the dynamic type; any
// other value is written as {%type, data}.
func (a *Archive) saveInterface(n *document.Node, v reflect.Value) error {
	if v.IsNil() {
		n.SetNull()
		return nil
	}
	e := v.Elem()
	if e.Kind() == reflect.Pointer {
		if planFor(e.Type()).kind != codecPointer {
			return unsupportedf("%v inside %v", e.Type(), v.Type())
		}
		if e.IsNil() {
			n.SetNull()
			return nil
		}
		if _, err := dynamicType(a.ctx.opts.Registry, e); err != nil {
			return err
		}
		return a.savePointer(n, e, ownerShared)
	}
	t, err := dynamicType(a.ctx.opts.Registry, e)
	if err != nil {
		return err
	}
	n.SetMapping()
	n.Entry(KeyType).SetString(t.Name())
	return atPath(KeyValue, a.saveValue(n.Entry(KeyValue), e, fieldOpts{}))
}

// dynamicType resolves the registered type of a value found behind an
// interface. Such types must be registered explicitly so that a reader can
// resolve the name; Ensure is never consulted here.
func dynamicType(r registry.Registry, v reflect.Value) (registry.Type, error) {
	t, err := registry.DynamicTypeOf(r, v)
	if err != nil {
		return nil, fmt.Errorf("%w: dynamic type: %w", ErrUnsupportedFieldType, err)
	}
	return t, nil
}

func (a *Archive) loadInterface(n *document.Node, v reflect.Value) error {
	if n.IsNull() {
		v.SetZero()
		return nil
	}
	if n.Kind() != document.Mapping {
		return malformedf("want mapping for %v, have %v", v.Type(), n.Kind())
	}
	if _, ok := n.Get(KeyRef); ok {
		id, err := refID(n)
		if err != nil {
			return err
		}
		obj, err := a.resolve(id, nil, ownerShared)
		if err != nil {
			return err
		}
		if !obj.Type().AssignableTo(v.Type()) {
			return malformedf("%v does not implement %v", obj.Type(), v.Type())
		}
		v.Set(obj)
		return nil
	}

	name, named, err := typeName(n)
	if err != nil {
		return err
	}
	if !named {
		return malformedf("type-erased value without %s", KeyType)
	}
	t, err := a.lookupType(name)
	if err != nil {
		return err
	}
	if !t.Reflect().AssignableTo(v.Type()) {
		return malformedf("%s does not implement %v", name, v.Type())
	}
	dn, err := n.Lookup(KeyValue)
	if err != nil {
		return malformed(err)
	}
	e := reflect.New(t.Reflect()).Elem()
	mark := len(a.ctx.patches)
	if err := a.loadValue(dn, e, fieldOpts{}); err != nil {
		return atPath(KeyValue, err)
	}
	v.Set(e)
	a.keepAfterPatches(mark, func() { v.Set(e) })
	return nil
}
