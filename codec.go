package reflar

import (
	"reflect"

	"github.com/rawbytedev/reflar/pkg/document"
)

// fieldOpts carries the per-field options that change how a value is coded.
type fieldOpts struct {
	extra bool
}

// saveValue writes v into n using the codec chosen for v's type.
func (a *Archive) saveValue(n *document.Node, v reflect.Value, o fieldOpts) error {
	p := planFor(v.Type())
	if o.extra && !p.packable() {
		return unsupportedf("%v cannot be stored as extra data", v.Type())
	}
	switch p.kind {
	case codecScalar:
		saveScalar(n, v, p)
		return nil
	case codecText:
		return saveText(n, v)
	case codecBytes:
		return a.saveBytes(n, v)
	case codecSequence:
		if o.extra {
			return a.savePacked(n, v)
		}
		return a.saveSequence(n, v)
	case codecArray:
		return a.saveArray(n, v)
	case codecMap:
		return a.saveMap(n, v)
	case codecPointer:
		return a.savePointer(n, v, ownerShared)
	case codecUnique:
		return a.savePointer(n, v.Interface().(uniqueRef).uniqueTarget(), ownerUnique)
	case codecWeak:
		return a.saveWeak(n, v)
	case codecInterface:
		return a.saveInterface(n, v)
	case codecStruct:
		t, err := a.typeOf(v.Type())
		if err != nil {
			return err
		}
		n.SetMapping()
		return a.writeFields(n, t, v)
	case codecCustom:
		return a.saveCustom(n, v)
	}
	return unsupportedf("%v: %s", v.Type(), p.reason)
}

// loadValue reads n into v, which must be settable.
func (a *Archive) loadValue(n *document.Node, v reflect.Value, o fieldOpts) error {
	p := planFor(v.Type())
	if o.extra && !p.packable() {
		return unsupportedf("%v cannot be stored as extra data", v.Type())
	}
	switch p.kind {
	case codecScalar:
		return loadScalar(n, v, p)
	case codecText:
		return loadText(n, v)
	case codecBytes:
		return a.loadBytes(n, v)
	case codecSequence:
		if o.extra {
			return a.loadPacked(n, v)
		}
		return a.loadSequence(n, v)
	case codecArray:
		return a.loadArray(n, v)
	case codecMap:
		return a.loadMap(n, v)
	case codecPointer:
		return a.loadPointer(n, v, ownerShared)
	case codecUnique:
		return a.loadUnique(n, v)
	case codecWeak:
		return a.loadWeak(n, v)
	case codecInterface:
		return a.loadInterface(n, v)
	case codecStruct:
		t, err := a.typeOf(v.Type())
		if err != nil {
			return err
		}
		if n.Kind() != document.Mapping {
			return malformedf("want mapping for %s, have %v", t.Name(), n.Kind())
		}
		return a.readFields(n, t, v)
	case codecCustom:
		return a.loadCustom(n, v)
	}
	return unsupportedf("%v: %s", v.Type(), p.reason)
}

// addressable returns v itself when it can be addressed, otherwise a
// pointer-backed copy. Savers only read the copy.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}
