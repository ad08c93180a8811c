package reflar

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/rawbytedev/reflar/pkg/document"
)

func index(i int) string { return "[" + strconv.Itoa(i) + "]" }

// saveSequence writes a slice. A nil slice is null so it stays distinct from
// an empty one.
func (a *Archive) saveSequence(n *document.Node, v reflect.Value) error {
	if v.IsNil() {
		n.SetNull()
		return nil
	}
	return a.saveElems(n, v)
}

func (a *Archive) saveArray(n *document.Node, v reflect.Value) error {
	return a.saveElems(n, v)
}

func (a *Archive) saveElems(n *document.Node, v reflect.Value) error {
	n.SetSequence()
	for i := 0; i < v.Len(); i++ {
		if err := a.saveValue(n.Append(), v.Index(i), fieldOpts{}); err != nil {
			return atPath(index(i), err)
		}
	}
	return nil
}

func (a *Archive) loadSequence(n *document.Node, v reflect.Value) error {
	if n.IsNull() {
		v.SetZero()
		return nil
	}
	if n.Kind() != document.Sequence {
		return malformedf("want sequence, have %v", n.Kind())
	}
	s := reflect.MakeSlice(v.Type(), n.Len(), n.Len())
	if err := a.loadElems(n, s); err != nil {
		return err
	}
	v.Set(s)
	return nil
}

// loadArray fills v in place. The sequence length must equal the array
// length.
func (a *Archive) loadArray(n *document.Node, v reflect.Value) error {
	if n.Kind() != document.Sequence {
		return malformedf("want sequence, have %v", n.Kind())
	}
	if n.Len() != v.Len() {
		return malformedf("array of %d elements holds %d", v.Len(), n.Len())
	}
	return a.loadElems(n, v)
}

func (a *Archive) loadElems(n *document.Node, v reflect.Value) error {
	for i, it := range n.Items() {
		if err := a.loadValue(it, v.Index(i), fieldOpts{}); err != nil {
			return atPath(index(i), err)
		}
	}
	return nil
}

// saveBytes stores byte slices in the extra buffer.
func (a *Archive) saveBytes(n *document.Node, v reflect.Value) error {
	if v.IsNil() {
		n.SetNull()
		return nil
	}
	a.WriteBlob(n, v.Bytes())
	return nil
}

func (a *Archive) loadBytes(n *document.Node, v reflect.Value) error {
	if n.IsNull() {
		v.SetZero()
		return nil
	}
	b, err := a.ReadBlob(n)
	if err != nil {
		return err
	}
	s := reflect.MakeSlice(v.Type(), len(b), len(b))
	reflect.Copy(s, reflect.ValueOf(b))
	v.Set(s)
	return nil
}

// saveMap writes maps with string keys as a mapping and every other key type
// as a sequence of key/value pairs. Keys are sorted so output is stable.
func (a *Archive) saveMap(n *document.Node, v reflect.Value) error {
	if v.IsNil() {
		n.SetNull()
		return nil
	}
	keys := v.MapKeys()
	slices.SortFunc(keys, compareKeys)
	if v.Type().Key().Kind() == reflect.String {
		n.SetMapping()
		for _, k := range keys {
			if err := a.saveValue(n.Entry(k.String()), v.MapIndex(k), fieldOpts{}); err != nil {
				return atPath(k.String(), err)
			}
		}
		return nil
	}
	n.SetSequence()
	for i, k := range keys {
		pair := n.Append()
		pair.SetMapping()
		if err := a.saveValue(pair.Entry("key"), k, fieldOpts{}); err != nil {
			return atPath(index(i), atPath("key", err))
		}
		if err := a.saveValue(pair.Entry("value"), v.MapIndex(k), fieldOpts{}); err != nil {
			return atPath(index(i), atPath("value", err))
		}
	}
	return nil
}

func (a *Archive) loadMap(n *document.Node, v reflect.Value) error {
	if n.IsNull() {
		v.SetZero()
		return nil
	}
	mt := v.Type()
	m := reflect.MakeMapWithSize(mt, n.Len())
	switch {
	case mt.Key().Kind() == reflect.String && n.Kind() == document.Mapping:
		for i, key := range n.Keys() {
			k := reflect.New(mt.Key()).Elem()
			k.SetString(key)
			if err := a.loadMapEntry(m, k, n.At(i)); err != nil {
				return atPath(key, err)
			}
		}
	case mt.Key().Kind() != reflect.String && n.Kind() == document.Sequence:
		for i, pair := range n.Items() {
			kn, err := pair.Lookup("key")
			if err != nil {
				return atPath(index(i), malformed(err))
			}
			vn, err := pair.Lookup("value")
			if err != nil {
				return atPath(index(i), malformed(err))
			}
			k := reflect.New(mt.Key()).Elem()
			if err := a.loadValue(kn, k, fieldOpts{}); err != nil {
				return atPath(index(i), atPath("key", err))
			}
			if err := a.loadMapEntry(m, k, vn); err != nil {
				return atPath(index(i), atPath("value", err))
			}
		}
	default:
		return malformedf("%v cannot be read from a %v", mt, n.Kind())
	}
	v.Set(m)
	return nil
}

// loadMapEntry loads a value outside the map and stores it. Patches queued
// while loading land in the copy, so it is stored again once they ran.
func (a *Archive) loadMapEntry(m, k reflect.Value, n *document.Node) error {
	e := reflect.New(m.Type().Elem()).Elem()
	mark := len(a.ctx.patches)
	if err := a.loadValue(n, e, fieldOpts{}); err != nil {
		return err
	}
	m.SetMapIndex(k, e)
	a.keepAfterPatches(mark, func() { m.SetMapIndex(k, e) })
	return nil
}

func compareKeys(x, y reflect.Value) int {
	switch x.Kind() {
	case reflect.String:
		return cmp.Compare(x.String(), y.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(x.Int(), y.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(x.Uint(), y.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(x.Float(), y.Float())
	case reflect.Bool:
		switch {
		case x.Bool() == y.Bool():
			return 0
		case !x.Bool():
			return -1
		}
		return 1
	}
	return cmp.Compare(fmt.Sprint(x.Interface()), fmt.Sprint(y.Interface()))
}
