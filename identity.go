package reflar

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/rawbytedev/reflar/pkg/document"
	"github.com/rawbytedev/reflar/pkg/registry"
)

type ownership uint8

const (
	ownerShared ownership = iota
	ownerUnique
	ownerWeak
)

// identify returns the id of the object p points to, allocating the next id
// on first sight. The pointee type is part of the identity because a struct
// and its first field share an address.
func (c *globalContext) identify(p reflect.Value) uint64 {
	key := identity{addr: p.UnsafePointer(), typ: p.Type().Elem()}
	if id, ok := c.ids[key]; ok {
		return id
	}
	id := c.nextID
	c.nextID++
	c.ids[key] = id
	c.log.Debug("assigned id", "id", id, "type", key.typ)
	return id
}

func bodyKey(id uint64) string { return strconv.FormatUint(id, 10) }

// savePointer writes a reference to the object p points to. Owners write the
// object's body the first time its id is seen; weak references never do.
func (a *Archive) savePointer(n *document.Node, p reflect.Value, mode ownership) error {
	if p.IsNil() {
		n.SetNull()
		return nil
	}
	c := a.ctx
	if c.ids == nil {
		return errNoSession
	}
	id := c.identify(p)
	n.SetMapping()
	n.Entry(KeyRef).SetUint(id)
	if mode == ownerWeak || c.written[id] {
		return nil
	}
	// Marked before recursing so that cycles back to p emit a reference.
	c.written[id] = true
	key := bodyKey(id)
	body := c.data.Entry(key)
	if err := a.saveBody(body, p.Elem()); err != nil {
		return atPath(KeyData, atPath(key, err))
	}
	return nil
}

func (a *Archive) saveBody(body *document.Node, v reflect.Value) error {
	t, err := a.typeOf(v.Type())
	if err != nil {
		return err
	}
	body.SetMapping()
	body.Entry(KeyType).SetString(t.Name())
	if planFor(v.Type()).kind == codecStruct {
		return a.writeFields(body, t, v)
	}
	return atPath(KeyValue, a.saveValue(body.Entry(KeyValue), v, fieldOpts{}))
}

func (a *Archive) saveWeak(n *document.Node, v reflect.Value) error {
	return a.savePointer(n, v.Interface().(weakRef).weakTarget(), ownerWeak)
}

func refID(n *document.Node) (uint64, error) {
	if n.Kind() != document.Mapping {
		return 0, malformedf("want reference, have %v", n.Kind())
	}
	r, err := n.Lookup(KeyRef)
	if err != nil {
		return 0, malformed(err)
	}
	id, err := r.Uint(64)
	if err != nil {
		return 0, malformed(err)
	}
	return id, nil
}

func (a *Archive) loadPointer(n *document.Node, v reflect.Value, mode ownership) error {
	if n.IsNull() {
		v.SetZero()
		return nil
	}
	id, err := refID(n)
	if err != nil {
		return err
	}
	obj, err := a.resolve(id, v.Type().Elem(), mode)
	if err != nil {
		return err
	}
	v.Set(obj)
	return nil
}

func (a *Archive) loadUnique(n *document.Node, v reflect.Value) error {
	if n.IsNull() {
		v.SetZero()
		return nil
	}
	id, err := refID(n)
	if err != nil {
		return err
	}
	obj, err := a.resolve(id, v.Interface().(uniqueRef).uniqueElem(), ownerUnique)
	if err != nil {
		return err
	}
	v.Addr().Interface().(uniqueSetter).setUniqueTarget(obj)
	return nil
}

// loadWeak points v at the object with the referenced id, or queues a patch
// when that object has not been loaded yet.
func (a *Archive) loadWeak(n *document.Node, v reflect.Value) error {
	if n.IsNull() {
		v.SetZero()
		return nil
	}
	id, err := refID(n)
	if err != nil {
		return err
	}
	want := reflect.PointerTo(v.Interface().(weakRef).weakElem())
	setter := v.Addr().Interface().(weakSetter)
	set := func(obj reflect.Value) error {
		if obj.Type() != want {
			return malformedf("weak reference to %d wants %v, object is %v", id, want, obj.Type())
		}
		setter.setWeakTarget(obj)
		return nil
	}
	if obj, ok := a.ctx.objects[id]; ok {
		return set(obj)
	}
	a.ctx.patches = append(a.ctx.patches, patch{id: id, set: set})
	return nil
}

// resolve returns the object for id, constructing and loading it on first
// use. static is the pointee type of the slot, nil for interface slots.
func (a *Archive) resolve(id uint64, static reflect.Type, mode ownership) (reflect.Value, error) {
	c := a.ctx
	if c.objects == nil {
		return reflect.Value{}, errNoSession
	}
	if obj, ok := c.objects[id]; ok {
		if mode == ownerUnique || c.unique[id] {
			return reflect.Value{}, malformedf("object %d has a unique owner and is owned again", id)
		}
		if static != nil && obj.Type().Elem() != static {
			return reflect.Value{}, malformedf("object %d is a %v, slot wants %v", id, obj.Type().Elem(), static)
		}
		return obj, nil
	}
	return a.materialize(id, static, mode)
}

func (a *Archive) materialize(id uint64, static reflect.Type, mode ownership) (reflect.Value, error) {
	c := a.ctx
	key := bodyKey(id)
	body, err := c.body(id)
	if err != nil {
		return reflect.Value{}, err
	}
	name, named, err := typeName(body)
	if err != nil {
		return reflect.Value{}, atPath(KeyData, atPath(key, err))
	}

	var t registry.Type
	switch {
	case static != nil:
		t, err = a.typeOf(static)
		if err == nil && named && name != t.Name() {
			err = malformedf("object %d is a %q, slot wants %s", id, name, t.Name())
		}
	case named:
		t, err = a.lookupType(name)
	default:
		err = malformedf("object %d has no %s", id, KeyType)
	}
	if err != nil {
		return reflect.Value{}, err
	}

	obj := t.CreateInstance()
	// Registered before loading fields so self references find it.
	c.objects[id] = obj
	if mode == ownerUnique {
		c.unique[id] = true
	}
	c.log.Debug("constructed object", "id", id, "type", t.Name())
	if err := a.loadBody(body, obj.Elem(), t); err != nil {
		return reflect.Value{}, atPath(KeyData, atPath(key, err))
	}
	return obj, nil
}

func (a *Archive) loadBody(body *document.Node, v reflect.Value, t registry.Type) error {
	if planFor(v.Type()).kind == codecStruct {
		return a.readFields(body, t, v)
	}
	n, err := body.Lookup(KeyValue)
	if err != nil {
		return malformed(err)
	}
	return atPath(KeyValue, a.loadValue(n, v, fieldOpts{}))
}

// keepAfterPatches re-runs commit after all patches have been applied when
// loading a detached value queued patches beyond mark.
func (a *Archive) keepAfterPatches(mark int, commit func()) {
	if len(a.ctx.patches) > mark {
		a.ctx.commits = append(a.ctx.commits, commit)
	}
}

// finishLoad applies deferred weak references and re-commits the detached
// values they landed in.
func (a *Archive) finishLoad() error {
	c := a.ctx
	for _, p := range c.patches {
		obj, ok := c.objects[p.id]
		if !ok {
			return fmt.Errorf("%w: id %d is never owned", ErrDanglingReference, p.id)
		}
		if err := p.set(obj); err != nil {
			return err
		}
	}
	for _, commit := range c.commits {
		commit()
	}
	c.log.Debug("load finished", "objects", len(c.objects), "patches", len(c.patches))
	return nil
}
