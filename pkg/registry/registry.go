// Package registry describes the types an archive can write and read: their
// stable names, the fields that are persisted, their embedded bases and how
// to construct a fresh instance.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var (
	ErrUnregistered   = errors.New("registry: type not registered")
	ErrDuplicateName  = errors.New("registry: name already registered")
	ErrAmbiguousBase  = errors.New("registry: base embedded more than once")
	ErrInvalidType    = errors.New("registry: invalid type")
	ErrInvalidFactory = errors.New("registry: factory must return a pointer to the registered type")
)

// Registry resolves types by name and by Go type.
type Registry interface {
	Lookup(name string) (Type, bool)
	TypeOf(rt reflect.Type) (Type, bool)
}

// Type is the runtime description of one registered type.
type Type interface {
	Name() string
	Reflect() reflect.Type
	// Fields returns the enabled fields declared directly on the type,
	// excluding embedded bases.
	Fields() []Field
	// Bases returns the embedded struct bases in declaration order.
	Bases() []Base
	// CreateInstance returns a pointer to a new zero instance.
	CreateInstance() reflect.Value
}

type Field struct {
	// Name is the persisted name, the Go field name unless the tag renames it.
	Name     string
	Index    []int
	Type     reflect.Type
	Extra    bool
	Optional bool
}

type Base struct {
	Type  Type
	Index []int
}

// DynamicTypeOf returns the registered type of the value held by v, looking
// through interfaces and pointers.
func DynamicTypeOf(r Registry, v reflect.Value) (Type, error) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: nil value", ErrInvalidType)
		}
		v = v.Elem()
	}
	t, ok := r.TypeOf(v.Type())
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnregistered, v.Type())
	}
	return t, nil
}

type Option func(*config)

type config struct {
	name    string
	factory func() any
}

// WithName overrides the persisted name, which defaults to the Go type string.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithFactory sets the constructor used by CreateInstance. It must return a
// pointer to the registered type.
func WithFactory(fn func() any) Option {
	return func(c *config) { c.factory = fn }
}

type entry struct {
	name    string
	rt      reflect.Type
	fields  []Field
	bases   []Base
	factory func() any
	// auto entries were registered implicitly and may still be renamed.
	auto bool
}

func (e *entry) Name() string          { return e.name }
func (e *entry) Reflect() reflect.Type { return e.rt }
func (e *entry) Fields() []Field       { return e.fields }
func (e *entry) Bases() []Base         { return e.bases }

func (e *entry) CreateInstance() reflect.Value {
	if e.factory != nil {
		return reflect.ValueOf(e.factory())
	}
	return reflect.New(e.rt)
}

// Types is the default Registry. It is safe for concurrent use.
type Types struct {
	mu     sync.RWMutex
	byName map[string]*entry
	byType map[reflect.Type]*entry
}

var builtins = []any{
	false, "",
	int(0), int8(0), int16(0), int32(0), int64(0),
	uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
	float32(0), float64(0),
}

// Default is used by archives that are not given a registry.
var Default = New()

// New returns a registry that already knows the built-in scalar types under
// their Go names.
func New() *Types {
	r := &Types{
		byName: make(map[string]*entry),
		byType: make(map[reflect.Type]*entry),
	}
	for _, v := range builtins {
		rt := reflect.TypeOf(v)
		e := &entry{name: rt.String(), rt: rt}
		r.byName[e.name] = e
		r.byType[rt] = e
	}
	return r
}

func (r *Types) Lookup(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return e, true
}

func (r *Types) TypeOf(rt reflect.Type) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byType[rt]
	if !ok {
		return nil, false
	}
	return e, true
}

// Register adds rt. Embedded struct bases are registered along with it under
// their default names. Registering a type again with the same name is a no-op.
func (r *Types) Register(rt reflect.Type, opts ...Option) (Type, error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(rt, c, false)
}

// Ensure returns the registered type for rt, registering it under its
// default name when it is unknown.
func (r *Types) Ensure(rt reflect.Type) (Type, error) {
	if t, ok := r.TypeOf(rt); ok {
		return t, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(rt, config{}, true)
}

func (r *Types) MustRegister(rt reflect.Type, opts ...Option) Type {
	t, err := r.Register(rt, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Register adds T to r.
func Register[T any](r *Types, opts ...Option) (Type, error) {
	return r.Register(reflect.TypeFor[T](), opts...)
}

func (r *Types) register(rt reflect.Type, c config, auto bool) (*entry, error) {
	if rt == nil || rt.Kind() == reflect.Interface || rt.Kind() == reflect.Pointer {
		return nil, fmt.Errorf("%w: %v", ErrInvalidType, rt)
	}
	name := c.name
	if name == "" {
		name = rt.String()
	}
	if e, ok := r.byType[rt]; ok {
		if auto {
			return e, nil
		}
		if e.name != name {
			if !e.auto {
				return nil, fmt.Errorf("%w: %v is already registered as %q", ErrDuplicateName, rt, e.name)
			}
			if other, ok := r.byName[name]; ok {
				return nil, fmt.Errorf("%w: %q is used by %v", ErrDuplicateName, name, other.rt)
			}
			delete(r.byName, e.name)
			e.name = name
			r.byName[name] = e
		}
		if err := checkFactory(rt, c.factory); err != nil {
			return nil, err
		}
		if c.factory != nil {
			e.factory = c.factory
		}
		e.auto = false
		return e, nil
	}
	if other, ok := r.byName[name]; ok {
		return nil, fmt.Errorf("%w: %q is used by %v", ErrDuplicateName, name, other.rt)
	}
	if err := checkFactory(rt, c.factory); err != nil {
		return nil, err
	}

	e := &entry{name: name, rt: rt, factory: c.factory, auto: auto}
	if rt.Kind() == reflect.Struct {
		if err := checkBases(rt, map[reflect.Type]bool{}); err != nil {
			return nil, err
		}
		r.byName[name] = e
		r.byType[rt] = e
		if err := r.describe(e); err != nil {
			delete(r.byName, name)
			delete(r.byType, rt)
			return nil, err
		}
		return e, nil
	}
	r.byName[name] = e
	r.byType[rt] = e
	return e, nil
}

func (r *Types) describe(e *entry) error {
	rt := e.rt
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.Tag.Get("reflar") == "-" {
			continue
		}
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			bt, ok := r.byType[sf.Type]
			if !ok {
				var err error
				bt, err = r.register(sf.Type, config{}, true)
				if err != nil {
					return err
				}
			}
			e.bases = append(e.bases, Base{Type: bt, Index: sf.Index})
			continue
		}
		if !sf.IsExported() {
			continue
		}
		f, ok := parseField(sf)
		if !ok {
			continue
		}
		e.fields = append(e.fields, f)
	}
	return nil
}

func checkFactory(rt reflect.Type, fn func() any) error {
	if fn == nil {
		return nil
	}
	if got := reflect.TypeOf(fn()); got != reflect.PointerTo(rt) {
		return fmt.Errorf("%w: %v returns %v", ErrInvalidFactory, rt, got)
	}
	return nil
}

// checkBases rejects a type that embeds the same struct along two paths,
// which would yield two fields with the same persisted key.
func checkBases(rt reflect.Type, seen map[reflect.Type]bool) error {
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.Anonymous || sf.Type.Kind() != reflect.Struct {
			continue
		}
		if seen[sf.Type] {
			return fmt.Errorf("%w: %v", ErrAmbiguousBase, sf.Type)
		}
		seen[sf.Type] = true
		if err := checkBases(sf.Type, seen); err != nil {
			return err
		}
	}
	return nil
}

func parseField(sf reflect.StructField) (Field, bool) {
	f := Field{Name: sf.Name, Index: sf.Index, Type: sf.Type}
	tag, ok := sf.Tag.Lookup("reflar")
	if !ok {
		return f, true
	}
	if tag == "-" {
		return f, false
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name != "" {
		f.Name = name
	}
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		switch opt {
		case "extra":
			f.Extra = true
		case "optional":
			f.Optional = true
		}
	}
	return f, true
}
