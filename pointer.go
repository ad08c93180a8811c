package reflar

import (
	"reflect"
	"weak"
)

// Weak is a non-owning reference to a T owned elsewhere in the graph. It is
// written as a reference and never carries the body of its target, so the
// target must also be reachable through an owning pointer.
//
// Identity is an address together with the pointee type. A Weak[B] that
// observes a B embedded in an owned struct therefore names an object no
// owning pointer of type *B holds, and loading fails with
// ErrDanglingReference. Observe the containing struct instead.
type Weak[T any] struct {
	p weak.Pointer[T]
}

func MakeWeak[T any](p *T) Weak[T] {
	return Weak[T]{p: weak.Make(p)}
}

// Get returns the target, or nil if it is unset or has been collected.
func (w Weak[T]) Get() *T { return w.p.Value() }

func (w *Weak[T]) Set(p *T) { w.p = weak.Make(p) }

func (w Weak[T]) weakElem() reflect.Type { return reflect.TypeFor[T]() }
func (w Weak[T]) weakTarget() reflect.Value { return reflect.ValueOf(w.p.Value()) }
func (w *Weak[T]) setWeakTarget(v reflect.Value) { w.p = weak.Make(v.Interface().(*T)) }

type weakRef interface {
	weakElem() reflect.Type
	weakTarget() reflect.Value
}

type weakSetter interface {
	setWeakTarget(v reflect.Value)
}

// Unique is the sole owner of a T. Loading fails if a second unique owner
// claims the same object.
type Unique[T any] struct {
	p *T
}

func NewUnique[T any](p *T) Unique[T] {
	return Unique[T]{p: p}
}

func (u Unique[T]) Get() *T { return u.p }

// Release gives up ownership and returns the target.
func (u *Unique[T]) Release() *T {
	p := u.p
	u.p = nil
	return p
}

func (u *Unique[T]) Reset(p *T) { u.p = p }

func (u Unique[T]) uniqueElem() reflect.Type { return reflect.TypeFor[T]() }
func (u Unique[T]) uniqueTarget() reflect.Value { return reflect.ValueOf(u.p) }
func (u *Unique[T]) setUniqueTarget(v reflect.Value) { u.p = v.Interface().(*T) }

type uniqueRef interface {
	uniqueElem() reflect.Type
	uniqueTarget() reflect.Value
}

type uniqueSetter interface {
	setUniqueTarget(v reflect.Value)
}
