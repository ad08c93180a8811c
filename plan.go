package reflar

import (
	"encoding"
	"reflect"
	"sync"

	"github.com/rawbytedev/reflar/internal/common"
)

type codecKind uint8

const (
	codecUnsupported codecKind = iota
	codecScalar
	codecText
	codecBytes
	codecSequence
	codecArray
	codecMap
	codecPointer
	codecWeak
	codecUnique
	codecInterface
	codecStruct
	codecCustom
)

// plan is the cached codec choice for one Go type.
type plan struct {
	kind codecKind
	// bits is the width of scalar kinds.
	bits int
	// fixed reports a slice whose elements can be packed into the extra
	// buffer.
	fixed bool
	// reason explains codecUnsupported.
	reason string
}

// packable reports whether a field of this plan may carry the extra tag:
// byte slices and slices of fixed-width elements. int and uint have no
// fixed width and are rejected.
func (p *plan) packable() bool {
	return p.kind == codecBytes || (p.kind == codecSequence && p.fixed)
}

var (
	plansMu sync.RWMutex
	plans   = make(map[reflect.Type]*plan)

	saverType         = reflect.TypeFor[Saver]()
	loaderType        = reflect.TypeFor[Loader]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalType = reflect.TypeFor[encoding.TextUnmarshaler]()
	weakRefType       = reflect.TypeFor[weakRef]()
	uniqueRefType     = reflect.TypeFor[uniqueRef]()
)

func planFor(t reflect.Type) *plan {
	plansMu.RLock()
	if p, ok := plans[t]; ok {
		plansMu.RUnlock()
		return p
	}
	plansMu.RUnlock()

	plansMu.Lock()
	defer plansMu.Unlock()

	// Double-check
	if p, ok := plans[t]; ok {
		return p
	}
	p := classify(t)
	plans[t] = p
	return p
}

func classify(t reflect.Type) *plan {
	k := t.Kind()
	if k != reflect.Pointer && k != reflect.Interface {
		pt := reflect.PointerTo(t)
		switch {
		case pt.Implements(saverType) && pt.Implements(loaderType):
			return &plan{kind: codecCustom}
		case t.Implements(weakRefType):
			return &plan{kind: codecWeak}
		case t.Implements(uniqueRefType):
			return &plan{kind: codecUnique}
		case pt.Implements(textMarshalerType) && pt.Implements(textUnmarshalType):
			return &plan{kind: codecText}
		}
	}

	switch k {
	case reflect.Bool, reflect.String:
		return &plan{kind: codecScalar}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return &plan{kind: codecScalar, bits: t.Bits()}
	case reflect.Slice:
		ek := t.Elem().Kind()
		if ek == reflect.Uint8 {
			return &plan{kind: codecBytes}
		}
		return &plan{kind: codecSequence, fixed: common.IsFixedKind(ek)}
	case reflect.Array:
		return &plan{kind: codecArray}
	case reflect.Map:
		return &plan{kind: codecMap}
	case reflect.Pointer:
		switch t.Elem().Kind() {
		case reflect.Pointer, reflect.Interface:
			return &plan{reason: "pointer to " + t.Elem().Kind().String()}
		}
		return &plan{kind: codecPointer}
	case reflect.Interface:
		return &plan{kind: codecInterface}
	case reflect.Struct:
		return &plan{kind: codecStruct}
	}
	return &plan{reason: k.String() + " has no codec"}
}
