// Package document holds the tree that archives are written to and read
// from. A Node is one of null, bool, integer, float, string, sequence or
// mapping. Mappings keep their keys in insertion order.
package document

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	ErrMissingKey   = errors.New("document: missing key")
	ErrKindMismatch = errors.New("document: kind mismatch")
	ErrOutOfRange   = errors.New("document: value out of range")
)

type Kind uint8

const (
	Null Kind = iota
	Bool
	Int
	Uint
	Float
	String
	Sequence
	Mapping
)

var kindNames = [...]string{"null", "bool", "int", "uint", "float", "string", "sequence", "mapping"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Node is a single document value. The zero Node is null.
type Node struct {
	kind  Kind
	b     bool
	i     int64
	u     uint64
	f     float64
	f32   bool
	s     string
	items []*Node
	keys  []string
	index map[string]int
}

func NewNull() *Node { return &Node{} }
func NewBool(b bool) *Node { return &Node{kind: Bool, b: b} }
func NewInt(i int64) *Node { return &Node{kind: Int, i: i} }
func NewUint(u uint64) *Node { return &Node{kind: Uint, u: u} }
func NewString(s string) *Node { return &Node{kind: String, s: s} }
func NewSequence() *Node { return &Node{kind: Sequence} }
func NewMapping() *Node { return &Node{kind: Mapping, index: map[string]int{}} }
func NewFloat(f float64, bits int) *Node {
	n := &Node{}
	n.SetFloat(f, bits)
	return n
}

func (n *Node) Kind() Kind { return n.kind }
func (n *Node) IsNull() bool { return n == nil || n.kind == Null }
func (n *Node) IsFloat32() bool { return n.kind == Float && n.f32 }

func (n *Node) reset(k Kind) {
	*n = Node{kind: k}
	if k == Mapping {
		n.index = map[string]int{}
	}
}

func (n *Node) SetNull() { n.reset(Null) }
func (n *Node) SetBool(b bool) { n.reset(Bool); n.b = b }
func (n *Node) SetInt(i int64) { n.reset(Int); n.i = i }
func (n *Node) SetUint(u uint64) { n.reset(Uint); n.u = u }
func (n *Node) SetString(s string) { n.reset(String); n.s = s }
func (n *Node) SetSequence() { n.reset(Sequence) }
func (n *Node) SetMapping() { n.reset(Mapping) }

// SetFloat stores f. bits is 32 or 64 and only affects formatting.
func (n *Node) SetFloat(f float64, bits int) {
	n.reset(Float)
	n.f = f
	n.f32 = bits == 32
}

// Entry returns the child stored under key, appending a null child when the
// key is absent. A node that is not a mapping becomes an empty mapping first.
func (n *Node) Entry(key string) *Node {
	if n.kind != Mapping {
		n.reset(Mapping)
	}
	if i, ok := n.index[key]; ok {
		return n.items[i]
	}
	child := &Node{}
	n.index[key] = len(n.items)
	n.keys = append(n.keys, key)
	n.items = append(n.items, child)
	return child
}

// Set stores child under key, replacing an existing entry in place.
func (n *Node) Set(key string, child *Node) {
	if n.kind != Mapping {
		n.reset(Mapping)
	}
	if i, ok := n.index[key]; ok {
		n.items[i] = child
		return
	}
	n.index[key] = len(n.items)
	n.keys = append(n.keys, key)
	n.items = append(n.items, child)
}

// Append adds a null element and returns it. A node that is not a sequence
// becomes an empty sequence first.
func (n *Node) Append() *Node {
	child := &Node{}
	n.AppendNode(child)
	return child
}

func (n *Node) AppendNode(child *Node) {
	if n.kind != Sequence {
		n.reset(Sequence)
	}
	n.items = append(n.items, child)
}

func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.kind != Mapping {
		return nil, false
	}
	i, ok := n.index[key]
	if !ok {
		return nil, false
	}
	return n.items[i], true
}

// Lookup is Get with an error that names the key.
func (n *Node) Lookup(key string) (*Node, error) {
	if n == nil || n.kind != Mapping {
		return nil, fmt.Errorf("%w: lookup %q in %s", ErrKindMismatch, key, n.safeKind())
	}
	child, ok := n.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	return child, nil
}

// Len returns the number of elements of a sequence or entries of a mapping.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	return len(n.items)
}

// At returns the i-th element of a sequence or the i-th value of a mapping.
func (n *Node) At(i int) *Node { return n.items[i] }

// Keys returns the mapping keys in insertion order. The slice must not be
// modified.
func (n *Node) Keys() []string { return n.keys }

// Items returns sequence elements or mapping values in order.
func (n *Node) Items() []*Node { return n.items }

func (n *Node) safeKind() Kind {
	if n == nil {
		return Null
	}
	return n.kind
}

func (n *Node) mismatch(want string) error {
	return fmt.Errorf("%w: want %s, have %s", ErrKindMismatch, want, n.safeKind())
}

func (n *Node) Bool() (bool, error) {
	if n == nil || n.kind != Bool {
		return false, n.mismatch("bool")
	}
	return n.b, nil
}

func (n *Node) Str() (string, error) {
	if n == nil || n.kind != String {
		return "", n.mismatch("string")
	}
	return n.s, nil
}

// Int returns the value as a signed integer of the given bit width.
func (n *Node) Int(bits int) (int64, error) {
	if n == nil {
		return 0, n.mismatch("int")
	}
	var v int64
	switch n.kind {
	case Int:
		v = n.i
	case Uint:
		if n.u > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d does not fit int%d", ErrOutOfRange, n.u, bits)
		}
		v = int64(n.u)
	default:
		return 0, n.mismatch("int")
	}
	if bits < 64 {
		lim := int64(1) << (bits - 1)
		if v < -lim || v >= lim {
			return 0, fmt.Errorf("%w: %d does not fit int%d", ErrOutOfRange, v, bits)
		}
	}
	return v, nil
}

// Uint returns the value as an unsigned integer of the given bit width.
func (n *Node) Uint(bits int) (uint64, error) {
	if n == nil {
		return 0, n.mismatch("uint")
	}
	var v uint64
	switch n.kind {
	case Uint:
		v = n.u
	case Int:
		if n.i < 0 {
			return 0, fmt.Errorf("%w: %d does not fit uint%d", ErrOutOfRange, n.i, bits)
		}
		v = uint64(n.i)
	default:
		return 0, n.mismatch("uint")
	}
	if bits < 64 && v >= uint64(1)<<bits {
		return 0, fmt.Errorf("%w: %d does not fit uint%d", ErrOutOfRange, v, bits)
	}
	return v, nil
}

// Float returns the value as a float of the given bit width. Integer nodes
// widen; the non-finite spellings written by the JSON format are accepted.
func (n *Node) Float(bits int) (float64, error) {
	if n == nil {
		return 0, n.mismatch("float")
	}
	var v float64
	switch n.kind {
	case Float:
		v = n.f
	case Int:
		v = float64(n.i)
	case Uint:
		v = float64(n.u)
	case String:
		switch n.s {
		case "NaN":
			return math.NaN(), nil
		case "+Inf":
			return math.Inf(1), nil
		case "-Inf":
			return math.Inf(-1), nil
		}
		return 0, n.mismatch("float")
	default:
		return 0, n.mismatch("float")
	}
	if bits == 32 && !math.IsInf(v, 0) && !math.IsNaN(v) && math.Abs(v) > math.MaxFloat32 {
		return 0, fmt.Errorf("%w: %g does not fit float32", ErrOutOfRange, v)
	}
	return v, nil
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.items != nil {
		c.items = make([]*Node, len(n.items))
		for i, it := range n.items {
			c.items[i] = it.Clone()
		}
	}
	if n.kind == Mapping {
		c.keys = append([]string(nil), n.keys...)
		c.index = make(map[string]int, len(n.index))
		for k, v := range n.index {
			c.index[k] = v
		}
	}
	return &c
}

// Equal reports whether a and b hold the same tree. Int and Uint nodes with
// the same value are equal; mapping key order is significant.
func Equal(a, b *Node) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.kind != b.kind {
		if (a.kind == Int && b.kind == Uint) || (a.kind == Uint && b.kind == Int) {
			av, aerr := a.Uint(64)
			bv, berr := b.Uint(64)
			return aerr == nil && berr == nil && av == bv
		}
		return false
	}
	switch a.kind {
	case Bool:
		return a.b == b.b
	case Int:
		return a.i == b.i
	case Uint:
		return a.u == b.u
	case Float:
		return a.f == b.f || (math.IsNaN(a.f) && math.IsNaN(b.f))
	case String:
		return a.s == b.s
	}
	if len(a.items) != len(b.items) {
		return false
	}
	if a.kind == Mapping {
		for i, k := range a.keys {
			if b.keys[i] != k {
				return false
			}
		}
	}
	for i := range a.items {
		if !Equal(a.items[i], b.items[i]) {
			return false
		}
	}
	return true
}

// formatFloat renders f so that it reads back as a float.
func formatFloat(f float64, f32 bool) string {
	bits := 64
	if f32 {
		bits = 32
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'N', 'I':
			return s
		}
	}
	return s + ".0"
}
