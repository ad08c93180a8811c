package reflar

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/reflar/pkg/registry"
)

type StdintTest struct {
	Int8   int8   `reflar:"m_int8"`
	Int16  int16  `reflar:"m_int16"`
	Int32  int32  `reflar:"m_int32"`
	Int64  int64  `reflar:"m_int64"`
	Uint8  uint8  `reflar:"m_uint8"`
	Uint16 uint16 `reflar:"m_uint16"`
	Uint32 uint32 `reflar:"m_uint32"`
	Uint64 uint64 `reflar:"m_uint64"`
}

type Data interface {
	Base() *BaseData
}

type BaseData struct {
	Data [3]float32 `reflar:"data"`
}

func (b *BaseData) Base() *BaseData { return b }

type InheritTest struct {
	BaseData
	Inherit int `reflar:"m_inherit"`
}

type SharedPtrTest struct {
	SharedPtr  *BaseData      `reflar:"m_shared_ptr"`
	SharedPtr2 *BaseData      `reflar:"m_shared_ptr2"`
	IntPtr     *int           `reflar:"m_int_ptr"`
	WeakPtr    Weak[BaseData] `reflar:"m_weak_ptr"`
}

type StdAnyTest struct {
	AnyVector []any `reflar:"m_any_vector"`
}

type UniquePtrTest struct {
	UniquePtr Unique[BaseData] `reflar:"m_unique_ptr"`
}

type TwoUniqueOwners struct {
	First  Unique[BaseData]
	Second Unique[BaseData]
}

type VectorTest struct {
	Vector []BaseData `reflar:"m_vector"`
	Names  []string
	Nil    []string
	Empty  []string
}

type PolymorphismTest struct {
	Vector []Data `reflar:"m_vector"`
}

type CustomTest struct {
	A int
	B int
}

func (c *CustomTest) SaveArchive(a *Archive) error {
	a.Cursor().Entry("data").SetInt(int64(c.A*1000000 + c.B))
	return nil
}

func (c *CustomTest) LoadArchive(a *Archive) error {
	n, err := a.Cursor().Lookup("data")
	if err != nil {
		return err
	}
	v, err := n.Int(64)
	if err != nil {
		return err
	}
	c.A = int(v / 1000000)
	c.B = int(v % 1000000)
	return nil
}

type ArrayPtrTest struct {
	Array    [3]int     `reflar:"m_array"`
	PtrArray [2][2]Data `reflar:"m_ptr_array"`
}

type SelfPtrTest struct {
	SelfPtr *SelfPtrTest `reflar:"m_self_ptr"`
}

type InnerStruct struct {
	InnerFloat float32 `reflar:"m_inner_float"`
	InnerInt   int     `reflar:"m_inner_int"`
}

type InnerClass struct {
	InnerInt int `reflar:"m_inner_int"`
}

type StructStructTest struct {
	InnerStruct InnerStruct `reflar:"m_inner_struct"`
	InnerClass  InnerClass  `reflar:"m_inner_class"`
	Double      float64     `reflar:"m_double"`
}

type NormalEnum int

const (
	NE1 NormalEnum = iota
	NE2
	NE3
)

type Color uint8

const (
	Red Color = iota
	Green
	Blue
)

var colorNames = []string{"Red", "Green", "Blue"}

func (c Color) MarshalText() ([]byte, error) {
	if int(c) >= len(colorNames) {
		return nil, fmt.Errorf("bad color %d", c)
	}
	return []byte(colorNames[c]), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	for i, n := range colorNames {
		if n == string(b) {
			*c = Color(i)
			return nil
		}
	}
	return fmt.Errorf("unknown color %q", b)
}

type EnumTest struct {
	NormalEnum NormalEnum `reflar:"m_normal_enum"`
	Color      Color      `reflar:"m_color"`
}

type MapTest struct {
	ByName map[string]int
	ByID   map[int]*BaseData
	ByFlag map[bool]string
	Nil    map[string]int
}

type MeshData struct {
	Vertices []float32 `reflar:"vertices,extra"`
	Indices  []uint16  `reflar:"indices,extra"`
	Raw      []byte    `reflar:"raw"`
	NoBytes  []byte    `reflar:"no_bytes"`
}

type WeakFirst struct {
	Observer Weak[BaseData]
	Owner    *BaseData
}

type Holder struct {
	Weak Weak[BaseData]
}

type DetachedWeak struct {
	Holders map[string]Holder
	Boxed   any
	Owner   *BaseData
}

type DanglingTest struct {
	Observer Weak[BaseData]
}

type UnsupportedTest struct {
	Ch chan int
}

type OptionalTest struct {
	Required int
	Maybe    int `reflar:",optional"`
}

type SkipTest struct {
	Kept    int
	Skipped int `reflar:"-"`
	hidden  int
}

type Node struct {
	Name     string
	Parent   Weak[Node]
	Children []*Node
}

// unregisteredData satisfies Data but is never registered.
type unregisteredData BaseData

func (u *unregisteredData) Base() *BaseData { return (*BaseData)(u) }

type TextTest struct {
	S string
}

type WeakSelfTest struct {
	Name string
	Me   Weak[WeakSelfTest]
}

type EmbeddedWeakTest struct {
	Owner *InheritTest
	Base  Weak[BaseData]
}

type LoosePackTest struct {
	Counts []int `reflar:"counts,extra"`
}

type NamesPackTest struct {
	Names []string `reflar:"names,extra"`
}

func newTestRegistry(t testing.TB) *registry.Types {
	t.Helper()
	r := registry.New()
	for _, item := range []struct {
		rt   reflect.Type
		name string
	}{
		{reflect.TypeFor[StdintTest](), "StdintTest"},
		{reflect.TypeFor[BaseData](), "BaseData"},
		{reflect.TypeFor[InheritTest](), "InheritTest"},
		{reflect.TypeFor[SharedPtrTest](), "SharedPtrTest"},
		{reflect.TypeFor[StdAnyTest](), "StdAnyTest"},
		{reflect.TypeFor[UniquePtrTest](), "UniquePtrTest"},
		{reflect.TypeFor[VectorTest](), "VectorTest"},
		{reflect.TypeFor[PolymorphismTest](), "PolymorphismTest"},
		{reflect.TypeFor[CustomTest](), "CustomTest"},
		{reflect.TypeFor[ArrayPtrTest](), "ArrayPtrTest"},
		{reflect.TypeFor[SelfPtrTest](), "SelfPtrTest"},
		{reflect.TypeFor[InnerStruct](), "InnerStruct"},
		{reflect.TypeFor[InnerClass](), "InnerClass"},
		{reflect.TypeFor[StructStructTest](), "StructStructTest"},
		{reflect.TypeFor[EnumTest](), "EnumTest"},
		{reflect.TypeFor[Holder](), "Holder"},
		{reflect.TypeFor[Node](), "Node"},
	} {
		_, err := r.Register(item.rt, registry.WithName(item.name))
		require.NoError(t, err)
	}
	return r
}

func newTestArchive(t testing.TB) *Archive {
	return NewArchive(Options{Registry: newTestRegistry(t)})
}
