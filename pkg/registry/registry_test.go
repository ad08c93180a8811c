package registry

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type baseData struct {
	Data [3]float32 `reflar:"data"`
}

type inheritTest struct {
	baseData
	Inherit int `reflar:"m_inherit"`
	skipped int
	Ignored string `reflar:"-"`
	Blob    []byte `reflar:"blob,extra,optional"`
}

type diamondLeft struct{ baseData }
type diamondRight struct{ baseData }
type diamond struct {
	diamondLeft
	diamondRight
}

func TestRegisterDescribesFieldsAndBases(t *testing.T) {
	r := New()
	_, err := Register[baseData](r, WithName("BaseData"))
	require.NoError(t, err)
	typ, err := Register[inheritTest](r, WithName("InheritTest"))
	require.NoError(t, err)

	require.Equal(t, "InheritTest", typ.Name())
	fields := typ.Fields()
	require.Len(t, fields, 2)
	require.Equal(t, "m_inherit", fields[0].Name)
	require.Equal(t, "blob", fields[1].Name)
	require.True(t, fields[1].Extra)
	require.True(t, fields[1].Optional)

	require.Len(t, typ.Bases(), 1)
	require.Equal(t, "BaseData", typ.Bases()[0].Type.Name())
	require.Equal(t, []int{0}, typ.Bases()[0].Index)
}

func TestBaseRegisteredImplicitlyCanBeRenamed(t *testing.T) {
	r := New()
	_, err := Register[inheritTest](r)
	require.NoError(t, err)
	base, ok := r.TypeOf(reflect.TypeFor[baseData]())
	require.True(t, ok)
	require.Equal(t, "registry.baseData", base.Name())

	_, err = Register[baseData](r, WithName("BaseData"))
	require.NoError(t, err)
	got, ok := r.Lookup("BaseData")
	require.True(t, ok)
	require.Same(t, base, got)
	_, ok = r.Lookup("registry.baseData")
	require.False(t, ok)

	_, err = Register[baseData](r, WithName("Other"))
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestDuplicateNameRejected(t *testing.T) {
	r := New()
	_, err := Register[baseData](r, WithName("int"))
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestAmbiguousBaseRejected(t *testing.T) {
	r := New()
	_, err := Register[diamond](r)
	require.ErrorIs(t, err, ErrAmbiguousBase)
	_, ok := r.TypeOf(reflect.TypeFor[diamond]())
	require.False(t, ok)
}

func TestBuiltinsAndDynamicType(t *testing.T) {
	r := New()
	for _, name := range []string{"bool", "int8", "uint64", "float32", "string"} {
		_, ok := r.Lookup(name)
		require.True(t, ok, name)
	}
	var v any = int32(5)
	typ, err := DynamicTypeOf(r, reflect.ValueOf(&v).Elem())
	require.NoError(t, err)
	require.Equal(t, "int32", typ.Name())

	v = &baseData{}
	_, err = DynamicTypeOf(r, reflect.ValueOf(&v).Elem())
	require.ErrorIs(t, err, ErrUnregistered)
}

func TestFactory(t *testing.T) {
	r := New()
	typ, err := Register[baseData](r, WithFactory(func() any {
		return &baseData{Data: [3]float32{1, 2, 3}}
	}))
	require.NoError(t, err)
	inst := typ.CreateInstance().Interface().(*baseData)
	require.Equal(t, float32(2), inst.Data[1])

	_, err = Register[inheritTest](r, WithFactory(func() any { return inheritTest{} }))
	require.ErrorIs(t, err, ErrInvalidFactory)
}

func TestEnsureIsIdempotent(t *testing.T) {
	r := New()
	a, err := r.Ensure(reflect.TypeFor[baseData]())
	require.NoError(t, err)
	b, err := r.Ensure(reflect.TypeFor[baseData]())
	require.NoError(t, err)
	require.Same(t, a, b)
	_, err = r.Ensure(reflect.TypeFor[*baseData]())
	require.ErrorIs(t, err, ErrInvalidType)
}
