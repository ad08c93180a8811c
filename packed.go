package reflar

import (
	"reflect"

	"github.com/rawbytedev/reflar/internal/common"
	"github.com/rawbytedev/reflar/pkg/document"
)

// savePacked stores a slice of fixed-width elements in the extra buffer as
// little-endian values, one after another.
func (a *Archive) savePacked(n *document.Node, v reflect.Value) error {
	if v.IsNil() {
		n.SetNull()
		return nil
	}
	size := common.FixedSize(v.Type().Elem().Kind())
	buf := make([]byte, 0, v.Len()*size)
	for i := 0; i < v.Len(); i++ {
		buf = common.AppendFixed(buf, v.Index(i))
	}
	a.WriteBlob(n, buf)
	return nil
}

func (a *Archive) loadPacked(n *document.Node, v reflect.Value) error {
	if n.IsNull() {
		v.SetZero()
		return nil
	}
	b, err := a.ReadBlob(n)
	if err != nil {
		return err
	}
	k := v.Type().Elem().Kind()
	size := common.FixedSize(k)
	if len(b)%size != 0 {
		return malformedf("%d bytes is not a whole number of %v", len(b), k)
	}
	cnt := len(b) / size
	s := reflect.MakeSlice(v.Type(), cnt, cnt)
	for i := 0; i < cnt; i++ {
		common.SetFixed(s.Index(i), b[i*size:], k)
	}
	v.Set(s)
	return nil
}
