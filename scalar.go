package reflar

import (
	"reflect"

	"github.com/rawbytedev/reflar/pkg/document"
)

func saveScalar(n *document.Node, v reflect.Value, p *plan) {
	switch v.Kind() {
	case reflect.Bool:
		n.SetBool(v.Bool())
	case reflect.String:
		n.SetString(v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n.SetInt(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n.SetUint(v.Uint())
	case reflect.Float32, reflect.Float64:
		n.SetFloat(v.Float(), p.bits)
	}
}

// loadScalar reads n at the width of v. Values that do not fit are rejected
// rather than truncated.
func loadScalar(n *document.Node, v reflect.Value, p *plan) error {
	switch v.Kind() {
	case reflect.Bool:
		b, err := n.Bool()
		if err != nil {
			return malformed(err)
		}
		v.SetBool(b)
	case reflect.String:
		s, err := n.Str()
		if err != nil {
			return malformed(err)
		}
		v.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := n.Int(p.bits)
		if err != nil {
			return malformed(err)
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := n.Uint(p.bits)
		if err != nil {
			return malformed(err)
		}
		v.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := n.Float(p.bits)
		if err != nil {
			return malformed(err)
		}
		v.SetFloat(f)
	}
	return nil
}
