package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
	"gopkg.in/yaml.v3"
)

// Format selects the byte representation of a document.
type Format int

const (
	YAML Format = iota
	JSON
	MsgPack

	DefaultFormat = YAML
)

var (
	ErrUnknownFormat = errors.New("document: unknown format")
	// ErrInvalidText is returned when a text format is asked to carry a
	// string or key that is not valid UTF-8.
	ErrInvalidText = errors.New("document: invalid UTF-8 text")
)

func (f Format) String() string {
	switch f {
	case YAML:
		return "yaml"
	case JSON:
		return "json"
	case MsgPack:
		return "msgpack"
	default:
		return "format(" + strconv.Itoa(int(f)) + ")"
	}
}

func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "yaml", "yml":
		return YAML, nil
	case "json":
		return JSON, nil
	case "msgpack", "mp":
		return MsgPack, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

func (f Format) Encode(n *Node) ([]byte, error) {
	switch f {
	case YAML:
		if err := checkText(n, nil); err != nil {
			return nil, err
		}
		return yaml.Marshal(toYAML(n))
	case JSON:
		if err := checkText(n, nil); err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := writeJSON(&buf, n); err != nil {
			return nil, err
		}
		var out bytes.Buffer
		if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
			return nil, err
		}
		out.WriteByte('\n')
		return out.Bytes(), nil
	case MsgPack:
		var buf bytes.Buffer
		enc := msgpack.GetEncoder()
		enc.Reset(&buf)
		err := writeMsgPack(enc, n)
		msgpack.PutEncoder(enc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode msgpack: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

func (f Format) Decode(data []byte) (*Node, error) {
	switch f {
	case YAML:
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return fromYAML(&doc)
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		n, err := readJSON(dec)
		if err != nil {
			return nil, err
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, fmt.Errorf("document: trailing data after JSON value")
		}
		return n, nil
	case MsgPack:
		var r bytes.Reader
		r.Reset(data)
		dec := msgpack.GetDecoder()
		dec.Reset(&r)
		n, err := readMsgPack(dec)
		msgpack.PutDecoder(dec)
		if err != nil {
			return nil, fmt.Errorf("failed to decode msgpack: %w", err)
		}
		if r.Len() != 0 {
			return nil, fmt.Errorf("document: %d trailing bytes after msgpack value", r.Len())
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

// checkText rejects strings and mapping keys the text formats cannot hold
// byte for byte. MsgPack keeps raw bytes and does not need it.
func checkText(n *Node, path []string) error {
	switch n.safeKind() {
	case String:
		if !utf8.ValidString(n.s) {
			return fmt.Errorf("%w: %q at %s", ErrInvalidText, n.s, strings.Join(path, "/"))
		}
	case Sequence:
		for i, it := range n.items {
			if err := checkText(it, append(path, "["+strconv.Itoa(i)+"]")); err != nil {
				return err
			}
		}
	case Mapping:
		for i, k := range n.keys {
			if !utf8.ValidString(k) {
				return fmt.Errorf("%w: key %q at %s", ErrInvalidText, k, strings.Join(path, "/"))
			}
			if err := checkText(n.items[i], append(path, k)); err != nil {
				return err
			}
		}
	}
	return nil
}

func toYAML(n *Node) *yaml.Node {
	if n.IsNull() {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	switch n.kind {
	case Bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(n.b)}
	case Int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(n.i, 10)}
	case Uint:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(n.u, 10)}
	case Float:
		var v string
		switch {
		case math.IsNaN(n.f):
			v = ".nan"
		case math.IsInf(n.f, 1):
			v = ".inf"
		case math.IsInf(n.f, -1):
			v = "-.inf"
		default:
			v = formatFloat(n.f, n.f32)
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: v}
	case String:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: n.s}
	case Sequence:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range n.items {
			out.Content = append(out.Content, toYAML(it))
		}
		return out
	default:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for i, k := range n.keys {
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
			out.Content = append(out.Content, key, toYAML(n.items[i]))
		}
		return out
	}
}

func fromYAML(y *yaml.Node) (*Node, error) {
	switch y.Kind {
	case 0:
		return NewNull(), nil
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return NewNull(), nil
		}
		return fromYAML(y.Content[0])
	case yaml.AliasNode:
		return fromYAML(y.Alias)
	case yaml.SequenceNode:
		out := NewSequence()
		for _, c := range y.Content {
			it, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			out.AppendNode(it)
		}
		return out, nil
	case yaml.MappingNode:
		out := NewMapping()
		for i := 0; i+1 < len(y.Content); i += 2 {
			k := y.Content[i]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("document: line %d: mapping key is not a scalar", k.Line)
			}
			v, err := fromYAML(y.Content[i+1])
			if err != nil {
				return nil, err
			}
			out.Set(k.Value, v)
		}
		return out, nil
	}

	switch y.ShortTag() {
	case "!!null":
		return NewNull(), nil
	case "!!bool":
		var b bool
		if err := y.Decode(&b); err != nil {
			return nil, err
		}
		return NewBool(b), nil
	case "!!int":
		var i int64
		if err := y.Decode(&i); err == nil {
			return NewInt(i), nil
		}
		var u uint64
		if err := y.Decode(&u); err != nil {
			return nil, err
		}
		return NewUint(u), nil
	case "!!float":
		var f float64
		if err := y.Decode(&f); err != nil {
			return nil, err
		}
		return NewFloat(f, 64), nil
	default:
		return NewString(y.Value), nil
	}
}

func writeJSON(buf *bytes.Buffer, n *Node) error {
	if n.IsNull() {
		buf.WriteString("null")
		return nil
	}
	switch n.kind {
	case Bool:
		buf.WriteString(strconv.FormatBool(n.b))
	case Int:
		buf.WriteString(strconv.FormatInt(n.i, 10))
	case Uint:
		buf.WriteString(strconv.FormatUint(n.u, 10))
	case Float:
		switch {
		case math.IsNaN(n.f):
			buf.WriteString(`"NaN"`)
		case math.IsInf(n.f, 1):
			buf.WriteString(`"+Inf"`)
		case math.IsInf(n.f, -1):
			buf.WriteString(`"-Inf"`)
		default:
			buf.WriteString(formatFloat(n.f, n.f32))
		}
	case String:
		writeJSONString(buf, n.s)
	case Sequence:
		buf.WriteByte('[')
		for i, it := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, it); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Mapping:
		buf.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, k)
			buf.WriteByte(':')
			if err := writeJSON(buf, n.items[i]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: cannot write %v as JSON", ErrKindMismatch, n.kind)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	raw, _ := json.Marshal(s)
	buf.Write(raw)
}

func readJSON(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return readJSONValue(dec, tok)
}

func readJSONValue(dec *json.Decoder, tok json.Token) (*Node, error) {
	switch t := tok.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(t), nil
	case string:
		return NewString(t), nil
	case json.Number:
		s := t.String()
		if strings.ContainsAny(s, ".eE") {
			f, err := t.Float64()
			if err != nil {
				return nil, err
			}
			return NewFloat(f, 64), nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return NewInt(i), nil
		}
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrOutOfRange, s)
		}
		return NewUint(u), nil
	case json.Delim:
		switch t {
		case '[':
			out := NewSequence()
			for dec.More() {
				it, err := readJSON(dec)
				if err != nil {
					return nil, err
				}
				out.AppendNode(it)
			}
			_, err := dec.Token()
			return out, err
		case '{':
			out := NewMapping()
			for dec.More() {
				ktok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := ktok.(string)
				if !ok {
					return nil, fmt.Errorf("document: JSON object key %v is not a string", ktok)
				}
				v, err := readJSON(dec)
				if err != nil {
					return nil, err
				}
				out.Set(key, v)
			}
			_, err := dec.Token()
			return out, err
		}
	}
	return nil, fmt.Errorf("document: unexpected JSON token %v", tok)
}

func writeMsgPack(enc *msgpack.Encoder, n *Node) error {
	if n.IsNull() {
		return enc.EncodeNil()
	}
	switch n.kind {
	case Bool:
		return enc.EncodeBool(n.b)
	case Int:
		return enc.EncodeInt(n.i)
	case Uint:
		return enc.EncodeUint(n.u)
	case Float:
		if n.f32 {
			return enc.EncodeFloat32(float32(n.f))
		}
		return enc.EncodeFloat64(n.f)
	case String:
		return enc.EncodeString(n.s)
	case Sequence:
		if err := enc.EncodeArrayLen(len(n.items)); err != nil {
			return err
		}
		for _, it := range n.items {
			if err := writeMsgPack(enc, it); err != nil {
				return err
			}
		}
		return nil
	case Mapping:
		if err := enc.EncodeMapLen(len(n.items)); err != nil {
			return err
		}
		for i, k := range n.keys {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := writeMsgPack(enc, n.items[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: cannot write %v as msgpack", ErrKindMismatch, n.kind)
}

func readMsgPack(dec *msgpack.Decoder) (*Node, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	switch {
	case c == msgpcode.Nil:
		return NewNull(), dec.DecodeNil()
	case c == msgpcode.False || c == msgpcode.True:
		b, err := dec.DecodeBool()
		return NewBool(b), err
	case c == msgpcode.Float:
		f, err := dec.DecodeFloat32()
		return NewFloat(float64(f), 32), err
	case c == msgpcode.Double:
		f, err := dec.DecodeFloat64()
		return NewFloat(f, 64), err
	case c == msgpcode.Uint64:
		u, err := dec.DecodeUint64()
		if err != nil {
			return nil, err
		}
		if u > math.MaxInt64 {
			return NewUint(u), nil
		}
		return NewInt(int64(u)), nil
	case msgpcode.IsFixedNum(c), c == msgpcode.Uint8, c == msgpcode.Uint16, c == msgpcode.Uint32,
		c == msgpcode.Int8, c == msgpcode.Int16, c == msgpcode.Int32, c == msgpcode.Int64:
		i, err := dec.DecodeInt64()
		return NewInt(i), err
	case msgpcode.IsString(c), msgpcode.IsBin(c):
		s, err := dec.DecodeString()
		return NewString(s), err
	case msgpcode.IsFixedArray(c), c == msgpcode.Array16, c == msgpcode.Array32:
		l, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		out := NewSequence()
		for i := 0; i < l; i++ {
			it, err := readMsgPack(dec)
			if err != nil {
				return nil, err
			}
			out.AppendNode(it)
		}
		return out, nil
	case msgpcode.IsFixedMap(c), c == msgpcode.Map16, c == msgpcode.Map32:
		l, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		out := NewMapping()
		for i := 0; i < l; i++ {
			k, err := dec.DecodeString()
			if err != nil {
				return nil, err
			}
			v, err := readMsgPack(dec)
			if err != nil {
				return nil, err
			}
			out.Set(k, v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("document: unsupported msgpack code 0x%02x", c)
}
