package container

import (
	"bytes"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/reflar/pkg/document"
)

func TestEncodeDecode(t *testing.T) {
	for _, flags := range []Flags{0, FlagZstd} {
		in := &Bundle{
			Format: document.JSON,
			Doc:    []byte(`{"%main_id": 0, "%data": {}}`),
			Extra:  bytes.Repeat([]byte{1, 2, 3, 4}, 512),
		}
		data, err := in.Encode(flags)
		require.NoError(t, err)
		require.Equal(t, Magic, string(data[:4]))

		var out Bundle
		got, err := out.Decode(data)
		require.NoError(t, err)
		require.Equal(t, flags, got)
		require.Equal(t, in.Format, out.Format)
		require.Equal(t, in.Doc, out.Doc)
		require.Equal(t, in.Extra, out.Extra)
	}
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	in := &Bundle{Doc: bytes.Repeat([]byte("BaseData::data: "), 256)}
	plain, err := in.Encode(0)
	require.NoError(t, err)
	packed, err := in.Encode(FlagZstd)
	require.NoError(t, err)
	require.Less(t, len(packed), len(plain))
}

func TestCorruption(t *testing.T) {
	in := &Bundle{Doc: []byte("doc"), Extra: []byte("extra")}
	data, err := in.Encode(0)
	require.NoError(t, err)

	var out Bundle
	bad := append([]byte(nil), data...)
	bad[len(bad)-6] ^= 0xff
	_, err = out.Decode(bad)
	require.ErrorIs(t, err, ErrChecksum)

	_, err = out.Decode(data[:len(data)-1])
	require.ErrorIs(t, err, ErrTruncated)

	_, err = out.Decode([]byte("nope, not a container"))
	require.ErrorIs(t, err, ErrBadMagic)

	bad = append([]byte(nil), data...)
	bad[4] = 9
	_, err = out.Decode(bad)
	require.ErrorIs(t, err, ErrVersion)
}

func TestRoundTripProperty(t *testing.T) {
	condition := func(doc, extra []byte, zstd bool) bool {
		var flags Flags
		if zstd {
			flags = FlagZstd
		}
		in := &Bundle{Format: document.MsgPack, Doc: doc, Extra: extra}
		data, err := in.Encode(flags)
		require.NoError(t, err)
		var out Bundle
		_, err = out.Decode(data)
		require.NoError(t, err)
		return bytes.Equal(doc, out.Doc) && bytes.Equal(extra, out.Extra)
	}
	require.NoError(t, quick.Check(condition, nil))
}
