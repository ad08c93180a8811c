// Package container frames an archive document and its extra buffer into a
// single checksummed byte stream, optionally zstd compressed.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/rawbytedev/reflar/internal/common"
	"github.com/rawbytedev/reflar/pkg/document"
)

const (
	Magic   = "RFA1"
	Version = 1

	// magic + version + flags + format + total length
	headerSize = 4 + 1 + 1 + 1 + 4
	crcSize    = 4
)

type Flags uint8

const (
	FlagZstd Flags = 1 << iota
)

var (
	ErrBadMagic  = errors.New("container: bad magic")
	ErrVersion   = errors.New("container: unsupported version")
	ErrTruncated = errors.New("container: truncated")
	ErrChecksum  = errors.New("container: crc mismatch")
)

// Bundle is the decoded content of a container.
type Bundle struct {
	Format document.Format
	Doc    []byte
	Extra  []byte
}

var (
	encOnce sync.Once
	enc     *zstd.Encoder
	encErr  error
	decOnce sync.Once
	dec     *zstd.Decoder
	decErr  error
)

func encoder() (*zstd.Encoder, error) {
	encOnce.Do(func() {
		enc, encErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	})
	return enc, encErr
}

func decoder() (*zstd.Decoder, error) {
	decOnce.Do(func() {
		dec, decErr = zstd.NewReader(nil)
	})
	return dec, decErr
}

// Encode serializes b. With FlagZstd both sections are compressed
// independently.
func (b *Bundle) Encode(flags Flags) ([]byte, error) {
	doc, extra := b.Doc, b.Extra
	if flags&FlagZstd != 0 {
		z, err := encoder()
		if err != nil {
			return nil, err
		}
		doc = z.EncodeAll(doc, nil)
		extra = z.EncodeAll(extra, nil)
	}

	out := make([]byte, 0, headerSize+20+len(doc)+len(extra)+crcSize)
	out = append(out, Magic...)
	out = append(out, Version, byte(flags), byte(b.Format))
	// total length placeholder
	out = append(out, 0, 0, 0, 0)
	out = common.WriteVarUint(out, uint64(len(doc)))
	out = common.WriteVarUint(out, uint64(len(extra)))
	out = append(out, doc...)
	out = append(out, extra...)

	// fill in length (includes everything up to + including CRC)
	binary.LittleEndian.PutUint32(out[7:], uint32(len(out)+crcSize))

	// CRC over everything after the magic
	crc := crc32.ChecksumIEEE(out[4:])
	return binary.LittleEndian.AppendUint32(out, crc), nil
}

// Decode parses data into b and returns the flags it was written with. The
// sections alias data unless they were compressed.
func (b *Bundle) Decode(data []byte) (Flags, error) {
	if len(data) < 4 || string(data[:4]) != Magic {
		return 0, ErrBadMagic
	}
	if len(data) < headerSize+crcSize {
		return 0, ErrTruncated
	}
	if data[4] != Version {
		return 0, fmt.Errorf("%w: %d", ErrVersion, data[4])
	}
	flags := Flags(data[5])
	format := document.Format(data[6])
	if total := binary.LittleEndian.Uint32(data[7:]); int(total) != len(data) {
		return 0, fmt.Errorf("%w: header says %d bytes, have %d", ErrTruncated, total, len(data))
	}
	end := len(data) - crcSize
	if crc32.ChecksumIEEE(data[4:end]) != binary.LittleEndian.Uint32(data[end:]) {
		return 0, ErrChecksum
	}

	body := data[headerSize:end]
	docLen, n := common.ReadVarUint(body)
	if n == 0 {
		return 0, ErrTruncated
	}
	body = body[n:]
	extraLen, n := common.ReadVarUint(body)
	if n == 0 {
		return 0, ErrTruncated
	}
	body = body[n:]
	if docLen > uint64(len(body)) || extraLen != uint64(len(body))-docLen {
		return 0, fmt.Errorf("%w: sections of %d+%d bytes in %d", ErrTruncated, docLen, extraLen, len(body))
	}
	doc, extra := body[:docLen:docLen], body[docLen:]

	if flags&FlagZstd != 0 {
		z, err := decoder()
		if err != nil {
			return 0, err
		}
		if doc, err = z.DecodeAll(doc, nil); err != nil {
			return 0, fmt.Errorf("container: document: %w", err)
		}
		if extra, err = z.DecodeAll(extra, nil); err != nil {
			return 0, fmt.Errorf("container: extra: %w", err)
		}
	}
	b.Format = format
	b.Doc = doc
	b.Extra = extra
	return flags, nil
}
