// Package wire contains small helpers for hand-encoding records in the
// protobuf wire format. Records that cross the network or get persisted
// (profile envelopes, transport messages) use it so that the layout stays
// stable and language neutral without generated code.
package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrTruncated is returned when a buffer ends in the middle of a field.
var ErrTruncated = errors.New("wire: truncated record")

// Builder appends fields to a protobuf-encoded buffer.
type Builder struct {
	buf []byte
}

func (b *Builder) Bytes(num protowire.Number, v []byte) *Builder {
	if len(v) == 0 {
		return b
	}
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, v)
	return b
}

func (b *Builder) String(num protowire.Number, v string) *Builder {
	if v == "" {
		return b
	}
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendString(b.buf, v)
	return b
}

func (b *Builder) Uint(num protowire.Number, v uint64) *Builder {
	if v == 0 {
		return b
	}
	b.buf = protowire.AppendTag(b.buf, num, protowire.VarintType)
	b.buf = protowire.AppendVarint(b.buf, v)
	return b
}

func (b *Builder) Bool(num protowire.Number, v bool) *Builder {
	if !v {
		return b
	}
	return b.Uint(num, 1)
}

// Finish returns the encoded record.
func (b *Builder) Finish() []byte {
	if b.buf == nil {
		return []byte{}
	}
	return b.buf
}

// Field is a single decoded field. Only one of Raw or Varint is meaningful,
// depending on the wire type.
type Field struct {
	Num    protowire.Number
	Type   protowire.Type
	Raw    []byte
	Varint uint64
}

// Walk decodes buf and calls fn for every length-delimited or varint field.
// Other wire types are skipped. Raw slices are copied and safe to retain.
func Walk(buf []byte, fn func(f Field) error) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
		}
		buf = buf[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(buf)
			if m < 0 {
				return fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(m))
			}
			f.Raw = append([]byte(nil), v...)
			n = m
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(buf)
			if m < 0 {
				return fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(m))
			}
			f.Varint = v
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, typ, buf)
			if m < 0 {
				return fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(m))
			}
			buf = buf[m:]
			continue
		}
		buf = buf[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
