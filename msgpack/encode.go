// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package msgpack

import (
	"encoding/binary"
	"math"
	"reflect"
)

// writer is a bounded cursor over a caller-supplied buffer. Unlike
// ion.Buffer it never grows the backing array: Encode writes into a
// caller-provided buffer and reports ErrNoSpaceLeft on exhaustion,
// rather than ion's append-and-grow model (appropriate for ion, which
// owns its destination Buffer; not appropriate for a codec whose whole
// point is to let the caller size and own the output buffer).
type writer struct {
	buf []byte
	pos int
}

func (w *writer) u8(b byte) error {
	if w.pos >= len(w.buf) {
		return ErrNoSpaceLeft
	}
	w.buf[w.pos] = b
	w.pos++
	return nil
}

func (w *writer) bytes(p []byte) error {
	if len(w.buf)-w.pos < len(p) {
		return ErrNoSpaceLeft
	}
	copy(w.buf[w.pos:], p)
	w.pos += len(p)
	return nil
}

func (w *writer) u16(v uint16) error {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return w.bytes(tmp[:])
}

func (w *writer) u32(v uint32) error {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return w.bytes(tmp[:])
}

func (w *writer) u64(v uint64) error {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return w.bytes(tmp[:])
}

// writeLengthHeader writes a length-prefixed header for one of str/bin/
// array/map, choosing the narrowest family whose length field can hold
// n. bin has no "fix" form.
func (w *writer) writeLengthHeader(kind family, n int) error {
	switch kind {
	case familyFixstr:
		if n <= 31 {
			return w.u8(fixstrBase | byte(n))
		}
		if n <= 0xff {
			if err := w.u8(tagStr8); err != nil {
				return err
			}
			return w.u8(byte(n))
		}
		if n <= 0xffff {
			if err := w.u8(tagStr16); err != nil {
				return err
			}
			return w.u16(uint16(n))
		}
		if err := w.u8(tagStr32); err != nil {
			return err
		}
		return w.u32(uint32(n))
	case familyBin:
		if n <= 0xff {
			if err := w.u8(tagBin8); err != nil {
				return err
			}
			return w.u8(byte(n))
		}
		if n <= 0xffff {
			if err := w.u8(tagBin16); err != nil {
				return err
			}
			return w.u16(uint16(n))
		}
		if err := w.u8(tagBin32); err != nil {
			return err
		}
		return w.u32(uint32(n))
	case familyFixarray:
		if n <= 15 {
			return w.u8(fixarrayBase | byte(n))
		}
		if n <= 0xffff {
			if err := w.u8(tagArray16); err != nil {
				return err
			}
			return w.u16(uint16(n))
		}
		if err := w.u8(tagArray32); err != nil {
			return err
		}
		return w.u32(uint32(n))
	case familyFixmap:
		if n <= 15 {
			return w.u8(fixmapBase | byte(n))
		}
		if n <= 0xffff {
			if err := w.u8(tagMap16); err != nil {
				return err
			}
			return w.u16(uint16(n))
		}
		if err := w.u8(tagMap32); err != nil {
			return err
		}
		return w.u32(uint32(n))
	}
	panic("msgpack: unreachable length-header family")
}

func (w *writer) writeStr(s string) error {
	if err := w.writeLengthHeader(familyFixstr, len(s)); err != nil {
		return err
	}
	return w.bytes([]byte(s))
}

func (w *writer) writeUint(v uint64, bits int) error {
	switch {
	case bits <= 8:
		if err := w.u8(tagUint8); err != nil {
			return err
		}
		return w.u8(byte(v))
	case bits <= 16:
		if err := w.u8(tagUint16); err != nil {
			return err
		}
		return w.u16(uint16(v))
	case bits <= 32:
		if err := w.u8(tagUint32); err != nil {
			return err
		}
		return w.u32(uint32(v))
	default:
		if err := w.u8(tagUint64); err != nil {
			return err
		}
		return w.u64(v)
	}
}

func (w *writer) writeInt(v int64, bits int) error {
	switch {
	case bits <= 8:
		if err := w.u8(tagInt8); err != nil {
			return err
		}
		return w.u8(byte(int8(v)))
	case bits <= 16:
		if err := w.u8(tagInt16); err != nil {
			return err
		}
		return w.u16(uint16(int16(v)))
	case bits <= 32:
		if err := w.u8(tagInt32); err != nil {
			return err
		}
		return w.u32(uint32(int32(v)))
	default:
		if err := w.u8(tagInt64); err != nil {
			return err
		}
		return w.u64(uint64(v))
	}
}

func encodeValue(w *writer, rv reflect.Value, info *typeInfo, opts *FormatOptions) error {
	switch info.kind {
	case kindBool:
		if rv.Bool() {
			return w.u8(tagTrue)
		}
		return w.u8(tagFalse)
	case kindUint:
		return w.writeUint(rv.Uint(), hostBits(info.typ))
	case kindInt:
		return w.writeInt(rv.Int(), hostBits(info.typ))
	case kindFloat32:
		if err := w.u8(tagFloat32); err != nil {
			return err
		}
		return w.u32(math.Float32bits(float32(rv.Float())))
	case kindFloat64:
		if err := w.u8(tagFloat64); err != nil {
			return err
		}
		return w.u64(math.Float64bits(rv.Float()))
	case kindString:
		return w.writeStr(rv.String())
	case kindEnum:
		return encodeEnum(w, rv, info, opts)
	case kindOptional:
		if !rv.Field(0).Bool() {
			return w.u8(tagNil)
		}
		return encodeValue(w, rv.Field(1), info.elem, optionsFor(info.elem, opts.Elem))
	case kindPointer:
		if rv.IsNil() {
			return w.u8(tagNil)
		}
		return encodeValue(w, rv.Elem(), info.elem, optionsFor(info.elem, opts.Elem))
	case kindArray:
		return encodeArray(w, rv, info, opts, info.arrayLen, opts.HasSentinel)
	case kindSlice:
		n := rv.Len()
		if opts.HasSentinel {
			n++
		}
		if uint(n) > math.MaxUint32 {
			return ErrSliceLenTooLarge
		}
		return encodeArray(w, rv, info, opts, rv.Len(), opts.HasSentinel)
	case kindStruct:
		return encodeStruct(w, rv, info, opts)
	case kindUnion:
		return encodeUnion(w, rv, info, opts)
	default:
		return admitError(info.typ, "no encoder for this kind")
	}
}

func encodeEnum(w *writer, rv reflect.Value, info *typeInfo, opts *FormatOptions) error {
	tag := rv.Int()
	if opts.EnumRepr == EnumStr {
		name, ok := info.enum.tagToName[tag]
		if !ok {
			return invalidf("enum %s has no name for tag %d", info.typ, tag)
		}
		return w.writeStr(name)
	}
	return w.writeInt(tag, hostBits(info.typ))
}

// encodeArray encodes a fixed array or a slice (rv holds exactly
// logicalLen live elements plus, if withSentinel, one appended sentinel
// element at the end, so the encoded length is the original length + 1).
func encodeArray(w *writer, rv reflect.Value, info *typeInfo, opts *FormatOptions, logicalLen int, withSentinel bool) error {
	n := logicalLen
	if withSentinel {
		n++
	}
	if info.isBytes && opts.ByteRepr != ReprArray {
		kind := familyFixstr
		if opts.ByteRepr == ReprBin {
			kind = familyBin
		}
		if err := w.writeLengthHeader(kind, n); err != nil {
			return err
		}
		buf := make([]byte, n)
		reflect.Copy(reflect.ValueOf(buf), rv)
		if withSentinel {
			buf[n-1] = byte(reflect.ValueOf(opts.Sentinel).Uint())
		}
		return w.bytes(buf)
	}
	if err := w.writeLengthHeader(familyFixarray, n); err != nil {
		return err
	}
	elemOpts := optionsFor(info.elem, opts.Elem)
	for i := 0; i < logicalLen; i++ {
		if err := encodeValue(w, rv.Index(i), info.elem, elemOpts); err != nil {
			return err
		}
	}
	if withSentinel {
		sv := reflect.ValueOf(opts.Sentinel)
		return encodeValue(w, sv, info.elem, elemOpts)
	}
	return nil
}

func encodeStruct(w *writer, rv reflect.Value, info *typeInfo, opts *FormatOptions) error {
	if opts.Layout == LayoutArray {
		if err := w.writeLengthHeader(familyFixarray, len(info.fields)); err != nil {
			return err
		}
		for _, f := range info.fields {
			if err := encodeValue(w, rv.Field(f.goIndex), f.typ, optionsFor(f.typ, opts.Fields[f.name])); err != nil {
				return err
			}
		}
		return nil
	}
	type kept struct {
		f fieldInfo
		v reflect.Value
	}
	keep := make([]kept, 0, len(info.fields))
	for _, f := range info.fields {
		fv := rv.Field(f.goIndex)
		if f.omitEmpty && fv.IsZero() {
			continue
		}
		keep = append(keep, kept{f, fv})
	}
	if err := w.writeLengthHeader(familyFixmap, len(keep)); err != nil {
		return err
	}
	for _, k := range keep {
		if err := w.writeStr(k.f.name); err != nil {
			return err
		}
		if err := encodeValue(w, k.v, k.f.typ, optionsFor(k.f.typ, opts.Fields[k.f.name])); err != nil {
			return err
		}
	}
	return nil
}

func encodeUnion(w *writer, rv reflect.Value, info *typeInfo, opts *FormatOptions) error {
	active := -1
	for i, f := range info.fields {
		if !rv.Field(f.goIndex).IsNil() {
			if active >= 0 {
				return invalidf("union %s has more than one active variant (%s and %s)", info.typ, info.fields[active].name, f.name)
			}
			active = i
		}
	}
	if active < 0 {
		return invalidf("union %s has no active variant", info.typ)
	}
	f := info.fields[active]
	fv := rv.Field(f.goIndex) // non-nil pointer; f.typ is its kindPointer typeInfo
	fopts := optionsFor(f.typ, opts.Fields[f.name])
	if opts.UnionLayout == UnionLayoutActiveField {
		return encodeValue(w, fv, f.typ, fopts)
	}
	if err := w.writeLengthHeader(familyFixmap, 1); err != nil {
		return err
	}
	if err := w.writeStr(f.name); err != nil {
		return err
	}
	return encodeValue(w, fv, f.typ, fopts)
}

// Encode writes v into out using opts (or T's defaults, if opts is nil)
// and returns the number of bytes written. It fails with ErrNoSpaceLeft
// if out is too small, or ErrSliceLenTooLarge if a variable-length
// sequence within v exceeds 2^32-1 elements.
func Encode[T any](v T, out []byte, opts *FormatOptions) (int, error) {
	info, err := admit(reflect.TypeOf(&v).Elem())
	if err != nil {
		return 0, err
	}
	if opts == nil {
		opts = defaultsFor(info)
	}
	w := &writer{buf: out}
	if err := encodeValue(w, reflect.ValueOf(v), info, opts); err != nil {
		return 0, err
	}
	return w.pos, nil
}

// EncodeBounded encodes v into a freshly-allocated buffer sized by
// LargestEncodedSize, and therefore cannot fail with ErrNoSpaceLeft. It
// is only admissible for T with no variable-length subterm.
func EncodeBounded[T any](v T, opts *FormatOptions) ([]byte, error) {
	info, err := admit(reflect.TypeOf(&v).Elem())
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = defaultsFor(info)
	}
	if info.varlen {
		return nil, admitError(info.typ, "contains a variable-length subterm; EncodeBounded is inadmissible")
	}
	n, err := largestEncodedSize(info, opts)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	w := &writer{buf: buf}
	if err := encodeValue(w, reflect.ValueOf(v), info, opts); err != nil {
		return nil, err
	}
	return buf[:w.pos], nil
}
