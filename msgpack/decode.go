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

// reader is a cursor over an input message (pos may be saved and
// rewound, as decodeUnionActiveField does), the decode-side
// analogue of writer. It never copies the input; strings/bytes are sliced
// directly out of data, mirroring ion.Unmarshal's "decode in place, no
// intermediate copies" discipline (see ion/unmarshal.go's DecodeTLV/
// Contents helpers).
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

// errShortInput is a plain, unwrapped sentinel returned whenever a read
// runs off the end of the buffer -- deliberately not routed through
// invalidf/ErrInvalid, so stream.go can tell "this buffer holds an
// incomplete value, read more and retry" apart from every other decode
// failure via a direct == comparison. Decode and DecodeAlloc
// translate it to an ErrInvalid-wrapped error before it reaches a
// one-shot caller, which never needs to tell the two apart.

func (r *reader) peek() (byte, error) {
	if r.remaining() < 1 {
		return 0, errShortInput
	}
	return r.buf[r.pos], nil
}

func (r *reader) u8() (byte, error) {
	if r.remaining() < 1 {
		return 0, errShortInput
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, errShortInput
	}
	p := r.buf[r.pos : r.pos+n]
	r.pos += n
	return p, nil
}

func (r *reader) u16() (uint16, error) {
	p, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (r *reader) u32() (uint32, error) {
	p, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

func (r *reader) u64() (uint64, error) {
	p, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(p), nil
}

// readLengthHeader reads one of the str/bin/array/map headers, accepting
// any width: the decoder never requires the encoder's choice of width to
// match what it would itself have produced, so a uint16-width array
// header decodes the same as a fixarray header for a short array.
func (r *reader) readLengthHeader(want family) (int, error) {
	tag, err := r.u8()
	if err != nil {
		return 0, err
	}
	got := classify(tag)
	switch want {
	case familyFixstr:
		switch {
		case tag >= fixstrBase && tag <= 0xbf:
			return int(tag &^ fixstrBase), nil
		case tag == tagStr8:
			n, err := r.u8()
			return int(n), err
		case tag == tagStr16:
			n, err := r.u16()
			return int(n), err
		case tag == tagStr32:
			n, err := r.u32()
			return int(n), err
		}
	case familyBin:
		switch tag {
		case tagBin8:
			n, err := r.u8()
			return int(n), err
		case tagBin16:
			n, err := r.u16()
			return int(n), err
		case tagBin32:
			n, err := r.u32()
			return int(n), err
		}
	case familyFixarray:
		switch {
		case tag >= fixarrayBase && tag <= 0x9f:
			return int(tag &^ fixarrayBase), nil
		case tag == tagArray16:
			n, err := r.u16()
			return int(n), err
		case tag == tagArray32:
			n, err := r.u32()
			return int(n), err
		}
	case familyFixmap:
		switch {
		case tag >= fixmapBase && tag <= 0x8f:
			return int(tag &^ fixmapBase), nil
		case tag == tagMap16:
			n, err := r.u16()
			return int(n), err
		case tag == tagMap32:
			n, err := r.u32()
			return int(n), err
		}
	}
	return 0, invalidf("expected a %v header, got family %v (tag 0x%02x)", want, got, tag)
}

// readUint reads any integer family (fixint, uint*, or a non-negative
// int*) and narrows it to bits, failing with ErrInvalid on overflow or on
// a negative source value.
func (r *reader) readUint(bits int) (uint64, error) {
	tag, err := r.u8()
	if err != nil {
		return 0, err
	}
	var v uint64
	switch {
	case tag <= 0x7f:
		v = uint64(tag)
	case tag >= negFixintMin:
		return 0, invalidf("cannot decode negative fixint 0x%02x into an unsigned field", tag)
	default:
		switch tag {
		case tagUint8:
			b, err := r.u8()
			if err != nil {
				return 0, err
			}
			v = uint64(b)
		case tagUint16:
			n, err := r.u16()
			if err != nil {
				return 0, err
			}
			v = uint64(n)
		case tagUint32:
			n, err := r.u32()
			if err != nil {
				return 0, err
			}
			v = uint64(n)
		case tagUint64:
			v, err = r.u64()
			if err != nil {
				return 0, err
			}
		case tagInt8, tagInt16, tagInt32, tagInt64:
			sv, err := r.readSignedPayload(tag)
			if err != nil {
				return 0, err
			}
			if sv < 0 {
				return 0, invalidf("cannot decode negative value %d into an unsigned field", sv)
			}
			v = uint64(sv)
		default:
			return 0, invalidf("tag 0x%02x is not an integer", tag)
		}
	}
	if bits < 64 && v >= uint64(1)<<uint(bits) {
		return 0, invalidf("value %d overflows %d-bit unsigned field", v, bits)
	}
	return v, nil
}

func (r *reader) readSignedPayload(tag byte) (int64, error) {
	switch tag {
	case tagInt8:
		b, err := r.u8()
		return int64(int8(b)), err
	case tagInt16:
		n, err := r.u16()
		return int64(int16(n)), err
	case tagInt32:
		n, err := r.u32()
		return int64(int32(n)), err
	case tagInt64:
		n, err := r.u64()
		return int64(n), err
	}
	panic("msgpack: readSignedPayload called with a non-int tag")
}

// readInt mirrors readUint for signed fields, additionally accepting
// unsigned tags whose value fits in the signed range.
func (r *reader) readInt(bits int) (int64, error) {
	tag, err := r.peek()
	if err != nil {
		return 0, err
	}
	var v int64
	switch {
	case tag <= 0x7f:
		r.pos++
		v = int64(tag)
	case tag >= negFixintMin:
		r.pos++
		v = int64(int8(tag))
	default:
		switch tag {
		case tagInt8, tagInt16, tagInt32, tagInt64:
			r.pos++
			v, err = r.readSignedPayload(tag)
			if err != nil {
				return 0, err
			}
		case tagUint8, tagUint16, tagUint32, tagUint64:
			u, err := r.readUint(64)
			if err != nil {
				return 0, err
			}
			if u > math.MaxInt64 {
				return 0, invalidf("value %d overflows signed 64-bit range", u)
			}
			v = int64(u)
		default:
			return 0, invalidf("tag 0x%02x is not an integer", tag)
		}
	}
	if bits < 64 {
		min, max := -(int64(1) << uint(bits-1)), int64(1)<<uint(bits-1)-1
		if v < min || v > max {
			return 0, invalidf("value %d overflows %d-bit signed field", v, bits)
		}
	}
	return v, nil
}

func (r *reader) readFloat32() (float32, error) {
	tag, err := r.u8()
	if err != nil {
		return 0, err
	}
	if tag != tagFloat32 {
		return 0, invalidf("expected float32, got tag 0x%02x", tag)
	}
	bits, err := r.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (r *reader) readFloat64() (float64, error) {
	tag, err := r.u8()
	if err != nil {
		return 0, err
	}
	if tag != tagFloat64 {
		return 0, invalidf("expected float64, got tag 0x%02x", tag)
	}
	bits, err := r.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (r *reader) readStrBytes() ([]byte, error) {
	n, err := r.readLengthHeader(familyFixstr)
	if err != nil {
		return nil, err
	}
	return r.take(n)
}

// readName reads a str-family field/variant/enum name and rejects it as
// Invalid the moment its length prefix is known, before the bytes are
// taken or converted to a Go string, if it exceeds max -- the largest
// name declared anywhere on the type being decoded.
func (r *reader) readName(max int) (string, error) {
	n, err := r.readLengthHeader(familyFixstr)
	if err != nil {
		return "", err
	}
	if n > max {
		return "", invalidf("name of length %d exceeds the longest name declared on this type (%d)", n, max)
	}
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeCtx threads the arena (if any) and the destination reflect.Value
// through a decode walk. arena is nil for Decode[T]; DecodeAlloc[T]
// supplies one, used for the contents of decoded byte slices so they can
// be released as a unit (see arena.go). Pointees and non-byte slices are
// allocated on the Go heap in both cases.
type decodeCtx struct {
	arena *Arena
}

func (c *decodeCtx) allocBytes(n int) []byte {
	if c.arena == nil {
		return make([]byte, n)
	}
	return c.arena.Alloc(n)
}

func decodeValue(r *reader, dst reflect.Value, info *typeInfo, opts *FormatOptions, ctx *decodeCtx) error {
	switch info.kind {
	case kindBool:
		tag, err := r.u8()
		if err != nil {
			return err
		}
		switch tag {
		case tagTrue:
			dst.SetBool(true)
		case tagFalse:
			dst.SetBool(false)
		default:
			return invalidf("expected bool, got tag 0x%02x", tag)
		}
		return nil
	case kindUint:
		v, err := r.readUint(hostBits(info.typ))
		if err != nil {
			return err
		}
		dst.SetUint(v)
		return nil
	case kindInt:
		v, err := r.readInt(hostBits(info.typ))
		if err != nil {
			return err
		}
		dst.SetInt(v)
		return nil
	case kindFloat32:
		v, err := r.readFloat32()
		if err != nil {
			return err
		}
		dst.SetFloat(float64(v))
		return nil
	case kindFloat64:
		v, err := r.readFloat64()
		if err != nil {
			return err
		}
		dst.SetFloat(v)
		return nil
	case kindString:
		b, err := r.readStrBytes()
		if err != nil {
			return err
		}
		dst.SetString(string(b))
		return nil
	case kindEnum:
		return decodeEnum(r, dst, info, opts)
	case kindOptional:
		tag, err := r.peek()
		if err != nil {
			return err
		}
		if tag == tagNil {
			r.pos++
			dst.Field(0).SetBool(false)
			return nil
		}
		dst.Field(0).SetBool(true)
		return decodeValue(r, dst.Field(1), info.elem, optionsFor(info.elem, opts.Elem), ctx)
	case kindPointer:
		tag, err := r.peek()
		if err != nil {
			return err
		}
		if tag == tagNil {
			r.pos++
			dst.SetZero()
			return nil
		}
		p := reflect.New(info.elem.typ)
		if err := decodeValue(r, p.Elem(), info.elem, optionsFor(info.elem, opts.Elem), ctx); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	case kindArray:
		return decodeArray(r, dst, info, opts, info.arrayLen, ctx)
	case kindSlice:
		return decodeSlice(r, dst, info, opts, ctx)
	case kindStruct:
		return decodeStruct(r, dst, info, opts, ctx)
	case kindUnion:
		return decodeUnion(r, dst, info, opts, ctx)
	default:
		return admitError(info.typ, "no decoder for this kind")
	}
}

func decodeEnum(r *reader, dst reflect.Value, info *typeInfo, opts *FormatOptions) error {
	var tag int64
	if opts.EnumRepr == EnumStr {
		name, err := r.readName(info.maxName)
		if err != nil {
			return err
		}
		t, ok := info.enum.nameToTag[name]
		if !ok {
			return invalidf("%q is not a declared variant of enum %s", name, info.typ)
		}
		tag = t
	} else {
		v, err := r.readInt(64)
		if err != nil {
			return err
		}
		if _, ok := info.enum.tagToName[v]; !ok {
			return invalidf("%d is not a declared tag of enum %s", v, info.typ)
		}
		tag = v
	}
	dst.SetInt(tag)
	return nil
}

// decodeArray decodes a fixed-length array field. If opts.HasSentinel,
// the wire sequence must be exactly logicalLen+1 elements long and the
// trailing element must equal opts.Sentinel; otherwise it must be
// exactly logicalLen.
func decodeArray(r *reader, dst reflect.Value, info *typeInfo, opts *FormatOptions, logicalLen int, ctx *decodeCtx) error {
	want := logicalLen
	if opts.HasSentinel {
		want++
	}
	if info.isBytes && opts.ByteRepr != ReprArray {
		fam := familyFixstr
		if opts.ByteRepr == ReprBin {
			fam = familyBin
		}
		n, err := r.readLengthHeader(fam)
		if err != nil {
			return err
		}
		if n != want {
			return invalidf("array %s: expected %d bytes, got %d", info.typ, want, n)
		}
		p, err := r.take(n)
		if err != nil {
			return err
		}
		if opts.HasSentinel {
			if p[n-1] != byte(reflect.ValueOf(opts.Sentinel).Uint()) {
				return invalidf("array %s: trailing sentinel byte mismatch", info.typ)
			}
			p = p[:n-1]
		}
		reflect.Copy(dst, reflect.ValueOf(p))
		return nil
	}
	n, err := r.readLengthHeader(familyFixarray)
	if err != nil {
		return err
	}
	if n != want {
		return invalidf("array %s: expected %d elements, got %d", info.typ, want, n)
	}
	elemOpts := optionsFor(info.elem, opts.Elem)
	for i := 0; i < logicalLen; i++ {
		if err := decodeValue(r, dst.Index(i), info.elem, elemOpts, ctx); err != nil {
			return err
		}
	}
	if opts.HasSentinel {
		sentinel := reflect.New(info.elem.typ).Elem()
		if err := decodeValue(r, sentinel, info.elem, elemOpts, ctx); err != nil {
			return err
		}
		if !reflect.DeepEqual(sentinel.Interface(), opts.Sentinel) {
			return invalidf("array %s: trailing sentinel element mismatch", info.typ)
		}
	}
	return nil
}

// decodeSlice decodes a variable-length sequence. A byte slice's storage
// is allocated from ctx's arena (or the Go heap, for plain Decode[T]);
// any other slice is allocated on the Go heap with reflect.MakeSlice. The
// sentinel element, if any, is consumed but not retained in the result
// slice, matching the encode-side "encoded length is logical length + 1"
// convention.
func decodeSlice(r *reader, dst reflect.Value, info *typeInfo, opts *FormatOptions, ctx *decodeCtx) error {
	if info.isBytes && opts.ByteRepr != ReprArray {
		fam := familyFixstr
		if opts.ByteRepr == ReprBin {
			fam = familyBin
		}
		n, err := r.readLengthHeader(fam)
		if err != nil {
			return err
		}
		p, err := r.take(n)
		if err != nil {
			return err
		}
		if opts.HasSentinel {
			if n == 0 {
				return invalidf("slice %s: expected a trailing sentinel byte", info.typ)
			}
			if p[n-1] != byte(reflect.ValueOf(opts.Sentinel).Uint()) {
				return invalidf("slice %s: trailing sentinel byte mismatch", info.typ)
			}
			p = p[:n-1]
		}
		out := ctx.allocBytes(len(p))
		copy(out, p)
		dst.SetBytes(out)
		return nil
	}
	n, err := r.readLengthHeader(familyFixarray)
	if err != nil {
		return err
	}
	logicalLen := n
	if opts.HasSentinel {
		if n == 0 {
			return invalidf("slice %s: expected a trailing sentinel element", info.typ)
		}
		logicalLen = n - 1
	}
	elemOpts := optionsFor(info.elem, opts.Elem)
	out := reflect.MakeSlice(info.typ, logicalLen, logicalLen)
	for i := 0; i < logicalLen; i++ {
		if err := decodeValue(r, out.Index(i), info.elem, elemOpts, ctx); err != nil {
			return err
		}
	}
	if opts.HasSentinel {
		sentinel := reflect.New(info.elem.typ).Elem()
		if err := decodeValue(r, sentinel, info.elem, elemOpts, ctx); err != nil {
			return err
		}
		if !reflect.DeepEqual(sentinel.Interface(), opts.Sentinel) {
			return invalidf("slice %s: trailing sentinel element mismatch", info.typ)
		}
	}
	dst.Set(out)
	return nil
}

func decodeStruct(r *reader, dst reflect.Value, info *typeInfo, opts *FormatOptions, ctx *decodeCtx) error {
	if opts.Layout == LayoutArray {
		n, err := r.readLengthHeader(familyFixarray)
		if err != nil {
			return err
		}
		if n != len(info.fields) {
			return invalidf("struct %s: expected %d elements, got %d", info.typ, len(info.fields), n)
		}
		for _, f := range info.fields {
			if err := decodeValue(r, dst.Field(f.goIndex), f.typ, optionsFor(f.typ, opts.Fields[f.name]), ctx); err != nil {
				return err
			}
		}
		return nil
	}
	n, err := r.readLengthHeader(familyFixmap)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		key, err := r.readName(info.maxName)
		if err != nil {
			return err
		}
		if seen[key] {
			return invalidf("struct %s: duplicate field %q", info.typ, key)
		}
		seen[key] = true
		f, ok := info.fieldByHash(key)
		if !ok {
			return invalidf("struct %s: unknown field %q", info.typ, key)
		}
		if err := decodeValue(r, dst.Field(f.goIndex), f.typ, optionsFor(f.typ, opts.Fields[f.name]), ctx); err != nil {
			return err
		}
	}
	for _, f := range info.fields {
		if !seen[f.name] && !f.omitEmpty {
			return invalidf("struct %s: missing field %q", info.typ, f.name)
		}
	}
	return nil
}

func decodeUnion(r *reader, dst reflect.Value, info *typeInfo, opts *FormatOptions, ctx *decodeCtx) error {
	if opts.UnionLayout == UnionLayoutActiveField {
		return decodeUnionActiveField(r, dst, info, opts, ctx)
	}
	n, err := r.readLengthHeader(familyFixmap)
	if err != nil {
		return err
	}
	if n != 1 {
		return invalidf("union %s: expected a single-entry map, got %d entries", info.typ, n)
	}
	name, err := r.readName(info.maxName)
	if err != nil {
		return err
	}
	f, ok := info.fieldByHash(name)
	if !ok {
		return invalidf("union %s: unknown variant %q", info.typ, name)
	}
	// f.typ is the variant's kindPointer typeInfo; decodeValue's pointer
	// case allocates and assigns it directly onto dst's field.
	return decodeValue(r, dst.Field(f.goIndex), f.typ, optionsFor(f.typ, opts.Fields[f.name]), ctx)
}

// decodeUnionActiveField decodes a sum carried with no wire tag at all:
// the payload is tried against each variant in declaration order, with
// the read position saved before each attempt and rewound on failure,
// since a variant that fails partway through may have consumed bytes
// that the next attempt needs to see again. Variants must be declared
// from most to least specific, or the first syntactically-acceptable
// one wins -- an explicit ambiguity pushed onto the caller, not
// resolved here.
func decodeUnionActiveField(r *reader, dst reflect.Value, info *typeInfo, opts *FormatOptions, ctx *decodeCtx) error {
	saved := r.pos
	for _, f := range info.fields {
		r.pos = saved
		fopts := optionsFor(f.typ, opts.Fields[f.name])
		if err := decodeValue(r, dst.Field(f.goIndex), f.typ, fopts, ctx); err == nil {
			return nil
		}
	}
	r.pos = saved
	return invalidf("union %s: no active_field variant matched", info.typ)
}

func fieldByName(fields []fieldInfo, name string) (fieldInfo, bool) {
	for _, f := range fields {
		if f.name == name {
			return f, true
		}
	}
	return fieldInfo{}, false
}

// Decode parses data as a T using opts (or T's defaults, if opts is nil),
// failing with ErrInvalid if any trailing bytes remain after a complete
// value has been read. T may contain variable-length parts; pointer- and
// slice-typed sub-values are allocated on the Go heap. DecodeAlloc routes
// byte-slice contents through an Arena instead.
func Decode[T any](data []byte, opts *FormatOptions) (T, error) {
	var out T
	info, err := admit(reflect.TypeOf(&out).Elem())
	if err != nil {
		return out, err
	}
	if opts == nil {
		opts = defaultsFor(info)
	}
	r := &reader{buf: data}
	if err := decodeValue(r, reflect.ValueOf(&out).Elem(), info, opts, &decodeCtx{}); err != nil {
		return out, publicDecodeErr(err)
	}
	if r.remaining() != 0 {
		return out, invalidf("%d trailing byte(s) after decoded value", r.remaining())
	}
	return out, nil
}

// publicDecodeErr translates the internal errShortInput sentinel into an
// ErrInvalid-wrapped error at the Decode/DecodeAlloc boundary; every
// other error already carries its own ErrInvalid wrapping.
func publicDecodeErr(err error) error {
	if err == errShortInput {
		return invalidf("unexpected end of input")
	}
	return err
}

// DecodeAlloc parses data as a T exactly like Decode, but copies the
// contents of every decoded byte slice into arena instead of the Go heap.
// Pointees and non-byte slices are still allocated on the Go heap. arena
// is used directly (no child arena is created), and it is not released
// when decoding fails. The returned Decoded[T] must be released (via its
// Release method, or by releasing arena directly) before arena is reused
// or discarded.
func DecodeAlloc[T any](arena *Arena, data []byte, opts *FormatOptions) (Decoded[T], error) {
	var out T
	info, err := admit(reflect.TypeOf(&out).Elem())
	if err != nil {
		return Decoded[T]{}, err
	}
	if opts == nil {
		opts = defaultsFor(info)
	}
	r := &reader{buf: data}
	ctx := &decodeCtx{arena: arena}
	if err := decodeValue(r, reflect.ValueOf(&out).Elem(), info, opts, ctx); err != nil {
		return Decoded[T]{}, publicDecodeErr(err)
	}
	if r.remaining() != 0 {
		return Decoded[T]{}, invalidf("%d trailing byte(s) after decoded value", r.remaining())
	}
	return Decoded[T]{Value: out, arena: arena}, nil
}
