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
	"bytes"
	"math/rand"
	"reflect"
	"testing"
)

func roundtrip[T comparable](t *testing.T, v T, opts *FormatOptions) {
	t.Helper()
	buf := make([]byte, 4096)
	n, err := Encode(v, buf, opts)
	if err != nil {
		t.Fatalf("Encode(%v): %v", v, err)
	}
	got, err := Decode[T](buf[:n], opts)
	if err != nil {
		t.Fatalf("Decode after Encode(%v): %v", v, err)
	}
	if got != v {
		t.Fatalf("round-trip mismatch: got %v, want %v", got, v)
	}
}

func TestRoundtripScalars(t *testing.T) {
	roundtrip(t, true, nil)
	roundtrip(t, false, nil)
	roundtrip(t, int32(-12345), nil)
	roundtrip(t, uint64(1)<<63, nil)
	roundtrip(t, float32(3.5), nil)
	roundtrip(t, 2.71828182845, nil)
}

// TestRoundtripExhaustiveUint8 exhaustively covers every value of an
// 8-bit host type, the narrowest width the encoder ever sees from a
// native Go integer type.
func TestRoundtripExhaustiveUint8(t *testing.T) {
	for v := 0; v <= 0xff; v++ {
		roundtrip(t, uint8(v), nil)
	}
}

func TestRoundtripExhaustiveInt8(t *testing.T) {
	for v := -128; v <= 127; v++ {
		roundtrip(t, int8(v), nil)
	}
}

// TestRoundtripRandomWideIntegers samples the 16/32/64-bit integer
// buckets, the widths for which exhaustive coverage is impractical.
func TestRoundtripRandomWideIntegers(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		roundtrip(t, int16(rng.Intn(1<<16)-1<<15), nil)
		roundtrip(t, uint32(rng.Uint32()), nil)
		roundtrip(t, int64(rng.Uint64()), nil)
		roundtrip(t, uint64(rng.Uint64()), nil)
	}
}

type scalarProduct struct {
	A int32
	B string
	C []byte
	D bool
}

func TestRoundtripStructMapLayout(t *testing.T) {
	v := scalarProduct{A: 7, B: "hello", C: []byte{1, 2, 3}, D: true}
	buf := make([]byte, 4096)
	opts := DefaultFormatOptions[scalarProduct]()
	n, err := Encode(v, buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode[scalarProduct](buf[:n], opts)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Fatalf("got %+v, want %+v", got, v)
	}
}

func TestRoundtripStructArrayLayout(t *testing.T) {
	v := scalarProduct{A: 7, B: "hello", C: []byte{1, 2, 3}, D: true}
	opts := DefaultFormatOptions[scalarProduct]()
	opts.Layout = LayoutArray
	buf := make([]byte, 4096)
	n, err := Encode(v, buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode[scalarProduct](buf[:n], opts)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Fatalf("got %+v, want %+v", got, v)
	}
}

// TestMapLayoutIsFieldOrderInsensitive confirms that a map-layout struct
// decodes correctly even when the wire map presents fields in a
// different order than the Go struct declares them -- the struct is a
// named-field product, not a positional one, when Layout is LayoutMap.
func TestMapLayoutIsFieldOrderInsensitive(t *testing.T) {
	opts := DefaultFormatOptions[scalarProduct]()
	var buf bytes.Buffer
	w := &writer{buf: make([]byte, 256)}
	if err := w.writeLengthHeader(familyFixmap, 4); err != nil {
		t.Fatal(err)
	}
	// write fields in reverse declaration order
	for _, kv := range []struct {
		name string
		val  any
	}{
		{"D", true},
		{"C", []byte{9, 8, 7}},
		{"B", "world"},
		{"A", int32(42)},
	} {
		if err := w.writeStr(kv.name); err != nil {
			t.Fatal(err)
		}
		info, err := admit(reflect.TypeOf(kv.val))
		if err != nil {
			t.Fatal(err)
		}
		if err := encodeValue(w, reflect.ValueOf(kv.val), info, defaultsFor(info)); err != nil {
			t.Fatal(err)
		}
	}
	buf.Write(w.buf[:w.pos])
	got, err := Decode[scalarProduct](buf.Bytes(), opts)
	if err != nil {
		t.Fatal(err)
	}
	want := scalarProduct{A: 42, B: "world", C: []byte{9, 8, 7}, D: true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRoundtripOptional(t *testing.T) {
	roundtrip(t, Some(int32(5)), nil)
	roundtrip(t, None[int32](), nil)
}

type linkedNode struct {
	Value int32
	Next  *linkedNode
}

func TestRoundtripPointerChain(t *testing.T) {
	v := linkedNode{Value: 1, Next: &linkedNode{Value: 2, Next: &linkedNode{Value: 3}}}
	buf := make([]byte, 4096)
	opts := DefaultFormatOptions[linkedNode]()
	n, err := Encode(v, buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode[linkedNode](buf[:n], opts)
	if err != nil {
		t.Fatal(err)
	}
	if got.Value != 1 || got.Next == nil || got.Next.Value != 2 ||
		got.Next.Next == nil || got.Next.Next.Value != 3 || got.Next.Next.Next != nil {
		t.Fatalf("pointer chain mismatch: %+v", got)
	}
}

func TestRoundtripArrayWithSentinel(t *testing.T) {
	opts := DefaultFormatOptions[[4]int32]()
	opts.HasSentinel = true
	opts.Sentinel = int32(-1)
	v := [4]int32{10, 20, 30, 40}
	buf := make([]byte, 256)
	n, err := Encode(v, buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode[[4]int32](buf[:n], opts)
	if err != nil {
		t.Fatal(err)
	}
	if got != v {
		t.Fatalf("got %v, want %v", got, v)
	}
}

func TestDecodeRejectsSentinelMismatch(t *testing.T) {
	opts := DefaultFormatOptions[[4]int32]()
	opts.HasSentinel = true
	opts.Sentinel = int32(-1)
	buf := make([]byte, 256)
	w := &writer{buf: buf}
	w.writeLengthHeader(familyFixarray, 5)
	for _, x := range []int32{10, 20, 30, 40, -2} { // wrong sentinel value
		w.writeInt(int64(x), 32)
	}
	_, err := Decode[[4]int32](buf[:w.pos], opts)
	if err == nil {
		t.Fatalf("expected sentinel mismatch to be rejected")
	}
}

type sumType struct {
	Union
	Connect    *int32
	Disconnect *string
}

func TestRoundtripUnionMapLayout(t *testing.T) {
	v := sumType{Connect: int32ptr(9)}
	buf := make([]byte, 256)
	opts := DefaultFormatOptions[sumType]()
	n, err := Encode(v, buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode[sumType](buf[:n], opts)
	if err != nil {
		t.Fatal(err)
	}
	if got.Connect == nil || *got.Connect != 9 || got.Disconnect != nil {
		t.Fatalf("got %+v", got)
	}
}

func int32ptr(v int32) *int32 { return &v }

type color int32

func TestRoundtripEnumIntAndStr(t *testing.T) {
	const (
		colorRed color = iota
		colorGreen
		colorBlue
	)
	RegisterEnum(map[color]string{
		colorRed:   "red",
		colorGreen: "green",
		colorBlue:  "blue",
	})
	buf := make([]byte, 64)

	opts := DefaultFormatOptions[color]()
	n, err := Encode(colorGreen, buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode[color](buf[:n], opts)
	if err != nil {
		t.Fatal(err)
	}
	if got != colorGreen {
		t.Fatalf("int repr: got %v, want %v", got, colorGreen)
	}

	opts.EnumRepr = EnumStr
	n, err = Encode(colorBlue, buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	got, err = Decode[color](buf[:n], opts)
	if err != nil {
		t.Fatal(err)
	}
	if got != colorBlue {
		t.Fatalf("str repr: got %v, want %v", got, colorBlue)
	}
}

func TestDecodeRejectsUndeclaredEnumName(t *testing.T) {
	type weekday int16
	RegisterEnum(map[weekday]string{0: "mon", 1: "tue"})
	opts := DefaultFormatOptions[weekday]()
	opts.EnumRepr = EnumStr
	buf := make([]byte, 64)
	w := &writer{buf: buf}
	w.writeStr("nonexistent")
	_, err := Decode[weekday](buf[:w.pos], opts)
	if err == nil {
		t.Fatalf("expected unknown enum name to be rejected")
	}
}
