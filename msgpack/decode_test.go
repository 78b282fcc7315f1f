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
	"errors"
	"io"
	"testing"
)

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	buf := make([]byte, 16)
	n, err := Encode(int32(5), buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Decode[int32](buf[:n+1], nil) // one extra zero byte appended
	if err == nil {
		t.Fatalf("expected trailing byte to be rejected")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	buf := make([]byte, 16)
	n, err := Encode(uint64(0xdeadbeef), buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if _, err := Decode[uint64](buf[:i], nil); err == nil {
			t.Fatalf("prefix of length %d should not decode", i)
		}
	}
}

func TestDecodeRejectsUnknownField(t *testing.T) {
	opts := DefaultFormatOptions[scalarProduct]()
	w := &writer{buf: make([]byte, 256)}
	w.writeLengthHeader(familyFixmap, 1)
	w.writeStr("NotAField")
	w.writeInt(1, 32)
	_, err := Decode[scalarProduct](w.buf[:w.pos], opts)
	if err == nil {
		t.Fatalf("expected unknown field name to be rejected")
	}
}

func TestDecodeRejectsMissingField(t *testing.T) {
	opts := DefaultFormatOptions[scalarProduct]()
	w := &writer{buf: make([]byte, 256)}
	w.writeLengthHeader(familyFixmap, 1)
	w.writeStr("A")
	w.writeInt(1, 32)
	_, err := Decode[scalarProduct](w.buf[:w.pos], opts)
	if err == nil {
		t.Fatalf("expected missing required fields (B, C, D) to be rejected")
	}
}

func TestDecodeRejectsDuplicateField(t *testing.T) {
	opts := DefaultFormatOptions[scalarProduct]()
	w := &writer{buf: make([]byte, 256)}
	w.writeLengthHeader(familyFixmap, 2)
	w.writeStr("A")
	w.writeInt(1, 32)
	w.writeStr("A")
	w.writeInt(2, 32)
	_, err := Decode[scalarProduct](w.buf[:w.pos], opts)
	if err == nil {
		t.Fatalf("expected duplicate field name to be rejected")
	}
}

func TestStreamEncodeDecodeRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder[scalarProduct](&buf, nil)
	records := []scalarProduct{
		{A: 1, B: "one", C: []byte{1}, D: true},
		{A: 2, B: "two", C: []byte{2, 2}, D: false},
		{A: 3, B: "three", C: nil, D: true},
	}
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			t.Fatal(err)
		}
	}
	dec := NewDecoder[scalarProduct](&buf, nil)
	for i, want := range records {
		got, err := dec.Decode()
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if got.A != want.A || got.B != want.B || got.D != want.D {
			t.Fatalf("record %d: got %+v, want %+v", i, got, want)
		}
	}
	if _, err := dec.Decode(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}
