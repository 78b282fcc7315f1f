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
	"testing"
	"time"
)

func TestClassifyTagBytes(t *testing.T) {
	cases := []struct {
		b    byte
		want family
	}{
		{0x00, familyPosFixint},
		{0x7f, familyPosFixint},
		{0x80, familyFixmap},
		{0x8f, familyFixmap},
		{0x90, familyFixarray},
		{0x9f, familyFixarray},
		{0xa0, familyFixstr},
		{0xbf, familyFixstr},
		{tagNil, familyNil},
		{tagFalse, familyBool},
		{tagTrue, familyBool},
		{tagBin8, familyBin},
		{tagFloat32, familyFloat},
		{tagFloat64, familyFloat},
		{tagUint8, familyUint},
		{tagUint64, familyUint},
		{tagInt8, familyInt},
		{tagInt64, familyInt},
		{tagStr8, familyStr},
		{tagArray16, familyArray},
		{tagArray32, familyArray},
		{tagMap16, familyMap},
		{tagMap32, familyMap},
		{0xe0, familyNegFixint},
		{0xff, familyNegFixint},
		{0xc1, familyInvalid}, // reserved, unassigned by the format
	}
	for _, c := range cases {
		if got := classify(c.b); got != c.want {
			t.Errorf("classify(0x%02x) = %v, want %v", c.b, got, c.want)
		}
	}
}

func TestAdmitRejectsUnsupportedKinds(t *testing.T) {
	if err := Admissible[chan int](); err == nil {
		t.Fatalf("channel type should be inadmissible")
	}
}

func TestAdmitRejectsTimeTime(t *testing.T) {
	if err := Admissible[time.Time](); err == nil {
		t.Fatalf("time.Time should be inadmissible")
	}
}

func TestAdmitAcceptsScalarKinds(t *testing.T) {
	if err := Admissible[bool](); err != nil {
		t.Fatalf("bool should be admissible: %v", err)
	}
	if err := Admissible[int32](); err != nil {
		t.Fatalf("int32 should be admissible: %v", err)
	}
	if err := Admissible[float64](); err != nil {
		t.Fatalf("float64 should be admissible: %v", err)
	}
	if err := Admissible[[]byte](); err != nil {
		t.Fatalf("[]byte should be admissible: %v", err)
	}
}

type sampleUnion struct {
	Union
	A *int32
	B *string
}

type sampleProduct struct {
	X int32
	Y string
}

func TestAdmitStructVsUnion(t *testing.T) {
	if err := Admissible[sampleProduct](); err != nil {
		t.Fatalf("product should be admissible: %v", err)
	}
	if err := Admissible[sampleUnion](); err != nil {
		t.Fatalf("union should be admissible: %v", err)
	}
}

type badUnion struct {
	Union
	A int32 // not a pointer: inadmissible
}

func TestAdmitRejectsNonPointerUnionVariant(t *testing.T) {
	if err := Admissible[badUnion](); err == nil {
		t.Fatalf("union variant must be a pointer type")
	}
}
