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

import "testing"

type boundedProduct struct {
	A int64
	B [8]byte
	C bool
	D float64
}

func TestLargestEncodedSizeIsAnUpperBound(t *testing.T) {
	bound, err := LargestEncodedSize[boundedProduct](nil)
	if err != nil {
		t.Fatal(err)
	}
	v := boundedProduct{A: -1, B: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, C: true, D: 3.14159}
	buf, err := EncodeBounded(v, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) > bound {
		t.Fatalf("encoded length %d exceeds LargestEncodedSize bound %d", len(buf), bound)
	}
}

func TestLargestEncodedSizeRejectsVariableLength(t *testing.T) {
	if _, err := LargestEncodedSize[scalarProduct](nil); err == nil {
		t.Fatalf("expected a variable-length field (string/[]byte) to be rejected")
	}
}

func TestEncodeBoundedRejectsVariableLength(t *testing.T) {
	if _, err := EncodeBounded(scalarProduct{}, nil); err == nil {
		t.Fatalf("expected a variable-length field to be rejected")
	}
}
