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

	"github.com/google/uuid"
)

// record demonstrates a [16]byte-backed field (google/uuid.UUID) encoded
// with the "bin" byte representation instead of the default "str", the
// shape a binary identifier is expected to take on the wire.
type record struct {
	ID      uuid.UUID
	Name    string
	Tags    []string
	Retired bool
}

func TestRoundtripUUIDField(t *testing.T) {
	id := uuid.New()
	v := record{ID: id, Name: "widget", Tags: []string{"a", "b"}, Retired: false}

	opts := DefaultFormatOptions[record]()
	opts.Fields["ID"].ByteRepr = ReprBin

	buf := make([]byte, 512)
	n, err := Encode(v, buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode[record](buf[:n], opts)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != id {
		t.Fatalf("uuid mismatch: got %s, want %s", got.ID, id)
	}
	if got.Name != v.Name || len(got.Tags) != 2 || got.Tags[0] != "a" || got.Tags[1] != "b" {
		t.Fatalf("got %+v, want %+v", got, v)
	}
}
