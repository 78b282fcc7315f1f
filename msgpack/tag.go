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

// family is the MessagePack wire family of a single object,
// independent of the width chosen for its length/value payload.
type family byte

const (
	familyInvalid family = iota
	familyPosFixint
	familyNegFixint
	familyNil
	familyBool
	familyUint
	familyInt
	familyFloat
	familyFixstr
	familyStr
	familyBin
	familyFixarray
	familyArray
	familyFixmap
	familyMap
)

var familyNames = [...]string{
	familyInvalid:   "invalid",
	familyPosFixint: "positive fixint",
	familyNegFixint: "negative fixint",
	familyNil:       "nil",
	familyBool:      "bool",
	familyUint:      "uint",
	familyInt:       "int",
	familyFloat:     "float",
	familyFixstr:    "fixstr",
	familyStr:       "str",
	familyBin:       "bin",
	familyFixarray:  "fixarray",
	familyArray:     "array",
	familyFixmap:    "fixmap",
	familyMap:       "map",
}

func (f family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return "invalid"
}

// tag bytes, as published by the MessagePack format.
const (
	tagNil     byte = 0xc0
	tagFalse   byte = 0xc2
	tagTrue    byte = 0xc3
	tagBin8    byte = 0xc4
	tagBin16   byte = 0xc5
	tagBin32   byte = 0xc6
	tagFloat32 byte = 0xca
	tagFloat64 byte = 0xcb
	tagUint8   byte = 0xcc
	tagUint16  byte = 0xcd
	tagUint32  byte = 0xce
	tagUint64  byte = 0xcf
	tagInt8    byte = 0xd0
	tagInt16   byte = 0xd1
	tagInt32   byte = 0xd2
	tagInt64   byte = 0xd3
	tagStr8    byte = 0xd9
	tagStr16   byte = 0xda
	tagStr32   byte = 0xdb
	tagArray16 byte = 0xdc
	tagArray32 byte = 0xdd
	tagMap16   byte = 0xde
	tagMap32   byte = 0xdf

	// fix-family base bytes; inline bits are added on top.
	fixmapBase   byte = 0x80 // + count (0..15)
	fixarrayBase byte = 0x90 // + count (0..15)
	fixstrBase   byte = 0xa0 // + length (0..31)
	negFixintMin byte = 0xe0 // 0xe0..0xff, value = int8(b)
)

// classify reports the family of the tag byte at the head of a message,
// the Go equivalent of ion.DecodeTLV/ion.TypeOf: a total function over
// every byte value. Bytes this codec has no family for (the reserved
// 0xc1 and the ext/fixext tags) classify as familyInvalid.
func classify(b byte) family {
	switch {
	case b <= 0x7f:
		return familyPosFixint
	case b >= fixmapBase && b <= 0x8f:
		return familyFixmap
	case b >= fixarrayBase && b <= 0x9f:
		return familyFixarray
	case b >= fixstrBase && b <= 0xbf:
		return familyFixstr
	case b >= negFixintMin:
		return familyNegFixint
	}
	switch b {
	case tagNil:
		return familyNil
	case tagFalse, tagTrue:
		return familyBool
	case tagBin8, tagBin16, tagBin32:
		return familyBin
	case tagFloat32, tagFloat64:
		return familyFloat
	case tagUint8, tagUint16, tagUint32, tagUint64:
		return familyUint
	case tagInt8, tagInt16, tagInt32, tagInt64:
		return familyInt
	case tagStr8, tagStr16, tagStr32:
		return familyStr
	case tagArray16, tagArray32:
		return familyArray
	case tagMap16, tagMap32:
		return familyMap
	default:
		return familyInvalid
	}
}
