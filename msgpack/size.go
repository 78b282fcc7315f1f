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

import "reflect"

func arrayHeaderSize(n int) int {
	switch {
	case n <= 15:
		return 1
	case n <= 0xffff:
		return 3
	default:
		return 5
	}
}

func mapHeaderSize(n int) int { return arrayHeaderSize(n) }

func strHeaderSize(n int) int {
	switch {
	case n <= 31:
		return 1
	case n <= 0xff:
		return 2
	case n <= 0xffff:
		return 3
	default:
		return 5
	}
}

func binHeaderSize(n int) int {
	switch {
	case n <= 0xff:
		return 2
	case n <= 0xffff:
		return 3
	default:
		return 5
	}
}

// intWireSize returns the fixed number of bytes (tag + payload) this
// size calculation always budgets for an integer/uint of the given Go
// bit width. It matches writeUint/writeInt exactly: Go has no integer
// type narrower than 8 bits, and the encoder picks the family from the
// bit width alone, never embedding a value as a fixint. The family is
// the same shape for signed and unsigned widths, so one table serves
// both.
func intWireSize(bits int) int {
	switch {
	case bits <= 8:
		return 2
	case bits <= 16:
		return 3
	case bits <= 32:
		return 5
	default:
		return 9
	}
}

// LargestEncodedSize returns the upper bound on len(Encode(v, opts)) for
// any v of admissible, bounded type T. It returns an error if T contains
// a variable-length subterm (string or slice), the same restriction
// EncodeBounded places on its argument.
func LargestEncodedSize[T any](opts *FormatOptions) (int, error) {
	var zero T
	info, err := admit(reflect.TypeOf(&zero).Elem())
	if err != nil {
		return 0, err
	}
	if opts == nil {
		opts = defaultsFor(info)
	}
	if info.varlen {
		return 0, admitError(info.typ, "contains a variable-length subterm; use a streaming bound instead")
	}
	return largestEncodedSize(info, opts)
}

func largestEncodedSize(info *typeInfo, opts *FormatOptions) (int, error) {
	switch info.kind {
	case kindBool:
		return 1, nil
	case kindInt, kindUint:
		return intWireSize(hostBits(info.typ)), nil
	case kindFloat32:
		return 5, nil
	case kindFloat64:
		return 9, nil
	case kindEnum:
		if opts.EnumRepr == EnumStr {
			return strHeaderSize(info.maxName) + info.maxName, nil
		}
		return intWireSize(64), nil
	case kindOptional, kindPointer:
		inner, err := largestEncodedSize(info.elem, optionsFor(info.elem, opts.Elem))
		if err != nil {
			return 0, err
		}
		if inner < 1 {
			inner = 1
		}
		return inner, nil
	case kindArray:
		return arraySize(info, opts)
	case kindStruct:
		return structSize(info, opts)
	case kindUnion:
		return unionSize(info, opts)
	default:
		return 0, admitError(info.typ, "not a bounded type")
	}
}

func arraySize(info *typeInfo, opts *FormatOptions) (int, error) {
	n := info.arrayLen
	if opts.HasSentinel {
		n++
	}
	if info.isBytes {
		switch opts.ByteRepr {
		case ReprBin:
			return binHeaderSize(n) + n, nil
		case ReprArray:
			// fall through to generic per-element accounting below
		default:
			return strHeaderSize(n) + n, nil
		}
	}
	elemSize, err := largestEncodedSize(info.elem, optionsFor(info.elem, opts.Elem))
	if err != nil {
		return 0, err
	}
	return arrayHeaderSize(n) + n*elemSize, nil
}

func structSize(info *typeInfo, opts *FormatOptions) (int, error) {
	total := 0
	for _, f := range info.fields {
		fopts := optionsFor(f.typ, opts.Fields[f.name])
		sz, err := largestEncodedSize(f.typ, fopts)
		if err != nil {
			return 0, err
		}
		if opts.Layout == LayoutMap {
			total += strHeaderSize(len(f.name)) + len(f.name)
		}
		total += sz
	}
	n := len(info.fields)
	if opts.Layout == LayoutMap {
		return mapHeaderSize(n) + total, nil
	}
	return arrayHeaderSize(n) + total, nil
}

func unionSize(info *typeInfo, opts *FormatOptions) (int, error) {
	best := 0
	for _, f := range info.fields {
		fopts := optionsFor(f.typ, opts.Fields[f.name])
		sz, err := largestEncodedSize(f.typ, fopts)
		if err != nil {
			return 0, err
		}
		if opts.UnionLayout == UnionLayoutMap {
			sz += strHeaderSize(len(f.name)) + len(f.name)
		}
		if sz > best {
			best = sz
		}
	}
	if opts.UnionLayout == UnionLayoutMap {
		return mapHeaderSize(1) + best, nil
	}
	return best, nil
}
