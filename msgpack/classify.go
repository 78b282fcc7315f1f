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
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dchest/siphash"
	"golang.org/x/exp/slices"
)

// fieldNameHash hashes a wire-format field or variant name for the
// dispatch table built by compileStruct. SipHash is used in place of
// Go's built-in map hash so that map-layout struct/union decoding -- the
// hottest lookup in the decoder -- does not depend on the runtime's own
// (unspecified, version-dependent) string hashing; the key is fixed and
// public since the table only needs to be fast, not adversary-resistant.
func fieldNameHash(name string) uint64 {
	return siphash.Hash(0, 0, []byte(name))
}

// timeTimeType is checked for explicitly because its fields are all
// unexported: compileStruct would otherwise silently classify it as an
// empty product. Unlike ion, which has a dedicated timestamp TLV type,
// this wire format has no ext/timestamp family, so there is no
// faithful representation to fall back to -- callers that need to encode
// a time must do so via an explicit int64/string field of their own.
var timeTimeType = reflect.TypeOf(time.Time{})

// hostKind is the admissible-kind enumeration this codec classifies
// every Go type into. It is the Go analogue of the switch
// ion.encoderFunc/ion.decodeFunc dispatch on
// reflect.Kind, generalized with the two kinds (union, enum) Go's
// reflect.Kind does not distinguish on its own.
type hostKind int

const (
	kindBool hostKind = iota
	kindInt
	kindUint
	kindFloat32
	kindFloat64
	kindString
	kindOptional
	kindPointer
	kindArray // fixed-length array, with or without a sentinel
	kindSlice // variable-length sequence, with or without a sentinel
	kindStruct
	kindUnion
	kindEnum
)

// fieldInfo describes one declared field of a struct (product) or one
// declared variant of a union (sum), in source declaration order.
type fieldInfo struct {
	goIndex   int
	name      string
	omitEmpty bool
	typ       *typeInfo
}

// typeInfo is the compiled, per-reflect.Type classification-and-shape
// plan, computed once per type and cached for the remaining life of the
// process. It is
// deliberately *not* specialized to any one FormatOptions value (a
// struct's layout, an enum's representation, etc. are still runtime
// choices threaded through encode/decode) -- it only records what the
// type structurally contains, the same split ion's structEncoders/
// compiledStructs caches use: a per-type field plan computed once, still
// consulting the value (and, here, the options tree) at call time.
type typeInfo struct {
	typ        reflect.Type
	kind       hostKind
	isBytes    bool // kindArray/kindSlice: element is uint8
	arrayLen   int  // kindArray only
	elem       *typeInfo
	fields     []fieldInfo      // kindStruct/kindUnion, in declaration order
	fieldIndex map[uint64]int   // kindStruct/kindUnion: fieldNameHash(name) -> index into fields
	enum       *enumInfo        // kindEnum
	maxName    int              // largest field/variant/enum-name length in bytes
	varlen     bool             // containsVariableLength, §4.2
	defaults   *FormatOptions
}

// fieldByHash looks up a decoded wire name against t's dispatch table,
// built once at compile time by compileStruct. A hash collision between
// two distinct field names is resolved by falling back to a direct
// string comparison, so it can never misroute a lookup -- only slow it
// down, and only for types whose fields happen to collide.
func (t *typeInfo) fieldByHash(name string) (fieldInfo, bool) {
	idx, ok := t.fieldIndex[fieldNameHash(name)]
	if !ok {
		return fieldInfo{}, false
	}
	f := t.fields[idx]
	if f.name != name {
		return fieldByName(t.fields, name)
	}
	return f, true
}

var typeCache sync.Map // reflect.Type -> *typeInfo (or nil while compiling, to break cycles)

// admit classifies t, rejecting any type containing an inadmissible
// kind: the error surfaces on first use of an inadmissible type rather
// than at compilation, since Go has no general comptime type predicate
// facility.
func admit(t reflect.Type) (*typeInfo, error) {
	if v, ok := typeCache.Load(t); ok {
		if info, ok := v.(*typeInfo); ok && info != nil {
			return info, nil
		}
		// concurrent or recursive compile in progress: break the cycle
		// by deferring the real lookup until the value is used. Struct
		// fields that recurse into their own type (linked lists via a
		// pointer field) go through kindPointer/kindSlice, which never
		// need the fully-compiled typeInfo synchronously, so a nil
		// placeholder is sufficient here.
		return &typeInfo{typ: t}, nil
	}
	typeCache.Store(t, (*typeInfo)(nil))
	info, err := compile(t)
	if err != nil {
		typeCache.Delete(t)
		return nil, err
	}
	typeCache.Store(t, info)
	return info, nil
}

func compile(t reflect.Type) (*typeInfo, error) {
	if isOptionalType(t) {
		return compileOptional(t)
	}
	if isUnionType(t) {
		return compileStruct(t, kindUnion)
	}
	if en, ok := lookupEnum(t); ok {
		return compileEnum(t, en)
	}
	switch t.Kind() {
	case reflect.Bool:
		return &typeInfo{typ: t, kind: kindBool}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &typeInfo{typ: t, kind: kindInt}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &typeInfo{typ: t, kind: kindUint}, nil
	case reflect.Float32:
		return &typeInfo{typ: t, kind: kindFloat32}, nil
	case reflect.Float64:
		return &typeInfo{typ: t, kind: kindFloat64}, nil
	case reflect.String:
		return &typeInfo{typ: t, kind: kindString, varlen: true}, nil
	case reflect.Pointer:
		elem, err := admit(t.Elem())
		if err != nil {
			return nil, err
		}
		return &typeInfo{typ: t, kind: kindPointer, elem: elem, varlen: elem.varlen}, nil
	case reflect.Array:
		elem, err := admit(t.Elem())
		if err != nil {
			return nil, err
		}
		return &typeInfo{
			typ: t, kind: kindArray, elem: elem,
			arrayLen: t.Len(),
			isBytes:  t.Elem().Kind() == reflect.Uint8,
			varlen:   elem.varlen,
		}, nil
	case reflect.Slice:
		elem, err := admit(t.Elem())
		if err != nil {
			return nil, err
		}
		return &typeInfo{
			typ: t, kind: kindSlice, elem: elem,
			isBytes: t.Elem().Kind() == reflect.Uint8,
			varlen:  true,
		}, nil
	case reflect.Struct:
		if t == timeTimeType {
			return nil, admitError(t, "time.Time has no MessagePack representation; add an explicit int64/string field instead")
		}
		return compileStruct(t, kindStruct)
	default:
		return nil, admitError(t, "kind "+t.Kind().String()+" has no MessagePack representation")
	}
}

// compileStruct handles both products (kindStruct) and sums (kindUnion,
// detected by the embedded Union marker -- see isUnionType). For a union,
// every visible field besides the marker must be a pointer type: the
// "variant payload", nil when inactive.
func compileStruct(t reflect.Type, kind hostKind) (*typeInfo, error) {
	fields := reflect.VisibleFields(t)
	var infos []fieldInfo
	varlen := false
	maxName := 0
	for _, f := range fields {
		if f.PkgPath != "" || len(f.Index) != 1 {
			continue // unexported or promoted
		}
		if f.Type == unionMarkerType {
			continue // the embedded msgpack.Union marker itself
		}
		name := f.Name
		omitEmpty := false
		if tag, ok := f.Tag.Lookup("msgpack"); ok {
			first, rest, _ := strings.Cut(tag, ",")
			if first == "-" {
				continue
			}
			if first != "" {
				name = first
			}
			for _, opt := range strings.Split(rest, ",") {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}
		ft := f.Type
		if kind == kindUnion {
			if ft.Kind() != reflect.Pointer {
				return nil, admitError(t, "union variant "+f.Name+" must be a pointer type")
			}
		}
		sub, err := admit(ft)
		if err != nil {
			return nil, err
		}
		infos = append(infos, fieldInfo{goIndex: f.Index[0], name: name, omitEmpty: omitEmpty, typ: sub})
		if len(name) > maxName {
			maxName = len(name)
		}
		if sub.varlen {
			varlen = true
		}
	}
	slices.SortFunc(infos, func(a, b fieldInfo) bool { return a.goIndex < b.goIndex })
	index := make(map[uint64]int, len(infos))
	for i, f := range infos {
		index[fieldNameHash(f.name)] = i
	}
	return &typeInfo{typ: t, kind: kind, fields: infos, fieldIndex: index, maxName: maxName, varlen: varlen}, nil
}

func compileOptional(t reflect.Type) (*typeInfo, error) {
	inner := t.Field(1).Type // Optional[T].Value
	elem, err := admit(inner)
	if err != nil {
		return nil, err
	}
	return &typeInfo{typ: t, kind: kindOptional, elem: elem, varlen: elem.varlen}, nil
}

func compileEnum(t reflect.Type, en *enumInfo) (*typeInfo, error) {
	maxName := 0
	for name := range en.nameToTag {
		if len(name) > maxName {
			maxName = len(name)
		}
	}
	return &typeInfo{typ: t, kind: kindEnum, enum: en, maxName: maxName}, nil
}

// hostBits returns the bit width used to pick a wire family for an
// integer-kinded type. Plain int/uint are pinned to 64 regardless of
// platform word size (reflect.Type.Bits() reports 32 on a 32-bit
// GOARCH), so the wire format of a struct field declared `int` does not
// change with the architecture it was encoded on.
func hostBits(t reflect.Type) int {
	switch t.Kind() {
	case reflect.Int, reflect.Uint:
		return 64
	default:
		return t.Bits()
	}
}

// unionMarkerType identifies Union, the zero-size embedded marker that
// tells admit a struct should be classified as a sum rather than a
// product.
var unionMarkerType = reflect.TypeOf(Union{})

func isUnionType(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t.NumField() == 0 {
		return false
	}
	f := t.Field(0)
	return f.Anonymous && f.Type == unionMarkerType
}

// optionalTypeName is the reflect.Type.Name() prefix produced by the Go
// compiler for instantiations of the generic Optional[T] type.
const optionalTypeName = "Optional["

func isOptionalType(t reflect.Type) bool {
	return t.Kind() == reflect.Struct &&
		t.PkgPath() == optionalPkgPath &&
		strings.HasPrefix(t.Name(), optionalTypeName)
}
