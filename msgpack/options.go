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

	"golang.org/x/exp/maps"
)

// optionalPkgPath is compared against reflect.Type.PkgPath() to recognize
// instantiations of Optional[T] during classification; see isOptionalType.
const optionalPkgPath = "github.com/SnellerInc/msgpack/msgpack"

// Union is embedded (anonymously, as the first field) in a struct to mark
// it as a sum type rather than a product:
//
//	type Event struct {
//	    msgpack.Union
//	    Connect    *ConnectEvent
//	    Disconnect *DisconnectEvent
//	}
//
// Every other exported field must be a pointer; exactly one must be
// non-nil when the value is encoded, and the field's name (or its
// `msgpack` tag name) is the variant name on the wire.
type Union struct{}

// Optional represents the "optional T" host kind: null, or a present T.
// It is deliberately distinct from a plain pointer (which plays the
// role of a single-element owning pointer): decoding an Optional never
// touches an Arena, since Value is stored inline.
type Optional[T any] struct {
	Valid bool
	Value T
}

// Some constructs a present Optional.
func Some[T any](v T) Optional[T] { return Optional[T]{Valid: true, Value: v} }

// None constructs an absent Optional.
func None[T any]() Optional[T] { return Optional[T]{} }

// ByteRepr selects the wire family used for a byte array/vector/slice.
type ByteRepr int

const (
	ReprStr ByteRepr = iota // default
	ReprBin
	ReprArray
)

// Layout selects how a product (struct) is encoded.
type Layout int

const (
	LayoutMap Layout = iota // default
	LayoutArray
)

// UnionLayout selects how a sum is encoded.
type UnionLayout int

const (
	UnionLayoutMap UnionLayout = iota // default
	UnionLayoutActiveField
)

// EnumRepr selects how an enum's active variant is encoded.
type EnumRepr int

const (
	EnumInt EnumRepr = iota // default
	EnumStr
)

// FormatOptions is a runtime-valued tree shaped exactly like T's type
// tree, one node per type-tree node, derived by DefaultFormatOptions and
// freely mutable by the caller before it is passed to Encode/Decode.
// Encoder and decoder must be supplied the *same* options for a given
// logical type; passing mismatched trees is unspecified behavior (the
// codec does not attempt to detect it).
type FormatOptions struct {
	info *typeInfo

	ByteRepr    ByteRepr               // byte array/vector/slice
	Layout      Layout                 // struct
	UnionLayout UnionLayout            // sum
	EnumRepr    EnumRepr               // enum
	Elem        *FormatOptions         // array/vector/slice/optional/pointer element
	Fields      map[string]*FormatOptions // struct field name / union variant name -> options

	HasSentinel bool // array/slice only
	Sentinel    any  // array/slice only; compared with reflect.DeepEqual
}

// DefaultFormatOptions derives the default FormatOptions tree for T. It
// panics if T is not admissible; use Admissible to check first if that
// matters to the caller.
//
// The returned tree is a fresh copy, safe for the caller to mutate: the
// process-wide cache backing it (see defaultsFor) is shared across every
// caller and must never be mutated in place.
func DefaultFormatOptions[T any]() *FormatOptions {
	var zero T
	info, err := admit(reflect.TypeOf(&zero).Elem())
	if err != nil {
		panic(err)
	}
	return cloneOptions(defaultsFor(info))
}

// cloneOptions deep-copies o so the caller can freely mutate the result
// without disturbing the shared per-type defaults cache. The top-level
// Fields map is duplicated with maps.Clone -- the same shallow-map-copy
// primitive ion's Symtab.init uses for its system2id snapshot -- and
// every value in the copy is then replaced with its own deep clone,
// since a FormatOptions tree's map values are themselves shared
// pointers that must not alias the original.
func cloneOptions(o *FormatOptions) *FormatOptions {
	if o == nil {
		return nil
	}
	c := *o
	c.Elem = cloneOptions(o.Elem)
	if o.Fields != nil {
		c.Fields = maps.Clone(o.Fields)
		for k, v := range c.Fields {
			c.Fields[k] = cloneOptions(v)
		}
	}
	return &c
}

// Admissible reports whether T can be used with Encode/Decode at all,
// without panicking.
func Admissible[T any]() error {
	var zero T
	_, err := admit(reflect.TypeOf(&zero).Elem())
	return err
}

func defaultsFor(info *typeInfo) *FormatOptions {
	if info.defaults != nil {
		return info.defaults
	}
	o := &FormatOptions{info: info}
	switch info.kind {
	case kindArray, kindSlice, kindOptional, kindPointer:
		if info.elem != nil {
			o.Elem = defaultsFor(info.elem)
		}
	case kindStruct, kindUnion:
		o.Fields = make(map[string]*FormatOptions, len(info.fields))
		for _, f := range info.fields {
			o.Fields[f.name] = defaultsFor(f.typ)
		}
	}
	info.defaults = o
	return o
}

// optionsFor returns the options node to use for a nested value of type
// info, preferring an explicit override in parent.Fields/parent.Elem and
// falling back to the type's own defaults -- this lets a caller override
// one field deep inside a large struct without rebuilding the whole tree.
func optionsFor(info *typeInfo, fallback *FormatOptions) *FormatOptions {
	if fallback != nil {
		return fallback
	}
	return defaultsFor(info)
}
