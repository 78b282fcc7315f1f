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
	"sync"

	"golang.org/x/exp/constraints"
)

// enumInfo is the compiled tag<->name table for one registered enum type.
type enumInfo struct {
	tagToName map[int64]string
	nameToTag map[string]int64
}

var enumRegistry sync.Map // reflect.Type -> *enumInfo

// RegisterEnum declares that T, a named integer type, is a "closed
// enum" host kind: a finite set of named variants, each mapped to
// an integer tag. It must be called (typically from an init func) before
// the first Encode/Decode/DefaultFormatOptions call involving T; it is
// the Go analogue of the addEncodeExt/getEncodeExt extension-registration
// pattern used by other reflection-driven Go encoders, adapted here to
// register a name table instead of a codec function, since enum
// (de)serialization needs no custom function -- only the mapping.
//
// RegisterEnum panics if T has already been registered or if two
// variants share a name or a tag value.
func RegisterEnum[T constraints.Integer](values map[T]string) {
	var zero T
	t := reflect.TypeOf(zero)
	if _, loaded := enumRegistry.Load(t); loaded {
		panic("msgpack: enum " + t.String() + " already registered")
	}
	info := &enumInfo{
		tagToName: make(map[int64]string, len(values)),
		nameToTag: make(map[string]int64, len(values)),
	}
	for tag, name := range values {
		it := int64(tag)
		if _, dup := info.tagToName[it]; dup {
			panic("msgpack: enum " + t.String() + " has duplicate tag value")
		}
		if _, dup := info.nameToTag[name]; dup {
			panic("msgpack: enum " + t.String() + " has duplicate name " + name)
		}
		info.tagToName[it] = name
		info.nameToTag[name] = it
	}
	enumRegistry.Store(t, info)
}

func lookupEnum(t reflect.Type) (*enumInfo, bool) {
	v, ok := enumRegistry.Load(t)
	if !ok {
		return nil, false
	}
	return v.(*enumInfo), true
}
