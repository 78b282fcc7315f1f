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

// Package msgpack is a statically-typed MessagePack codec.
//
// Unlike encoding/json-style codecs, a Go type is classified exactly once
// (on first use, cached for the life of the process) into a tree of
// FormatOptions that mirrors its shape; every subsequent Encode/Decode
// call for that type walks the cached tree instead of re-deriving it.
// Narrowing, field-name, and layout rules are documented on Encode,
// Decode, and FormatOptions.
package msgpack
