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
	"errors"
	"fmt"
)

// Sentinel errors making up the codec's error surface. Decode failures are
// always wrapped around ErrInvalid: the codec is schema-strict and does
// not attempt to distinguish a bad tag from a narrowing failure from an
// unknown field name for the caller. Richer detail is available via the
// wrapped message but callers must not match on it.
var (
	// ErrNoSpaceLeft is returned by Encode when the destination buffer
	// is exhausted.
	ErrNoSpaceLeft = errors.New("msgpack: no space left in output buffer")

	// ErrSliceLenTooLarge is returned by Encode when a variable-length
	// sequence exceeds 2^32-1 elements.
	ErrSliceLenTooLarge = errors.New("msgpack: slice length exceeds 2^32-1")

	// ErrInvalid is returned (always wrapped) when decoding violates
	// the codec's schema: bad tag, wrong family, length mismatch,
	// narrowing loss, unknown field/variant name, duplicate or missing
	// map key, unconsumed trailing bytes, or premature end of stream.
	ErrInvalid = errors.New("msgpack: invalid encoding")

	// errShortInput is an internal, unexported sentinel: see its use in
	// decode.go and stream.go.
	errShortInput = errors.New("msgpack: unexpected end of input")
)

// invalidf wraps ErrInvalid with a formatted, human-readable reason. The
// reason is diagnostic only; callers must test with errors.Is(err,
// ErrInvalid), never against the message text.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

func admitError(t any, reason string) error {
	return fmt.Errorf("msgpack: type %v is not admissible: %s", t, reason)
}
