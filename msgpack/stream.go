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
	"io"
	"reflect"
)

// Encoder writes a stream of same-typed records to an io.Writer. Unlike
// ion's symbol-table-carrying Writer, MessagePack values need no shared
// header between records -- each one is self-delimiting -- so Encoder is
// just Encode plus a reusable, auto-growing scratch buffer.
type Encoder[T any] struct {
	w    io.Writer
	opts *FormatOptions
	buf  []byte
}

// NewEncoder creates an Encoder writing to w. A nil opts uses T's
// defaults.
func NewEncoder[T any](w io.Writer, opts *FormatOptions) *Encoder[T] {
	return &Encoder[T]{w: w, opts: opts, buf: make([]byte, 256)}
}

// Encode writes one record to the stream, growing the Encoder's internal
// scratch buffer (geometrically, the same growth rule as ion.Buffer.grow
// and Arena.Alloc) until it is large enough, rather than failing with
// ErrNoSpaceLeft the way the bounded, single-shot Encode does.
func (e *Encoder[T]) Encode(v T) error {
	for {
		n, err := Encode(v, e.buf, e.opts)
		if err == nil {
			_, werr := e.w.Write(e.buf[:n])
			return werr
		}
		if err != ErrNoSpaceLeft {
			return err
		}
		e.buf = make([]byte, len(e.buf)*2)
	}
}

// Decoder reads a stream of same-typed records from an io.Reader,
// reading it in 4096-byte chunks and keeping the unread bytes buffered
// between calls (which may span several records). It is the streaming
// analogue of ion.Decoder (ion/unmarshal.go),
// adapted to MessagePack's self-delimiting records: there is no shared
// symbol table to track between calls.
type Decoder[T any] struct {
	r    io.Reader
	opts *FormatOptions
	buf  []byte
}

// NewDecoder creates a Decoder reading from r. A nil opts uses T's
// defaults.
func NewDecoder[T any](r io.Reader, opts *FormatOptions) *Decoder[T] {
	return &Decoder[T]{r: r, opts: opts}
}

// Decode reads and returns the next record. It returns io.EOF (unwrapped)
// once the stream ends cleanly between records; a stream that ends in
// the middle of a record is reported as an ErrInvalid-wrapped error, not
// io.EOF, since that is a malformed stream rather than a normal end.
func (d *Decoder[T]) Decode() (T, error) {
	var out T
	info, err := admit(reflect.TypeOf(&out).Elem())
	if err != nil {
		return out, err
	}
	opts := d.opts
	if opts == nil {
		opts = defaultsFor(info)
	}
	for {
		r := &reader{buf: d.buf}
		derr := decodeValue(r, reflect.ValueOf(&out).Elem(), info, opts, &decodeCtx{})
		if derr == nil {
			d.buf = d.buf[r.pos:]
			return out, nil
		}
		if derr != errShortInput {
			return out, publicDecodeErr(derr)
		}
		hadPartial := len(d.buf) > 0
		if err := d.fill(); err != nil {
			if err == io.EOF && hadPartial {
				return out, invalidf("stream ended in the middle of a record")
			}
			return out, err
		}
	}
}

func (d *Decoder[T]) fill() error {
	var tmp [4096]byte
	n, err := d.r.Read(tmp[:])
	if n > 0 {
		d.buf = append(d.buf, tmp[:n]...)
		return nil
	}
	if err != nil {
		return err
	}
	return nil
}
