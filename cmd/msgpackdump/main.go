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

// Command msgpackdump decodes a stream of msgpack-encoded event records
// from stdin (or a file argument) and writes them to stdout as YAML, one
// document per record. Because the format is schema-strict rather than
// self-describing, msgpackdump only knows how to read its own
// built-in demo record type, since plain MessagePack carries no type
// information on the wire.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"sigs.k8s.io/yaml"

	"github.com/SnellerInc/msgpack/msgpack"
)

func main() {
	zstdFlag := flag.Bool("zstd", false, "input is zstd-compressed")
	optsPath := flag.String("opts", "", "path to a YAML file overriding the default FormatOptions")
	flag.Parse()

	cfg, err := loadDumpOptions(*optsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "msgpackdump: reading -opts: %s\n", err)
		os.Exit(1)
	}
	opts := formatOptionsFor(cfg)

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"-"}
	}
	o := bufio.NewWriter(os.Stdout)
	for _, arg := range args {
		if err := dumpOne(o, arg, opts, *zstdFlag); err != nil {
			fmt.Fprintf(os.Stderr, "msgpackdump: %s: %s\n", arg, err)
			os.Exit(1)
		}
	}
	if err := o.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dumpOne(o *bufio.Writer, arg string, opts *msgpack.FormatOptions, compressed bool) error {
	var in io.Reader = os.Stdin
	if arg != "-" {
		f, err := os.Open(arg)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	if compressed {
		zr, err := zstd.NewReader(in)
		if err != nil {
			return err
		}
		defer zr.Close()
		in = zr
	}

	dec := msgpack.NewDecoder[event](in, opts)
	for {
		rec, err := dec.Decode()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		doc, err := yaml.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := o.Write(doc); err != nil {
			return err
		}
		if _, err := o.WriteString("---\n"); err != nil {
			return err
		}
	}
}
