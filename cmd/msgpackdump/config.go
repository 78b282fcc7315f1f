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

package main

import (
	"os"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"

	"github.com/SnellerInc/msgpack/msgpack"
)

// severity is a small closed enum, registered once at package init, used
// here only to give the demo schema a field that exercises RegisterEnum.
type severity int8

const (
	severityInfo severity = iota
	severityWarn
	severityError
)

func init() {
	msgpack.RegisterEnum(map[severity]string{
		severityInfo:  "info",
		severityWarn:  "warn",
		severityError: "error",
	})
}

// payload is a sum type: exactly one of its variants is present,
// exercising msgpack.Union.
type payload struct {
	msgpack.Union
	Text   *string
	Binary *[]byte
}

// event is the demo record type dumped by this tool: a product carrying
// a byte-array identifier, a registered enum, a sum type, and a
// variable-length slice, touching every host kind this codec's options
// distinguish.
type event struct {
	ID       uuid.UUID
	Severity severity
	Body     payload
	Tags     []string
}

// dumpOptions is the subset of FormatOptions a user may override from a
// YAML config file passed via -opts: deep per-field overrides, including
// Body's union layout, are left to programmatic use of FormatOptions --
// this tool only exposes the top-level choices relevant to reading
// someone else's dump.
type dumpOptions struct {
	SeverityAsString bool `json:"severityAsString"`
	IDAsBin          bool `json:"idAsBin"`
}

func loadDumpOptions(path string) (dumpOptions, error) {
	var cfg dumpOptions
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func formatOptionsFor(cfg dumpOptions) *msgpack.FormatOptions {
	opts := msgpack.DefaultFormatOptions[event]()
	if cfg.SeverityAsString {
		opts.Fields["Severity"].EnumRepr = msgpack.EnumStr
	}
	if cfg.IDAsBin {
		opts.Fields["ID"].ByteRepr = msgpack.ReprBin
	}
	return opts
}
