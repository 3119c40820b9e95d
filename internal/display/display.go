// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package display renders register reads for the command line.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/ffutop/langji-ac/controller"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Entry is the structured form of one value.
type Entry struct {
	Address string  `json:"address" yaml:"address"`
	Label   string  `json:"label" yaml:"label"`
	Value   float64 `json:"value" yaml:"value"`
	Raw     uint16  `json:"raw" yaml:"raw"`
}

// Entries converts values into labelled entries.
func Entries(values controller.RegisterValueSet) []Entry {
	entries := make([]Entry, 0, len(values))
	for _, v := range values {
		entries = append(entries, Entry{
			Address: controller.HexString(int(v.Address)),
			Label:   controller.Describe(v.Address),
			Value:   v.Value,
			Raw:     v.Raw,
		})
	}
	return entries
}

// Write prints values to w in the given format.
func Write(w io.Writer, values controller.RegisterValueSet, format string) error {
	switch format {
	case FormatText, "":
		return writeText(w, values)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Entries(values))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(Entries(values)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// writeText emits one line per value: 0x0008(8),Cooling start temperature, Value: 30
func writeText(w io.Writer, values controller.RegisterValueSet) error {
	for _, v := range values {
		_, err := fmt.Fprintf(w, "0x%04X(%d),%s, Value: %s\n",
			v.Address, v.Address, controller.Describe(v.Address), FormatValue(v.Value))
		if err != nil {
			return err
		}
	}
	return nil
}

// FormatValue prints v with the fewest digits that represent it exactly.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
