// Package cliformat renders tabular command output in the three formats
// the CLI surface offers: CSV, JSON, and an aligned "pretty" table.
//
// Grounded on the teacher's registry/cmd/registry/main.go output helpers
// (text/tabwriter for aligned columns, encoding/json for the JSON mode).
package cliformat

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// Mode selects an output renderer.
type Mode int

const (
	Pretty Mode = iota
	CSV
	JSON
)

// ModeFromFlags resolves the --csv/--json/--pretty trio to a Mode,
// defaulting to Pretty when none are set.
func ModeFromFlags(csvFlag, jsonFlag, prettyFlag bool) Mode {
	switch {
	case csvFlag:
		return CSV
	case jsonFlag:
		return JSON
	default:
		return Pretty
	}
}

// Table writes header/rows to w in the given Mode. rows and header share
// column order; JSON mode zips them into one object per row.
func Table(w io.Writer, mode Mode, header []string, rows [][]string) error {
	switch mode {
	case CSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	case JSON:
		out := make([]map[string]string, 0, len(rows))
		for _, r := range rows {
			obj := make(map[string]string, len(header))
			for i, h := range header {
				if i < len(r) {
					obj[h] = r[i]
				}
			}
			out = append(out, obj)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, joinTab(header))
		for _, r := range rows {
			fmt.Fprintln(tw, joinTab(r))
		}
		return tw.Flush()
	}
}

func joinTab(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += "\t"
		}
		out += f
	}
	return out
}

// Fatal prints err to stderr and exits with status 1, matching §6's exit
// code policy (non-zero on any command failure).
func Fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
