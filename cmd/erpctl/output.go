package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
)

// printer writes either JSON or an aligned table depending on --output
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(c *cli.Context) printer {
	return printer{w: c.App.Writer, json: strings.EqualFold(c.String("output"), "json")}
}

// print renders v as JSON, or calls table with a tabwriter otherwise
func (p printer) print(v any, table func(tw *tabwriter.Writer)) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func row(w io.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(w, strings.Join(parts, "\t"))
}
