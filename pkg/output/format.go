// Package output provides utilities for formatting and displaying chart series.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lucasbaezmiranda/mark-frontend/internal/series"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/constants"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/format"
)

// Write renders r to w in the named output format.
func Write(w io.Writer, outputFormat string, r Report) error {
	switch outputFormat {
	case constants.OutputFormatPretty:
		return PrettyFormat(w, r)
	case constants.OutputFormatCSV:
		return CsvFormat(w, r.Series)
	case constants.OutputFormatJSON:
		return JSONFormat(w, r)
	}
	return fmt.Errorf("unsupported output format %q", outputFormat)
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, r Report) error {
	p := message.NewPrinter(language.English)
	for i, s := range series.RenderOrder(r.Series) {
		if i > 0 {
			if _, err := fmt.Fprintf(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := p.Fprintf(w, "--- %s (%s, %d points, draw order %d) ---\n",
			s.Name, s.Kind, len(s.Points), s.DrawOrder); err != nil {
			return err
		}
		if len(s.Points) == 0 {
			if _, err := fmt.Fprintf(w, "(no data)\n"); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "Risk       | Return     | Label\n"); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "__________ | __________ | _____\n"); err != nil {
			return err
		}
		for _, pt := range s.Points {
			if _, err := p.Fprintf(w, "%10s | %10s | %s\n",
				format.Percent(pt.Risk), format.Percent(pt.Return), pt.Label); err != nil {
				return err
			}
		}
	}

	if r.MaxSharpe != nil && len(r.MaxSharpe.Weights) > 0 {
		if _, err := fmt.Fprintf(w, "\nMax Sharpe weights:\n"); err != nil {
			return err
		}
		for i, weight := range r.MaxSharpe.Weights {
			if _, err := p.Fprintf(w, "  %d: %s\n", i+1, format.Percent(weight)); err != nil {
				return err
			}
		}
	}
	if r.CSVURL != "" {
		if _, err := fmt.Fprintf(w, "\nData: %s\n", r.CSVURL); err != nil {
			return err
		}
	}
	for _, warning := range r.Warnings {
		if _, err := fmt.Fprintf(w, "Warning: %s\n", warning); err != nil {
			return err
		}
	}
	return nil
}

// CsvFormat outputs one row per point in comma-separated value format.
func CsvFormat(w io.Writer, list []series.NamedSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"series", "kind", "draw_order", "index", "risk", "return", "label"}); err != nil {
		return err
	}
	for _, s := range list {
		for i, pt := range s.Points {
			record := []string{
				s.Name,
				s.Kind.String(),
				strconv.Itoa(s.DrawOrder),
				strconv.Itoa(i),
				strconv.FormatFloat(pt.Risk, 'f', -1, 64),
				strconv.FormatFloat(pt.Return, 'f', -1, 64),
				pt.Label,
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSONFormat outputs the report as indented JSON.
func JSONFormat(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
