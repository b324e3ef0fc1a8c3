// Package report renders benchmark results for people and for tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mchmarny/cipherbench/pkg/bench"
	"gopkg.in/yaml.v3"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var headers = []string{
	"Test No.",
	"Original String",
	"Encrypted String",
	"Decrypted String",
	"Decryption Success",
	"Score",
	"Running Time",
}

// Row is one line of the report.
type Row struct {
	Index     int           `json:"index" yaml:"index"`
	Original  string        `json:"original" yaml:"original"`
	Output    string        `json:"output" yaml:"output"`
	Recovered string        `json:"recovered" yaml:"recovered"`
	Success   bool          `json:"success" yaml:"success"`
	Score     float64       `json:"score" yaml:"score"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Report is the structured form written by the json and yaml writers.
type Report struct {
	Rows         []Row   `json:"rows" yaml:"rows"`
	AverageScore float64 `json:"average_score" yaml:"average_score"`
}

type writerFunc func(w io.Writer, rows []Row, scores []float64) error

var writers = map[string]writerFunc{
	FormatTable: Render,
	FormatJSON:  writeJSON,
	FormatYAML:  writeYAML,
}

// Formats lists the registered output formats.
func Formats() []string {
	list := make([]string, 0, len(writers))
	for k := range writers {
		list = append(list, k)
	}
	sort.Strings(list)
	return list
}

// FromResults maps bench results to report rows.
func FromResults(results []*bench.Result) []Row {
	rows := make([]Row, len(results))
	for i, r := range results {
		rows[i] = Row{
			Index:     r.Index,
			Original:  r.Original,
			Output:    r.Output,
			Recovered: r.Recovered,
			Success:   r.Success,
			Score:     r.Score,
			Elapsed:   r.Elapsed,
		}
	}
	return rows
}

// Write renders rows in the given format.
func Write(w io.Writer, format string, rows []Row, scores []float64) error {
	fn, ok := writers[strings.ToLower(format)]
	if !ok {
		return fmt.Errorf("unknown report format %q (supported: %s)", format, strings.Join(Formats(), ", "))
	}
	return fn(w, rows, scores)
}

// Render writes rows as a bordered table followed by the average of scores.
func Render(w io.Writer, rows []Row, scores []float64) error {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	failStyle := cellStyle.Foreground(lipgloss.Color("196"))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 4 && row >= 0 && row < len(rows) && !rows[row].Success:
				return failStyle
			default:
				return cellStyle
			}
		})

	for _, r := range rows {
		t.Row(
			strconv.Itoa(r.Index),
			visible(r.Original),
			visible(r.Output),
			visible(r.Recovered),
			strconv.FormatBool(r.Success),
			formatFloat(r.Score),
			formatFloat(r.Elapsed.Seconds()),
		)
	}

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nAverage score: %s\n", formatFloat(bench.Mean(scores)))
	return err
}

func writeJSON(w io.Writer, rows []Row, scores []float64) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(newReport(rows, scores))
}

func writeYAML(w io.Writer, rows []Row, scores []float64) error {
	e := yaml.NewEncoder(w)
	defer e.Close()
	return e.Encode(newReport(rows, scores))
}

func newReport(rows []Row, scores []float64) *Report {
	if rows == nil {
		rows = []Row{}
	}
	return &Report{Rows: rows, AverageScore: bench.Mean(scores)}
}

// visible escapes runes that would break the table layout. Shifted
// ciphertext can land in the control range.
func visible(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsGraphic(r) {
			b.WriteRune(r)
			continue
		}
		q := strconv.QuoteRune(r)
		b.WriteString(q[1 : len(q)-1])
	}
	return b.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
