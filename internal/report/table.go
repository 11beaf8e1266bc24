package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/crsarena/arena-eval/internal/annotation"
	"github.com/crsarena/arena-eval/internal/evaluation"
)

// Mode controls the table output format.
type Mode int

const (
	Text     Mode = iota // fixed-width terminal tables
	Markdown             // GitHub-flavoured markdown tables
)

// ParseMode maps a format name to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "text":
		return Text, true
	case "markdown", "md":
		return Markdown, true
	default:
		return Text, false
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	return t
}

func render(w io.Writer, mode Mode, title string, t table.Writer) error {
	var out string
	switch mode {
	case Markdown:
		out = fmt.Sprintf("### %s\n\n%s\n\n", title, t.RenderMarkdown())
	default:
		out = fmt.Sprintf("%s\n%s\n\n", title, t.Render())
	}
	_, err := io.WriteString(w, out)
	return err
}

// PairValue formats a cell as "pearson/spearman".
func PairValue(c evaluation.Cell) string {
	return c.Pearson.String() + "/" + c.Spearman.String()
}

// RenderLevelTable writes one row per aspect with a "P/S" column per
// recognized dataset.
func RenderLevelTable(w io.Writer, mode Mode, title string, aspects []annotation.Aspect, results evaluation.Results) error {
	t := newTable()

	header := table.Row{"Aspect"}
	configs := []table.ColumnConfig{{Number: 1, Align: text.AlignLeft}}
	for i, ds := range annotation.Datasets() {
		header = append(header, ds.ShortLabel+" (P/S)")
		configs = append(configs, table.ColumnConfig{Number: i + 2, Align: text.AlignRight})
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	for _, a := range aspects {
		row := table.Row{string(a)}
		for _, ds := range annotation.DatasetNames() {
			row = append(row, PairValue(results.Cell(a, ds)))
		}
		t.AppendRow(row)
	}
	return render(w, mode, title, t)
}

// RenderReport writes the turn-level and dialogue-level tables of r.
func RenderReport(w io.Writer, mode Mode, r *evaluation.Report) error {
	if err := RenderLevelTable(w, mode, "Turn-level Aspects", annotation.TurnAspects(), r.Turn); err != nil {
		return err
	}
	return RenderLevelTable(w, mode, "Dialogue-level Aspects", annotation.DialogueAspects(), r.Dialogue)
}

// RenderSystemTable writes the per-system Spearman leaderboard.
func RenderSystemTable(w io.Writer, mode Mode, ranking *evaluation.SystemRanking) error {
	t := newTable()

	header := table.Row{"System"}
	for _, a := range ranking.Aspects {
		header = append(header, a.Label())
	}
	t.AppendHeader(header)

	for i, system := range ranking.Systems {
		row := table.Row{system}
		for _, v := range ranking.Values[i] {
			row = append(row, v.String())
		}
		t.AppendRow(row)
	}
	return render(w, mode, "Per-system Spearman", t)
}

// RenderComparison writes a comparison table followed by its note.
func RenderComparison(w io.Writer, mode Mode, c *Comparison) error {
	t := newTable()

	header := make(table.Row, len(c.Header))
	for i, h := range c.Header {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, r := range c.Rows {
		t.AppendRow(table.Row{r.Label, r.Yours, r.Baseline})
	}

	title := fmt.Sprintf("%s - %s", c.Label, c.Metric.Label())
	if err := render(w, mode, title, t); err != nil {
		return err
	}
	if c.Note != "" {
		_, err := fmt.Fprintln(w, c.Note)
		return err
	}
	return nil
}
