// Package report renders comparison results for people; it never affects the numbers.
package report

import (
	"fmt"
	"strings"

	"github.com/RushiGong/ESPEI/domain/evidence"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown renders a comparison as a short Markdown document
func Markdown(rec *evidence.ComparisonRecord) string {
	var b strings.Builder

	b.WriteString("# Bayes factor model comparison\n\n")
	if rec.ID != "" {
		fmt.Fprintf(&b, "Comparison `%s`\n\n", rec.ID)
	}

	b.WriteString("| | Model | Evidence | Unit | Samples | Burn-in |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for i, run := range []*evidence.Run{rec.Run1, rec.Run2} {
		if run == nil {
			continue
		}
		fmt.Fprintf(&b, "| Model %d | %s | %s | %s | %d | %d |\n",
			i+1, modelName(run.Evidence.Model), run.Evidence.Value.Text('g'), unitLabel(run.Evidence.Unit),
			run.Evidence.Samples, run.Evidence.BurnIn)
	}
	b.WriteString("\n")

	c := rec.Comparison
	fmt.Fprintf(&b, "**%s is %s**\n\n", factorName(c.Space), c.Ratio.Text('g'))
	fmt.Fprintf(&b, "%s\n\n", c.Verdict())
	if c.Strength.HasLabel() {
		fmt.Fprintf(&b, "Strength of evidence: %s\n\n", c.Strength.Label())
	}

	b.WriteString("_The harmonic-mean estimator can have very large variance; treat close calls with care._\n")
	return b.String()
}

// HTML renders the Markdown report to an HTML fragment
func HTML(rec *evidence.ComparisonRecord) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(Markdown(rec)), p, renderer)
}

// Summary renders a comparison as plain console lines
func Summary(c evidence.Comparison) string {
	lines := []string{
		fmt.Sprintf("Bayes factor is %s", c.Ratio.Text('g')),
		c.Verdict(),
	}
	if c.Strength.HasLabel() {
		lines = append(lines, "Strength of evidence: "+c.Strength.Label())
	}
	return strings.Join(lines, "\n")
}

func factorName(space evidence.Space) string {
	if space == evidence.SpaceLog10 {
		return "log10 Bayes factor"
	}
	return "Bayes factor"
}

func unitLabel(u evidence.Unit) string {
	if u == evidence.UnitLog {
		return "ln Z"
	}
	return "Z"
}

func modelName(name string) string {
	if name == "" {
		return "-"
	}
	return name
}
