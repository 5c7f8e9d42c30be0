package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/opd-ai/loudnorm/pipeline"
)

var reportBox = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#888888")).
	Padding(0, 1)

// renderReport draws the end-of-batch summary: aggregate counts, one
// line per file with its outcome, and where the detailed JSON landed.
func renderReport(r *pipeline.Report) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Batch complete"))
	b.WriteString("  ")
	b.WriteString(faintStyle.Render(fmt.Sprintf("%s → %.1f LUFS • %s",
		r.Mode, r.TargetLUFS, r.Duration.Round(time.Millisecond))))
	b.WriteString("\n")

	counts := []string{okStyle.Render(fmt.Sprintf("%d succeeded", r.Succeeded))}
	if r.Failed > 0 {
		counts = append(counts, failStyle.Render(fmt.Sprintf("%d failed", r.Failed)))
	}
	if r.Skipped > 0 {
		counts = append(counts, faintStyle.Render(fmt.Sprintf("%d skipped", r.Skipped)))
	}
	b.WriteString(strings.Join(counts, faintStyle.Render(" • ")))
	b.WriteString("\n\n")

	for _, item := range r.Items {
		b.WriteString(renderReportLine(item))
		b.WriteString("\n")
	}

	return reportBox.Render(strings.TrimRight(b.String(), "\n"))
}

// renderReportLine draws one file's outcome.
func renderReportLine(item pipeline.ItemReport) string {
	name := filepath.Base(item.Input)

	switch item.Status {
	case "succeeded":
		detail := fmt.Sprintf("%.1f LUFS, gain %+.1f dB", item.InputLUFS, item.GainDB)
		if item.Clamped {
			detail += ", peak-limited"
		}
		return fmt.Sprintf(" %s %s  %s", okStyle.Render("✓"), name, faintStyle.Render(detail))

	case "failed":
		detail := item.Reason
		if item.Error != "" {
			detail += ": " + item.Error
		}
		return fmt.Sprintf(" %s %s  %s", failStyle.Render("✗"), name, failStyle.Render(detail))

	default:
		return fmt.Sprintf(" %s %s  %s", faintStyle.Render("○"), faintStyle.Render(name), faintStyle.Render("skipped"))
	}
}

// printError writes a styled fatal error to the terminal.
func printError(msg string) {
	fmt.Println(failStyle.Render("error: " + msg))
}
