package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/orchestrator"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

func field(label string, value any) string {
	return labelStyle.Render(label) + " " + valueStyle.Render(fmt.Sprint(value))
}

// progressLine renders one stage transition.
func progressLine(p orchestrator.StageProgress) string {
	var mark string
	switch p.Status {
	case orchestrator.StatusCompleted:
		mark = okStyle.Render("✓")
	case orchestrator.StatusFailed:
		mark = errorStyle.Render("✗")
	case orchestrator.StatusSkipped:
		mark = dimStyle.Render("-")
	default:
		mark = dimStyle.Render("…")
	}
	line := fmt.Sprintf("%s %-16s %s", mark, p.Stage, dimStyle.Render(string(p.Status)))
	if p.Elapsed > 0 {
		line += dimStyle.Render(" " + p.Elapsed.Round(time.Millisecond).String())
	}
	if p.Message != "" {
		line += " " + p.Message
	}
	return line
}

// renderPackage prints a human summary of pkg.
func renderPackage(w io.Writer, pkg *content.Package) {
	var b strings.Builder
	b.WriteString(titleStyle.Render(pkg.Brief.ProductName) + "\n")
	b.WriteString(field("Run", pkg.RunID) + "\n")
	for _, a := range pkg.Artifacts() {
		b.WriteString(field(string(a.Kind()), a.ID()) + "\n")
	}
	if pkg.Duplicate != nil {
		b.WriteString(warnStyle.Render(fmt.Sprintf("duplicate of %s (similarity %.3f)",
			pkg.Duplicate.NearestID, pkg.Duplicate.Similarity)) + "\n")
	}
	if pkg.Publish != nil {
		status := pkg.Publish.Status
		if pkg.Publish.Error != "" {
			status += ": " + pkg.Publish.Error
		}
		b.WriteString(field("Publish", status) + "\n")
	}
	for _, d := range pkg.Diagnostics {
		b.WriteString(warnStyle.Render(d.Kind) + " " + dimStyle.Render(d.Stage) + " " + d.Message + "\n")
	}
	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}
