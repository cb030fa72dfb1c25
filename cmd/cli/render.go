package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/myrjola/sleuth/internal/models"
)

const progressBarWidth = 30

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	questionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
	verdictStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 1)
	doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// progressBar renders percent in [0, 100] as a bar of fixed width.
func progressBar(percent int) string {
	percent = models.ClampConfidence(percent)
	filled := percent * progressBarWidth / models.MaxConfidence
	return fmt.Sprintf("[%s%s] %3d%%",
		strings.Repeat("#", filled), strings.Repeat("-", progressBarWidth-filled), percent)
}

func renderGoals(goals []models.Goal) string {
	var b strings.Builder
	for _, g := range goals {
		marker := " "
		if g.Status == models.GoalStatusComplete {
			marker = doneStyle.Render("✓")
		}
		fmt.Fprintf(&b, "%s %s %s\n", marker, subtleStyle.Render(progressBar(g.Confidence)), g.Description)
	}
	return b.String()
}

// renderTurn shows the investigation progress together with the current question.
func renderTurn(s *models.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render(s.IncidentName),
		subtleStyle.Render(fmt.Sprintf("turn %d, threshold %d%%", s.TurnCount, s.ConfidenceThreshold)))
	fmt.Fprintf(&b, "Overall %s\n\n", progressBar(s.Progress()))
	b.WriteString(renderGoals(s.Goals))
	b.WriteString("\n")
	b.WriteString(questionStyle.Render(s.CurrentQuestion))
	return b.String()
}

func renderSessions(sessions []*models.Session) string {
	if len(sessions) == 0 {
		return subtleStyle.Render("No investigations yet. Start one with: sleuth investigate <incident name>")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%-36s  %-9s  %-5s  %s", "ID", "STATUS", "TURNS", "INCIDENT")))
	b.WriteString("\n")
	for _, s := range sessions {
		fmt.Fprintf(&b, "%-36s  %-9s  %5d  %s %s\n",
			s.ID, s.Status, s.TurnCount, s.IncidentName, subtleStyle.Render(progressBar(s.Progress())))
	}
	return b.String()
}

func renderAnalysis(report models.AnalysisReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Timeline"))
	b.WriteString("\n")
	for _, e := range report.Timeline {
		fmt.Fprintf(&b, "  %s  %s\n", subtleStyle.Render(e.Time), e.Event)
	}
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Key facts"))
	b.WriteString("\n")
	for _, f := range report.KeyFacts {
		fmt.Fprintf(&b, "  • %s\n", f)
	}
	if len(report.Gaps) > 0 {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("Open questions"))
		b.WriteString("\n")
		for _, g := range report.Gaps {
			fmt.Fprintf(&b, "  • %s\n", g)
		}
	}
	b.WriteString("\n")

	v := report.Verdict
	verdict := fmt.Sprintf("%s is %d%% responsible\n\n%s\n\nOthers: %s\n\nDrama %d/10: %s",
		v.PrimaryResponsibility, v.Percentage, v.Reasoning, v.ContributingFactors, v.DramaRating,
		v.DramaRatingExplanation)
	b.WriteString(verdictStyle.Render(verdict))
	return b.String()
}
