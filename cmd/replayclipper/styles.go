package main

import "github.com/charmbracelet/lipgloss"

var styles = struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Value lipgloss.Style
	Dir   lipgloss.Style
	File  lipgloss.Style
	Dim   lipgloss.Style
	Error lipgloss.Style
}{
	Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
	Label: lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")).Width(12),
	Value: lipgloss.NewStyle(),
	Dir:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff")),
	File:  lipgloss.NewStyle(),
	Dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
	Error: lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f56")),
}

func field(label, value string) string {
	return styles.Label.Render(label) + " " + styles.Value.Render(value)
}
