package main

import "github.com/charmbracelet/lipgloss"

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")) // green
	partialStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")) // yellow
	failedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")) // red

	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
)
