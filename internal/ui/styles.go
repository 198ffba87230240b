// Package ui provides consistent styling for the evdevkm CLI
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across the application
var (
	ColorPrimary = lipgloss.Color("39")  // Bright blue
	ColorSuccess = lipgloss.Color("82")  // Green
	ColorWarning = lipgloss.Color("214") // Orange
	ColorError   = lipgloss.Color("196") // Red
	ColorInfo    = lipgloss.Color("86")  // Cyan

	ColorText   = lipgloss.Color("252") // Light gray
	ColorSubtle = lipgloss.Color("241") // Medium gray
)

var (
	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	ControlKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)
)

// Table cell styles
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorPrimary).
				Padding(0, 1)

	TableCellStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Padding(0, 1)

	TableMutedCellStyle = lipgloss.NewStyle().
				Foreground(ColorSubtle).
				Padding(0, 1)
)

// Icons
var (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "!"
	IconVirtual = "◆"
)

// FormatAppHeader renders the command title with an optional subtitle
func FormatAppHeader(title, subtitle string) string {
	header := HeaderStyle.Render("evdevkm " + strings.ToLower(title))
	if subtitle != "" {
		header += " " + SubtleStyle.Render(subtitle)
	}
	return header + "\n" + CreateSeparator(50, "─")
}

// FormatWarning renders a warning marker followed by a message
func FormatWarning(message string) string {
	return WarningStyle.Render(IconWarning) + " " + message
}

// FormatResult renders a check or cross followed by a message
func FormatResult(success bool, message string) string {
	if success {
		return SuccessStyle.Render(IconSuccess) + " " + message
	}
	return ErrorStyle.Render(IconError) + " " + message
}

// CreateSeparator creates a horizontal line separator
func CreateSeparator(width int, char string) string {
	if width <= 0 {
		width = 50
	}
	if char == "" {
		char = "─"
	}

	return lipgloss.NewStyle().
		Foreground(ColorSubtle).
		Render(strings.Repeat(char, width))
}
