package main

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	colorWhite     = lipgloss.Color("#FFFFFF")
	colorLightGray = lipgloss.Color("#CCCCCC")
	colorGray      = lipgloss.Color("#888888")
	colorDarkGray  = lipgloss.Color("#444444")
	colorGreen     = lipgloss.Color("#00FF00")
	colorRed       = lipgloss.Color("#FF0000")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Width(10)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorLightGray)

	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorDarkGray).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDarkGray).
			Italic(true)
)
