// Package ui prints progress and status lines for the CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	blue   = color.New(color.FgBlue)
	red    = color.New(color.FgRed)
)

const headerWidth = 60

// Header prints a banner around a run phase.
func Header(text string) {
	line := strings.Repeat("=", headerWidth)
	green.Printf("\n%s\n", line)
	green.Printf("%-60s\n", center(text, headerWidth))
	green.Printf("%s\n\n", line)
}

// Step prints a numbered step indicator.
func Step(stepNum, totalSteps int, format string, args ...any) {
	yellow.Printf("[%d/%d] %s\n", stepNum, totalSteps, fmt.Sprintf(format, args...))
}

// Success prints a completed action.
func Success(format string, args ...any) {
	green.Printf("  → %s\n", fmt.Sprintf(format, args...))
}

// Info prints a neutral status line.
func Info(format string, args ...any) {
	fmt.Printf("  → %s\n", fmt.Sprintf(format, args...))
}

// Warning prints a non-fatal issue.
func Warning(format string, args ...any) {
	yellow.Printf("  ⚠ %s\n", fmt.Sprintf(format, args...))
}

// Error prints a failure.
func Error(format string, args ...any) {
	red.Printf("Error: %s\n", fmt.Sprintf(format, args...))
}

// BlueText prints blue text.
func BlueText(text string) {
	blue.Println(text)
}

// YellowText prints yellow text.
func YellowText(text string) {
	yellow.Println(text)
}

func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
