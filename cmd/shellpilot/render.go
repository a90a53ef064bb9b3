package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"shellpilot/internal/types"
)

var (
	analysisStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	commandStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	outputStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	resultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	riskStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
)

// renderBlock prints one content block to stdout.
func renderBlock(b types.ContentBlock) {
	switch b.Kind {
	case types.ContentAnalysis:
		fmt.Println(analysisStyle.Render(b.Text))
	case types.ContentCommand:
		if b.Text != "" {
			fmt.Println(analysisStyle.Render(b.Text))
		}
		for _, c := range b.Commands {
			line := "$ " + c.Text
			if c.Description != "" {
				line += "  # " + c.Description
			}
			fmt.Println(commandStyle.Render(line), riskStyle.Render("["+c.Risk.String()+"]"))
		}
	case types.ContentOutput:
		fmt.Println(outputStyle.Render(strings.TrimRight(b.Text, "\n")))
	case types.ContentResult:
		fmt.Println(resultStyle.Render(b.Text))
	case types.ContentError:
		fmt.Println(errorStyle.Render(b.Text))
	}
}

// renderFinal prints the closing status line.
func renderFinal(task *types.Task) {
	elapsed := task.ElapsedSeconds(time.Now())
	switch task.State {
	case types.TaskCompleted:
		fmt.Println(resultStyle.Render(fmt.Sprintf("✓ goal reached in %ds", elapsed)))
	case types.TaskError:
		fmt.Println(errorStyle.Render(fmt.Sprintf("✗ task failed after %ds", elapsed)))
	}
}
