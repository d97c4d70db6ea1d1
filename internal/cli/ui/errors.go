package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Details      []string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates a standardized message with details, suggestions and help commands
//
// Example output:
//
//	❌ ENTITY TYPE NOT FOUND: Cannot find entity type 'Pst'.
//
//	   Did you mean: Post?
//
//	   → List entity types: modelkit inspect model.yaml
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var headerColor, bodyColor *color.Color
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		headerColor = color.New(color.FgYellow, color.Bold)
		bodyColor = color.New(color.FgYellow)
		symbol = "⚠️"
	case ErrorLevelInfo:
		headerColor = color.New(color.FgCyan, color.Bold)
		bodyColor = color.New(color.FgCyan)
		symbol = "ℹ️"
	default:
		headerColor = color.New(color.FgRed, color.Bold)
		bodyColor = color.New(color.FgRed)
		symbol = "❌"
	}
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if opts.NoColor {
		for _, c := range []*color.Color{headerColor, bodyColor, yellow, cyan} {
			c.DisableColor()
		}
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if len(opts.Details) > 0 {
		b.WriteString("\n")
		for _, detail := range opts.Details {
			for i, line := range strings.Split(detail, "\n") {
				if i == 0 {
					bodyColor.Fprintf(&b, "   • %s\n", line)
				} else {
					bodyColor.Fprintf(&b, "     %s\n", strings.TrimSpace(line))
				}
			}
		}
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// EntityTypeNotFoundError reports an unknown entity type name
func EntityTypeNotFoundError(name, definition string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:     "entity type not found",
		Problem:     fmt.Sprintf("Cannot find entity type '%s'.", name),
		Suggestions: suggestions,
		HelpCommands: []string{
			"List entity types: modelkit inspect " + definition,
		},
		NoColor: noColor,
	})
}

// ModelErrors reports every error of a failed build or finalization
func ModelErrors(context string, errs []error, noColor bool) string {
	details := make([]string, len(errs))
	for i, err := range errs {
		details[i] = err.Error()
	}
	problem := "1 error"
	if len(errs) != 1 {
		problem = fmt.Sprintf("%d errors", len(errs))
	}
	return FormatError(ErrorOptions{
		Context: context,
		Problem: problem,
		Details: details,
		HelpCommands: []string{
			"Check the definition: modelkit validate <definition.yaml>",
			"Get help: modelkit --help",
		},
		NoColor: noColor,
	})
}

// ConfigError reports a configuration problem
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context: "configuration error",
		Problem: message,
		HelpCommands: []string{
			"View config: cat modelkit.yaml",
			"Get help: modelkit --help",
		},
		NoColor: noColor,
	})
}

// Warning creates a warning message
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelWarning, Problem: message, NoColor: noColor})
}
