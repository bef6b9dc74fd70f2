package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"derbent-workflow/backend/internal/seed"
	"derbent-workflow/backend/pkg/models"
)

// Formatter colors text for the terminal and falls back to plain text when
// color is off.
type Formatter struct {
	color *color.Color
}

func (f Formatter) Sprint(a ...any) string {
	text := fmt.Sprint(a...)
	if noColor() {
		return text
	}
	return f.color.Sprint(text)
}

var (
	Success   = Formatter{color.New(color.FgGreen)}
	Error     = Formatter{color.New(color.FgRed)}
	Warning   = Formatter{color.New(color.FgYellow)}
	Highlight = Formatter{color.New(color.FgCyan, color.Bold)}
	Muted     = Formatter{color.New(color.FgHiBlack)}
)

func noColor() bool {
	return color.NoColor || os.Getenv("NO_COLOR") != ""
}

func summary(tenant *models.Tenant, res *seed.Result) string {
	return fmt.Sprintf("%s %s: %d statuses, %d roles, %d assignments, %d workflows, %d transitions, %d item types",
		Success.Sprint("Seeded"), Highlight.Sprint(tenant.Domain),
		res.Statuses, res.Roles, res.Assignments, res.Workflows, res.Transitions, res.ItemTypes)
}
