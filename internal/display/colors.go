package display

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Role names the meaning of a piece of output rather than its color
type Role int

const (
	RolePlain Role = iota
	RoleSuccess
	RoleWarning
	RoleError
	RoleInfo
	RoleMuted
	RoleHighlight
)

// ColorSystem applies role colors when the terminal supports them
type ColorSystem struct {
	enabled bool
	roles   map[Role]*color.Color
}

// NewColorSystem creates a color system. Colors are used only when allowed
// and stdout is a color-capable terminal.
func NewColorSystem(allowed bool) *ColorSystem {
	cs := &ColorSystem{
		enabled: allowed && detectColorSupport(),
		roles: map[Role]*color.Color{
			RolePlain:     color.New(color.Reset),
			RoleSuccess:   color.New(color.FgHiGreen),
			RoleWarning:   color.New(color.FgHiYellow),
			RoleError:     color.New(color.FgHiRed, color.Bold),
			RoleInfo:      color.New(color.FgCyan),
			RoleMuted:     color.New(color.FgWhite),
			RoleHighlight: color.New(color.FgHiBlue, color.Bold),
		},
	}
	for _, c := range cs.roles {
		if cs.enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return cs
}

// detectColorSupport checks if stdout is a terminal that accepts colors
func detectColorSupport() bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

// Enabled reports whether output is colored
func (cs *ColorSystem) Enabled() bool {
	return cs.enabled
}

// Sprint colors text for a role
func (cs *ColorSystem) Sprint(role Role, text string) string {
	if !cs.enabled {
		return text
	}
	if c, ok := cs.roles[role]; ok {
		return c.Sprint(text)
	}
	return text
}

// Sprintf formats and colors text for a role
func (cs *ColorSystem) Sprintf(role Role, format string, args ...interface{}) string {
	return cs.Sprint(role, fmt.Sprintf(format, args...))
}
