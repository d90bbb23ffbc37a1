package display

import (
	"os"

	"github.com/mattn/go-isatty"
)

// Icon is a status marker with an ASCII fallback
type Icon struct {
	Unicode string
	ASCII   string
	Role    Role
}

var (
	IconSuccess = Icon{Unicode: "✓", ASCII: "[OK]", Role: RoleSuccess}
	IconFailure = Icon{Unicode: "✗", ASCII: "[FAIL]", Role: RoleError}
	IconWarning = Icon{Unicode: "!", ASCII: "[WARN]", Role: RoleWarning}
	IconArrow   = Icon{Unicode: "→", ASCII: "->", Role: RoleMuted}
)

// IconSet renders icons with or without Unicode
type IconSet struct {
	unicode bool
	colors  *ColorSystem
}

// NewIconSet creates an icon set with Unicode detection
func NewIconSet(colors *ColorSystem) *IconSet {
	return &IconSet{unicode: detectUnicodeSupport(), colors: colors}
}

// detectUnicodeSupport checks if the terminal is likely to render Unicode
func detectUnicodeSupport() bool {
	if os.Getenv("FORCE_UNICODE") != "" {
		return true
	}
	if os.Getenv("NO_UNICODE") != "" {
		return false
	}
	if os.Getenv("LANG") == "C" || os.Getenv("LC_ALL") == "C" {
		return false
	}
	if term := os.Getenv("TERM"); term == "dumb" || term == "vt100" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// SetUnicode overrides detection
func (is *IconSet) SetUnicode(enabled bool) {
	is.unicode = enabled
}

// Render returns the colored icon
func (is *IconSet) Render(icon Icon) string {
	text := icon.ASCII
	if is.unicode {
		text = icon.Unicode
	}
	if is.colors == nil {
		return text
	}
	return is.colors.Sprint(icon.Role, text)
}
