package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"table-backup/internal/backup"
	"table-backup/internal/errors"
)

// OutputFormat selects how a run report is printed
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

// ParseOutputFormat validates an output format name
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON, OutputYAML:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("invalid output format %q, must be one of: text, json, yaml", s)
	}
}

// reportView is the machine-readable form of a run report
type reportView struct {
	RunID     string         `json:"run_id" yaml:"run_id"`
	State     string         `json:"state" yaml:"state"`
	AbortedIn string         `json:"aborted_in,omitempty" yaml:"aborted_in,omitempty"`
	StartedAt time.Time      `json:"started_at" yaml:"started_at"`
	Duration  string         `json:"duration" yaml:"duration"`
	Artifacts []artifactView `json:"artifacts" yaml:"artifacts"`
	Uploads   []uploadView   `json:"uploads" yaml:"uploads"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorType string         `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	ExitCode  int            `json:"exit_code" yaml:"exit_code"`
}

type artifactView struct {
	Name string `json:"name" yaml:"name"`
	File string `json:"file" yaml:"file"`
	Path string `json:"path" yaml:"path"`
	Rows int64  `json:"rows" yaml:"rows"`
	Size int64  `json:"size" yaml:"size"`
}

type uploadView struct {
	Destination string `json:"destination" yaml:"destination"`
	Artifact    string `json:"artifact" yaml:"artifact"`
	Location    string `json:"location,omitempty" yaml:"location,omitempty"`
	StatusCode  int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	WebURL      string `json:"web_url,omitempty" yaml:"web_url,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newReportView(report *backup.RunReport) reportView {
	view := reportView{
		RunID:     report.RunID,
		State:     string(report.State),
		AbortedIn: string(report.AbortedIn),
		StartedAt: report.StartedAt,
		Duration:  report.Duration().Round(time.Millisecond).String(),
		Artifacts: []artifactView{},
		Uploads:   []uploadView{},
	}
	for _, a := range report.Artifacts {
		view.Artifacts = append(view.Artifacts, artifactView{
			Name: a.Name, File: a.FileName, Path: a.Path, Rows: a.Rows, Size: a.Size,
		})
	}
	for _, u := range report.Uploads {
		uv := uploadView{
			Destination: u.Destination,
			Artifact:    u.Artifact,
			Location:    u.Location,
			StatusCode:  u.StatusCode,
			WebURL:      u.WebURL,
		}
		if u.Err != nil {
			uv.Error = u.Err.Error()
		}
		view.Uploads = append(view.Uploads, uv)
	}
	if err := report.Error(); err != nil {
		view.Error = errors.FormatUserError(err)
		view.ErrorType = string(errors.GetErrorType(err))
	}
	view.ExitCode = errors.ExitCode(report.Error())
	return view
}

// Printer writes run reports for the operator
type Printer struct {
	w      io.Writer
	format OutputFormat
	colors *ColorSystem
	icons  *IconSet
}

// NewPrinter creates a report printer
func NewPrinter(w io.Writer, format OutputFormat, colors *ColorSystem) *Printer {
	if colors == nil {
		colors = NewColorSystem(false)
	}
	return &Printer{
		w:      w,
		format: format,
		colors: colors,
		icons:  NewIconSet(colors),
	}
}

// Report prints a finished run
func (p *Printer) Report(report *backup.RunReport) error {
	switch p.format {
	case OutputJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(newReportView(report))
	case OutputYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(newReportView(report)); err != nil {
			return err
		}
		return enc.Close()
	default:
		p.text(report)
		return nil
	}
}

func (p *Printer) text(report *backup.RunReport) {
	c := p.colors
	fmt.Fprintf(p.w, "%s %s %s\n",
		c.Sprint(RoleHighlight, "Backup run"),
		c.Sprint(RoleMuted, report.RunID),
		c.Sprintf(RoleMuted, "(%s)", report.Duration().Round(time.Millisecond)))

	if len(report.Artifacts) > 0 {
		fmt.Fprintln(p.w, c.Sprint(RoleInfo, "  Artifacts"))
		width := 0
		for _, a := range report.Artifacts {
			width = max(width, len(a.FileName))
		}
		for _, a := range report.Artifacts {
			fmt.Fprintf(p.w, "    %s %-*s  %6d rows  %9s\n",
				p.icons.Render(IconSuccess), width, a.FileName, a.Rows, formatBytes(a.Size))
		}
	}

	if len(report.Uploads) > 0 {
		fmt.Fprintln(p.w, c.Sprint(RoleInfo, "  Uploads"))
		destWidth, nameWidth := 0, 0
		for _, u := range report.Uploads {
			destWidth = max(destWidth, len(u.Destination))
			nameWidth = max(nameWidth, len(u.Artifact))
		}
		for _, u := range report.Uploads {
			icon, detail := p.icons.Render(IconSuccess), u.Location
			if u.Err != nil {
				icon, detail = p.icons.Render(IconFailure), c.Sprint(RoleError, firstLine(u.Err.Error()))
			}
			fmt.Fprintf(p.w, "    %s %-*s  %-*s  %s %s\n",
				icon, destWidth, u.Destination, nameWidth, u.Artifact, p.icons.Render(IconArrow), detail)
		}
	}

	err := report.Error()
	switch {
	case err == nil:
		fmt.Fprintf(p.w, "%s %s\n", p.icons.Render(IconSuccess), c.Sprint(RoleSuccess, "Backup completed"))
	case report.State == backup.StateAborted:
		fmt.Fprintf(p.w, "%s %s %s\n", p.icons.Render(IconFailure),
			c.Sprintf(RoleError, "Backup aborted while %s:", report.AbortedIn), errors.FormatUserError(err))
	default:
		fmt.Fprintf(p.w, "%s %s\n", p.icons.Render(IconWarning),
			c.Sprintf(RoleWarning, "Backup completed, %d of %d uploads failed", len(report.FailedUploads()), len(report.Uploads)))
	}
}

// Highlight prints a labelled value the operator must copy
func (p *Printer) Highlight(label, value string) {
	fmt.Fprintf(p.w, "%s\n%s\n", p.colors.Sprint(RoleInfo, label), p.colors.Sprint(RoleHighlight, value))
}

// Status prints one status line
func (p *Printer) Status(icon Icon, message string) {
	fmt.Fprintf(p.w, "%s %s\n", p.icons.Render(icon), message)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// formatBytes formats byte counts in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
