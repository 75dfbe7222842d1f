package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/gnolang/summarizer/internal/verify"
)

// StatusWord is the report word of a property status.
func StatusWord(s verify.Status) string {
	switch s {
	case verify.StatusPass:
		return "SUCCESS"
	case verify.StatusFail:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

func styledStatus(s verify.Status) string {
	switch s {
	case verify.StatusPass:
		return successStyle.Sprint(StatusWord(s))
	case verify.StatusFail:
		return failureStyle.Sprint(StatusWord(s))
	default:
		return unknownStyle.Sprint(StatusWord(s))
	}
}

// TextOptions controls the plain report.
type TextOptions struct {
	// Sources, when set, adds the source line of every failed assertion.
	Sources SourceLoader
	// ShowTrace adds the counterexample of every failure.
	ShowTrace bool
}

// WriteText writes one line per property, the failures in detail, the
// failure count and the verification result.
func WriteText(w io.Writer, r *verify.Report, opts TextOptions) error {
	var sb strings.Builder
	sb.WriteString("\n** Results:\n")
	for _, p := range r.Properties {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", propertyStyle.Sprint(p.ID), p.Description, styledStatus(p.Status))
	}

	var details []string
	for _, p := range r.Properties {
		if p.Status != verify.StatusFail {
			continue
		}
		switch {
		case opts.Sources != nil:
			src, err := opts.Sources(p.Pos.File)
			if err != nil {
				src = nil
			}
			details = append(details, FormatFailure(p, src, opts.ShowTrace))
		case opts.ShowTrace:
			details = append(details, FormatTrace(p))
		}
	}
	if len(details) > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(details, "\n"))
	}

	fmt.Fprintf(&sb, "\n** %d of %d failed\n", r.Failed(), len(r.Properties))
	if n := r.Unknown(); n > 0 {
		fmt.Fprintf(&sb, "** %d of %d unknown\n", n, len(r.Properties))
	}
	if r.Verdict == verify.Safe {
		sb.WriteString(successStyle.Sprint("VERIFICATION SUCCESSFUL") + "\n")
	} else {
		sb.WriteString(failureStyle.Sprint("VERIFICATION FAILED") + "\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatTrace renders the counterexample of a failed property.
func FormatTrace(p verify.Property) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Trace for %s:\n", propertyStyle.Sprint(p.ID))
	for _, s := range p.Trace {
		fmt.Fprintf(&sb, "  %s = %s (location %d)\n", s.Object, s.Value, s.Location)
	}
	return sb.String()
}
