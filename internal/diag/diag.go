// Package diag defines the diagnostic model shared by every stage of the
// Tyco compilation pipeline. A Diagnostic is an error value carrying an
// error kind, a message, and a position expressed as an hcl.Range, so the
// caller always knows the file, 1-based line, and 1-based column an error
// refers to.
package diag

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// Kind classifies a diagnostic by the pipeline stage and rule that produced it.
type Kind int

const (
	// LexError reports a malformed token or illegal character.
	LexError Kind = iota + 1
	// ParseError reports a syntactically malformed document.
	ParseError
	// TypeError reports a literal that does not match its declared type.
	TypeError
	// MissingFieldError reports an instance row that omits a required field
	// with no declared default.
	MissingFieldError
	// DuplicateKeyError reports two instances sharing one primary-key tuple.
	DuplicateKeyError
	// UnresolvedReferenceError reports a reference whose key tuple matches
	// no instance.
	UnresolvedReferenceError
	// TemplateCycleError reports a template expansion that revisits a value
	// already being expanded.
	TemplateCycleError
	// CyclicExportError reports an export that would recurse through a
	// reference cycle.
	CyclicExportError
	// ValidatorRejectedError reports an instance rejected by a registered
	// struct validator hook.
	ValidatorRejectedError
)

var kindNames = map[Kind]string{
	LexError:                 "LexError",
	ParseError:               "ParseError",
	TypeError:                "TypeError",
	MissingFieldError:        "MissingFieldError",
	DuplicateKeyError:        "DuplicateKeyError",
	UnresolvedReferenceError: "UnresolvedReferenceError",
	TemplateCycleError:       "TemplateCycleError",
	CyclicExportError:        "CyclicExportError",
	ValidatorRejectedError:   "ValidatorRejectedError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Diagnostic is the single error artifact produced by a failed load. The
// pipeline is fail-fast, so a load never yields more than one.
type Diagnostic struct {
	Kind    Kind
	Message string

	// Subject is the source span the message is about. Filename is the
	// path the file was registered under, or "<string>" for string loads.
	Subject hcl.Range

	// Related optionally points at a second location that participates in
	// the error, such as the first definition in a duplicate-key report.
	Related *hcl.Range

	// SourceLine is the cached text of the offending line, attached by
	// the source registry so the caret rendering survives after the load
	// has been abandoned. Empty if the line is unavailable.
	SourceLine string
}

// New builds a diagnostic with a formatted message.
func New(kind Kind, subject hcl.Range, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Subject: subject,
	}
}

// WithRelated attaches a secondary location and returns the same diagnostic.
func (d *Diagnostic) WithRelated(r hcl.Range) *Diagnostic {
	d.Related = &r
	return d
}

// tabStop is the visual width tabs are expanded to before caret placement.
const tabStop = 8

// Error renders the diagnostic. When the offending source line is available
// the rendering spans several lines:
//
//	File "conf/app.tyco", line 4, column 7:
//	 *str name
//	      ^
//	TypeError: ...
//
// The caret is aligned to the subject column with tabs expanded to 8-column
// stops so visual alignment is preserved.
func (d *Diagnostic) Error() string {
	loc := fmt.Sprintf(`File %q, line %d, column %d`, d.Subject.Filename, d.Subject.Start.Line, d.Subject.Start.Column)
	if d.SourceLine == "" {
		return fmt.Sprintf("%s: %s: %s", loc, d.Kind, d.Message)
	}
	line := strings.TrimRight(d.SourceLine, "\r\n")
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n%s\n%s^\n%s: %s", loc, line, strings.Repeat(" ", visualColumn(line, d.Subject.Start.Column)), d.Kind, d.Message)
	return b.String()
}

// visualColumn converts a 1-based rune column into the number of spaces that
// precede the caret once tabs are expanded.
func visualColumn(line string, column int) int {
	visual := 0
	i := 0
	for _, ch := range line {
		if i >= column-1 {
			break
		}
		if ch == '\t' {
			visual = (visual/tabStop + 1) * tabStop
		} else {
			visual++
		}
		i++
	}
	return visual
}
