package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/gsm/pkg/config"
	"github.com/xplshn/gsm/pkg/token"
	"golang.org/x/term"
)

// ErrorKind distinguishes the fatal compilation errors.
type ErrorKind int

const (
	// UnexpectedToken: consume found a token other than the one it expected.
	UnexpectedToken ErrorKind = iota
	// InvalidToken: a value or assignment target was required.
	InvalidToken
	InvalidNumber
	EmptyProgram
	DivisionByZero
	ConstantOverflow
)

// SyntaxError is the only error the lexer/parser/emitter pipeline produces.
type SyntaxError struct {
	Kind     ErrorKind
	Tok      token.Token
	Expected string
	Detail   string
}

func (e *SyntaxError) Error() string {
	switch e.Kind {
	case UnexpectedToken:
		return fmt.Sprintf("expected '%s', got '%s'", e.Expected, e.Tok.Text())
	case InvalidToken:
		return fmt.Sprintf("invalid token '%s'", e.Tok.Text())
	case InvalidNumber:
		if e.Detail != "" {
			return fmt.Sprintf("invalid number literal '%s': %s", e.Tok.Text(), e.Detail)
		}
		return fmt.Sprintf("invalid number literal '%s'", e.Tok.Text())
	case EmptyProgram:
		return "empty program"
	case DivisionByZero:
		return "compile-time division by zero"
	case ConstantOverflow:
		return "compile-time constant overflows int64"
	}
	return "syntax error"
}

// AsSyntaxError unwraps err to a *SyntaxError if it carries one.
func AsSyntaxError(err error) (*SyntaxError, bool) {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Diagnostic is a non-fatal warning raised during compilation.
type Diagnostic struct {
	Warning config.Warning
	Tok     token.Token
	Msg     string
}

// Warnf records a warning in *diags if wt is enabled in cfg.
func Warnf(diags *[]Diagnostic, cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	*diags = append(*diags, Diagnostic{Warning: wt, Tok: tok, Msg: fmt.Sprintf(format, args...)})
}

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

// Reporter renders errors and warnings against the original sources.
type Reporter struct {
	Out   io.Writer
	Files []SourceFileRecord
	Color bool
}

// NewReporter writes to out, colouring output only when out is a terminal.
func NewReporter(out io.Writer, files []SourceFileRecord) *Reporter {
	r := &Reporter{Out: out, Files: files}
	if f, ok := out.(*os.File); ok {
		r.Color = term.IsTerminal(int(f.Fd()))
	}
	return r
}

func (r *Reporter) paint(code, s string) string {
	if !r.Color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// findFileAndLine converts a global token to a file-specific location
func (r *Reporter) findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.Files) {
		return "<input>", tok.Line, tok.Column
	}
	return r.Files[tok.FileIndex].Name, tok.Line, tok.Column
}

// printErrorLine prints the source line and a caret indicating the error position
func (r *Reporter) printErrorLine(tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.Files) || tok.Line == 0 {
		return
	}

	content := r.Files[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	for i, ch := range content {
		if lineNum <= 1 {
			break
		}
		if ch == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(r.Out, "  %s\n", string(content[lineStart:lineEnd]))

	marker := "^"
	if tok.Len > 1 {
		marker += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(r.Out, "  %s%s\n", strings.Repeat(" ", max(tok.Column-1, 0)), r.paint("32", marker))
}

// Error prints err. Syntax errors get a position prefix and the offending
// source line; anything else is printed as is.
func (r *Reporter) Error(err error) {
	se, ok := AsSyntaxError(err)
	if !ok {
		fmt.Fprintf(r.Out, "gsm: %s %v\n", r.paint("31", "error:"), err)
		return
	}
	filename, line, col := r.findFileAndLine(se.Tok)
	fmt.Fprintf(r.Out, "%s:%d:%d: %s %s\n", filename, line, col, r.paint("31", "error:"), se.Error())
	r.printErrorLine(se.Tok)
}

// Warn prints one diagnostic, tagged with the flag that controls it.
func (r *Reporter) Warn(cfg *config.Config, d Diagnostic) {
	filename, line, col := r.findFileAndLine(d.Tok)
	fmt.Fprintf(r.Out, "%s:%d:%d: %s %s [-W%s]\n", filename, line, col, r.paint("33", "warning:"), d.Msg, cfg.Warnings[d.Warning].Name)
	r.printErrorLine(d.Tok)
}
