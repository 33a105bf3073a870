package codegen

import (
	"bytes"
	"fmt"

	"github.com/xplshn/gsm/pkg/config"
	"github.com/xplshn/gsm/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes an emitted program and a configuration, and produces the
	// target listing or assembly as a byte buffer.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
}

// SelectBackend returns the backend named by cfg.BackendName.
func SelectBackend(cfg *config.Config, format string) (Backend, error) {
	switch cfg.BackendName {
	case "stack":
		return NewStackBackend(format)
	case "qbe":
		return NewQBEBackend(), nil
	}
	return nil, fmt.Errorf("unsupported backend '%s'", cfg.BackendName)
}

type stackBackend struct{ format string }

// NewStackBackend renders instruction mnemonics. format is "text" (one line,
// space separated) or "lines" (one instruction per line).
func NewStackBackend(format string) (Backend, error) {
	switch format {
	case "", "text":
		return &stackBackend{format: "text"}, nil
	case "lines":
		return &stackBackend{format: "lines"}, nil
	}
	return nil, fmt.Errorf("unsupported output format '%s'. Supported: 'text', 'lines'", format)
}

func (b *stackBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if b.format == "lines" {
		for _, line := range prog.Lines() {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
		return &buf, nil
	}
	buf.WriteString(prog.String())
	buf.WriteByte('\n')
	return &buf, nil
}

// IRGenerator is implemented by backends that can show their intermediate
// form before assembling it.
type IRGenerator interface {
	GenerateIR(prog *ir.Program, cfg *config.Config) (string, error)
}
