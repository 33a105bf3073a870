package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/davecgh/go-spew/spew"
	"github.com/xplshn/gsm/pkg/cli"
	"github.com/xplshn/gsm/pkg/codegen"
	"github.com/xplshn/gsm/pkg/compiler"
	"github.com/xplshn/gsm/pkg/config"
	"github.com/xplshn/gsm/pkg/util"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

var dumper = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := cli.NewApp("gsm")
	app.Synopsis = "[options] [<input.gsm> ...]"
	app.Description = "Translates assignment programs into instructions for a stack machine. Reads standard input when no file or -e expression is given."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/gsm>"
	app.Since = 2025
	app.Stdout, app.Stderr = stdout, stderr

	var (
		outFile    string
		std        string
		target     string
		format     string
		expr       string
		cells      int
		pedantic   bool
		verbose    bool
		dumpIR     bool
		dumpTokens bool
		dumpAST    bool
		repl       bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file> instead of standard output.", "file")
	fs.String(&target, "target", "t", "stack", "Set the backend and target ABI.", "backend/target")
	fs.String(&format, "format", "", "text", "Listing format for the stack backend (text, lines).", "format")
	fs.String(&expr, "expr", "e", "", "Compile <program> given on the command line.", "program")
	fs.String(&std, "std", "", config.DefaultStd, "Specify language standard (ref, gsm).", "std")
	fs.Int(&cells, "cells", "", config.DefaultCellsPerName, "Memory cells reserved per name by the qbe backend.", "n")
	fs.Bool(&pedantic, "pedantic", "", false, "Issue all warnings demanded by the current std.")
	fs.Bool(&verbose, "verbose", "v", false, "Report each compilation stage on standard error.")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Dump the backend's intermediate form and exit.")
	fs.Bool(&dumpTokens, "dump-tokens", "", false, "Dump the token stream and exit.")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Dump the parsed statements and exit.")
	fs.Bool(&repl, "repl", "i", false, "Start an interactive session.")

	cfg := config.NewConfig()
	cfg.Stderr = stderr
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		logf := func(format string, args ...interface{}) {
			if verbose {
				fmt.Fprintf(stderr, format+"\n", args...)
			}
		}
		reporter := util.NewReporter(stderr, nil)
		fail := func(err error) error {
			reporter.Error(err)
			return err
		}

		if pedantic {
			cfg.SetWarning(config.WarnPedantic, true)
		}
		if err := cfg.ApplyStd(std); err != nil {
			return fail(err)
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			return fail(err)
		}
		if cells <= 0 {
			return fail(fmt.Errorf("--cells must be positive, got %d", cells))
		}
		cfg.CellsPerName = cells

		if repl {
			return runREPL(cfg)
		}

		records, err := collectInput(inputFiles, expr, stdin)
		if err != nil {
			return fail(err)
		}
		reporter.Files = records

		logf("Tokenizing %d source(s) (std %s)...", len(records), cfg.StdName)
		toks := compiler.TokenizeRecords(records, cfg)
		if dumpTokens {
			dumper.Fdump(stdout, toks)
			return nil
		}

		logf("Parsing and emitting...")
		res, err := compiler.CompileTokens(toks, cfg)
		if err != nil {
			return fail(err)
		}
		for _, d := range res.Diagnostics {
			reporter.Warn(cfg, d)
		}
		if dumpAST {
			dumper.Fdump(stdout, res.Stmts)
			return nil
		}

		backend, err := codegen.SelectBackend(cfg, format)
		if err != nil {
			return fail(err)
		}

		if dumpIR {
			logf("Dumping IR for '%s' backend...", cfg.BackendName)
			if gen, ok := backend.(codegen.IRGenerator); ok {
				irText, err := gen.GenerateIR(res.Program, cfg)
				if err != nil {
					return fail(fmt.Errorf("backend IR generation failed: %w", err))
				}
				fmt.Fprint(stdout, irText)
				return nil
			}
			for _, line := range res.Program.Lines() {
				fmt.Fprintln(stdout, line)
			}
			return nil
		}

		logf("Generating code with '%s' backend...", cfg.BackendName)
		out, err := backend.Generate(res.Program, cfg)
		if err != nil {
			return fail(fmt.Errorf("backend code generation failed: %w", err))
		}

		if outFile == "" || outFile == "-" {
			_, err = stdout.Write(out.Bytes())
			return err
		}
		logf("Writing '%s'...", outFile)
		if err := os.WriteFile(outFile, out.Bytes(), 0o644); err != nil {
			return fail(fmt.Errorf("could not write '%s': %w", outFile, err))
		}
		return nil
	}

	if err := app.Run(args); err != nil {
		return 1
	}
	return 0
}

// collectInput gathers the program text: an -e expression, the named files
// in order, or standard input.
func collectInput(inputFiles []string, expr string, stdin io.Reader) ([]util.SourceFileRecord, error) {
	switch {
	case expr != "" && len(inputFiles) > 0:
		return nil, errors.New("cannot combine -e with input files")
	case expr != "":
		return []util.SourceFileRecord{{Name: "<expr>", Content: []rune(expr)}}, nil
	case len(inputFiles) > 0:
		return compiler.ReadFiles(inputFiles)
	}
	content, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("could not read standard input: %w", err)
	}
	return []util.SourceFileRecord{{Name: "<stdin>", Content: []rune(string(content))}}, nil
}
