// Package compiler wires the lexer, parser and emitter into one call.
package compiler

import (
	"fmt"
	"os"

	"github.com/xplshn/gsm/pkg/ast"
	"github.com/xplshn/gsm/pkg/codegen"
	"github.com/xplshn/gsm/pkg/config"
	"github.com/xplshn/gsm/pkg/ir"
	"github.com/xplshn/gsm/pkg/lexer"
	"github.com/xplshn/gsm/pkg/parser"
	"github.com/xplshn/gsm/pkg/token"
	"github.com/xplshn/gsm/pkg/util"
)

// Result is a successful compilation.
type Result struct {
	Tokens      []token.Token
	Stmts       []*ast.Node
	Program     *ir.Program
	Diagnostics []util.Diagnostic
}

// Compile translates src into a stack program. Any error aborts the whole
// compilation; no partial program is returned.
func Compile(src string, cfg *config.Config) (*Result, error) {
	return CompileTokens(lexer.Tokenize(src, cfg), cfg)
}

// CompileTokens parses and emits an EOF-terminated token stream.
func CompileTokens(toks []token.Token, cfg *config.Config) (*Result, error) {
	p := parser.NewParser(toks, cfg)
	stmts, err := p.Parse()
	if err != nil {
		return nil, err
	}

	e := codegen.NewEmitter(cfg)
	prog, err := e.Emit(stmts)
	if err != nil {
		return nil, err
	}

	diags := append(p.Diagnostics(), e.Diagnostics()...)
	return &Result{Tokens: toks, Stmts: stmts, Program: prog, Diagnostics: diags}, nil
}

// ReadFiles loads each path as a source record.
func ReadFiles(paths []string) ([]util.SourceFileRecord, error) {
	var records []util.SourceFileRecord
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read file '%s': %w", path, err)
		}
		records = append(records, util.SourceFileRecord{Name: path, Content: []rune(string(content))})
	}
	return records, nil
}

// ReadAndTokenizeFiles lexes every file in order into one EOF-terminated
// stream, as if the files were joined with whitespace.
func ReadAndTokenizeFiles(paths []string, cfg *config.Config) ([]util.SourceFileRecord, []token.Token, error) {
	records, err := ReadFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	return records, TokenizeRecords(records, cfg), nil
}

// TokenizeRecords lexes records in order. Only the last record's EOF is kept.
func TokenizeRecords(records []util.SourceFileRecord, cfg *config.Config) []token.Token {
	var allTokens []token.Token
	eof := token.Token{Type: token.EOF}
	for i, rec := range records {
		toks := TokenizeRecord(rec, i, cfg)
		allTokens = append(allTokens, toks[:len(toks)-1]...)
		eof = toks[len(toks)-1]
	}
	return append(allTokens, eof)
}

// TokenizeRecord lexes one source record, tagging tokens with fileIndex.
func TokenizeRecord(rec util.SourceFileRecord, fileIndex int, cfg *config.Config) []token.Token {
	l := lexer.NewLexer(rec.Content, fileIndex, cfg)
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

// CompileFiles compiles the concatenation of paths.
func CompileFiles(paths []string, cfg *config.Config) ([]util.SourceFileRecord, *Result, error) {
	records, toks, err := ReadAndTokenizeFiles(paths, cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := CompileTokens(toks, cfg)
	return records, res, err
}
