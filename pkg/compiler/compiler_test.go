package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/gsm/pkg/config"
	"github.com/xplshn/gsm/pkg/token"
	"github.com/xplshn/gsm/pkg/util"
)

func stdConfig(t *testing.T, std string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	if err := cfg.ApplyStd(std); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func mustCompile(t *testing.T, src string, cfg *config.Config) string {
	t.Helper()
	res, err := Compile(src, cfg)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	return res.Program.String()
}

func TestCompileExamples(t *testing.T) {
	cfg := stdConfig(t, "gsm")
	tests := map[string]string{
		"X = 42":  "LIT 42 LIT X STORE",
		"A=B+3*C": "LIT B LOAD LIT 3 LIT C LOAD MUL ADD LIT A STORE",
		"A=-5":    "LIT -5 LIT A STORE",
		"A=-B":    "LIT B LOAD NEG LIT A STORE",
		"A=1;B=2": "LIT 1 LIT A STORE LIT 2 LIT B STORE",
	}
	for src, want := range tests {
		if diff := cmp.Diff(want, mustCompile(t, src, cfg)); diff != "" {
			t.Errorf("Compile(%q) mismatch (-want +got):\n%s", src, diff)
		}
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	src := "A=B+3*C\nD[A] = -A / 2\nE=D[1]-A"
	first := mustCompile(t, src, stdConfig(t, "gsm"))
	second := mustCompile(t, src, stdConfig(t, "gsm"))
	if first != second {
		t.Errorf("outputs differ:\n%s\n%s", first, second)
	}
}

func TestCompileConcatenation(t *testing.T) {
	pairs := [][2]string{
		{"A=1", "B=A"},
		{"X=-Y*5", "Z[X]=X[2]"},
		{"A=B/C-D", "E=-7"},
	}
	for _, std := range []string{"gsm", "ref"} {
		cfg := stdConfig(t, std)
		for _, p := range pairs {
			joined := mustCompile(t, p[0]+" "+p[1], cfg)
			separate := mustCompile(t, p[0], cfg) + " " + mustCompile(t, p[1], cfg)
			if joined != separate {
				t.Errorf("std %s: compile(%q + %q) = %q, want %q", std, p[0], p[1], joined, separate)
			}
		}
	}
}

func TestDoubleSlashIsNotAComment(t *testing.T) {
	for _, std := range []string{"gsm", "ref"} {
		_, err := Compile("A=B//C", stdConfig(t, std))
		se, ok := util.AsSyntaxError(err)
		if !ok || se.Kind != util.InvalidToken || se.Tok.Value != "/" || se.Tok.Column != 5 {
			t.Errorf("std %s: got %v, want invalid token '/' at column 5", std, err)
		}
	}

	cfg := stdConfig(t, "gsm")
	cfg.SetFeature(config.FeatComments, true)
	if diff := cmp.Diff("LIT B LOAD LIT A STORE LIT 2 LIT C STORE", mustCompile(t, "A=B//C\nC=2", cfg)); diff != "" {
		t.Errorf("-Fcomments mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileErrorsReturnNoProgram(t *testing.T) {
	res, err := Compile("A=1 B=", stdConfig(t, "gsm"))
	if res != nil {
		t.Errorf("partial result returned: %+v", res)
	}
	se, ok := util.AsSyntaxError(err)
	if !ok || se.Kind != util.InvalidToken || se.Tok.Type != token.EOF {
		t.Errorf("got %v, want invalid token at end of input", err)
	}
}

func TestSemicolonsDependOnStd(t *testing.T) {
	if _, err := Compile("A=1;B=2", stdConfig(t, "gsm")); err != nil {
		t.Errorf("gsm: %v", err)
	}
	_, err := Compile("A=1;B=2", stdConfig(t, "ref"))
	se, ok := util.AsSyntaxError(err)
	if !ok || se.Kind != util.InvalidToken || se.Tok.Value != ";" {
		t.Errorf("ref: got %v, want invalid token ';'", err)
	}
}

func TestEmptyInput(t *testing.T) {
	res, err := Compile("", stdConfig(t, "gsm"))
	if err != nil {
		t.Fatalf("gsm: %v", err)
	}
	if res.Program.Len() != 0 {
		t.Errorf("empty input produced %q", res.Program)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Warning != config.WarnEmpty {
		t.Errorf("diagnostics = %+v", res.Diagnostics)
	}

	_, err = Compile("   ", stdConfig(t, "ref"))
	if se, ok := util.AsSyntaxError(err); !ok || se.Kind != util.EmptyProgram {
		t.Errorf("ref: got %v, want EmptyProgram", err)
	}
}

func TestDiagnosticsAreMerged(t *testing.T) {
	cfg := stdConfig(t, "ref")
	cfg.SetWarning(config.WarnDivZero, true)
	res, err := Compile("A[0]=B/0", cfg)
	if err != nil {
		t.Fatal(err)
	}
	var got []config.Warning
	for _, d := range res.Diagnostics {
		got = append(got, d.Warning)
	}
	if diff := cmp.Diff([]config.Warning{config.WarnArrayBase, config.WarnDivZero}, got); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.gsm")
	b := filepath.Join(dir, "b.gsm")
	if err := os.WriteFile(a, []byte("A = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("\nB = *\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	records, _, err := CompileFiles([]string{a, b}, stdConfig(t, "gsm"))
	if err == nil {
		t.Fatal("expected an error from the second file")
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	se, ok := util.AsSyntaxError(err)
	if !ok {
		t.Fatalf("got %v", err)
	}
	if se.Tok.FileIndex != 1 || se.Tok.Line != 2 || se.Tok.Column != 5 {
		t.Errorf("error at file %d %d:%d, want file 1 2:5", se.Tok.FileIndex, se.Tok.Line, se.Tok.Column)
	}

	if _, _, err := CompileFiles([]string{filepath.Join(dir, "missing.gsm")}, stdConfig(t, "gsm")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestTokenizeRecordsKeepsOneEOF(t *testing.T) {
	records := []util.SourceFileRecord{
		{Name: "a", Content: []rune("A=1")},
		{Name: "b", Content: []rune("")},
		{Name: "c", Content: []rune("B=2")},
	}
	toks := TokenizeRecords(records, stdConfig(t, "gsm"))
	eofs := 0
	for _, tk := range toks {
		if tk.Type == token.EOF {
			eofs++
		}
	}
	if eofs != 1 || toks[len(toks)-1].Type != token.EOF {
		t.Fatalf("want exactly one trailing EOF, got %d", eofs)
	}
	if last := toks[len(toks)-1]; last.FileIndex != 2 {
		t.Errorf("EOF belongs to file %d, want 2", last.FileIndex)
	}
	if len(toks) != 7 {
		t.Errorf("len = %d, want 7", len(toks))
	}

	if toks := TokenizeRecords(nil, stdConfig(t, "gsm")); len(toks) != 1 || toks[0].Type != token.EOF {
		t.Errorf("no records should give a lone EOF, got %+v", toks)
	}
}
