// gtest runs the gsm binary over a set of source files in several modes and
// compares every listing with a golden .json recorded next to the source.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

type ModeRun struct {
	Name   string    `json:"name"`
	Args   []string  `json:"args,omitempty"`
	Result Execution `json:"result"`
}

// CompilerResult is one compiler's output for one source file, and the
// format golden files are stored in.
type CompilerResult struct {
	SourceHash string    `json:"source_hash"`
	Runs       []ModeRun `json:"runs"`
}

type FileTestResult struct {
	File      string          `json:"file"`
	Status    string          `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message   string          `json:"message,omitempty"`
	Diff      string          `json:"diff,omitempty"`
	Reference *CompilerResult `json:"reference,omitempty"`
	Target    *CompilerResult `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	refCompiler    = flag.String("ref-compiler", "", "Compiler whose listings are trusted. Without it golden files are used.")
	targetCompiler = flag.String("target-compiler", "./gsm", "Path to the compiler to test.")
	targetArgs     = flag.String("target-args", "", "Extra arguments for both compilers (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Generate golden .json files for the given source files (space-separated).")
	testFiles      = flag.String("test-files", "testdata/*.gsm", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each compiler invocation.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Print per-mode timings.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	ignoreLines    = flag.String("ignore-lines", "", "Comma-separated substrings to ignore during output comparison.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

var statusColor = map[string]string{
	"PASS":  cGreen,
	"FAIL":  cRed,
	"SKIP":  cYellow,
	"ERROR": cRed,
}

func paint(color, s string) string { return color + s + cNone }

// modes are the flag sets every source file is compiled with.
var modes = map[string][]string{
	"gsm":       {"--std", "gsm"},
	"ref":       {"--std", "ref"},
	"lines":     {"--format", "lines"},
	"fold":      {"-Ffold"},
	"qbe_ir":    {"-t", "qbe/amd64_sysv", "-d"},
	"ref_quiet": {"--std", "ref", "-Wno-array-base"},
}

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *generateGolden != "" {
		failed := false
		for _, file := range strings.Fields(*generateGolden) {
			if err := handleGenerateGolden(file); err != nil {
				log.Printf("%s %v", paint(cRed, "golden:"), err)
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
		return
	}

	if handleRunTestSuite() {
		os.Exit(1)
	}
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func handleGenerateGolden(sourceFile string) error {
	log.Printf("recording %s", sourceFile)

	fileHash, err := hashFile(sourceFile)
	if err != nil {
		return fmt.Errorf("could not hash source file %s: %w", sourceFile, err)
	}
	result := compileModes(*targetCompiler, strings.Fields(*targetArgs), sourceFile, fileHash)

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal golden data to JSON: %w", err)
	}
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", *jsonDir, err)
		}
	}
	goldenFileName := getJSONPath(sourceFile)
	if err := os.WriteFile(goldenFileName, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file %s: %w", goldenFileName, err)
	}

	log.Printf("%s %s (%d modes)", paint(cGreen, "wrote"), goldenFileName, len(result.Runs))
	return nil
}

// handleRunTestSuite reports whether any file failed.
func handleRunTestSuite() bool {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s %v", paint(cRed, "test-files:"), err)
	}
	if len(files) == 0 {
		log.Printf("no sources match %q", *testFiles)
		return false
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
	}

	type task struct{ file, hash string }
	tasks := make(chan task, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < max(*jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				resultsChan <- testFile(t.file, t.hash)
			}
		}()
	}

	// Files with identical content are only compiled once.
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "listed in -skip-files"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("hash: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "same source as " + filepath.Base(originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- task{file, fileHash}
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	results := make([]*FileTestResult, 0, len(files))
	for result := range resultsChan {
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })

	printSummary(results)
	return hasFailures(writeJSONReport(results))
}

func testFile(file, fileHash string) *FileTestResult {
	extra := strings.Fields(*targetArgs)
	target := compileModes(*targetCompiler, extra, file, fileHash)

	if *refCompiler != "" {
		ref := compileModes(*refCompiler, extra, file, fileHash)
		return compareResults(file, ref, target)
	}

	goldenFile := getJSONPath(file)
	goldenData, err := os.ReadFile(goldenFile)
	if os.IsNotExist(err) {
		return &FileTestResult{File: file, Status: "SKIP", Message: "no golden listing, run with -generate-golden", Target: target}
	}
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}
	var golden CompilerResult
	if err := json.Unmarshal(goldenData, &golden); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("%s: %v", goldenFile, err)}
	}
	if golden.SourceHash != "" && golden.SourceHash != fileHash {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Golden file %s was recorded for different source content; regenerate it", goldenFile)}
	}
	return compareResults(file, &golden, target)
}

// compareResults checks every reference mode against the target's run of
// the same name. Timings are ignored.
func compareResults(file string, ref, target *CompilerResult) *FileTestResult {
	var diffs strings.Builder
	var failed bool

	targetRuns := make(map[string]ModeRun, len(target.Runs))
	for _, run := range target.Runs {
		targetRuns[run.Name] = run
	}

	var ignored []string
	if *ignoreLines != "" {
		ignored = strings.Split(*ignoreLines, ",")
	}

	for _, refRun := range ref.Runs {
		targetRun, ok := targetRuns[refRun.Name]
		if !ok {
			failed = true
			fmt.Fprintf(&diffs, "Mode '%s' missing in target results.\n", refRun.Name)
			continue
		}
		if refRun.Result.ExitCode != targetRun.Result.ExitCode {
			failed = true
			fmt.Fprintf(&diffs, "Mode '%s' Exit Code mismatch:\n  - Ref:    %d\n  - Target: %d\n", refRun.Name, refRun.Result.ExitCode, targetRun.Result.ExitCode)
		}
		if d := cmp.Diff(filterOutput(refRun.Result.Stdout, ignored), filterOutput(targetRun.Result.Stdout, ignored)); d != "" {
			failed = true
			fmt.Fprintf(&diffs, "Mode '%s' STDOUT mismatch:\n%s", refRun.Name, d)
		}
		if d := cmp.Diff(filterOutput(refRun.Result.Stderr, ignored), filterOutput(targetRun.Result.Stderr, ignored)); d != "" {
			failed = true
			fmt.Fprintf(&diffs, "Mode '%s' STDERR mismatch:\n%s", refRun.Name, d)
		}
	}

	if failed {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Listing or exit code mismatch", Diff: diffs.String(), Reference: ref, Target: target}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: fmt.Sprintf("All %d modes matched", len(ref.Runs)), Reference: ref, Target: target}
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.ExitCode = -1
	case err != nil:
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -2
			result.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return result
}

func compileModes(compiler string, extraArgs []string, sourceFile, fileHash string) *CompilerResult {
	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &CompilerResult{SourceHash: fileHash}
	for _, name := range names {
		args := append(append(append([]string{}, modes[name]...), extraArgs...), sourceFile)
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		res := executeCommand(ctx, compiler, args...)
		cancel()
		res.Stderr = strings.ReplaceAll(res.Stderr, sourceFile, filepath.Base(sourceFile))
		result.Runs = append(result.Runs, ModeRun{Name: name, Args: modes[name], Result: res})
	}
	return result
}

// filterOutput removes lines containing any of the given substrings
func filterOutput(output string, ignoredSubstrings []string) string {
	if len(ignoredSubstrings) == 0 || output == "" {
		return output
	}
	lines := strings.Split(output, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		ignore := false
		for _, sub := range ignoredSubstrings {
			if sub != "" && strings.Contains(line, sub) {
				ignore = true
				break
			}
		}
		if !ignore {
			filtered = append(filtered, line)
		}
	}
	return strings.Join(filtered, "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

// printSummary prints one block per file followed by the status totals and
// the average time the target took per listing.
func printSummary(results []*FileTestResult) {
	counts := make(map[string]int, len(statusColor))
	var totalCompile time.Duration
	var compiled int

	for _, result := range results {
		counts[result.Status]++
		fmt.Printf("%-6s %s  %s\n", paint(statusColor[result.Status], result.Status), paint(cCyan, filepath.Base(result.File)), result.Message)
		if result.Status == "FAIL" {
			fmt.Print(formatDiff(result.Diff))
		}

		if result.Target == nil {
			continue
		}
		for _, run := range result.Target.Runs {
			compiled++
			totalCompile += run.Result.Duration
			if *verbose {
				fmt.Printf("       %-10s exit %d  %s\n", run.Name, run.Result.ExitCode, formatDuration(run.Result.Duration))
			}
		}
	}

	fmt.Println(strings.Repeat("=", 60))
	parts := make([]string, 0, len(statusColor))
	for _, status := range []string{"PASS", "FAIL", "SKIP", "ERROR"} {
		parts = append(parts, paint(statusColor[status], fmt.Sprintf("%d %s", counts[status], strings.ToLower(status))))
	}
	fmt.Printf("%s %s, %d files\n", paint(cBold, "gtest:"), strings.Join(parts, ", "), len(results))
	if compiled > 0 {
		fmt.Printf("%s: %d listings, %s each on average\n", filepath.Base(*targetCompiler), compiled, strings.TrimSpace(formatDuration(totalCompile/time.Duration(compiled))))
	}
}

func formatDiff(diff string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch trimmed := strings.TrimSpace(line); {
		case strings.HasPrefix(trimmed, "-"):
			line = paint(cRed, line)
		case strings.HasPrefix(trimmed, "+"):
			line = paint(cGreen, line)
		}
		b.WriteString("       | " + line + "\n")
	}
	return b.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s %v", paint(cRed, "report:"), err)
		return resultsMap
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0o755); err != nil {
			log.Printf("%s %v", paint(cRed, "report:"), err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0o644); err != nil {
		log.Printf("%s %v", paint(cRed, "report:"), err)
	} else {
		fmt.Printf("report: %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if seen[absFile] {
				continue
			}
			if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
				allFiles = append(allFiles, absFile)
				seen[absFile] = true
			}
		}
	}
	return allFiles, nil
}
