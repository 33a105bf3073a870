package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/gsm/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatArrayBase Feature = iota
	FeatAllowEmpty
	FeatSemicolons
	FeatComments
	FeatFoldNegLiteral
	FeatValueFirst
	FeatFold
	FeatCount
)

type Warning int

const (
	WarnArrayBase Warning = iota
	WarnEmpty
	WarnDivZero
	WarnSemicolon
	WarnPedantic
	WarnExtra
	WarnCount
)

const (
	DefaultStd          = "gsm"
	DefaultCellsPerName = 256
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features      map[Feature]Info
	Warnings      map[Warning]Info
	FeatureMap    map[string]Feature
	WarningMap    map[string]Warning
	StdName       string
	BackendName   string
	BackendTarget string
	WordSize      int
	CellsPerName  int
	// Stderr receives informational notices.
	Stderr io.Writer
}

func NewConfig() *Config {
	cfg := &Config{
		Features:     make(map[Feature]Info),
		Warnings:     make(map[Warning]Info),
		FeatureMap:   make(map[string]Feature),
		WarningMap:   make(map[string]Warning),
		StdName:      DefaultStd,
		BackendName:  "stack",
		WordSize:     8,
		CellsPerName: DefaultCellsPerName,
		Stderr:       os.Stderr,
	}

	features := map[Feature]Info{
		FeatArrayBase:      {"array-base", true, "Push the array base address when assigning to 'name[expr]'."},
		FeatAllowEmpty:     {"allow-empty", true, "Accept an empty program and emit no instructions."},
		FeatSemicolons:     {"semicolons", true, "Allow an optional ';' after each assignment."},
		FeatComments:       {"comments", false, "Recognize '//' line comments."},
		FeatFoldNegLiteral: {"fold-neg-literal", true, "Fold '-<number>' into a single negative LIT."},
		FeatValueFirst:     {"value-first", true, "Emit an assignment's value before its address, so STORE pops the address first."},
		FeatFold:           {"fold", false, "Fold constant sub-expressions at compile time."},
	}

	warnings := map[Warning]Info{
		WarnArrayBase: {"array-base", true, "Warn when an indexed assignment omits the array base address."},
		WarnEmpty:     {"empty", true, "Warn when the program contains no statements."},
		WarnDivZero:   {"div-zero", true, "Warn on division by a literal zero."},
		WarnSemicolon: {"semicolon", false, "Warn on ';' statement terminators."},
		WarnPedantic:  {"pedantic", false, "Issue all warnings demanded by the strict standard."},
		WarnExtra:     {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget selects the backend from a "backend[/target]" string. An empty
// QBE target defaults to the host.
func (c *Config) SetTarget(goos, goarch, target string) error {
	backend, qbeTarget, _ := strings.Cut(target, "/")
	switch backend {
	case "", "stack":
		c.BackendName, c.BackendTarget = "stack", ""
		return nil
	case "qbe":
		c.BackendName = "qbe"
	default:
		return fmt.Errorf("unsupported backend '%s'. Supported: 'stack', 'qbe'", backend)
	}

	if qbeTarget == "" {
		c.BackendTarget = libqbe.DefaultTarget(goos, goarch)
		fmt.Fprintf(c.Stderr, "gsm: info: no target specified, defaulting to host target '%s'\n", c.BackendTarget)
	} else {
		c.BackendTarget = qbeTarget
	}

	switch c.BackendTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize = 8
	default:
		return fmt.Errorf("unsupported QBE target '%s'", c.BackendTarget)
	}
	return nil
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyStd switches every standard-dependent feature at once. "ref" keeps
// the historical listing (address before value, no array base), "gsm" is the
// corrected dialect.
func (c *Config) ApplyStd(stdName string) error {
	isPedantic := c.IsWarningEnabled(WarnPedantic)

	type stdSettings struct {
		feature  Feature
		refValue bool
		gsmValue bool
	}

	settings := []stdSettings{
		{FeatArrayBase, false, true},
		{FeatAllowEmpty, false, true},
		{FeatSemicolons, false, !isPedantic},
		{FeatComments, false, false},
		{FeatFoldNegLiteral, true, true},
		{FeatValueFirst, false, true},
	}

	switch stdName {
	case "ref":
		for _, s := range settings {
			c.SetFeature(s.feature, s.refValue)
		}
		c.SetWarning(WarnArrayBase, true)
		c.SetWarning(WarnSemicolon, false)
	case "gsm":
		for _, s := range settings {
			c.SetFeature(s.feature, s.gsmValue)
		}
		c.SetWarning(WarnArrayBase, false)
		c.SetWarning(WarnSemicolon, isPedantic)
	default:
		return fmt.Errorf("unsupported standard '%s'. Supported: 'ref', 'gsm'", stdName)
	}
	c.StdName = stdName
	return nil
}

// SetupFlagGroups registers -W<warning> and -F<feature> toggles on fs and
// returns the entries, indexed by Warning and Feature, for the caller to
// apply after parsing.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warningFlags[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
		}
	}

	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		featureFlags[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "F",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
		}
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning flag", "Available Warning Flags:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature flag", "Available feature flags:", featureFlags)

	return warningFlags, featureFlags
}

// ApplyFlagGroups applies the toggles collected by SetupFlagGroups. Explicit
// flags win over the standard's defaults, so call it after ApplyStd.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

// ApplyDirective applies a space separated list of -W/-F flags, as typed at
// the REPL prompt. Quoted arguments are kept whole.
func (c *Config) ApplyDirective(flagStr string) error {
	flags, err := ParseCLIString(flagStr)
	if err != nil {
		return err
	}
	for _, flag := range flags {
		if err := c.applyFlag(flag); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")

	var isWarning bool
	switch {
	case strings.HasPrefix(trimmed, "W"):
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
	default:
		return fmt.Errorf("unrecognized flag '%s'", flag)
	}
	name := trimmed[1:]
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	if isWarning && name == "all" {
		for i := Warning(0); i < WarnCount; i++ {
			if i != WarnPedantic {
				c.SetWarning(i, enable)
			}
		}
		return nil
	}

	if isWarning {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// ParseCLIString splits s into arguments, honouring single and double quotes.
func ParseCLIString(s string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := ' '

	for _, r := range s {
		switch {
		case inQuote:
			if r == quoteChar {
				inQuote = false
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			inQuote = true
			quoteChar = r
		case r == ' ' || r == '\t':
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if inQuote {
		return nil, fmt.Errorf("unterminated quote in string: %s", s)
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args, nil
}
