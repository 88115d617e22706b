// Package config loads the city profile that parameterizes extraction.
//
// The exclusion phrase list, foreign numbering schemes, and member roster
// are configuration, not code: a deployment for a different city or year
// supplies its own profile. Values resolve with CLI > environment > file >
// default precedence, and each resolved value remembers where it came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValueSource identifies where a resolved config value came from.
type ValueSource string

const (
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is a config value plus its provenance.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
}

// Profile is the fully resolved extraction configuration for one
// deployment (city + meeting period).
type Profile struct {
	City string

	// ExclusionPhrases drop records whose title contains the phrase
	// (case-insensitive).
	ExclusionPhrases []string
	// ExclusionTitlePrefixes drop records whose title begins with the
	// prefix (case-insensitive).
	ExclusionTitlePrefixes []string
	// ForeignNumberingPatterns are regexes for other governing bodies'
	// item numbering (e.g. a co-located housing authority).
	ForeignNumberingPatterns []string
	// Roster is the canonical member list for the meeting period.
	Roster []string
	// NameVariants maps known spelling variants to canonical names.
	NameVariants map[string]string

	MemoryPath ResolvedValue
	DBPath     ResolvedValue
	LLM        ResolvedValue // "provider/model" flag form, empty = no fallback
}

// fileProfile is the YAML shape of a profile on disk.
type fileProfile struct {
	City       string `yaml:"city"`
	MemoryPath string `yaml:"memory_path"`
	DBPath     string `yaml:"db_path"`
	LLM        string `yaml:"llm"`

	Exclusions struct {
		Phrases          []string `yaml:"phrases"`
		TitlePrefixes    []string `yaml:"title_prefixes"`
		ForeignNumbering []string `yaml:"foreign_numbering"`
	} `yaml:"exclusions"`

	Roster       []string          `yaml:"roster"`
	NameVariants map[string]string `yaml:"name_variants"`
}

// DefaultProfilePath is where Load looks when no path is given.
func DefaultProfilePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".quorum", "profile.yaml")
}

// defaultMemoryPath and defaultDBPath keep engine state alongside the
// profile.
func defaultMemoryPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".quorum", "memory.json")
}

func defaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".quorum", "archive.db")
}

// LoadOptions carries CLI overrides into resolution.
type LoadOptions struct {
	ProfilePath string
	CLILLM      string
	CLIDBPath   string
	CLIMemory   string
}

// Load reads and resolves a profile. A missing profile file is not an
// error: extraction falls back to the stock exclusion rules and an empty
// roster. A present-but-invalid file is an error.
func Load(opts LoadOptions) (*Profile, error) {
	path := strings.TrimSpace(opts.ProfilePath)
	explicit := path != ""
	if !explicit {
		path = DefaultProfilePath()
	}

	var fc fileProfile
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing profile %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Stock profile.
	default:
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}

	p := &Profile{
		City:                     fc.City,
		ExclusionPhrases:         fc.Exclusions.Phrases,
		ExclusionTitlePrefixes:   fc.Exclusions.TitlePrefixes,
		ForeignNumberingPatterns: fc.Exclusions.ForeignNumbering,
		Roster:                   fc.Roster,
		NameVariants:             fc.NameVariants,
	}
	if p.NameVariants == nil {
		p.NameVariants = map[string]string{}
	}

	// Stock exclusion rules apply when the profile supplies none.
	if len(p.ExclusionPhrases) == 0 {
		p.ExclusionPhrases = []string{
			"excused absence",
			"minutes approval",
			"approve minutes",
			"public comment",
			"written communication",
		}
	}
	if len(p.ExclusionTitlePrefixes) == 0 {
		p.ExclusionTitlePrefixes = []string{"minutes"}
	}
	if len(p.ForeignNumberingPatterns) == 0 {
		p.ForeignNumberingPatterns = []string{`^\d{4}-\d+$`}
	}

	p.MemoryPath = resolve(opts.CLIMemory, "QUORUM_MEMORY_PATH", fc.MemoryPath, defaultMemoryPath())
	p.DBPath = resolve(opts.CLIDBPath, "QUORUM_DB_PATH", fc.DBPath, defaultDBPath())
	p.LLM = resolve(opts.CLILLM, "QUORUM_LLM", fc.LLM, "")

	return p, nil
}

// resolve picks a value with CLI > env > config > default precedence.
func resolve(cli, envKey, file, def string) ResolvedValue {
	if strings.TrimSpace(cli) != "" {
		return ResolvedValue{Value: cli, Source: SourceCLI}
	}
	if v := os.Getenv(envKey); strings.TrimSpace(v) != "" {
		return ResolvedValue{Value: v, Source: SourceEnv}
	}
	if strings.TrimSpace(file) != "" {
		return ResolvedValue{Value: file, Source: SourceConfig}
	}
	return ResolvedValue{Value: def, Source: SourceDefault}
}
