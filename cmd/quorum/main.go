package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/openquorum/quorum/internal/batch"
	"github.com/openquorum/quorum/internal/config"
	"github.com/openquorum/quorum/internal/extract"
	"github.com/openquorum/quorum/internal/mcp"
	"github.com/openquorum/quorum/internal/memory"
	"github.com/openquorum/quorum/internal/store"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "extract":
		err = runExtract(os.Args[2:])
	case "batch":
		err = runBatch(os.Args[2:])
	case "memory":
		err = runMemory(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("quorum %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`quorum - hybrid council vote extraction

Usage:
  quorum extract --minutes <file> [--agenda <file>] [options]
  quorum batch <dir> [options]
  quorum memory [--config <profile>]
  quorum mcp [--config <profile>] [--llm provider/model]
  quorum version

Options:
  --config <path>        city profile (default: ~/.quorum/profile.yaml)
  --llm provider/model   LLM fallback (e.g. openai/gpt-4o-mini)
  --db <path>            run archive database
  --memory <path>        learning memory file
  --meeting-id <id>      meeting identifier for extract
  --baseline <n>         manual baseline vote count (informational)
  --workers <n>          batch worker count (default: 4)
  --no-archive           skip the SQLite run archive

Batch input: a directory of <id>.minutes.txt files with optional
<id>.agenda.txt companions.`)
}

// cliFlags holds the flags shared across subcommands.
type cliFlags struct {
	profilePath string
	llm         string
	dbPath      string
	memoryPath  string
	meetingID   string
	minutes     string
	agenda      string
	baseline    int
	workers     int
	noArchive   bool
	positional  []string
}

// parseFlags hand-parses the shared flag set.
func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{}
	i := 0
	next := func(name string) (string, error) {
		i++
		if i >= len(args) {
			return "", fmt.Errorf("%s requires a value", name)
		}
		return args[i], nil
	}
	for ; i < len(args); i++ {
		var err error
		switch arg := args[i]; arg {
		case "--config":
			f.profilePath, err = next(arg)
		case "--llm":
			f.llm, err = next(arg)
		case "--db":
			f.dbPath, err = next(arg)
		case "--memory":
			f.memoryPath, err = next(arg)
		case "--meeting-id":
			f.meetingID, err = next(arg)
		case "--minutes":
			f.minutes, err = next(arg)
		case "--agenda":
			f.agenda, err = next(arg)
		case "--baseline":
			var v string
			if v, err = next(arg); err == nil {
				f.baseline, err = strconv.Atoi(v)
			}
		case "--workers":
			var v string
			if v, err = next(arg); err == nil {
				f.workers, err = strconv.Atoi(v)
			}
		case "--no-archive":
			f.noArchive = true
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown flag: %s", arg)
			}
			f.positional = append(f.positional, arg)
		}
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// setup loads the profile, memory, and engine shared by the subcommands.
func setup(f *cliFlags) (*config.Profile, *memory.ExtractionMemory, *extract.Engine, error) {
	profile, err := config.Load(config.LoadOptions{
		ProfilePath: f.profilePath,
		CLILLM:      f.llm,
		CLIDBPath:   f.dbPath,
		CLIMemory:   f.memoryPath,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	mem, warn := memory.Load(profile.MemoryPath.Value)
	if warn != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", warn)
	}

	var llmCfg *extract.LLMConfig
	if resolved, err := extract.ResolveLLMConfig(f.llm, profile.LLM.Value); err != nil {
		return nil, nil, nil, err
	} else if resolved != nil {
		if err := resolved.Validate(); err != nil {
			return nil, nil, nil, fmt.Errorf("LLM config: %w", err)
		}
		llmCfg = resolved
	}

	rules, ruleNotes := extract.CompileExclusionRules(
		profile.ForeignNumberingPatterns,
		profile.ExclusionPhrases,
		profile.ExclusionTitlePrefixes,
	)
	for _, note := range ruleNotes {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", note)
	}

	engine := extract.NewEngine(extract.EngineConfig{
		Roster:       profile.Roster,
		NameVariants: profile.NameVariants,
		Exclusions:   rules,
		LLM:          llmCfg,
		Memory:       mem,
	})
	return profile, mem, engine, nil
}

func openArchive(profile *config.Profile, f *cliFlags) (store.Store, error) {
	if f.noArchive {
		return nil, nil
	}
	return store.NewStore(store.StoreConfig{DBPath: profile.DBPath.Value})
}

func runExtract(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.minutes == "" {
		return fmt.Errorf("usage: quorum extract --minutes <file> [--agenda <file>]")
	}

	minutes, err := os.ReadFile(f.minutes)
	if err != nil {
		return fmt.Errorf("reading minutes: %w", err)
	}
	var agenda []byte
	if f.agenda != "" {
		agenda, err = os.ReadFile(f.agenda)
		if err != nil {
			return fmt.Errorf("reading agenda: %w", err)
		}
	}

	profile, mem, engine, err := setup(f)
	if err != nil {
		return err
	}

	meetingID := f.meetingID
	if meetingID == "" {
		meetingID = strings.TrimSuffix(strings.TrimSuffix(f.minutes, ".txt"), ".minutes")
	}

	ctx := context.Background()
	result, delta, err := engine.ExtractMeeting(ctx, extract.MeetingInput{
		MeetingID:           meetingID,
		MinutesText:         string(minutes),
		AgendaText:          string(agenda),
		ManualBaselineCount: f.baseline,
	})
	if err != nil {
		return err
	}

	archive, err := openArchive(profile, f)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	if archive != nil {
		defer archive.Close()
		if _, err := archive.ArchiveRun(ctx, result); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: archiving result: %v\n", err)
		}
	}

	// Single writer: memory updates land once, after extraction.
	mem.Apply(delta)
	if err := mem.Save(profile.MemoryPath.Value); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: saving memory: %v\n", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runBatch(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(f.positional) != 1 {
		return fmt.Errorf("usage: quorum batch <dir> [--workers n]")
	}

	meetings, err := loadMeetingsDir(f.positional[0])
	if err != nil {
		return err
	}
	if len(meetings) == 0 {
		return fmt.Errorf("no *.minutes.txt files found in %s", f.positional[0])
	}

	profile, mem, engine, err := setup(f)
	if err != nil {
		return err
	}

	archive, err := openArchive(profile, f)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	if archive != nil {
		defer archive.Close()
	}

	runner := batch.NewRunner(engine, batch.Options{
		Workers:    f.workers,
		MemoryPath: profile.MemoryPath.Value,
		Archive:    archive,
	})

	res, err := runner.Run(context.Background(), mem, meetings)
	if err != nil {
		return err
	}

	for _, me := range res.Errors {
		fmt.Fprintf(os.Stderr, "Error: %v\n", me)
	}
	var totalVotes int
	for _, r := range res.Results {
		totalVotes += len(r.Votes)
		fmt.Printf("%s: %d votes, quality %.2f (%s)\n",
			r.MeetingID, len(r.Votes), r.Validation.QualityScore, r.Metadata.MethodUsed)
	}
	fmt.Printf("\n%d meetings processed, %d failed, %d votes extracted\n",
		len(res.Results), len(res.Errors), totalVotes)
	return nil
}

func runMemory(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	profile, mem, _, err := setup(f)
	if err != nil {
		return err
	}

	fmt.Printf("Memory file: %s (%s)\n", profile.MemoryPath.Value, profile.MemoryPath.Source)
	fmt.Printf("Quality runs: %d (avg %.2f)\n", len(mem.QualityHistory), mem.AverageQuality())
	if !mem.LastUpdated.IsZero() {
		fmt.Printf("Last updated: %s\n", mem.LastUpdated.Format("2006-01-02 15:04:05"))
	}
	if len(mem.SuccessfulPatterns) > 0 {
		fmt.Println("Successful patterns:")
		for name, n := range mem.SuccessfulPatterns {
			fmt.Printf("  %s: %d\n", name, n)
		}
	}
	if len(mem.FailedPatterns) > 0 {
		fmt.Println("Failed patterns:")
		for name, n := range mem.FailedPatterns {
			fmt.Printf("  %s: %d\n", name, n)
		}
	}
	if len(mem.MemberNameCorrections) > 0 {
		fmt.Println("Name corrections:")
		for observed, canonical := range mem.MemberNameCorrections {
			fmt.Printf("  %s -> %s\n", observed, canonical)
		}
	}
	return nil
}

func runMCP(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	profile, mem, engine, err := setup(f)
	if err != nil {
		return err
	}

	archive, err := openArchive(profile, f)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	if archive != nil {
		defer archive.Close()
	}

	s := mcp.NewServer(mcp.ServerConfig{
		Engine:     engine,
		Archive:    archive,
		Memory:     mem,
		MemoryPath: profile.MemoryPath.Value,
		Version:    version,
	})
	return server.ServeStdio(s)
}
