// Package merge runs the adapters over every input file, categorizes the
// records and writes the merged ledger.
package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bills/internal/category"
	"bills/internal/core"
	"bills/internal/ledger"
	"bills/internal/log"
	"bills/internal/source"
)

// ErrNoRecords is returned when no valid record survives a run.
var ErrNoRecords = errors.New("no valid records")

// Policy selects how duplicate records are detected.
type Policy string

const (
	// DedupeKey treats records with the same timestamp, amount, merchant
	// and platform as duplicates.
	DedupeKey Policy = "key"
	// DedupeExact requires every ledger column to be equal.
	DedupeExact Policy = "exact"
	// DedupeNone keeps every record.
	DedupeNone Policy = "none"
)

// Options configures a merge run
type Options struct {
	// InputDir holds the bill exports (default: ./input)
	InputDir string

	// OutputPath is the merged ledger file (default: ./output/merged.csv)
	OutputPath string

	// MappingFile is the category mapping table, read at the start of every run
	MappingFile string

	// MatchOrder is the resolver pass order (default: exact, merchant, text)
	MatchOrder []category.Pass

	// Dedupe is the duplicate policy (default: key)
	Dedupe Policy

	// Workers bounds how many files are parsed at once (default: 4)
	Workers int

	// BOM prefixes written CSV files with a UTF-8 byte order mark
	BOM bool

	// Debug writes rules_loaded.csv and unmatched_preview.csv next to the ledger
	Debug bool

	// DebugBrands adds debug_brand_hits.csv with the records whose merchant,
	// item or note mentions one of these names. Only used with Debug.
	DebugBrands []string

	// Adapters are tried in order during detection (default: source.DefaultAdapters)
	Adapters []source.Adapter
}

// DefaultOptions returns the defaults used by the CLI
func DefaultOptions() Options {
	return Options{
		InputDir:    "./input",
		OutputPath:  "./output/merged.csv",
		MappingFile: "./category_map.csv",
		MatchOrder:  category.DefaultOrder,
		Dedupe:      DedupeKey,
		Workers:     4,
	}
}

// FileStat is the outcome of parsing one input file.
type FileStat struct {
	File     string
	Platform core.Platform
	Records  int
	Warnings int
	Err      error
}

// Result summarizes a merge run.
type Result struct {
	RunID      string
	OutputPath string
	StartedAt  time.Time
	FinishedAt time.Time

	// Records is the ledger as written.
	Records []core.Transaction
	Files   []FileStat

	FileErrors    []error
	Warnings      []source.RowWarning
	MappingErrors []category.MappingError
	Rules         int

	// Dropped counts records removed for an unparsable date.
	Dropped       int
	Duplicates    int
	Uncategorized int
}

// FailedFiles returns the number of files that produced a ParseError.
func (r *Result) FailedFiles() int {
	return len(r.FileErrors)
}

// Summary converts the result for structured logging.
func (r *Result) Summary() log.RunSummary {
	return log.RunSummary{
		RunID:      r.RunID,
		Files:      len(r.Files),
		Failed:     r.FailedFiles(),
		Records:    len(r.Records),
		Warnings:   len(r.Warnings),
		Dropped:    r.Dropped,
		Duplicates: r.Duplicates,
		DurationMs: r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
}

// Engine performs merge runs. Every run reprocesses all inputs and
// replaces the ledger, so repeated runs over the same files produce the
// same output.
type Engine struct {
	opts   Options
	logger *log.Logger
	events *log.StructuredLogger
	now    func() time.Time
}

// NewEngine creates an engine; zero option fields take their defaults.
func NewEngine(opts Options, logger *log.Logger) *Engine {
	def := DefaultOptions()
	if opts.InputDir == "" {
		opts.InputDir = def.InputDir
	}
	if opts.OutputPath == "" {
		opts.OutputPath = def.OutputPath
	}
	if opts.MappingFile == "" {
		opts.MappingFile = def.MappingFile
	}
	if len(opts.MatchOrder) == 0 {
		opts.MatchOrder = def.MatchOrder
	}
	if opts.Dedupe == "" {
		opts.Dedupe = def.Dedupe
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if len(opts.Adapters) == 0 {
		opts.Adapters = source.DefaultAdapters()
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentMerge)

	return &Engine{
		opts:   opts,
		logger: logger,
		events: log.NewStructuredLogger(logger),
		now:    time.Now,
	}
}

type outcome struct {
	platform core.Platform
	records  []core.Transaction
	warnings []source.RowWarning
	err      error
}

// Run executes one merge. Per-file and per-row problems are collected in
// the Result; the returned error is non-nil only when the run could not
// produce a ledger. With ErrNoRecords the Result is still returned.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:      uuid.NewString(),
		OutputPath: e.opts.OutputPath,
		StartedAt:  e.now(),
	}

	rules, mappingErrs, err := category.LoadRules(e.opts.MappingFile)
	if err != nil {
		return nil, err
	}
	res.MappingErrors = mappingErrs
	res.Rules = rules.Len()
	for _, me := range mappingErrs {
		e.events.LogMappingError(ctx, e.opts.MappingFile, me.Line, me.Reason)
	}
	resolver := category.NewResolver(rules, category.Options{Order: e.opts.MatchOrder})

	files, err := Discover(e.opts.InputDir)
	if err != nil {
		return nil, err
	}
	ctx = log.WithContext(ctx, e.logger.With(log.FieldRunID, res.RunID))
	e.logger.InfoContext(ctx, "Merge started",
		log.FieldRunID, res.RunID,
		log.FieldFiles, len(files),
		log.FieldRules, res.Rules)

	outcomes, err := e.parseAll(ctx, files)
	if err != nil {
		return nil, err
	}

	var records []core.Transaction
	for i, out := range outcomes {
		name := filepath.Base(files[i])
		stat := FileStat{File: name, Platform: out.platform, Records: len(out.records), Warnings: len(out.warnings), Err: out.err}
		res.Files = append(res.Files, stat)
		if out.err != nil {
			res.FileErrors = append(res.FileErrors, out.err)
			e.events.LogFileFailed(ctx, name, out.err)
			continue
		}
		e.events.LogFileParsed(ctx, name, string(out.platform), len(out.records), len(out.warnings))
		for _, w := range out.warnings {
			e.events.LogRowWarning(ctx, w.File, w.Row, string(w.Kind))
		}
		res.Warnings = append(res.Warnings, out.warnings...)
		records = append(records, out.records...)
	}

	for i := range records {
		r := resolver.Resolve(records[i].Merchant, records[i].Item, records[i].Note)
		records[i].Category = r.Category
		records[i].Subcategory = r.Subcategory
	}

	records, res.Dropped = dropUndated(records)
	records, res.Duplicates = Dedupe(records, e.opts.Dedupe)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	for _, r := range records {
		if r.Category == core.Uncategorized {
			res.Uncategorized++
		}
	}
	res.Records = records

	if len(records) == 0 {
		res.FinishedAt = e.now()
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = filepath.Base(f)
		}
		if len(names) == 0 {
			return res, fmt.Errorf("%w: no input files in %s", ErrNoRecords, e.opts.InputDir)
		}
		return res, fmt.Errorf("%w in %d file(s): %s", ErrNoRecords, len(names), strings.Join(names, ", "))
	}

	if err := ledger.WriteFile(e.opts.OutputPath, records, ledger.Options{BOM: e.opts.BOM}); err != nil {
		return res, err
	}

	if e.opts.Debug {
		if err := writeDebugArtifacts(filepath.Dir(e.opts.OutputPath), resolver.Rules(), records, e.opts.DebugBrands, e.opts.BOM); err != nil {
			e.logger.WarnContext(ctx, "Failed to write debug artifacts", log.FieldError, err)
		}
	}

	stats := resolver.CacheStats()
	e.logger.DebugContext(ctx, "Resolver cache",
		"hits", stats.Hits,
		"misses", stats.Misses,
		"uncategorized", res.Uncategorized)

	res.FinishedAt = e.now()
	e.events.LogRunSummary(ctx, res.Summary())
	return res, nil
}

// parseAll parses files concurrently and returns outcomes in file order.
func (e *Engine) parseAll(ctx context.Context, files []string) ([]outcome, error) {
	outcomes := make([]outcome, len(files))
	logger := log.FromContext(ctx).WithComponent(log.ComponentSource)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			platform, records, warnings, err := source.ParseFile(path, e.opts.Adapters)
			outcomes[i] = outcome{platform: platform, records: records, warnings: warnings, err: err}
			logger.DebugContext(gctx, "File read",
				log.FieldPath, path,
				log.FieldDuration, time.Since(start).Milliseconds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("merge interrupted: %w", err)
	}
	return outcomes, nil
}

// Discover lists the supported files in dir, sorted by name. Hidden files
// and spreadsheet lock files ("~$...") are ignored.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if !source.Supported(name) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func dropUndated(records []core.Transaction) ([]core.Transaction, int) {
	kept := records[:0]
	for _, r := range records {
		if !r.Date.IsZero() {
			kept = append(kept, r)
		}
	}
	return kept, len(records) - len(kept)
}

// Dedupe removes later duplicates under policy, keeping first occurrences
// in input order. It returns the kept records and the number removed.
func Dedupe(records []core.Transaction, policy Policy) ([]core.Transaction, int) {
	if policy == DedupeNone {
		return records, 0
	}

	seen := make(map[string]struct{}, len(records))
	kept := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		k := dedupeKey(r, policy)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, r)
	}
	return kept, len(records) - len(kept)
}

func dedupeKey(r core.Transaction, policy Policy) string {
	if policy == DedupeExact {
		return strings.Join(ledger.FormatRow(r), "\x1f")
	}
	return strings.Join([]string{
		r.Date.Format(ledger.DateTimeLayout),
		strconv.FormatInt(r.Amount.Cents, 10),
		r.Merchant,
		string(r.Platform),
	}, "\x1f")
}
