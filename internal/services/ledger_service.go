package services

import (
	"context"
	"fmt"
	"io"

	"bills/internal/amqp"
	"bills/internal/core"
	"bills/internal/log"
	"bills/internal/merge"
	"bills/internal/sheets"
	"bills/internal/storage"
)

// Runner produces a merged ledger.
type Runner interface {
	Run(ctx context.Context) (*merge.Result, error)
}

// Mirror stores a copy of the merged ledger.
type Mirror interface {
	ReplaceLedger(ctx context.Context, run storage.RunRecord, records []core.Transaction) error
}

// Publisher announces finished merges.
type Publisher interface {
	PublishLedgerMerged(ctx context.Context, msg *amqp.LedgerMergedMessage) error
}

// Outcome is the result of a merge and everything done with its ledger
// afterwards.
type Outcome struct {
	Result    *merge.Result
	Mirrored  bool
	SheetRefs []string
	Published bool

	// Downstream holds mirror, export and publish failures. They never
	// fail the run since the ledger file is already written.
	Downstream []error
}

// LedgerService orchestrates a merge run across the ledger file, the
// SQLite mirror, sheet exports and AMQP.
type LedgerService struct {
	runner    Runner
	mirror    Mirror
	sinks     []sheets.LedgerSink
	publisher Publisher
	logger    *log.Logger
	events    *log.StructuredLogger
}

// NewLedgerService wires a runner with optional downstream targets. Nil
// mirror, publisher and sinks are skipped.
func NewLedgerService(runner Runner, mirror Mirror, publisher Publisher, logger *log.Logger, sinks ...sheets.LedgerSink) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	var active []sheets.LedgerSink
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return &LedgerService{
		runner:    runner,
		mirror:    mirror,
		sinks:     active,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentService),
		events:    log.NewStructuredLogger(logger),
	}
}

// Merge runs the engine and hands a successful ledger to every
// configured target.
func (s *LedgerService) Merge(ctx context.Context) (*Outcome, error) {
	res, err := s.runner.Run(ctx)
	out := &Outcome{Result: res}
	if err != nil {
		return out, err
	}

	if s.mirror != nil {
		if err := s.mirror.ReplaceLedger(ctx, runRecord(res), res.Records); err != nil {
			out.Downstream = append(out.Downstream, fmt.Errorf("mirror ledger: %w", err))
			s.events.LogError(ctx, "Failed to mirror ledger", err, log.ComponentStorage, log.OpMirror,
				log.NewFields().WithRunID(res.RunID))
		} else {
			out.Mirrored = true
		}
	}

	for _, sink := range s.sinks {
		ref, err := sink.PublishLedger(ctx, res.Records)
		if err != nil {
			out.Downstream = append(out.Downstream, fmt.Errorf("export ledger: %w", err))
			s.events.LogError(ctx, "Failed to export ledger", err, log.ComponentSheets, log.OpExport,
				log.NewFields().WithRunID(res.RunID))
			continue
		}
		out.SheetRefs = append(out.SheetRefs, ref)
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping merge event")
		return out, nil
	}
	if err := s.publisher.PublishLedgerMerged(ctx, mergedMessage(res)); err != nil {
		out.Downstream = append(out.Downstream, fmt.Errorf("publish merge event: %w", err))
		s.events.LogError(ctx, "Failed to publish merge event", err, log.ComponentAMQP, log.OpPublish,
			log.NewFields().WithRunID(res.RunID))
	} else {
		out.Published = true
	}

	return out, nil
}

// Close closes the mirror and publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error

	if c, ok := s.mirror.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}

func runRecord(res *merge.Result) storage.RunRecord {
	return storage.RunRecord{
		RunID:       res.RunID,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Files:       len(res.Files),
		FailedFiles: res.FailedFiles(),
		Records:     len(res.Records),
		Warnings:    len(res.Warnings),
		Dropped:     res.Dropped,
		Duplicates:  res.Duplicates,
		OutputPath:  res.OutputPath,
	}
}

func mergedMessage(res *merge.Result) *amqp.LedgerMergedMessage {
	msg := amqp.NewLedgerMergedMessage(res.RunID, res.OutputPath)
	msg.Files = len(res.Files)
	msg.FailedFiles = res.FailedFiles()
	msg.Records = len(res.Records)
	msg.Warnings = len(res.Warnings)
	msg.Dropped = res.Dropped
	msg.Duplicates = res.Duplicates
	return msg
}
