package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tessera/internal"
	"tessera/internal/config"
	"tessera/internal/identity"
)

// Service drives one import batch end to end: snapshot, per-row processing,
// counters, run persistence. Rows are processed sequentially in file order;
// a failed row never stops the batch.
type Service struct {
	store RecordStore
	sink  RunSink
	cfg   config.Config
	log   *zap.Logger
}

func NewService(store RecordStore, sink RunSink, cfg config.Config, log *zap.Logger) *Service {
	return &Service{store: store, sink: sink, cfg: cfg, log: log}
}

type RunOptions struct {
	Policy  internal.MergePolicy
	Mapping internal.FieldMapping
	// Progress, when set, is invoked after every processed row.
	Progress func(done, total int)
}

// preflight runs the structural checks that must hard-stop before any row is
// processed or persisted.
func (s *Service) preflight(src internal.SourceFile, mapping internal.FieldMapping) (Columns, error) {
	if len(src.Headers) == 0 {
		return nil, structuralErr("%s has no header row", src.Name)
	}
	if len(src.Rows) == 0 {
		return nil, structuralErr("%s has no data rows", src.Name)
	}
	if !MappingUsable(mapping) {
		return nil, structuralErr("mapping lacks a phone column or a name column")
	}

	cols := ResolveColumns(src.Headers, mapping)
	for _, row := range src.Rows {
		hasPhone := cols.cell(row, internal.FieldPhone) != ""
		hasName := cols.cell(row, internal.FieldFirstName) != "" || cols.cell(row, internal.FieldLastName) != ""
		if hasPhone && hasName {
			return cols, nil
		}
	}
	return nil, structuralErr("no row in %s has a usable phone/name pair", src.Name)
}

// Run executes the batch. The identity index is built exactly once, before
// the first row; guests created during the run stay invisible to later
// duplicate checks. Cancellation is checked between rows; a cancelled run
// keeps its partial counters and its persisted status stays "running".
func (s *Service) Run(ctx context.Context, src internal.SourceFile, opts RunOptions) (internal.RunSummary, error) {
	cols, err := s.preflight(src, opts.Mapping)
	if err != nil {
		return internal.RunSummary{}, err
	}

	runID, err := s.sink.BeginRun(src.Name, len(src.Rows))
	if err != nil {
		return internal.RunSummary{}, fmt.Errorf("begin run: %w", err)
	}
	s.log.Info("import run started",
		zap.Int64("run_id", runID),
		zap.String("file", src.Name),
		zap.String("policy", string(opts.Policy)),
		zap.Int("rows", len(src.Rows)))

	snapshot, err := s.store.ListIdentitySnapshot()
	if err != nil {
		summary := internal.RunSummary{Status: internal.RunFailed}
		if cerr := s.sink.CompleteRun(runID, summary); cerr != nil {
			s.log.Error("complete run after snapshot failure", zap.Int64("run_id", runID), zap.Error(cerr))
		}
		return summary, fmt.Errorf("identity snapshot: %w", err)
	}
	idx := identity.Build(snapshot)

	summary := internal.RunSummary{Status: internal.RunRunning}
	total := len(src.Rows)

	for i, row := range src.Rows {
		if ctx.Err() != nil {
			s.log.Warn("import run cancelled",
				zap.Int64("run_id", runID),
				zap.Int("processed", summary.Processed),
				zap.Int("total", total))
			return summary, ctx.Err()
		}

		rowNo := i + 1
		rec := NormalizeRow(s.cfg, rowNo, row, cols)
		summary.Processed++

		if !rec.Valid() {
			summary.Failed++
			s.log.Warn("row invalid",
				zap.Int64("run_id", runID),
				zap.Int("row", rowNo),
				zap.Any("codes", rec.Errors))
			s.progress(opts, rowNo, total)
			continue
		}

		match := idx.Lookup(rec.Phone, rec.Email)
		action := Resolve(rec, match, opts.Policy, opts.Mapping, s.resolveLocation(rec.LocationText))

		switch action.Kind {
		case ActionCreate:
			if _, err := s.store.CreateGuest(action.Fields); err != nil {
				summary.Failed++
				s.log.Error("create guest failed",
					zap.Int64("run_id", runID),
					zap.Int("row", rowNo),
					zap.String("action", string(action.Kind)),
					zap.Error(err))
			} else {
				summary.Created++
			}
		case ActionUpdate:
			if err := s.store.UpdateGuest(action.ExistingID, action.Patch); err != nil {
				summary.Failed++
				s.log.Error("update guest failed",
					zap.Int64("run_id", runID),
					zap.Int("row", rowNo),
					zap.String("action", string(action.Kind)),
					zap.Int64("guest_id", action.ExistingID),
					zap.Error(err))
			} else {
				summary.Updated++
			}
		case ActionSkip:
			summary.Skipped++
		}

		s.progress(opts, rowNo, total)
	}

	if summary.Created+summary.Updated+summary.Skipped > 0 {
		summary.Status = internal.RunCompleted
	} else {
		summary.Status = internal.RunFailed
	}

	if err := s.sink.CompleteRun(runID, summary); err != nil {
		return summary, fmt.Errorf("complete run: %w", err)
	}
	s.log.Info("import run finished",
		zap.Int64("run_id", runID),
		zap.String("status", string(summary.Status)),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))

	return summary, nil
}

func (s *Service) progress(opts RunOptions, done, total int) {
	if opts.Progress != nil {
		opts.Progress(done, total)
	}
}

// resolveLocation is best-effort: a lookup failure degrades to "no location"
// rather than failing the row.
func (s *Service) resolveLocation(text string) *int64 {
	if text == "" {
		return nil
	}
	id, err := s.store.ResolveLocationByName(text)
	if err != nil {
		s.log.Warn("resolve location", zap.String("text", text), zap.Error(err))
		return nil
	}
	return id
}
