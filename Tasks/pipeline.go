package Tasks

import (
	"context"
	"errors"

	"Anvil/Models"
	"Anvil/Sheets"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TableSource reads one remote table.
type TableSource interface {
	FetchTable(ctx context.Context, sheetName string, f Sheets.Filters) (Sheets.Table, error)
}

// Pipeline runs fetch, normalize, filter, group and partition as one pass.
type Pipeline struct {
	Source   TableSource
	Sheets   []string
	PageSize int
	Logger   *zap.Logger
}

func NewPipeline(source TableSource, sheets []string, pageSize int, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{Source: source, Sheets: sheets, PageSize: pageSize, Logger: logger}
}

// LoadResult is the visible record set of one pass.
type LoadResult struct {
	Records      []Models.TaskRecord
	Degraded     bool
	AuthDegraded bool
}

// Result is the outcome of a full reconciliation pass.
type Result struct {
	View         Models.ReconciledView
	Identity     Models.MachineIdentity
	Degraded     bool
	AuthDegraded bool
	NotFound     bool
}

// Load fetches every sheet concurrently and returns the records visible to
// the caller. A sheet that cannot be read contributes no rows and marks the
// result degraded; only context cancellation is returned as an error.
func (p *Pipeline) Load(ctx context.Context, caller Models.RoleContext) (LoadResult, error) {
	tables := make([][]Models.TaskRecord, len(p.Sheets))
	failed := make([]bool, len(p.Sheets))

	g, gctx := errgroup.WithContext(ctx)
	for i, sheet := range p.Sheets {
		g.Go(func() error {
			table, err := p.Source.FetchTable(gctx, sheet, Sheets.Filters{
				Page:     1,
				PageSize: p.PageSize,
				Caller:   caller,
			})
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if !errors.Is(err, Sheets.ErrEmptyResult) {
					p.Logger.Warn("Unexpected table source error", zap.String("sheet", sheet), zap.Error(err))
				}
				failed[i] = true
				return nil
			}
			tables[i] = Sheets.Normalize(table)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LoadResult{}, err
	}

	var result LoadResult
	var records []Models.TaskRecord
	for i, rows := range tables {
		if failed[i] {
			result.Degraded = true
			p.Logger.Warn("Sheet degraded to empty", zap.String("sheet", p.Sheets[i]))
		}
		records = append(records, rows...)
	}

	result.Records, result.AuthDegraded = FilterVisible(records, caller)
	if result.AuthDegraded {
		p.Logger.Warn("Unrecognised role, visibility filter failed open",
			zap.String("role", string(caller.Role)),
			zap.String("username", caller.Username))
	}
	return result, nil
}

// Reconcile runs a full pass for an anchor. When no record matches the anchor
// the view is empty, NotFound is set and ErrAnchorNotFound is returned. A
// degraded load never reports NotFound: the anchor may sit in a sheet that
// could not be read, so the view is empty and no error is returned.
func (p *Pipeline) Reconcile(ctx context.Context, caller Models.RoleContext, anchorKey string) (Result, error) {
	loaded, err := p.Load(ctx, caller)
	if err != nil {
		return Result{}, err
	}

	result := Result{Degraded: loaded.Degraded, AuthDegraded: loaded.AuthDegraded}
	group, identity, err := ResolveGroup(loaded.Records, anchorKey, caller)
	if err != nil {
		result.View = Partition(nil)
		if loaded.Degraded && errors.Is(err, ErrAnchorNotFound) {
			p.Logger.Warn("Anchor not found in a degraded load, returning no data",
				zap.String("anchor", anchorKey))
			return result, nil
		}
		result.NotFound = true
		return result, err
	}
	result.Identity = identity
	result.View = Partition(group)
	return result, nil
}
