// Package remediation implements the fix status lifecycle of vulnerability
// instances. Every status may move to every other status; the only side
// effect tied to a particular target is the fixed stamp.
package remediation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vulntrack/api/schemas"
)

// Engine applies status transitions through an InstanceStore.
type Engine struct {
	store  schemas.InstanceStore
	logger *zap.Logger
	now    func() time.Time
}

// New creates a status engine.
func New(store schemas.InstanceStore, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.Named("remediation"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UpdateStatus moves one instance to status and overwrites its notes. When
// the target is fixed, fixed_at becomes now and fixed_by is recorded. Leaving
// fixed keeps the previous fixed_at and fixed_by.
//
// An unknown status fails with a ValidationError before the store is
// consulted; an unknown instance fails with a NotFoundError.
func (e *Engine) UpdateStatus(ctx context.Context, instanceID int64, status, notes, fixedBy string) (*schemas.VulnInstance, error) {
	target, err := schemas.ParseFixStatus(status)
	if err != nil {
		return nil, err
	}

	inst, err := e.store.UpdateInstanceStatus(ctx, schemas.StatusUpdate{
		InstanceID: instanceID,
		Status:     target,
		Notes:      notes,
		FixedBy:    fixedBy,
		At:         e.now(),
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Instance status updated.",
		zap.Int64("instance_id", instanceID),
		zap.String("status", string(target)))
	return inst, nil
}

// BatchResult tallies a batch update. Updated is the number of successful
// transitions; the other counters explain the rest of Requested.
type BatchResult struct {
	Requested int `json:"requested" yaml:"requested"`
	Updated   int `json:"updated" yaml:"updated"`
	NotFound  int `json:"not_found" yaml:"not_found"`
	Invalid   int `json:"invalid" yaml:"invalid"`
	Failed    int `json:"failed" yaml:"failed"`
}

// BatchUpdateStatus applies UpdateStatus to every id independently. A failing
// id never stops the others.
func (e *Engine) BatchUpdateStatus(ctx context.Context, instanceIDs []int64, status, notes, fixedBy string) BatchResult {
	res := BatchResult{Requested: len(instanceIDs)}

	// One invalid status fails every id without touching the store.
	if _, err := schemas.ParseFixStatus(status); err != nil {
		res.Invalid = len(instanceIDs)
		return res
	}

	for _, id := range instanceIDs {
		_, err := e.UpdateStatus(ctx, id, status, notes, fixedBy)
		switch {
		case err == nil:
			res.Updated++
		case errors.Is(err, schemas.ErrNotFound):
			res.NotFound++
		case errors.Is(err, schemas.ErrValidation):
			res.Invalid++
		default:
			res.Failed++
			e.logger.Warn("Batch status update failed for instance.",
				zap.Int64("instance_id", id), zap.Error(err))
		}
	}
	return res
}

// Summary counts instances per recognised status.
type Summary struct {
	Counts map[schemas.FixStatus]int `json:"counts" yaml:"counts"`
	Total  int                       `json:"total" yaml:"total"`
}

// Summarize buckets raw stored statuses. Values outside the enumeration are
// left out of both the buckets and the total.
func Summarize(statuses []schemas.FixStatus) Summary {
	s := Summary{Counts: make(map[schemas.FixStatus]int, len(schemas.FixStatuses))}
	for _, known := range schemas.FixStatuses {
		s.Counts[known] = 0
	}
	for _, st := range statuses {
		if !st.Valid() {
			continue
		}
		s.Counts[st]++
		s.Total++
	}
	return s
}

// StatusSummary counts instances per status, across all reports or within
// one report when reportID is set.
func (e *Engine) StatusSummary(ctx context.Context, reportID *int64) (Summary, error) {
	statuses, err := e.store.ListInstanceStatuses(ctx, reportID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load instance statuses: %w", err)
	}
	return Summarize(statuses), nil
}
