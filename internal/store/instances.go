package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xkilldash9x/vulntrack/api/schemas"
)

const (
	instanceSelectList = `
        id, vulnerability_id, url, method, parameter, attack, evidence, other_info,
        extra_data, fix_status, fixed_at, COALESCE(fixed_by, ''), COALESCE(fix_notes, ''),
        created_at, updated_at`

	sqlSelectInstance = `
        SELECT` + instanceSelectList + `
        FROM vuln_instances
        WHERE id = $1;
    `
	// fixed_at and fixed_by only move when the new status is fixed.
	sqlUpdateInstanceStatus = `
        UPDATE vuln_instances SET
            fix_status = $2,
            fix_notes = $3,
            fixed_at = CASE WHEN $2 = 'fixed' THEN $4 ELSE fixed_at END,
            fixed_by = CASE WHEN $2 = 'fixed' THEN $5 ELSE fixed_by END,
            updated_at = $4
        WHERE id = $1
        RETURNING` + instanceSelectList + `;
    `
	sqlListAllStatuses = `
        SELECT fix_status FROM vuln_instances;
    `
	sqlListReportStatuses = `
        SELECT i.fix_status
        FROM vuln_instances i
        JOIN vulnerabilities v ON v.id = i.vulnerability_id
        WHERE v.report_id = $1;
    `
	searchFrom = `
        FROM vuln_instances i
        JOIN vulnerabilities v ON v.id = i.vulnerability_id
        JOIN reports r ON r.id = v.report_id
        WHERE (i.url ILIKE $1 OR v.title ILIKE $1 OR r.site_url ILIKE $1)
          AND ($2 = '' OR v.severity = $2)
          AND ($3 = '' OR i.fix_status = $3)`

	sqlCountSearch = `
        SELECT COUNT(*)` + searchFrom + `;
    `
	sqlSearchInstances = `
        SELECT i.id, i.url, v.severity, v.title, i.fix_status, r.id, r.site_url` + searchFrom + `
        ORDER BY i.id
        LIMIT $4 OFFSET $5;
    `
)

// GetInstance returns a single instance.
func (s *Store) GetInstance(ctx context.Context, id int64) (*schemas.VulnInstance, error) {
	inst, err := scanInstance(s.pool.QueryRow(ctx, sqlSelectInstance, id))
	if err != nil {
		return nil, notFound(err, "instance", id)
	}
	return inst, nil
}

// UpdateInstanceStatus applies the transition in a single UPDATE, so two
// concurrent updates of one instance resolve as last write wins.
func (s *Store) UpdateInstanceStatus(ctx context.Context, update schemas.StatusUpdate) (*schemas.VulnInstance, error) {
	inst, err := scanInstance(s.pool.QueryRow(ctx, sqlUpdateInstanceStatus,
		update.InstanceID, string(update.Status), update.Notes, update.At.UTC(), update.FixedBy,
	))
	if err != nil {
		return nil, notFound(err, "instance", update.InstanceID)
	}
	return inst, nil
}

// ListInstanceStatuses returns the stored status of every instance, or of the
// instances of one report when reportID is set.
func (s *Store) ListInstanceStatuses(ctx context.Context, reportID *int64) ([]schemas.FixStatus, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if reportID != nil {
		rows, err = s.pool.Query(ctx, sqlListReportStatuses, *reportID)
	} else {
		rows, err = s.pool.Query(ctx, sqlListAllStatuses)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query statuses: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (schemas.FixStatus, error) {
		var st string
		err := row.Scan(&st)
		return schemas.FixStatus(st), err
	})
}

// SearchInstances runs a paginated search across all reports.
func (s *Store) SearchInstances(ctx context.Context, filter schemas.SearchFilter) ([]schemas.SearchHit, int, error) {
	pattern := likePattern(filter.Query)
	severity, status := string(filter.Severity), string(filter.Status)
	page := filter.Page.Normalize()

	var total int
	if err := s.pool.QueryRow(ctx, sqlCountSearch, pattern, severity, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	rows, err := s.pool.Query(ctx, sqlSearchInstances, pattern, severity, status, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search instances: %w", err)
	}
	defer rows.Close()

	var hits []schemas.SearchHit
	for rows.Next() {
		var h schemas.SearchHit
		var sev, st string
		if err := rows.Scan(&h.InstanceID, &h.URL, &sev, &h.Title, &st, &h.ReportID, &h.SiteURL); err != nil {
			return nil, 0, fmt.Errorf("failed to scan search row: %w", err)
		}
		h.Severity, h.FixStatus = schemas.Severity(sev), schemas.FixStatus(st)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error during row iteration: %w", err)
	}
	return hits, total, nil
}

// scanInstance reads one row produced by instanceSelectList.
func scanInstance(row pgx.Row) (*schemas.VulnInstance, error) {
	var inst schemas.VulnInstance
	var status string
	err := row.Scan(
		&inst.ID, &inst.VulnerabilityID, &inst.URL, &inst.Method, &inst.Parameter, &inst.Attack, &inst.Evidence, &inst.OtherInfo,
		&inst.ExtraData, &status, &inst.FixedAt, &inst.FixedBy, &inst.FixNotes,
		&inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inst.FixStatus = schemas.FixStatus(status)
	return &inst, nil
}
