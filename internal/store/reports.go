package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vulntrack/api/schemas"
)

const (
	sqlInsertReport = `
        INSERT INTO reports (site_url, summary_sequences, sequence_details, file_name, imported_at, notes)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id;
    `
	sqlInsertVulnerability = `
        INSERT INTO vulnerabilities (report_id, severity, title, description)
        VALUES ($1, $2, $3, $4)
        RETURNING id;
    `
	sqlSelectInsertedInstanceIDs = `
        SELECT id FROM vuln_instances
        WHERE vulnerability_id = ANY($1)
        ORDER BY id;
    `
	sqlSelectReport = `
        SELECT id, site_url, summary_sequences, sequence_details, file_name, imported_at, notes
        FROM reports
        WHERE id = $1;
    `
	sqlSelectReportVulnerabilities = `
        SELECT id, report_id, severity, title, description
        FROM vulnerabilities
        WHERE report_id = $1
        ORDER BY id;
    `
	sqlSelectReportInstances = `
        SELECT i.id, i.vulnerability_id, i.url, i.method, i.parameter, i.attack, i.evidence, i.other_info,
               i.extra_data, i.fix_status, i.fixed_at, COALESCE(i.fixed_by, ''), COALESCE(i.fix_notes, ''),
               i.created_at, i.updated_at
        FROM vuln_instances i
        JOIN vulnerabilities v ON v.id = i.vulnerability_id
        WHERE v.report_id = $1
        ORDER BY i.id;
    `
	sqlCountReports = `
        SELECT COUNT(*) FROM reports WHERE site_url ILIKE $1;
    `
	sqlListReports = `
        SELECT id, site_url, summary_sequences, sequence_details, file_name, imported_at, notes
        FROM reports
        WHERE site_url ILIKE $1
        ORDER BY imported_at DESC, id DESC
        LIMIT $2 OFFSET $3;
    `
	sqlListReportIDs = `
        SELECT id FROM reports ORDER BY imported_at DESC, id DESC;
    `
	sqlListVulnerabilities = `
        SELECT id, report_id, severity, title, description
        FROM vulnerabilities
        WHERE report_id = ANY($1)
        ORDER BY id;
    `
	sqlDeleteReport = `
        DELETE FROM reports WHERE id = $1;
    `
	sqlUpdateReportNotes = `
        UPDATE reports SET notes = $2 WHERE id = $1;
    `
	sqlCounts = `
        SELECT
            (SELECT COUNT(*) FROM reports),
            (SELECT COUNT(*) FROM vulnerabilities),
            (SELECT COUNT(*) FROM vuln_instances);
    `
)

var instanceColumns = []string{
	"vulnerability_id", "url", "method", "parameter", "attack", "evidence", "other_info",
	"extra_data", "fix_status", "created_at", "updated_at",
}

// CreateReportGraph inserts the report, its vulnerabilities and instances in
// one transaction. Instances go through COPY; their ids are read back in
// insertion order.
func (s *Store) CreateReportGraph(ctx context.Context, graph *schemas.ReportGraph) (*schemas.ReportGraph, error) {
	out := *graph
	out.Vulnerabilities = make([]schemas.VulnerabilityGraph, len(graph.Vulnerabilities))

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		r := graph.Report
		if err := tx.QueryRow(ctx, sqlInsertReport,
			r.SiteURL, r.SummarySequences, r.SequenceDetails, r.FileName, r.ImportedAt.UTC(), r.Notes,
		).Scan(&out.ID); err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}

		var rows [][]any
		vulnIDs := make([]int64, 0, len(graph.Vulnerabilities))
		for i, vg := range graph.Vulnerabilities {
			v := vg.Vulnerability
			v.ReportID = out.ID
			if err := tx.QueryRow(ctx, sqlInsertVulnerability,
				v.ReportID, string(v.Severity), v.Title, v.Description,
			).Scan(&v.ID); err != nil {
				return fmt.Errorf("failed to insert vulnerability %q: %w", v.Title, err)
			}
			vulnIDs = append(vulnIDs, v.ID)

			instances := make([]schemas.VulnInstance, len(vg.Instances))
			for j, inst := range vg.Instances {
				inst.VulnerabilityID = v.ID
				if inst.FixStatus == "" {
					inst.FixStatus = schemas.StatusPending
				}
				var extra []byte
				if len(inst.ExtraData) > 0 {
					extra = inst.ExtraData
				}
				rows = append(rows, []any{
					inst.VulnerabilityID, inst.URL, inst.Method, inst.Parameter, inst.Attack, inst.Evidence, inst.OtherInfo,
					extra, string(inst.FixStatus), inst.CreatedAt.UTC(), inst.UpdatedAt.UTC(),
				})
				instances[j] = inst
			}
			out.Vulnerabilities[i] = schemas.VulnerabilityGraph{Vulnerability: v, Instances: instances}
		}

		if len(rows) == 0 {
			return nil
		}
		copied, err := tx.CopyFrom(ctx, pgx.Identifier{"vuln_instances"}, instanceColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy instances: %w", err)
		}
		if int(copied) != len(rows) {
			return fmt.Errorf("mismatch in copied instances count: expected %d, got %d", len(rows), copied)
		}
		return s.assignInstanceIDs(ctx, tx, vulnIDs, out.Vulnerabilities)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("Report graph persisted.",
		zap.Int64("report_id", out.ID),
		zap.Int("vulnerabilities", len(out.Vulnerabilities)),
		zap.Int("instances", out.InstanceCount()))
	return &out, nil
}

func (s *Store) assignInstanceIDs(ctx context.Context, tx pgx.Tx, vulnIDs []int64, vulns []schemas.VulnerabilityGraph) error {
	ids, err := collectIDs(tx.Query(ctx, sqlSelectInsertedInstanceIDs, vulnIDs))
	if err != nil {
		return fmt.Errorf("failed to read instance ids: %w", err)
	}
	n := 0
	for i := range vulns {
		for j := range vulns[i].Instances {
			if n >= len(ids) {
				return fmt.Errorf("mismatch in instance ids: got %d", len(ids))
			}
			vulns[i].Instances[j].ID = ids[n]
			n++
		}
	}
	return nil
}

// GetReport returns a single report row.
func (s *Store) GetReport(ctx context.Context, id int64) (*schemas.Report, error) {
	var r schemas.Report
	err := s.pool.QueryRow(ctx, sqlSelectReport, id).Scan(
		&r.ID, &r.SiteURL, &r.SummarySequences, &r.SequenceDetails, &r.FileName, &r.ImportedAt, &r.Notes,
	)
	if err != nil {
		return nil, notFound(err, "report", id)
	}
	return &r, nil
}

// GetReportGraph loads a report with its vulnerabilities and instances, each
// ordered by id.
func (s *Store) GetReportGraph(ctx context.Context, id int64) (*schemas.ReportGraph, error) {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	graph := &schemas.ReportGraph{Report: *report}

	vulns, err := s.queryVulnerabilities(ctx, sqlSelectReportVulnerabilities, id)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]int, len(vulns))
	for i, v := range vulns {
		index[v.ID] = i
		graph.Vulnerabilities = append(graph.Vulnerabilities, schemas.VulnerabilityGraph{Vulnerability: v})
	}

	rows, err := s.pool.Query(ctx, sqlSelectReportInstances, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[inst.VulnerabilityID]; ok {
			graph.Vulnerabilities[i].Instances = append(graph.Vulnerabilities[i].Instances, *inst)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return graph, nil
}

// ListReports returns one page of reports, newest import first, filtered by
// a substring of the site URL.
func (s *Store) ListReports(ctx context.Context, filter schemas.ReportFilter) ([]schemas.Report, int, error) {
	pattern := likePattern(filter.Search)
	page := filter.Page.Normalize()

	var total int
	if err := s.pool.QueryRow(ctx, sqlCountReports, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	rows, err := s.pool.Query(ctx, sqlListReports, pattern, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []schemas.Report
	for rows.Next() {
		var r schemas.Report
		if err := rows.Scan(&r.ID, &r.SiteURL, &r.SummarySequences, &r.SequenceDetails, &r.FileName, &r.ImportedAt, &r.Notes); err != nil {
			return nil, 0, fmt.Errorf("failed to scan report row: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error during row iteration: %w", err)
	}
	return reports, total, nil
}

// ListReportIDs returns every report id, newest import first.
func (s *Store) ListReportIDs(ctx context.Context) ([]int64, error) {
	ids, err := collectIDs(s.pool.Query(ctx, sqlListReportIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list report ids: %w", err)
	}
	return ids, nil
}

// ListVulnerabilities returns the vulnerability rows of the given reports.
// A nil slice selects nothing.
func (s *Store) ListVulnerabilities(ctx context.Context, reportIDs []int64) ([]schemas.Vulnerability, error) {
	if len(reportIDs) == 0 {
		return nil, nil
	}
	return s.queryVulnerabilities(ctx, sqlListVulnerabilities, reportIDs)
}

func (s *Store) queryVulnerabilities(ctx context.Context, query string, arg any) ([]schemas.Vulnerability, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query vulnerabilities: %w", err)
	}
	defer rows.Close()

	var vulns []schemas.Vulnerability
	for rows.Next() {
		var v schemas.Vulnerability
		var severity string
		if err := rows.Scan(&v.ID, &v.ReportID, &severity, &v.Title, &v.Description); err != nil {
			return nil, fmt.Errorf("failed to scan vulnerability row: %w", err)
		}
		v.Severity = schemas.Severity(severity)
		vulns = append(vulns, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return vulns, nil
}

// DeleteReport removes a report. Vulnerabilities and instances go with it
// through ON DELETE CASCADE.
func (s *Store) DeleteReport(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, sqlDeleteReport, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &schemas.NotFoundError{Entity: "report", ID: id}
	}
	return nil
}

// UpdateReportNotes replaces the notes of a report.
func (s *Store) UpdateReportNotes(ctx context.Context, id int64, notes string) error {
	tag, err := s.pool.Exec(ctx, sqlUpdateReportNotes, id, notes)
	if err != nil {
		return fmt.Errorf("failed to update report notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &schemas.NotFoundError{Entity: "report", ID: id}
	}
	return nil
}

// Counts returns raw row counts of the three entity tables.
func (s *Store) Counts(ctx context.Context) (schemas.EntityCounts, error) {
	var c schemas.EntityCounts
	if err := s.pool.QueryRow(ctx, sqlCounts).Scan(&c.Reports, &c.Vulnerabilities, &c.Instances); err != nil {
		return schemas.EntityCounts{}, fmt.Errorf("failed to count rows: %w", err)
	}
	return c, nil
}

// collectIDs drains a single bigint column.
func collectIDs(rows pgx.Rows, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
