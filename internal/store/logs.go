package store

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/vulntrack/api/schemas"
)

const (
	sqlInsertLog = `
        INSERT INTO operation_logs (action_type, message, created_at)
        VALUES ($1, $2, $3);
    `
	sqlCountLogs = `
        SELECT COUNT(*) FROM operation_logs WHERE ($1 = '' OR action_type = $1);
    `
	sqlListLogs = `
        SELECT id, action_type, message, created_at
        FROM operation_logs
        WHERE ($1 = '' OR action_type = $1)
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3;
    `
)

// AppendLog records one operation log entry.
func (s *Store) AppendLog(ctx context.Context, actionType, message string) error {
	if _, err := s.pool.Exec(ctx, sqlInsertLog, actionType, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to append operation log: %w", err)
	}
	return nil
}

// ListLogs returns one page of log entries, newest first.
func (s *Store) ListLogs(ctx context.Context, filter schemas.LogFilter) ([]schemas.OperationLog, int, error) {
	page := filter.Page.Normalize()

	var total int
	if err := s.pool.QueryRow(ctx, sqlCountLogs, filter.ActionType).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count operation logs: %w", err)
	}

	rows, err := s.pool.Query(ctx, sqlListLogs, filter.ActionType, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query operation logs: %w", err)
	}
	defer rows.Close()

	var logs []schemas.OperationLog
	for rows.Next() {
		var l schemas.OperationLog
		if err := rows.Scan(&l.ID, &l.ActionType, &l.Message, &l.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan operation log row: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error during row iteration: %w", err)
	}
	return logs, total, nil
}
