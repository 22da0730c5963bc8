package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/korzhev/Cascade/internal/domain"
)

// LogRepo — репозиторий журнала выполнения.
// Записи append-only, порядок чтения — порядок вставки.
type LogRepo struct {
	pool *pgxpool.Pool
}

// NewLogRepo создаёт новый LogRepo.
func NewLogRepo(pool *pgxpool.Pool) *LogRepo {
	return &LogRepo{pool: pool}
}

// Append добавляет запись в журнал. ID присваивается базой.
func (r *LogRepo) Append(ctx context.Context, entry *domain.ExecutionLog) error {
	var dataJSON []byte
	if entry.Data != nil {
		var err error
		dataJSON, err = json.Marshal(entry.Data)
		if err != nil {
			return fmt.Errorf("marshal log data: %w", err)
		}
	}

	query := `
		INSERT INTO execution_logs (execution_id, node_id, level, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		entry.ExecutionID,
		entry.NodeID,
		entry.Level,
		entry.Message,
		dataJSON,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	return nil
}

// ListByExecutionID возвращает записи журнала execution в порядке вставки.
func (r *LogRepo) ListByExecutionID(ctx context.Context, executionID uuid.UUID) ([]domain.ExecutionLog, error) {
	query := `
		SELECT id, execution_id, node_id, level, message, data, created_at
		FROM execution_logs
		WHERE execution_id = $1
		ORDER BY id ASC
	`
	rows, err := r.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.ExecutionLog
	for rows.Next() {
		var entry domain.ExecutionLog
		var dataJSON []byte

		if err := rows.Scan(&entry.ID, &entry.ExecutionID, &entry.NodeID, &entry.Level, &entry.Message, &dataJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		if dataJSON != nil {
			if err := json.Unmarshal(dataJSON, &entry.Data); err != nil {
				return nil, fmt.Errorf("unmarshal log data: %w", err)
			}
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
