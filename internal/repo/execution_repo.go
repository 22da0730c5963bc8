package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/korzhev/Cascade/internal/domain"
)

// ExecutionRepo — репозиторий для работы с executions.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// Create создаёт новый execution.
//
// Уникальный индекс (flow_id, external_event_id) отвечает за
// идемпотентность: при дубликате возвращается ErrAlreadyExists.
func (r *ExecutionRepo) Create(ctx context.Context, ex *domain.Execution) error {
	payloadJSON, err := json.Marshal(ex.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO executions (id, flow_id, topic, external_event_id, payload,
		                        status, nodes_executed, actions_completed,
		                        started_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		ex.ID,
		ex.FlowID,
		ex.Topic,
		ex.ExternalEventID,
		payloadJSON,
		ex.Status,
		ex.NodesExecuted,
		ex.ActionsCompleted,
		ex.StartedAt,
		ex.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetByID возвращает execution по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := executionSelect + ` WHERE id = $1`
	return scanExecution(r.pool.QueryRow(ctx, query, id))
}

// GetByEventID возвращает execution по паре идемпотентности.
func (r *ExecutionRepo) GetByEventID(ctx context.Context, flowID uuid.UUID, externalEventID string) (*domain.Execution, error) {
	query := executionSelect + ` WHERE flow_id = $1 AND external_event_id = $2`
	return scanExecution(r.pool.QueryRow(ctx, query, flowID, externalEventID))
}

// List возвращает список executions с фильтрацией.
func (r *ExecutionRepo) List(ctx context.Context, filter ExecutionFilter) ([]domain.Execution, error) {
	query := executionSelect + `
		WHERE ($1::uuid IS NULL OR flow_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.FlowID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var executions []domain.Execution
	for rows.Next() {
		ex, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *ex)
	}
	return executions, rows.Err()
}

// Update обновляет статус, счётчики и времена execution.
func (r *ExecutionRepo) Update(ctx context.Context, ex *domain.Execution) error {
	query := `
		UPDATE executions
		SET status = $2, nodes_executed = $3, actions_completed = $4,
		    error = $5, started_at = $6, finished_at = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		ex.ID,
		ex.Status,
		ex.NodesExecuted,
		ex.ActionsCompleted,
		nullString(ex.Error),
		ex.StartedAt,
		ex.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// ExecutionFilter — параметры фильтрации executions.
type ExecutionFilter struct {
	FlowID *uuid.UUID
	Status domain.ExecutionStatus
	Limit  int
	Offset int
}

const executionSelect = `
	SELECT id, flow_id, topic, external_event_id, payload, status,
	       nodes_executed, actions_completed, error,
	       started_at, finished_at, created_at
	FROM executions
`

// scanExecution сканирует одну строку в Execution.
func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var ex domain.Execution
	var payloadJSON []byte
	var exError *string

	err := row.Scan(
		&ex.ID,
		&ex.FlowID,
		&ex.Topic,
		&ex.ExternalEventID,
		&payloadJSON,
		&ex.Status,
		&ex.NodesExecuted,
		&ex.ActionsCompleted,
		&exError,
		&ex.StartedAt,
		&ex.FinishedAt,
		&ex.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &ex.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if exError != nil {
		ex.Error = *exError
	}

	return &ex, nil
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}

// isUniqueViolation проверяет нарушение уникального ограничения Postgres.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
