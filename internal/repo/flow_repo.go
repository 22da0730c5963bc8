package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/korzhev/Cascade/internal/domain"
)

// FlowRepo — репозиторий для работы с flows и их графами.
type FlowRepo struct {
	pool *pgxpool.Pool
}

// NewFlowRepo создаёт новый FlowRepo.
func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

// Create создаёт новый flow (без графа).
func (r *FlowRepo) Create(ctx context.Context, flow *domain.Flow) error {
	query := `
		INSERT INTO flows (id, name, shop_domain, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		flow.ID,
		flow.Name,
		flow.ShopDomain,
		flow.IsActive,
		flow.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert flow: %w", err)
	}
	return nil
}

// GetByID возвращает flow по ID (без графа).
func (r *FlowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error) {
	query := `
		SELECT id, name, shop_domain, is_active, created_at
		FROM flows
		WHERE id = $1
	`
	return scanFlow(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список flows с фильтрацией.
func (r *FlowRepo) List(ctx context.Context, filter FlowFilter) ([]domain.Flow, error) {
	query := `
		SELECT id, name, shop_domain, is_active, created_at
		FROM flows
		WHERE ($1::text IS NULL OR shop_domain = $1)
		  AND ($2::boolean IS NULL OR is_active = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.ShopDomain),
		filter.IsActive,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.Flow
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, *flow)
	}
	return flows, rows.Err()
}

// Update обновляет имя и флаг активности flow.
func (r *FlowRepo) Update(ctx context.Context, flow *domain.Flow) error {
	query := `
		UPDATE flows
		SET name = $2, is_active = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, flow.ID, flow.Name, flow.IsActive)
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет flow вместе с графом (каскад по FK).
func (r *FlowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSnapshot возвращает flow с полным графом (узлы и рёбра).
//
// Снапшот читается тремя запросами без транзакции: граф мутируется
// только редактором между запусками, движок получает согласованную
// на момент чтения картину и дальше её не перечитывает.
func (r *FlowRepo) GetSnapshot(ctx context.Context, id uuid.UUID) (*domain.Flow, error) {
	flow, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	flow.Nodes, err = r.listNodes(ctx, id)
	if err != nil {
		return nil, err
	}
	flow.Edges, err = r.listEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	return flow, nil
}

// ListActiveByTopic возвращает активные flows, у которых есть
// узел-триггер с указанным topic.
func (r *FlowRepo) ListActiveByTopic(ctx context.Context, topic string) ([]domain.Flow, error) {
	query := `
		SELECT DISTINCT f.id, f.name, f.shop_domain, f.is_active, f.created_at
		FROM flows f
		JOIN nodes n ON n.flow_id = f.id
		WHERE f.is_active
		  AND n.type = 'trigger'
		  AND n.settings->>'topic' = $1
		ORDER BY f.created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, topic)
	if err != nil {
		return nil, fmt.Errorf("list active flows by topic: %w", err)
	}
	defer rows.Close()

	var flows []domain.Flow
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, *flow)
	}
	return flows, rows.Err()
}

// ReplaceGraph атомарно заменяет граф flow новыми узлами и рёбрами.
func (r *FlowRepo) ReplaceGraph(ctx context.Context, flowID uuid.UUID, nodes []domain.Node, edges []domain.Edge) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM edges WHERE flow_id = $1`, flowID); err != nil {
		return fmt.Errorf("delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM nodes WHERE flow_id = $1`, flowID); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}

	for _, n := range nodes {
		settingsJSON, err := json.Marshal(n.Settings)
		if err != nil {
			return fmt.Errorf("marshal node settings: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO nodes (id, flow_id, type, label, settings, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, n.ID, flowID, n.Type, nullString(n.Label), settingsJSON, n.Position)
		if err != nil {
			return fmt.Errorf("insert node: %w", err)
		}
	}

	for _, e := range edges {
		_, err = tx.Exec(ctx, `
			INSERT INTO edges (id, flow_id, source_node_id, target_node_id, branch, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.ID, flowID, e.SourceNodeID, e.TargetNodeID, e.Branch, e.Position)
		if err != nil {
			return fmt.Errorf("insert edge: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// --- Helpers ---

// FlowFilter — параметры фильтрации flows.
type FlowFilter struct {
	ShopDomain string
	IsActive   *bool
	Limit      int
	Offset     int
}

// listNodes возвращает узлы flow в порядке position.
func (r *FlowRepo) listNodes(ctx context.Context, flowID uuid.UUID) ([]domain.Node, error) {
	query := `
		SELECT id, flow_id, type, label, settings, position
		FROM nodes
		WHERE flow_id = $1
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []domain.Node
	for rows.Next() {
		var n domain.Node
		var label *string
		var settingsJSON []byte

		if err := rows.Scan(&n.ID, &n.FlowID, &n.Type, &label, &settingsJSON, &n.Position); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		if label != nil {
			n.Label = *label
		}
		if settingsJSON != nil {
			if err := json.Unmarshal(settingsJSON, &n.Settings); err != nil {
				return nil, fmt.Errorf("unmarshal node settings: %w", err)
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// listEdges возвращает рёбра flow в порядке position.
func (r *FlowRepo) listEdges(ctx context.Context, flowID uuid.UUID) ([]domain.Edge, error) {
	query := `
		SELECT id, flow_id, source_node_id, target_node_id, branch, position
		FROM edges
		WHERE flow_id = $1
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	var edges []domain.Edge
	for rows.Next() {
		var e domain.Edge
		if err := rows.Scan(&e.ID, &e.FlowID, &e.SourceNodeID, &e.TargetNodeID, &e.Branch, &e.Position); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// scanFlow сканирует одну строку в Flow.
func scanFlow(row pgx.Row) (*domain.Flow, error) {
	var flow domain.Flow
	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&flow.ShopDomain,
		&flow.IsActive,
		&flow.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan flow: %w", err)
	}
	return &flow, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
