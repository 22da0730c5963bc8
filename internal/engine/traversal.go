package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/korzhev/Cascade/internal/domain"
)

// DefaultMaxDepth — лимит глубины обхода по умолчанию.
// Ограничивает и длинные цепочки без повторов, и разгон fan-out.
const DefaultMaxDepth = 100

// Dispatcher — диспетчер действий. Движок не знает конкретных
// реализаций: узел-действие передаётся диспетчеру, любая ошибка
// трактуется единообразно (error-ветка или фейл запуска).
type Dispatcher interface {
	Dispatch(ctx context.Context, node *domain.Node, payload map[string]any, ec *ExecContext) error
}

// ExecContext — контекст выполнения, доступный действиям:
// текущий execution, flow и журнал выполнения.
type ExecContext struct {
	Execution *domain.Execution
	Flow      *domain.Flow

	store  Store
	logger *slog.Logger
}

// NewExecContext создаёт контекст выполнения.
func NewExecContext(ex *domain.Execution, flow *domain.Flow, store Store, logger *slog.Logger) *ExecContext {
	return &ExecContext{
		Execution: ex,
		Flow:      flow,
		store:     store,
		logger:    logger,
	}
}

// Log добавляет запись в журнал выполнения.
// Ошибка записи журнала не фейлит запуск, только попадает в slog.
func (ec *ExecContext) Log(ctx context.Context, nodeID *uuid.UUID, level domain.LogLevel, message string, data map[string]any) {
	entry := &domain.ExecutionLog{
		ExecutionID: ec.Execution.ID,
		NodeID:      nodeID,
		Level:       level,
		Message:     message,
		Data:        data,
		CreatedAt:   time.Now(),
	}
	if err := ec.store.AppendLog(ctx, entry); err != nil {
		ec.logger.ErrorContext(ctx, "failed to append execution log",
			slog.String("execution_id", ec.Execution.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Engine — движок обхода графа flow.
//
// Один экземпляр обслуживает любое число одновременных запусков:
// всё изменяемое состояние обхода (путь, счётчики) живёт в кадре
// вызова Run и в принадлежащем ему Execution, не в полях движка.
type Engine struct {
	store      Store
	dispatcher Dispatcher
	logger     *slog.Logger
	maxDepth   int
}

// Option — опция конфигурации движка.
type Option func(*Engine)

// WithMaxDepth переопределяет лимит глубины обхода.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// New создаёт движок.
func New(store Store, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		maxDepth:   DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result — результат вызова Run.
type Result struct {
	// Execution — запись запуска: новая либо существующая при дубликате.
	Execution *domain.Execution

	// Duplicate — true, если событие уже выполнялось и side effects
	// не повторялись.
	Duplicate bool
}

// runCtx — состояние одного запуска, передаётся по цепочке вызовов.
type runCtx struct {
	flow    *domain.Flow
	payload map[string]any
	ex      *domain.Execution
	ec      *ExecContext
}

// Run выполняет flow для входящего события.
//
// Идемпотентность: при существующем execution для пары
// (flow.ID, externalEventID) возвращается существующая запись,
// Duplicate=true и ErrDuplicateEvent; side effects не повторяются.
//
// Ошибки обхода (цикл, глубина, необработанная ошибка действия) не
// возвращаются из Run — они фейлят execution, Run возвращает запись
// со статусом failed и nil-ошибкой. Ненулевая ошибка означает либо
// дубликат, либо отсутствие триггера, либо отказ персистентности.
func (e *Engine) Run(ctx context.Context, flow *domain.Flow, payload map[string]any, topic, externalEventID string) (*Result, error) {
	ex := &domain.Execution{
		ID:              uuid.New(),
		FlowID:          flow.ID,
		Topic:           topic,
		ExternalEventID: externalEventID,
		Payload:         payload,
		CreatedAt:       time.Now(),
	}
	ex.MarkRunning()

	// Атомарная проверка-и-вставка: гонка двух доставок одного
	// события даёт ровно один execution.
	if err := e.store.CreateExecution(ctx, ex); err != nil {
		if errors.Is(err, ErrExecutionExists) {
			existing, getErr := e.store.GetExecution(ctx, flow.ID, externalEventID)
			if getErr != nil {
				return nil, fmt.Errorf("get existing execution: %w", getErr)
			}
			e.logger.InfoContext(ctx, "duplicate event, skipping run",
				slog.String("flow_id", flow.ID.String()),
				slog.String("external_event_id", externalEventID),
			)
			return &Result{Execution: existing, Duplicate: true}, ErrDuplicateEvent
		}
		return nil, fmt.Errorf("create execution: %w", err)
	}

	rc := &runCtx{
		flow:    flow,
		payload: payload,
		ex:      ex,
		ec:      NewExecContext(ex, flow, e.store, e.logger),
	}

	e.logger.InfoContext(ctx, "execution started",
		slog.String("execution_id", ex.ID.String()),
		slog.String("flow_id", flow.ID.String()),
		slog.String("topic", topic),
	)

	trigger := e.resolveTrigger(ctx, rc, topic)
	if trigger == nil {
		rc.ec.Log(ctx, nil, domain.LogLevelError, "no trigger node found", nil)
		return e.finish(ctx, rc, ErrNoTriggerFound), ErrNoTriggerFound
	}

	err := e.visit(ctx, rc, trigger, nil)
	return e.finish(ctx, rc, err), nil
}

// resolveTrigger выбирает узел-триггер для topic события.
//
// Триггер с точно совпадающим topic в приоритете; без совпадения
// берётся первый триггер (разрешительный fallback, фиксируется
// warning-записью в журнале). Нет триггеров вообще — nil.
func (e *Engine) resolveTrigger(ctx context.Context, rc *runCtx, topic string) *domain.Node {
	triggers := rc.flow.TriggerNodes()
	if len(triggers) == 0 {
		return nil
	}
	for _, t := range triggers {
		if t.Topic() == topic {
			return t
		}
	}

	first := triggers[0]
	rc.ec.Log(ctx, &first.ID, domain.LogLevelWarning,
		fmt.Sprintf("no trigger matches topic %q, falling back to first trigger", topic),
		map[string]any{"topic": topic, "trigger_topic": first.Topic()},
	)
	return first
}

// finish переводит execution в терминальный статус и сохраняет его.
func (e *Engine) finish(ctx context.Context, rc *runCtx, runErr error) *Result {
	if runErr != nil {
		rc.ec.Log(ctx, nil, domain.LogLevelError, runErr.Error(), nil)
		rc.ex.MarkFailed(runErr.Error())
	} else {
		rc.ex.MarkSuccess()
	}

	if err := e.store.UpdateExecution(ctx, rc.ex); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist execution result",
			slog.String("execution_id", rc.ex.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	e.logger.InfoContext(ctx, "execution finished",
		slog.String("execution_id", rc.ex.ID.String()),
		slog.String("status", string(rc.ex.Status)),
		slog.Int("nodes_executed", rc.ex.NodesExecuted),
		slog.Int("actions_completed", rc.ex.ActionsCompleted),
		slog.Duration("duration", rc.ex.Duration()),
	)
	return &Result{Execution: rc.ex}
}

// visit выполняет один узел и рекурсивно обходит его потомков.
//
// path — ID узлов на текущем пути от триггера до родителя; слайс
// принадлежит вызову и никогда не мутируется — потомки получают
// собственную копию, поэтому siblings при fan-out не видят метки
// друг друга, только предков.
func (e *Engine) visit(ctx context.Context, rc *runCtx, node *domain.Node, path []uuid.UUID) error {
	for _, id := range path {
		if id == node.ID {
			return &CycleError{NodeID: node.ID}
		}
	}
	if len(path) >= e.maxDepth {
		return &MaxDepthError{NodeID: node.ID, Depth: len(path) + 1, MaxDepth: e.maxDepth}
	}

	rc.ex.NodesExecuted++
	rc.ec.Log(ctx, &node.ID, domain.LogLevelInfo,
		fmt.Sprintf("executing %s node %q", node.Type, node.Label),
		nil,
	)

	switch node.Type {
	case domain.NodeTypeTrigger:
		return e.followBranch(ctx, rc, node, domain.BranchThen, path)

	case domain.NodeTypeCondition:
		return e.visitCondition(ctx, rc, node, path)

	case domain.NodeTypeAction:
		return e.visitAction(ctx, rc, node, path)

	default:
		// Узел неизвестного типа завершает путь, не запуск.
		rc.ec.Log(ctx, &node.ID, domain.LogLevelWarning,
			fmt.Sprintf("unknown node type %q, path terminated", node.Type), nil)
		return nil
	}
}

// visitCondition вычисляет правила и выбирает ветку true/false.
// Без рёбер выбранной ветки обход падает на then; без then путь
// тихо завершается — это не ошибка.
func (e *Engine) visitCondition(ctx context.Context, rc *runCtx, node *domain.Node, path []uuid.UUID) error {
	passed, outcomes := EvaluateCondition(node.Settings, rc.payload)

	branch := domain.BranchFalse
	if passed {
		branch = domain.BranchTrue
	}
	data := map[string]any{"result": passed, "branch": branch}
	if len(outcomes) > 0 {
		data["rules"] = outcomes
	}
	rc.ec.Log(ctx, &node.ID, domain.LogLevelInfo, fmt.Sprintf("condition evaluated to %v", passed), data)

	edges := rc.flow.EdgesFrom(node.ID, branch)
	if len(edges) == 0 {
		edges = rc.flow.EdgesFrom(node.ID, domain.BranchThen)
	}
	return e.followEdges(ctx, rc, node, edges, path)
}

// visitAction диспатчит действие узла.
// Ошибка действия уходит на error-рёбра, если они есть; без них
// запуск фейлится целиком.
func (e *Engine) visitAction(ctx context.Context, rc *runCtx, node *domain.Node, path []uuid.UUID) error {
	key := node.ActionKey()

	if err := e.dispatcher.Dispatch(ctx, node, rc.payload, rc.ec); err != nil {
		actionErr := &ActionError{NodeID: node.ID, ActionKey: key, Err: err}

		errEdges := rc.flow.EdgesFrom(node.ID, domain.BranchError)
		if len(errEdges) > 0 {
			rc.ec.Log(ctx, &node.ID, domain.LogLevelWarning,
				fmt.Sprintf("action %q failed, following error branch", key),
				map[string]any{"action": key, "error": err.Error()},
			)
			return e.followEdges(ctx, rc, node, errEdges, path)
		}

		rc.ec.Log(ctx, &node.ID, domain.LogLevelError,
			fmt.Sprintf("action %q failed", key),
			map[string]any{"action": key, "error": err.Error()},
		)
		return actionErr
	}

	rc.ex.ActionsCompleted++
	rc.ec.Log(ctx, &node.ID, domain.LogLevelInfo,
		fmt.Sprintf("action %q completed", key),
		map[string]any{"action": key},
	)
	return e.followBranch(ctx, rc, node, domain.BranchThen, path)
}

// followBranch обходит рёбра узла с указанной меткой ветки.
func (e *Engine) followBranch(ctx context.Context, rc *runCtx, node *domain.Node, branch string, path []uuid.UUID) error {
	return e.followEdges(ctx, rc, node, rc.flow.EdgesFrom(node.ID, branch), path)
}

// followEdges обходит цели рёбер в порядке объявления, depth-first.
// Каждый потомок получает копию пути с добавленным текущим узлом.
func (e *Engine) followEdges(ctx context.Context, rc *runCtx, node *domain.Node, edges []*domain.Edge, path []uuid.UUID) error {
	if len(edges) == 0 {
		return nil
	}

	childPath := make([]uuid.UUID, len(path), len(path)+1)
	copy(childPath, path)
	childPath = append(childPath, node.ID)

	for _, edge := range edges {
		target := rc.flow.NodeByID(edge.TargetNodeID)
		if target == nil {
			rc.ec.Log(ctx, &node.ID, domain.LogLevelWarning,
				fmt.Sprintf("edge %s points to missing node %s, skipped", edge.ID, edge.TargetNodeID),
				nil,
			)
			continue
		}
		if err := e.visit(ctx, rc, target, childPath); err != nil {
			return err
		}
	}
	return nil
}
