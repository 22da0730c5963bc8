package actions

import (
	"context"
	"errors"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/engine"
)

// Ошибки пакета actions.
var (
	// ErrActionNotFound — действие с таким ключом не зарегистрировано.
	ErrActionNotFound = errors.New("action not found")

	// ErrInvalidSettings — некорректные настройки узла-действия.
	ErrInvalidSettings = errors.New("invalid action settings")

	// ErrActionCancelled — действие прервано отменой контекста.
	ErrActionCancelled = errors.New("action cancelled")
)

// Action — интерфейс действия.
//
// Действие получает узел (его settings), payload события и контекст
// выполнения. Любая возвращённая ошибка трактуется движком
// единообразно: error-ветка узла или фейл запуска. Политика таймаутов
// и ретраев внешних вызовов — ответственность самого действия.
type Action interface {
	// Key возвращает ключ действия для реестра.
	Key() string

	// Handle выполняет действие.
	Handle(ctx context.Context, node *domain.Node, payload map[string]any, ec *engine.ExecContext) error
}
