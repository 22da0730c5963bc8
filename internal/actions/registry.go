package actions

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр действий.
//
// Позволяет регистрировать и получать реализации Action по ключу.
// Открыт для расширения: внешние коллабораторы регистрируют свои
// ключи рядом со встроенными. Потокобезопасен.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]Action),
	}
}

// DefaultRegistry создаёт реестр со встроенными действиями.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// Регистрируем встроенные действия
	r.Register(NewHTTPRequestAction())
	r.Register(NewLogAction())
	r.Register(NewDelayAction())

	return r
}

// Register регистрирует действие в реестре.
// Если действие с таким ключом уже существует, оно будет перезаписано.
func (r *Registry) Register(action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[action.Key()] = action
}

// Get возвращает действие по ключу.
// Возвращает ErrActionNotFound, если действие не найдено.
func (r *Registry) Get(key string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, exists := r.actions[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrActionNotFound, key)
	}

	return action, nil
}

// Has проверяет, зарегистрировано ли действие.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.actions[key]
	return exists
}

// Keys возвращает список всех зарегистрированных ключей.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.actions))
	for k := range r.actions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count возвращает количество зарегистрированных действий.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

// Unregister удаляет действие из реестра.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actions, key)
}
