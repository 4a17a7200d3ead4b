package tasks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Delegate/internal/rpc"
)

// Registry — реестр задач по имени. Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]rpc.Task
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]rpc.Task)}
}

// DefaultRegistry создаёт реестр со всеми встроенными задачами.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("add", Add)
	r.Register("multiply", Multiply)
	r.Register("echo", Echo)
	r.Register("delay", Delay)
	r.Register("http.get", NewHTTPGet(nil).Run)
	return r
}

// Register добавляет задачу. Задача с тем же именем перезаписывается.
func (r *Registry) Register(name string, task rpc.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[name] = task
}

// Get возвращает задачу по имени.
// Возвращает ErrUnknownTask, если задача не найдена.
func (r *Registry) Get(name string) (rpc.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return task, nil
}

// Has проверяет, зарегистрирована ли задача.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tasks[name]
	return ok
}

// Names возвращает отсортированный список имён задач.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
