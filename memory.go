package bankhub

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

type MemoryRepository[T Identifiable] struct {
	mu    sync.RWMutex
	items map[snowflake.ID]T
	order []snowflake.ID
}

var (
	_ Repository[Account]     = (*MemoryRepository[Account])(nil)
	_ Repository[Transaction] = (*MemoryRepository[Transaction])(nil)
)

func NewMemoryRepository[T Identifiable]() *MemoryRepository[T] {
	return &MemoryRepository[T]{
		items: make(map[snowflake.ID]T),
	}
}

func (m *MemoryRepository[T]) Save(entity T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := entity.ID()
	if _, exists := m.items[id]; !exists {
		m.order = append(m.order, id)
	}
	m.items[id] = entity
}

func (m *MemoryRepository[T]) FindByID(id snowflake.ID) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entity, ok := m.items[id]
	if !ok {
		var zero T
		return zero, ErrNotFound{ID: id}
	}
	return entity, nil
}

func (m *MemoryRepository[T]) FindAll() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]T, 0, len(m.order))
	for _, id := range m.order {
		all = append(all, m.items[id])
	}
	return all
}

func (m *MemoryRepository[T]) Delete(id snowflake.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return
	}
	delete(m.items, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
