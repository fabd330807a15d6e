package bankhub

import (
	"github.com/bwmarrin/snowflake"
)

//go:generate mockgen -source=repository.go -destination=mocks/repository.go -package=mocks

// Repository is a keyed store of entities. It applies no business rules;
// the ledger service is its only writer.
type Repository[T Identifiable] interface {
	// Save inserts entity or overwrites the one stored under the same id.
	Save(entity T)
	// FindByID returns ErrNotFound when id is absent.
	FindByID(id snowflake.ID) (T, error)
	// FindAll returns a copy of every stored entity in insertion order.
	FindAll() []T
	// Delete is a no-op when id is absent.
	Delete(id snowflake.ID)
}
