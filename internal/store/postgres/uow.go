package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/tieredmem/internal/store"
)

// unitOfWork wraps a single pgx.Tx and lazily builds the six repositories
// against it, so every repository method within one UnitOfWork participates
// in the same transaction.
type unitOfWork struct {
	tx         pgx.Tx
	resources  *resourceRepo
	items      *itemRepo
	categories *categoryRepo
	graph      *graphRepo
	embeddings *embeddingRepo
	accesses   *categoryAccessRepo
}

func newUnitOfWork(tx pgx.Tx) *unitOfWork {
	return &unitOfWork{
		tx:         tx,
		resources:  &resourceRepo{q: tx},
		items:      &itemRepo{q: tx},
		categories: &categoryRepo{q: tx},
		graph:      &graphRepo{q: tx},
		embeddings: &embeddingRepo{q: tx},
		accesses:   &categoryAccessRepo{q: tx},
	}
}

func (u *unitOfWork) Resources() store.ResourceRepository             { return u.resources }
func (u *unitOfWork) Items() store.ItemRepository                     { return u.items }
func (u *unitOfWork) Categories() store.CategoryRepository            { return u.categories }
func (u *unitOfWork) Graph() store.GraphRepository                    { return u.graph }
func (u *unitOfWork) Embeddings() store.EmbeddingRepository           { return u.embeddings }
func (u *unitOfWork) CategoryAccesses() store.CategoryAccessRepository { return u.accesses }

func (u *unitOfWork) Commit(ctx context.Context) error   { return u.tx.Commit(ctx) }
func (u *unitOfWork) Rollback(ctx context.Context) error { return u.tx.Rollback(ctx) }
