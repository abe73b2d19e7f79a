package embedded

import (
	"context"
	"database/sql"

	"github.com/MrWong99/tieredmem/internal/store"
)

type unitOfWork struct {
	tx         *sql.Tx
	resources  *resourceRepo
	items      *itemRepo
	categories *categoryRepo
	graph      *graphRepo
	embeddings *embeddingRepo
	accesses   *categoryAccessRepo
}

func newUnitOfWork(tx *sql.Tx, dims int) *unitOfWork {
	return &unitOfWork{
		tx:         tx,
		resources:  &resourceRepo{tx: tx},
		items:      &itemRepo{tx: tx},
		categories: &categoryRepo{tx: tx},
		graph:      &graphRepo{tx: tx},
		embeddings: &embeddingRepo{tx: tx, dims: dims},
		accesses:   &categoryAccessRepo{tx: tx},
	}
}

func (u *unitOfWork) Resources() store.ResourceRepository              { return u.resources }
func (u *unitOfWork) Items() store.ItemRepository                      { return u.items }
func (u *unitOfWork) Categories() store.CategoryRepository             { return u.categories }
func (u *unitOfWork) Graph() store.GraphRepository                     { return u.graph }
func (u *unitOfWork) Embeddings() store.EmbeddingRepository            { return u.embeddings }
func (u *unitOfWork) CategoryAccesses() store.CategoryAccessRepository { return u.accesses }

func (u *unitOfWork) Commit(ctx context.Context) error   { return u.tx.Commit() }
func (u *unitOfWork) Rollback(ctx context.Context) error { return u.tx.Rollback() }
