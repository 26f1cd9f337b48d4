package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/user-management/internal/model"
)

type GroupRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewGroupRepo(db *sql.DB) *GroupRepo { return &GroupRepo{DB: db, now: time.Now} }

// Create inserts a group named name.  Names are unique.
func (r *GroupRepo) Create(ctx context.Context, name string) (model.Group, error) {
	g := model.Group{ID: uuid.NewString(), Name: strings.TrimSpace(name), CreatedAt: r.now().UTC()}
	if g.Name == "" {
		return model.Group{}, fmt.Errorf("%w: group name is required", model.ErrInvalidInput)
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO `groups` (id, name, created_at) VALUES (?,?,?)", g.ID, g.Name, g.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Group{}, fmt.Errorf("%w: group %q already exists", model.ErrConflict, g.Name)
		}
		return model.Group{}, err
	}
	return g, nil
}

// GetByID fetches a group by id.
func (r *GroupRepo) GetByID(ctx context.Context, id string) (model.Group, error) {
	var g model.Group
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM `groups` WHERE id=? LIMIT 1", id).Scan(&g.ID, &g.Name, &g.CreatedAt)
	if err != nil {
		return model.Group{}, notFound(err)
	}
	return g, nil
}

// GetByName fetches a group by its unique name.
func (r *GroupRepo) GetByName(ctx context.Context, name string) (model.Group, error) {
	var g model.Group
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM `groups` WHERE name=? LIMIT 1",
		strings.TrimSpace(name)).Scan(&g.ID, &g.Name, &g.CreatedAt)
	if err != nil {
		return model.Group{}, notFound(err)
	}
	return g, nil
}

// Delete removes group id.  A group that still has members cannot be deleted.
func (r *GroupRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM `groups` WHERE id=?", id)
	if err != nil {
		if mysqlErrNumber(err) == mysqlRowIsReferenced {
			return fmt.Errorf("%w: group still has members", model.ErrConflict)
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}
