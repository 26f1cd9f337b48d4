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

const userColumns = "id,username,email,phone_number,name,surname,role,group_id,image,is_blocked,password_hash,created_at,modified_at"

// sortColumns whitelists the columns a listing may be ordered by.
var sortColumns = map[string]string{
	"username":     "username",
	"email":        "email",
	"phone_number": "phone_number",
	"name":         "name",
	"surname":      "surname",
	"role":         "role",
	"created_at":   "created_at",
}

// MaxListLimit caps the page size of List.
const MaxListLimit = 100

// UserRepo is the MySQL-backed user store.
type UserRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db, now: time.Now} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u                  model.User
		name, surname, img sql.NullString
		modifiedAt         sql.NullTime
		role               string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PhoneNumber, &name, &surname,
		&role, &u.GroupID, &img, &u.IsBlocked, &u.PasswordHash, &u.CreatedAt, &modifiedAt)
	if err != nil {
		return model.User{}, err
	}
	u.Name, u.Surname, u.Image = name.String, surname.String, img.String
	u.Role = model.Role(role)
	if modifiedAt.Valid {
		t := modifiedAt.Time
		u.ModifiedAt = &t
	}
	return u, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts u, assigning a fresh UUID and creation time.  Unique
// violations on username, email or phone are reported as model.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Username = strings.TrimSpace(u.Username)
	u.CreatedAt = r.now().UTC()
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)",
		u.ID, u.Username, u.Email, u.PhoneNumber, nullable(u.Name), nullable(u.Surname),
		string(u.Role), u.GroupID, nullable(u.Image), u.IsBlocked, u.PasswordHash, u.CreatedAt, nil)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: user with this username, email or phone already exists", model.ErrConflict)
		}
		return err
	}
	return nil
}

// FindUser fetches the user matching l.
func (r *UserRepo) FindUser(ctx context.Context, l Lookup) (model.User, error) {
	col, ok := l.Kind.column()
	if !ok {
		return model.User{}, fmt.Errorf("%w: unknown lookup %s", model.ErrInvalidInput, l.Kind)
	}
	l = l.normalized()
	if l.Value == "" {
		return model.User{}, model.ErrNotFound
	}
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+col+"=? LIMIT 1", l.Value))
	if err != nil {
		return model.User{}, notFound(err)
	}
	return u, nil
}

// List returns one page of users.  FilterByName matches name or surname by
// substring; GroupID restricts the result to one group.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	if f.Page < 1 || f.Limit < 1 || f.Limit > MaxListLimit {
		return nil, fmt.Errorf("%w: page must be >= 1 and limit within 1..%d", model.ErrInvalidInput, MaxListLimit)
	}
	order := "created_at"
	if f.SortBy != "" {
		col, ok := sortColumns[f.SortBy]
		if !ok {
			return nil, fmt.Errorf("%w: cannot sort by %q", model.ErrInvalidInput, f.SortBy)
		}
		order = col
	}
	dir := "ASC"
	if f.Descending {
		dir = "DESC"
	}

	var (
		where []string
		args  []any
	)
	if f.FilterByName != "" {
		like := "%" + f.FilterByName + "%"
		where = append(where, "(name LIKE ? OR surname LIKE ?)")
		args = append(args, like, like)
	}
	if f.GroupID != "" {
		where = append(where, "group_id=?")
		args = append(args, f.GroupID)
	}
	q := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + order + " " + dir + ", id ASC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of upd to user id and returns the
// stored row.
func (r *UserRepo) Update(ctx context.Context, id string, upd model.UserUpdate) (model.User, error) {
	if upd.Empty() {
		return r.FindUser(ctx, Lookup{Kind: ByID, Value: id})
	}
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if upd.Username != nil {
		set("username", strings.TrimSpace(*upd.Username))
	}
	if upd.Email != nil {
		set("email", strings.ToLower(strings.TrimSpace(*upd.Email)))
	}
	if upd.PhoneNumber != nil {
		set("phone_number", *upd.PhoneNumber)
	}
	if upd.Name != nil {
		set("name", nullable(*upd.Name))
	}
	if upd.Surname != nil {
		set("surname", nullable(*upd.Surname))
	}
	if upd.Image != nil {
		set("image", nullable(*upd.Image))
	}
	if upd.IsBlocked != nil {
		set("is_blocked", *upd.IsBlocked)
	}
	if upd.Role != nil {
		set("role", string(*upd.Role))
	}
	if upd.GroupID != nil {
		set("group_id", *upd.GroupID)
	}
	set("modified_at", r.now().UTC())
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, fmt.Errorf("%w: username, email or phone already taken", model.ErrConflict)
		}
		return model.User{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.User{}, model.ErrNotFound
	}
	return r.FindUser(ctx, Lookup{Kind: ByID, Value: id})
}

// UpdatePassword replaces the stored digest of user id.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, modified_at=? WHERE id=?", hash, r.now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Delete removes user id.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}
