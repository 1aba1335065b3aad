package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
	"github.com/aussiebroadwan/directory/internal/directory/store"
)

const userColumns = `id, username, password_hash, federated_provider, federated_id,
	name, company, link, phone_number, address, date_of_birth,
	avatar_content_type IS NOT NULL, created_at, updated_at`

const (
	getUserByID          = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	getUserByUsername    = `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	getUserByFederatedID = `SELECT ` + userColumns + ` FROM users WHERE federated_provider = ? AND federated_id = ?`

	insertUser = `INSERT INTO users (
	id, username, password_hash, federated_provider, federated_id,
	name, company, link, phone_number, address, date_of_birth,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	updateUserProfile = `UPDATE users SET
	name = ?, company = ?, link = ?, phone_number = ?, address = ?, date_of_birth = ?,
	updated_at = ?
WHERE id = ?`

	updateUserAvatar = `UPDATE users SET avatar_data = ?, avatar_content_type = ?, updated_at = ? WHERE id = ?`
	getUserAvatar    = `SELECT avatar_data, avatar_content_type FROM users WHERE id = ?`

	searchUsersByName = `SELECT ` + userColumns + ` FROM users
WHERE name != '' AND name LIKE ? ESCAPE '\'
ORDER BY created_at DESC, id DESC
LIMIT ?`

	countUsers = `SELECT COUNT(*) FROM users`
	deleteUser = `DELETE FROM users WHERE id = ?`
)

type usersRepo struct {
	db DBTX
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                                   domain.User
		username, hash, provider, federated sql.NullString
		createdAt, updatedAt                int64
	)

	err := row.Scan(
		&u.ID, &username, &hash, &provider, &federated,
		&u.Profile.Name, &u.Profile.Company, &u.Profile.Link,
		&u.Profile.PhoneNumber, &u.Profile.Address, &u.Profile.DateOfBirth,
		&u.HasAvatar, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.Username = mapNullString(username)
	u.PasswordHash = mapNullString(hash)
	u.FederatedProvider = mapNullString(provider)
	u.FederatedID = mapNullString(federated)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, getUserByID, id))
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, getUserByUsername, username))
}

func (r *usersRepo) GetUserByFederatedID(ctx context.Context, provider, federatedID string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, getUserByFederatedID, provider, federatedID))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	created, err := r.insert(ctx, u, ` ON CONFLICT(username) DO NOTHING`)
	if err != nil {
		return err
	}
	if !created {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *usersRepo) InsertFederatedUser(ctx context.Context, u domain.User) (bool, error) {
	return r.insert(ctx, u, ` ON CONFLICT(federated_provider, federated_id) DO NOTHING`)
}

func (r *usersRepo) insert(ctx context.Context, u domain.User, onConflict string) (bool, error) {
	if !u.HasCredential() {
		return false, store.ErrMissingCredential
	}

	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	res, err := r.db.ExecContext(ctx, insertUser+onConflict,
		u.ID,
		mapStringNull(u.Username),
		mapStringNull(u.PasswordHash),
		mapStringNull(u.FederatedProvider),
		mapStringNull(u.FederatedID),
		u.Profile.Name, u.Profile.Company, u.Profile.Link,
		u.Profile.PhoneNumber, u.Profile.Address, u.Profile.DateOfBirth,
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id string, p domain.Profile) error {
	return requireOneRow(r.db.ExecContext(ctx, updateUserProfile,
		p.Name, p.Company, p.Link, p.PhoneNumber, p.Address, p.DateOfBirth,
		toMillis(time.Now()), id,
	))
}

func (r *usersRepo) UpdateAvatar(ctx context.Context, id string, a domain.Avatar) error {
	return requireOneRow(r.db.ExecContext(ctx, updateUserAvatar,
		a.Data, a.ContentType, toMillis(time.Now()), id,
	))
}

func (r *usersRepo) GetAvatar(ctx context.Context, id string) (domain.Avatar, error) {
	var (
		data        []byte
		contentType sql.NullString
	)
	if err := r.db.QueryRowContext(ctx, getUserAvatar, id).Scan(&data, &contentType); err != nil {
		return domain.Avatar{}, mapNotFound(err)
	}
	if !contentType.Valid {
		return domain.Avatar{}, store.ErrNotFound
	}
	return domain.Avatar{Data: data, ContentType: contentType.String}, nil
}

func (r *usersRepo) SearchByName(ctx context.Context, term string, limit int) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, searchUsersByName, "%"+escapeLike(term)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *usersRepo) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countUsers).Scan(&n)
	return n, err
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	return requireOneRow(r.db.ExecContext(ctx, deleteUser, id))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
