package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
)

// Repository errors. They carry an apperr kind.
var (
	ErrUserNotFound   = apperr.NotFound("User not found")
	ErrPhoneTaken     = apperr.Conflict("Phone already in use")
	ErrEmailTaken     = apperr.Conflict("Email already in use")
	ErrDeviceNotFound = apperr.NotFound("Device not found")
)

// Repository persists users. Phone and email uniqueness is enforced by the
// store itself; a violating write fails with ErrPhoneTaken or ErrEmailTaken.
type Repository interface {
	Create(ctx context.Context, user User) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
	FindByPhone(ctx context.Context, phone string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, roles ...Role) ([]User, error)
	UpdatePassword(ctx context.Context, id int64, hash []byte) error
	UpdatePhone(ctx context.Context, id int64, phone string) error
	UpdateEmail(ctx context.Context, id int64, email string) error
	UpdateFullName(ctx context.Context, id int64, fullName string) error
	// AddDevice appends device unless present and reports whether it was added.
	AddDevice(ctx context.Context, id int64, device string) (bool, error)
	// RemoveDevice drops device and returns the remaining list.
	RemoveDevice(ctx context.Context, id int64, device string) ([]string, error)
	Delete(ctx context.Context, id int64) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, COALESCE(phone, ''), COALESCE(email, ''), password, full_name, role, devices, created_at`

// Create inserts a new user and returns it with its assigned id.
func (r *PostgresRepository) Create(ctx context.Context, user User) (User, error) {
	if user.Devices == nil {
		user.Devices = []string{}
	}
	row := r.db.QueryRow(ctx, `INSERT INTO users (phone, email, password, full_name, role, devices, created_at)
        VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, $5, $6, $7)
        RETURNING id`, user.Phone, user.Email, string(user.PasswordHash), user.FullName, string(user.Role), user.Devices, user.CreatedAt.UTC())
	if err := row.Scan(&user.ID); err != nil {
		return User{}, mapPgErr(err)
	}
	return user, nil
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByPhone fetches a user by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

// FindByEmail fetches a user by email address.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// List returns users newest first, optionally restricted to roles.
func (r *PostgresRepository) List(ctx context.Context, roles ...Role) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, role := range roles {
			names[i] = string(role)
		}
		query += ` WHERE role = ANY($1)`
		args = append(args, names)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdatePassword stores a new password hash.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, hash []byte) error {
	return r.exec(ctx, `UPDATE users SET password = $1 WHERE id = $2`, string(hash), id)
}

// UpdatePhone changes the phone number.
func (r *PostgresRepository) UpdatePhone(ctx context.Context, id int64, phone string) error {
	return r.exec(ctx, `UPDATE users SET phone = $1 WHERE id = $2`, phone, id)
}

// UpdateEmail changes the email address.
func (r *PostgresRepository) UpdateEmail(ctx context.Context, id int64, email string) error {
	return r.exec(ctx, `UPDATE users SET email = $1 WHERE id = $2`, email, id)
}

// UpdateFullName changes the display name.
func (r *PostgresRepository) UpdateFullName(ctx context.Context, id int64, fullName string) error {
	return r.exec(ctx, `UPDATE users SET full_name = $1 WHERE id = $2`, fullName, id)
}

// AddDevice appends device in a single statement so concurrent logins from the
// same device never duplicate the entry.
func (r *PostgresRepository) AddDevice(ctx context.Context, id int64, device string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET devices = array_append(devices, $1)
        WHERE id = $2 AND NOT ($1 = ANY(devices))`, device, id)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// RemoveDevice drops device from the allow-list.
func (r *PostgresRepository) RemoveDevice(ctx context.Context, id int64, device string) ([]string, error) {
	var remaining []string
	err := r.db.QueryRow(ctx, `UPDATE users SET devices = array_remove(devices, $1)
        WHERE id = $2 AND $1 = ANY(devices)
        RETURNING devices`, device, id).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return remaining, nil
}

// Delete removes a user.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapPgErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user      User
		password  string
		role      string
		createdAt time.Time
	)
	if err := row.Scan(&user.ID, &user.Phone, &user.Email, &password, &user.FullName, &role, &user.Devices, &createdAt); err != nil {
		return User{}, err
	}
	user.PasswordHash = []byte(password)
	user.Role = Role(role)
	user.CreatedAt = createdAt.UTC()
	return user, nil
}

func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return ErrEmailTaken
		}
		return ErrPhoneTaken
	}
	return err
}
