package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/fintechindex/internal/domain/user"
	"github.com/geocoder89/fintechindex/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, name, role, is_verified, phone_number, country, organization, job_title, created_at, updated_at`

type UsersRepo struct {
	base
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom, readTimeout time.Duration) *UsersRepo {
	return &UsersRepo{base: newBase(pool, prom, readTimeout)}
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Role,
		&u.IsVerified,
		&u.PhoneNumber,
		&u.Country,
		&u.Organization,
		&u.JobTitle,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	u.Email = user.NormalizeEmail(u.Email)

	err := r.write(ctx, "users.create", func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.IsVerified,
			u.PhoneNumber, u.Country, u.Organization, u.JobTitle, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.read(ctx, "users.get_by_email", func(ctx context.Context) (err error) {
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, user.NormalizeEmail(email)))
		return err
	})

	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.read(ctx, "users.get_by_id", func(ctx context.Context) (err error) {
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})

	return u, err
}

func (r *UsersRepo) List(ctx context.Context, f user.ListFilter) ([]user.User, error) {
	var conds []string
	var args []interface{}

	argsPosition := 1

	if f.Verified != nil {
		conds = append(conds, fmt.Sprintf("is_verified = $%d", argsPosition))
		args = append(args, *f.Verified)
		argsPosition++
	}

	if f.Role != nil {
		conds = append(conds, fmt.Sprintf("role = $%d", argsPosition))
		args = append(args, *f.Role)
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, email ASC"

	out := make([]user.User, 0)

	err := r.read(ctx, "users.list", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})

	return out, err
}

func (r *UsersRepo) SetVerified(ctx context.Context, id string, verified bool) (user.User, error) {
	var u user.User

	err := r.write(ctx, "users.set_verified", func(ctx context.Context) (err error) {
		u, err = scanUser(r.pool.QueryRow(ctx, `
			UPDATE users SET is_verified = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns, id, verified))
		return err
	})

	return u, err
}

func (r *UsersRepo) Update(ctx context.Context, in user.User) (user.User, error) {
	var u user.User

	err := r.write(ctx, "users.update", func(ctx context.Context) (err error) {
		u, err = scanUser(r.pool.QueryRow(ctx, `
			UPDATE users
				SET name = $2,
					role = $3,
					is_verified = $4,
					phone_number = $5,
					country = $6,
					organization = $7,
					job_title = $8,
					updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			in.ID, in.Name, in.Role, in.IsVerified, in.PhoneNumber, in.Country, in.Organization, in.JobTitle,
		))
		return err
	})

	return u, err
}

func (r *UsersRepo) Delete(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.write(ctx, "users.delete", func(ctx context.Context) (err error) {
		u, err = scanUser(r.pool.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING `+userColumns, id))
		return err
	})

	return u, err
}
