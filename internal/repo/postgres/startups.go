package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/fintechindex/internal/domain/startup"
	"github.com/geocoder89/fintechindex/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const startupColumns = `id, name, country, sector, founded_year, description, website, added_by, added_at, is_verified, verification_status, verified_by, verified_at, admin_notes, updated_at`

type StartupsRepo struct {
	base
}

func NewStartupsRepo(pool *pgxpool.Pool, prom *observability.Prom, readTimeout time.Duration) *StartupsRepo {
	return &StartupsRepo{base: newBase(pool, prom, readTimeout)}
}

func scanStartup(row pgx.Row) (startup.Startup, error) {
	var s startup.Startup
	var sector string
	var status string

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Country,
		&sector,
		&s.FoundedYear,
		&s.Description,
		&s.Website,
		&s.AddedBy,
		&s.AddedAt,
		&s.IsVerified,
		&status,
		&s.VerifiedBy,
		&s.VerifiedAt,
		&s.AdminNotes,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return startup.Startup{}, startup.ErrNotFound
	}

	s.Sectors = startup.ParseSectors(sector)
	s.VerificationStatus = startup.Status(status)

	return s, err
}

func (r *StartupsRepo) query(ctx context.Context, op, sql string, args ...interface{}) ([]startup.Startup, error) {
	out := make([]startup.Startup, 0)

	err := r.read(ctx, op, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanStartup(rows)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})

	return out, err
}

func (r *StartupsRepo) List(ctx context.Context, f startup.ListFilter) ([]startup.Startup, error) {
	var conds []string
	var args []interface{}

	argsPosition := 1

	if f.Status != nil {
		conds = append(conds, fmt.Sprintf("verification_status = $%d", argsPosition))
		args = append(args, string(*f.Status))
		argsPosition++
	}

	if f.Country != nil {
		conds = append(conds, fmt.Sprintf("lower(country) = lower($%d)", argsPosition))
		args = append(args, strings.TrimSpace(*f.Country))
		argsPosition++
	}

	if f.Sector != nil && strings.TrimSpace(*f.Sector) != "" {
		conds = append(conds, fmt.Sprintf("sector ILIKE $%d", argsPosition))
		args = append(args, likePattern(*f.Sector))
		argsPosition++
	}

	if f.Search != nil && strings.TrimSpace(*f.Search) != "" {
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argsPosition, argsPosition))
		args = append(args, likePattern(*f.Search))
		argsPosition++
	}

	query := `SELECT ` + startupColumns + ` FROM startups`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY added_at DESC, id ASC LIMIT $%d", argsPosition)
	args = append(args, startup.ClampLimit(f.Limit))

	return r.query(ctx, "startups.list", query, args...)
}

func (r *StartupsRepo) ListPending(ctx context.Context) ([]startup.Startup, error) {
	return r.query(ctx, "startups.list_pending",
		`SELECT `+startupColumns+` FROM startups WHERE verification_status = $1 ORDER BY added_at ASC, id ASC`,
		string(startup.StatusPending))
}

func (r *StartupsRepo) Get(ctx context.Context, id string) (startup.Startup, error) {
	var s startup.Startup

	err := r.read(ctx, "startups.get", func(ctx context.Context) (err error) {
		s, err = scanStartup(r.pool.QueryRow(ctx, `SELECT `+startupColumns+` FROM startups WHERE id = $1`, id))
		return err
	})

	return s, err
}

const insertStartup = `
	INSERT INTO startups (` + startupColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

func startupArgs(s startup.Startup) []interface{} {
	return []interface{}{
		s.ID, s.Name, s.Country, s.Sectors.String(), s.FoundedYear, s.Description, s.Website,
		s.AddedBy, s.AddedAt, s.IsVerified, string(s.VerificationStatus), s.VerifiedBy, s.VerifiedAt,
		s.AdminNotes, s.UpdatedAt,
	}
}

func (r *StartupsRepo) Create(ctx context.Context, s startup.Startup) (startup.Startup, error) {
	err := r.write(ctx, "startups.create", func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx, insertStartup, startupArgs(s)...)
		return err
	})
	if err != nil {
		return startup.Startup{}, err
	}
	return s, nil
}

// CreateMany inserts all rows in one transaction.
func (r *StartupsRepo) CreateMany(ctx context.Context, items []startup.Startup) ([]startup.Startup, error) {
	err := r.write(ctx, "startups.create_many", func(ctx context.Context) error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		batch := &pgx.Batch{}
		for _, s := range items {
			batch.Queue(insertStartup, startupArgs(s)...)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *StartupsRepo) Update(ctx context.Context, in startup.Startup) (startup.Startup, error) {
	var s startup.Startup

	err := r.write(ctx, "startups.update", func(ctx context.Context) (err error) {
		s, err = scanStartup(r.pool.QueryRow(ctx, `
			UPDATE startups
				SET name = $2,
					country = $3,
					sector = $4,
					founded_year = $5,
					description = $6,
					website = $7,
					updated_at = NOW()
			WHERE id = $1
			RETURNING `+startupColumns,
			in.ID, in.Name, in.Country, in.Sectors.String(), in.FoundedYear, in.Description, in.Website,
		))
		return err
	})

	return s, err
}

func (r *StartupsRepo) SetVerification(ctx context.Context, id string, v startup.Verification) (startup.Startup, error) {
	var s startup.Startup

	err := r.write(ctx, "startups.set_verification", func(ctx context.Context) (err error) {
		s, err = scanStartup(r.pool.QueryRow(ctx, `
			UPDATE startups
				SET verification_status = $2,
					is_verified = $3,
					verified_by = $4,
					verified_at = $5,
					admin_notes = $6,
					updated_at = NOW()
			WHERE id = $1
			RETURNING `+startupColumns,
			id, string(v.Status), v.IsVerified(), v.By, v.At, v.Notes,
		))
		return err
	})

	return s, err
}

func (r *StartupsRepo) SetVerificationMany(ctx context.Context, ids []string, v startup.Verification) (int64, error) {
	var n int64

	err := r.write(ctx, "startups.set_verification_many", func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE startups
				SET verification_status = $2,
					is_verified = $3,
					verified_by = $4,
					verified_at = $5,
					admin_notes = $6,
					updated_at = NOW()
			WHERE id = ANY($1)`,
			ids, string(v.Status), v.IsVerified(), v.By, v.At, v.Notes,
		)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})

	return n, err
}

func (r *StartupsRepo) Delete(ctx context.Context, id string) (startup.Startup, error) {
	var s startup.Startup

	err := r.write(ctx, "startups.delete", func(ctx context.Context) (err error) {
		s, err = scanStartup(r.pool.QueryRow(ctx, `DELETE FROM startups WHERE id = $1 RETURNING `+startupColumns, id))
		return err
	})

	return s, err
}

func (r *StartupsRepo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	var n int64

	err := r.write(ctx, "startups.delete_many", func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM startups WHERE id = ANY($1)`, ids)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})

	return n, err
}
