package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/fintechindex/internal/domain/country"
	"github.com/geocoder89/fintechindex/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const countryColumns = `country_id, name, year, final_score, literacy_rate, digital_infrastructure, investment, population, gdp, created_by, updated_by, created_at, updated_at`

type CountryMetricsRepo struct {
	base
}

func NewCountryMetricsRepo(pool *pgxpool.Pool, prom *observability.Prom, readTimeout time.Duration) *CountryMetricsRepo {
	return &CountryMetricsRepo{base: newBase(pool, prom, readTimeout)}
}

func scanRecord(row pgx.Row) (country.Record, error) {
	var rec country.Record
	err := row.Scan(
		&rec.CountryID,
		&rec.Name,
		&rec.Year,
		&rec.FinalScore,
		&rec.LiteracyRate,
		&rec.DigitalInfrastructure,
		&rec.Investment,
		&rec.Population,
		&rec.GDP,
		&rec.CreatedBy,
		&rec.UpdatedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return country.Record{}, country.ErrNotFound
	}
	return rec, err
}

func orderBy(s country.SortOrder) string {
	switch s {
	case country.SortScore:
		return "final_score DESC, year DESC"
	case country.SortName:
		return "lower(name) ASC, year DESC"
	default:
		return "year DESC, lower(name) ASC"
	}
}

func (r *CountryMetricsRepo) List(ctx context.Context, f country.ListFilter) ([]country.Record, error) {
	var conds []string
	var args []interface{}

	argsPosition := 1

	if f.Year != nil {
		conds = append(conds, fmt.Sprintf("year = $%d", argsPosition))
		args = append(args, *f.Year)
		argsPosition++
	}

	if f.CountryID != nil {
		conds = append(conds, fmt.Sprintf("country_id = $%d", argsPosition))
		args = append(args, country.NormalizeID(*f.CountryID))
		argsPosition++
	}

	if f.Search != nil && strings.TrimSpace(*f.Search) != "" {
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR country_id ILIKE $%d)", argsPosition, argsPosition))
		args = append(args, likePattern(*f.Search))
		argsPosition++
	}

	query := `SELECT ` + countryColumns + ` FROM country_metrics`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s LIMIT $%d", orderBy(f.Sort), argsPosition)
	args = append(args, country.ClampLimit(f.Limit))

	out := make([]country.Record, 0)

	err := r.read(ctx, "country_metrics.list", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})

	return out, err
}

func (r *CountryMetricsRepo) Get(ctx context.Context, countryID string, year int) (country.Record, error) {
	var rec country.Record

	err := r.read(ctx, "country_metrics.get", func(ctx context.Context) (err error) {
		rec, err = scanRecord(r.pool.QueryRow(ctx,
			`SELECT `+countryColumns+` FROM country_metrics WHERE country_id = $1 AND year = $2`,
			country.NormalizeID(countryID), year))
		return err
	})

	return rec, err
}

func (r *CountryMetricsRepo) Stats(ctx context.Context) (country.Stats, error) {
	st := country.Stats{Years: []int{}}

	err := r.read(ctx, "country_metrics.stats", func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, `
			SELECT COUNT(*),
				COUNT(DISTINCT country_id),
				COALESCE(MIN(final_score), 0),
				COALESCE(AVG(final_score), 0),
				COALESCE(MAX(final_score), 0)
			FROM country_metrics`).Scan(&st.Count, &st.Countries, &st.MinScore, &st.AvgScore, &st.MaxScore)
	})
	if err != nil {
		return country.Stats{}, err
	}

	st.AvgScore = country.Round2(st.AvgScore)

	years, err := r.DistinctYears(ctx)
	if err != nil {
		return country.Stats{}, err
	}
	st.Years = years

	return st, nil
}

func (r *CountryMetricsRepo) DistinctYears(ctx context.Context) ([]int, error) {
	years := make([]int, 0)

	err := r.read(ctx, "country_metrics.distinct_years", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, `SELECT DISTINCT year FROM country_metrics ORDER BY year DESC`)
		if err != nil {
			return err
		}
		years, err = pgx.CollectRows(rows, pgx.RowTo[int])
		return err
	})

	return years, err
}

func (r *CountryMetricsRepo) DistinctCountries(ctx context.Context) ([]country.CountryName, error) {
	out := make([]country.CountryName, 0)

	err := r.read(ctx, "country_metrics.distinct_countries", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, `
			SELECT country_id, name FROM (
				SELECT DISTINCT ON (country_id) country_id, name
				FROM country_metrics
				ORDER BY country_id, year DESC
			) latest
			ORDER BY name ASC, country_id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c country.CountryName
			if err := rows.Scan(&c.CountryID, &c.Name); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})

	return out, err
}

func (r *CountryMetricsRepo) Create(ctx context.Context, rec country.Record) (country.Record, error) {
	err := r.write(ctx, "country_metrics.create", func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO country_metrics (`+countryColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			recordArgs(rec)...,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return country.Record{}, country.ErrDuplicate
		}
		return country.Record{}, err
	}

	return rec, nil
}

func (r *CountryMetricsRepo) Update(ctx context.Context, in country.Record) (country.Record, error) {
	var rec country.Record

	err := r.write(ctx, "country_metrics.update", func(ctx context.Context) (err error) {
		rec, err = scanRecord(r.pool.QueryRow(ctx, `
			UPDATE country_metrics
				SET name = $3,
					final_score = $4,
					literacy_rate = $5,
					digital_infrastructure = $6,
					investment = $7,
					population = $8,
					gdp = $9,
					updated_by = $10,
					updated_at = NOW()
			WHERE country_id = $1 AND year = $2
			RETURNING `+countryColumns,
			in.CountryID, in.Year, in.Name, in.FinalScore, in.LiteracyRate, in.DigitalInfrastructure,
			in.Investment, in.Population, in.GDP, in.UpdatedBy,
		))
		return err
	})

	return rec, err
}

func (r *CountryMetricsRepo) Delete(ctx context.Context, countryID string, year int) error {
	n, err := r.exec(ctx, "country_metrics.delete",
		`DELETE FROM country_metrics WHERE country_id = $1 AND year = $2`, country.NormalizeID(countryID), year)
	if err != nil {
		return err
	}
	if n == 0 {
		return country.ErrNotFound
	}
	return nil
}

func (r *CountryMetricsRepo) DeleteByYear(ctx context.Context, year int) (int64, error) {
	return r.exec(ctx, "country_metrics.delete_by_year", `DELETE FROM country_metrics WHERE year = $1`, year)
}

// DeleteByCountryName removes every record whose name contains name,
// ignoring case. A blank name matches nothing.
func (r *CountryMetricsRepo) DeleteByCountryName(ctx context.Context, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, nil
	}

	return r.exec(ctx, "country_metrics.delete_by_country",
		`DELETE FROM country_metrics WHERE name ILIKE $1`, likePattern(name))
}

func (r *CountryMetricsRepo) DeleteByIDs(ctx context.Context, ids []string, year *int) (int64, error) {
	norm := make([]string, 0, len(ids))
	for _, id := range ids {
		norm = append(norm, country.NormalizeID(id))
	}

	if year != nil {
		return r.exec(ctx, "country_metrics.delete_selective",
			`DELETE FROM country_metrics WHERE country_id = ANY($1) AND year = $2`, norm, *year)
	}
	return r.exec(ctx, "country_metrics.delete_selective",
		`DELETE FROM country_metrics WHERE country_id = ANY($1)`, norm)
}

func (r *CountryMetricsRepo) DeleteAll(ctx context.Context) (int64, error) {
	return r.exec(ctx, "country_metrics.delete_all", `DELETE FROM country_metrics`)
}

func (r *CountryMetricsRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.read(ctx, "country_metrics.count", func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM country_metrics`).Scan(&n)
	})
	return n, err
}

// ExistingKeys returns the subset of keys already stored, in one round trip.
func (r *CountryMetricsRepo) ExistingKeys(ctx context.Context, keys []country.Key) ([]country.Key, error) {
	out := make([]country.Key, 0)
	if len(keys) == 0 {
		return out, nil
	}

	ids := make([]string, len(keys))
	years := make([]int32, len(keys))
	for i, k := range keys {
		ids[i] = k.CountryID
		years[i] = int32(k.Year)
	}

	err := r.read(ctx, "country_metrics.existing_keys", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, `
			SELECT m.country_id, m.year
			FROM country_metrics m
			JOIN unnest($1::text[], $2::int[]) AS k(country_id, year)
				ON m.country_id = k.country_id AND m.year = k.year`, ids, years)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var k country.Key
			if err := rows.Scan(&k.CountryID, &k.Year); err != nil {
				return err
			}
			out = append(out, k)
		}
		return rows.Err()
	})

	return out, err
}

// InsertMany sends the batch in one pipeline. Keys that already exist are
// skipped by ON CONFLICT DO NOTHING and not counted.
func (r *CountryMetricsRepo) InsertMany(ctx context.Context, recs []country.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(`
			INSERT INTO country_metrics (`+countryColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (country_id, year) DO NOTHING`, recordArgs(rec)...)
	}

	var inserted int64

	err := r.write(ctx, "country_metrics.insert_many", func(ctx context.Context) error {
		br := r.pool.SendBatch(ctx, batch)
		defer br.Close()

		for range recs {
			tag, err := br.Exec()
			if err != nil {
				return err
			}
			inserted += tag.RowsAffected()
		}
		return nil
	})

	return inserted, err
}

func (r *CountryMetricsRepo) exec(ctx context.Context, op, sql string, args ...interface{}) (int64, error) {
	var n int64
	err := r.write(ctx, op, func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}

func recordArgs(rec country.Record) []interface{} {
	return []interface{}{
		rec.CountryID, rec.Name, rec.Year, rec.FinalScore, rec.LiteracyRate, rec.DigitalInfrastructure,
		rec.Investment, rec.Population, rec.GDP, rec.CreatedBy, rec.UpdatedBy, rec.CreatedAt, rec.UpdatedAt,
	}
}
