package authstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlfredDev/ratelimit-gateway/internal/rule"
)

// Postgres is the pgx-backed authoritative rule store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and verifies connectivity with a ping;
// it does not check that the rules table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to authoritative store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping authoritative store: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

const selectColumns = `id, route, algorithm, "limit", expiration, tracking_type,
	custom_tracking_key, status, ttl, date_creation, date_modification`

func (p *Postgres) FetchModifiedSince(ctx context.Context, since time.Time) ([]rule.Rule, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM rules
		WHERE date_modification >= $1
		ORDER BY date_modification ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query modified rules: %w", err)
	}
	defer rows.Close()

	var out []rule.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) FetchByRoute(ctx context.Context, route string) (*rule.Rule, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM rules
		WHERE route = $1
	`, route)

	r, err := scanRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query rule by route: %w", err)
	}
	return &r, nil
}

func (p *Postgres) Upsert(ctx context.Context, r rule.Rule) (uuid.UUID, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := r.DateModification

	_, err := p.pool.Exec(ctx, `
		INSERT INTO rules (id, route, algorithm, "limit", expiration, tracking_type,
			custom_tracking_key, status, ttl, date_creation, date_modification)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (route) DO UPDATE SET
			algorithm = EXCLUDED.algorithm,
			"limit" = EXCLUDED."limit",
			expiration = EXCLUDED.expiration,
			tracking_type = EXCLUDED.tracking_type,
			custom_tracking_key = EXCLUDED.custom_tracking_key,
			status = EXCLUDED.status,
			ttl = EXCLUDED.ttl,
			date_modification = EXCLUDED.date_modification
	`, r.ID, r.Route, r.Algorithm, r.Limit, r.Expiration, r.TrackingType,
		r.CustomTrackingKey, r.Status, r.TTL, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert rule %s: %w", r.Route, err)
	}

	existing, err := p.FetchByRoute(ctx, r.Route)
	if err != nil {
		return uuid.Nil, err
	}
	return existing.ID, nil
}

// rowScanner abstracts pgx.Rows and pgx.Row, which share Scan's
// signature but not an interface in pgx/v5.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (rule.Rule, error) {
	var r rule.Rule
	err := row.Scan(&r.ID, &r.Route, &r.Algorithm, &r.Limit, &r.Expiration, &r.TrackingType,
		&r.CustomTrackingKey, &r.Status, &r.TTL, &r.DateCreation, &r.DateModification)
	return r, err
}
