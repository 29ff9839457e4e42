package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("repository: not found")

// DB is the subset of pgxpool.Pool the stores use. *pgx.Conn and pgxmock pools
// satisfy it too.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Schema creates every table the Postgres stores need. It is idempotent.
const Schema = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS address_points (
	id                    BIGSERIAL PRIMARY KEY,
	full_address          TEXT NOT NULL,
	suburb                TEXT NOT NULL DEFAULT '',
	city                  TEXT NOT NULL DEFAULT '',
	territorial_authority TEXT NOT NULL DEFAULT '',
	regional_council      TEXT NOT NULL DEFAULT '',
	postcode              TEXT NOT NULL DEFAULT '',
	title_reference       TEXT NOT NULL DEFAULT '',
	legal_description     TEXT NOT NULL DEFAULT '',
	accuracy              TEXT NOT NULL DEFAULT 'registry',
	latitude              DOUBLE PRECISION NOT NULL,
	longitude             DOUBLE PRECISION NOT NULL,
	full_address_tsvector TSVECTOR GENERATED ALWAYS AS (
		to_tsvector('simple', full_address || ' ' || suburb || ' ' || city)
	) STORED,
	geom                  GEOGRAPHY(POINT, 4326) GENERATED ALWAYS AS (
		ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)::geography
	) STORED
);

CREATE INDEX IF NOT EXISTS address_points_geom_idx ON address_points USING GIST (geom);
CREATE INDEX IF NOT EXISTS address_points_tsvector_idx ON address_points USING GIN (full_address_tsvector);
CREATE INDEX IF NOT EXISTS address_points_title_idx ON address_points (title_reference) WHERE title_reference <> '';

CREATE TABLE IF NOT EXISTS locations (
	id                       TEXT PRIMARY KEY,
	formatted_address        TEXT NOT NULL DEFAULT '',
	title_reference          TEXT NOT NULL DEFAULT '',
	legal_description        TEXT NOT NULL DEFAULT '',
	latitude                 DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude                DOUBLE PRECISION NOT NULL DEFAULT 0,
	coordinates_resolved     BOOLEAN NOT NULL DEFAULT FALSE,
	geom                     GEOGRAPHY(POINT, 4326) GENERATED ALWAYS AS (
		CASE WHEN coordinates_resolved
			THEN ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)::geography
		END
	) STORED,
	boundary                 GEOMETRY(POLYGON, 4326),
	suburb                   TEXT NOT NULL DEFAULT '',
	city                     TEXT NOT NULL DEFAULT '',
	territorial_authority    TEXT NOT NULL DEFAULT '',
	regional_council         TEXT NOT NULL DEFAULT '',
	zoning                   JSONB,
	zoning_cached_at         TIMESTAMPTZ,
	hazards                  JSONB,
	hazards_cached_at        TIMESTAMPTZ,
	geotechnical             JSONB,
	geotechnical_cached_at   TIMESTAMPTZ,
	infrastructure           JSONB,
	infrastructure_cached_at TIMESTAMPTZ,
	climate                  JSONB,
	climate_cached_at        TIMESTAMPTZ,
	land                     JSONB,
	land_cached_at           TIMESTAMPTZ,
	source                   TEXT NOT NULL DEFAULT '',
	confidence_score         INTEGER NOT NULL DEFAULT 0,
	created_at               TIMESTAMPTZ NOT NULL,
	updated_at               TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS locations_geom_idx ON locations USING GIST (geom);
CREATE INDEX IF NOT EXISTS locations_title_idx ON locations (title_reference) WHERE title_reference <> '';

CREATE TABLE IF NOT EXISTS evaluation_jobs (
	id               TEXT PRIMARY KEY,
	location_id      TEXT NOT NULL REFERENCES locations (id),
	requester        TEXT NOT NULL DEFAULT '',
	customer         TEXT NOT NULL DEFAULT '',
	purpose          TEXT NOT NULL,
	status           TEXT NOT NULL,
	sections         JSONB NOT NULL DEFAULT '{}'::jsonb,
	completeness_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
	gaps             JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	completed_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS evaluation_jobs_location_idx ON evaluation_jobs (location_id);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("repository: migrate: %w", err)
	}
	return nil
}
