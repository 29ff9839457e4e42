package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
)

// nearestAddressMaxM bounds reverse geocoding.
const nearestAddressMaxM = 10000

const addressColumns = `
	id,
	full_address,
	suburb,
	city,
	territorial_authority,
	regional_council,
	postcode,
	title_reference,
	legal_description,
	accuracy,
	latitude,
	longitude`

// AddressIndex searches the address_points table.
type AddressIndex struct {
	db DB
}

// NewAddressIndex creates a new PostgreSQL address index
func NewAddressIndex(db DB) *AddressIndex {
	return &AddressIndex{db: db}
}

// SearchAddresses performs a full-text search on the address_points table
func (r *AddressIndex) SearchAddresses(ctx context.Context, query string, limit int) ([]models.AddressPoint, error) {
	sql := `
		SELECT` + addressColumns + `
		FROM address_points
		WHERE full_address_tsvector @@ plainto_tsquery('simple', $1)
		ORDER BY ts_rank(full_address_tsvector, plainto_tsquery('simple', $1)) DESC, id
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, sql, query, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to execute search query: %w", err)
	}
	defer rows.Close()

	var points []models.AddressPoint
	for rows.Next() {
		p, err := scanAddressPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan address point: %w", err)
		}
		points = append(points, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}

	return points, nil
}

// FindNearestAddress performs a spatial query to find the nearest address point to the given coordinates
func (r *AddressIndex) FindNearestAddress(ctx context.Context, lat, lon float64) (*models.AddressPoint, error) {
	sql := `
		SELECT` + addressColumns + `
		FROM address_points
		WHERE ST_DWithin(geom, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography, $3)
		ORDER BY geom <-> ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography
		LIMIT 1
	`

	p, err := scanAddressPoint(r.db.QueryRow(ctx, sql, lat, lon, nearestAddressMaxM))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to execute spatial query: %w", err)
	}
	return p, nil
}

// FindAddressByTitle returns the address point registered against a title.
func (r *AddressIndex) FindAddressByTitle(ctx context.Context, titleReference string) (*models.AddressPoint, error) {
	sql := `
		SELECT` + addressColumns + `
		FROM address_points
		WHERE title_reference = $1
		ORDER BY id
		LIMIT 1
	`

	p, err := scanAddressPoint(r.db.QueryRow(ctx, sql, titleReference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to execute title query: %w", err)
	}
	return p, nil
}

func scanAddressPoint(row pgx.Row) (*models.AddressPoint, error) {
	var p models.AddressPoint
	err := row.Scan(
		&p.ID,
		&p.FullAddress,
		&p.Suburb,
		&p.City,
		&p.TerritorialAuthority,
		&p.RegionalCouncil,
		&p.Postcode,
		&p.TitleReference,
		&p.LegalDescription,
		&p.Accuracy,
		&p.Latitude,
		&p.Longitude,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertAddressPoints bulk loads points with COPY and returns the row count.
func (r *AddressIndex) InsertAddressPoints(ctx context.Context, points []models.AddressPoint) (int64, error) {
	n, err := r.db.CopyFrom(
		ctx,
		pgx.Identifier{"address_points"},
		[]string{
			"full_address", "suburb", "city", "territorial_authority", "regional_council",
			"postcode", "title_reference", "legal_description", "accuracy", "latitude", "longitude",
		},
		pgx.CopyFromSlice(len(points), func(i int) ([]any, error) {
			p := points[i]
			return []any{
				p.FullAddress, p.Suburb, p.City, p.TerritorialAuthority, p.RegionalCouncil,
				p.Postcode, p.TitleReference, p.LegalDescription, p.Accuracy, p.Latitude, p.Longitude,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to copy address points: %w", err)
	}
	return n, nil
}

// CountAddressPoints returns the number of indexed points.
func (r *AddressIndex) CountAddressPoints(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM address_points").Scan(&n); err != nil {
		return 0, fmt.Errorf("repository: failed to count address points: %w", err)
	}
	return n, nil
}
