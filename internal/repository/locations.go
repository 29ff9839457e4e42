package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/geo"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
)

const locationColumns = `
	id,
	formatted_address,
	title_reference,
	legal_description,
	latitude,
	longitude,
	coordinates_resolved,
	ST_AsEWKB(boundary),
	suburb,
	city,
	territorial_authority,
	regional_council,
	zoning, zoning_cached_at,
	hazards, hazards_cached_at,
	geotechnical, geotechnical_cached_at,
	infrastructure, infrastructure_cached_at,
	climate, climate_cached_at,
	land, land_cached_at,
	source,
	confidence_score,
	created_at,
	updated_at`

// LocationRepository persists Locations in PostgreSQL/PostGIS.
type LocationRepository struct {
	db DB
}

// NewLocationRepository creates a new PostgreSQL location repository
func NewLocationRepository(db DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// GetByID loads one location.
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*models.Location, error) {
	sql := `SELECT` + locationColumns + `
		FROM locations
		WHERE id = $1`

	loc, err := scanLocation(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to get location %s: %w", id, err)
	}
	return loc, nil
}

// FindByTitle returns every location carrying the exact title reference.
func (r *LocationRepository) FindByTitle(ctx context.Context, titleReference string) ([]models.Location, error) {
	sql := `SELECT` + locationColumns + `
		FROM locations
		WHERE title_reference = $1
		ORDER BY created_at, id`

	return r.queryLocations(ctx, sql, titleReference)
}

// FindInBounds returns resolved locations inside the box. The box is a coarse
// pre-filter; callers apply the precise distance check.
func (r *LocationRepository) FindInBounds(ctx context.Context, box geo.BoundingBox) ([]models.Location, error) {
	sql := `SELECT` + locationColumns + `
		FROM locations
		WHERE coordinates_resolved
			AND latitude BETWEEN $1 AND $2
			AND longitude BETWEEN $3 AND $4
		ORDER BY created_at, id`

	return r.queryLocations(ctx, sql, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
}

// Insert stores a new location.
func (r *LocationRepository) Insert(ctx context.Context, loc *models.Location) error {
	args, err := locationArgs(loc)
	if err != nil {
		return err
	}

	sql := `
		INSERT INTO locations (
			id, formatted_address, title_reference, legal_description,
			latitude, longitude, coordinates_resolved, boundary,
			suburb, city, territorial_authority, regional_council,
			zoning, zoning_cached_at, hazards, hazards_cached_at,
			geotechnical, geotechnical_cached_at, infrastructure, infrastructure_cached_at,
			climate, climate_cached_at, land, land_cached_at,
			source, confidence_score, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, ST_GeomFromEWKB($8),
			$9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19, $20,
			$21, $22, $23, $24,
			$25, $26, $27, $28
		)`

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("repository: failed to insert location %s: %w", loc.ID, err)
	}
	return nil
}

// Update overwrites a stored location. The id never changes.
func (r *LocationRepository) Update(ctx context.Context, loc *models.Location) error {
	args, err := locationArgs(loc)
	if err != nil {
		return err
	}

	sql := `
		UPDATE locations SET
			formatted_address = $2,
			title_reference = $3,
			legal_description = $4,
			latitude = $5,
			longitude = $6,
			coordinates_resolved = $7,
			boundary = ST_GeomFromEWKB($8),
			suburb = $9,
			city = $10,
			territorial_authority = $11,
			regional_council = $12,
			zoning = $13, zoning_cached_at = $14,
			hazards = $15, hazards_cached_at = $16,
			geotechnical = $17, geotechnical_cached_at = $18,
			infrastructure = $19, infrastructure_cached_at = $20,
			climate = $21, climate_cached_at = $22,
			land = $23, land_cached_at = $24,
			source = $25,
			confidence_score = $26,
			updated_at = $27
		WHERE id = $1`

	// created_at is immutable
	args = append(args[:26], args[27])
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("repository: failed to update location %s: %w", loc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *LocationRepository) queryLocations(ctx context.Context, sql string, args ...any) ([]models.Location, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to execute location query: %w", err)
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan location: %w", err)
		}
		locations = append(locations, *loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}
	return locations, nil
}

func scanLocation(row pgx.Row) (*models.Location, error) {
	var (
		loc      models.Location
		boundary []byte
		sections [6][]byte
	)
	err := row.Scan(
		&loc.ID,
		&loc.FormattedAddress,
		&loc.TitleReference,
		&loc.LegalDescription,
		&loc.Latitude,
		&loc.Longitude,
		&loc.CoordinatesResolved,
		&boundary,
		&loc.Suburb,
		&loc.City,
		&loc.TerritorialAuthority,
		&loc.RegionalCouncil,
		&sections[0], &loc.ZoningCachedAt,
		&sections[1], &loc.HazardsCachedAt,
		&sections[2], &loc.GeotechCachedAt,
		&sections[3], &loc.InfrastructureCachedAt,
		&sections[4], &loc.ClimateCachedAt,
		&sections[5], &loc.LandCachedAt,
		&loc.Source,
		&loc.ConfidenceScore,
		&loc.CreatedAt,
		&loc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if loc.Boundary, err = geo.DecodePolygon(boundary); err != nil {
		return nil, err
	}
	targets := []any{&loc.Zoning, &loc.Hazards, &loc.Geotech, &loc.Infrastructure, &loc.Climate, &loc.Land}
	for i, raw := range sections {
		if len(raw) == 0 {
			continue
		}
		if err := json.Unmarshal(raw, targets[i]); err != nil {
			return nil, fmt.Errorf("decode %s section: %w", models.AllCategories[i], err)
		}
	}
	return &loc, nil
}

func locationArgs(loc *models.Location) ([]any, error) {
	boundary, err := geo.EncodePolygon(loc.Boundary)
	if err != nil {
		return nil, fmt.Errorf("repository: location %s boundary: %w", loc.ID, err)
	}

	sections := make([][]byte, 0, 6)
	for _, payload := range []any{loc.Zoning, loc.Hazards, loc.Geotech, loc.Infrastructure, loc.Climate, loc.Land} {
		raw, err := marshalSection(payload)
		if err != nil {
			return nil, fmt.Errorf("repository: location %s: %w", loc.ID, err)
		}
		sections = append(sections, raw)
	}

	return []any{
		loc.ID,
		loc.FormattedAddress,
		loc.TitleReference,
		loc.LegalDescription,
		loc.Latitude,
		loc.Longitude,
		loc.CoordinatesResolved,
		boundary,
		loc.Suburb,
		loc.City,
		loc.TerritorialAuthority,
		loc.RegionalCouncil,
		sections[0], loc.ZoningCachedAt,
		sections[1], loc.HazardsCachedAt,
		sections[2], loc.GeotechCachedAt,
		sections[3], loc.InfrastructureCachedAt,
		sections[4], loc.ClimateCachedAt,
		sections[5], loc.LandCachedAt,
		loc.Source,
		loc.ConfidenceScore,
		loc.CreatedAt,
		loc.UpdatedAt,
	}, nil
}

// marshalSection returns nil for an absent section so the column stays NULL.
func marshalSection(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case *models.ZoningData:
		if p == nil {
			return nil, nil
		}
	case *models.HazardData:
		if p == nil {
			return nil, nil
		}
	case *models.GeotechData:
		if p == nil {
			return nil, nil
		}
	case *models.InfrastructureData:
		if p == nil {
			return nil, nil
		}
	case *models.ClimateData:
		if p == nil {
			return nil, nil
		}
	case *models.LandData:
		if p == nil {
			return nil, nil
		}
	}
	return json.Marshal(payload)
}
