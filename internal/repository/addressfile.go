package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
)

// addressFields maps each AddressPoint attribute to the column names accepted in
// CSV headers and shapefile DBF tables (DBF names are limited to 10 characters).
var addressFields = map[string][]string{
	"full_address":          {"full_address", "full_addr", "address"},
	"suburb":                {"suburb", "suburb_loc"},
	"city":                  {"city", "town_city"},
	"territorial_authority": {"territorial_authority", "ta_name"},
	"regional_council":      {"regional_council", "rc_name"},
	"postcode":              {"postcode"},
	"title_reference":       {"title_reference", "title_ref", "title_no"},
	"legal_description":     {"legal_description", "legal_desc"},
	"accuracy":              {"accuracy"},
	"lat":                   {"lat", "latitude", "shape_y"},
	"lon":                   {"lon", "lng", "longitude", "shape_x"},
}

// columnIndex resolves addressFields against a header row.
func columnIndex(header []string) map[string]int {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[strings.ToLower(strings.TrimSpace(strings.TrimRight(h, "\x00")))] = i
	}
	idx := make(map[string]int, len(addressFields))
	for field, names := range addressFields {
		for _, name := range names {
			if i, ok := positions[name]; ok {
				idx[field] = i
				break
			}
		}
	}
	return idx
}

func buildAddressPoint(get func(field string) string) models.AddressPoint {
	accuracy := strings.ToLower(get("accuracy"))
	if accuracy == "" {
		accuracy = models.AccuracyRegistry
	}
	return models.AddressPoint{
		FullAddress:          get("full_address"),
		Suburb:               get("suburb"),
		City:                 get("city"),
		TerritorialAuthority: get("territorial_authority"),
		RegionalCouncil:      get("regional_council"),
		Postcode:             get("postcode"),
		TitleReference:       get("title_reference"),
		LegalDescription:     get("legal_description"),
		Accuracy:             accuracy,
	}
}

// ReadAddressCSV parses an address register export with a header row. Rows
// without an address or with unparsable coordinates are skipped; the count of
// skipped rows is returned alongside the points.
func ReadAddressCSV(r io.Reader) ([]models.AddressPoint, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("repository: read csv header: %w", err)
	}
	idx := columnIndex(header)
	for _, required := range []string{"full_address", "lat", "lon"} {
		if _, ok := idx[required]; !ok {
			return nil, 0, fmt.Errorf("repository: csv header lacks %s column", required)
		}
	}

	var (
		points  []models.AddressPoint
		skipped int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("repository: read csv: %w", err)
		}

		get := func(field string) string {
			i, ok := idx[field]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		point := buildAddressPoint(get)
		lat, latErr := strconv.ParseFloat(get("lat"), 64)
		lon, lonErr := strconv.ParseFloat(get("lon"), 64)
		if point.FullAddress == "" || latErr != nil || lonErr != nil {
			skipped++
			continue
		}
		point.Latitude, point.Longitude = lat, lon
		points = append(points, point)
	}
	return points, skipped, nil
}

// ReadAddressShapefile parses a point shapefile of the address register. The
// geometry supplies the coordinates; attributes come from the DBF table.
func ReadAddressShapefile(path string) ([]models.AddressPoint, int, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: open shapefile %s: %w", path, err)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.String()
	}
	idx := columnIndex(header)
	if _, ok := idx["full_address"]; !ok {
		return nil, 0, fmt.Errorf("repository: shapefile %s lacks an address field", path)
	}

	var (
		points  []models.AddressPoint
		skipped int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}

		get := func(field string) string {
			i, ok := idx[field]
			if !ok {
				return ""
			}
			return strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}
		point := buildAddressPoint(get)
		if point.FullAddress == "" {
			skipped++
			continue
		}
		point.Latitude, point.Longitude = pt.Y, pt.X
		points = append(points, point)
	}
	if err := reader.Err(); err != nil {
		return nil, skipped, fmt.Errorf("repository: read shapefile %s: %w", path, err)
	}
	return points, skipped, nil
}

// ReadAddressFile reads a CSV or shapefile export, chosen by extension.
func ReadAddressFile(path string) ([]models.AddressPoint, int, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return ReadAddressShapefile(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return ReadAddressCSV(f)
}
