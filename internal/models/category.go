package models

import (
	"fmt"
	"strings"
)

// Category is one of the independently cached data sections of a Location.
type Category string

const (
	CategoryZoning         Category = "zoning"
	CategoryHazard         Category = "hazards"
	CategoryGeotech        Category = "geotechnical"
	CategoryInfrastructure Category = "infrastructure"
	CategoryClimate        Category = "climate"
	CategoryLand           Category = "land"
)

// AllCategories lists every category in report order.
var AllCategories = []Category{
	CategoryZoning,
	CategoryHazard,
	CategoryGeotech,
	CategoryInfrastructure,
	CategoryClimate,
	CategoryLand,
}

// ParseCategory accepts the canonical name or a few common aliases.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zoning":
		return CategoryZoning, nil
	case "hazards", "hazard":
		return CategoryHazard, nil
	case "geotechnical", "geotech":
		return CategoryGeotech, nil
	case "infrastructure":
		return CategoryInfrastructure, nil
	case "climate":
		return CategoryClimate, nil
	case "land", "title":
		return CategoryLand, nil
	}
	return "", fmt.Errorf("models: unknown category %q", s)
}

// ParseCategories parses a list of category names, dropping duplicates.
func ParseCategories(names []string) ([]Category, error) {
	seen := make(map[Category]bool, len(names))
	out := make([]Category, 0, len(names))
	for _, n := range names {
		c, err := ParseCategory(n)
		if err != nil {
			return nil, err
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}
