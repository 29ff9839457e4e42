package service

import (
	"fmt"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
)

// CompleteThreshold is the completeness percentage at which a job without
// critical gaps is complete.
const CompleteThreshold = 80.0

// Key evidence field per category. A cached section without it is partial.
var evidenceFields = map[models.Category]string{
	models.CategoryZoning:         "zone_code",
	models.CategoryHazard:         "flood_zone",
	models.CategoryGeotech:        "boreholes",
	models.CategoryInfrastructure: "water_supply",
	models.CategoryClimate:        "wind_zone",
	models.CategoryLand:           "title_reference",
}

// coordinatesGap blocks completion of a degraded location.
var coordinatesGap = models.DataGap{
	Section:  "location",
	Field:    "coordinates",
	Reason:   "coordinates could not be resolved",
	Severity: models.SeverityCritical,
}

// AssessCompleteness classifies every category of loc as missing, partial or
// complete.
func AssessCompleteness(loc *models.Location) models.CompletenessReport {
	report := models.CompletenessReport{
		Sections: make(map[models.Category]models.DataSectionStatus, len(models.AllCategories)),
	}
	for _, c := range models.AllCategories {
		status := sectionStatus(loc, c)
		report.Sections[c] = models.DataSectionStatus{
			Status:        status,
			EvidenceField: evidenceFields[c],
			CachedAt:      loc.CachedAt(c),
		}
		switch status {
		case models.SectionComplete:
			report.CompleteCount++
		case models.SectionPartial:
			report.PartialCount++
		default:
			report.MissingCount++
		}
	}
	report.Percentage = float64(report.CompleteCount) / float64(len(models.AllCategories)) * 100
	return report
}

func sectionStatus(loc *models.Location, c models.Category) models.SectionStatus {
	if !loc.HasSection(c) {
		return models.SectionMissing
	}
	var evidence bool
	switch c {
	case models.CategoryZoning:
		evidence = loc.Zoning.ZoneCode != ""
	case models.CategoryHazard:
		evidence = loc.Hazards.FloodZone != ""
	case models.CategoryGeotech:
		evidence = len(loc.Geotech.Boreholes) > 0
	case models.CategoryInfrastructure:
		evidence = loc.Infrastructure.WaterSupply != nil
	case models.CategoryClimate:
		evidence = loc.Climate.WindZone != ""
	case models.CategoryLand:
		evidence = loc.Land.TitleReference != ""
	}
	if evidence {
		return models.SectionComplete
	}
	return models.SectionPartial
}

// BuildGaps lists the data gaps of loc for a job with the given purpose.
// outcomes may be nil; when present they supply the reason a category is missing.
func BuildGaps(loc *models.Location, report models.CompletenessReport, purpose models.Purpose, outcomes map[models.Category]CategoryOutcome) []models.DataGap {
	gaps := []models.DataGap{}
	if !loc.CoordinatesResolved {
		gaps = append(gaps, coordinatesGap)
	}

	for _, c := range models.AllCategories {
		section := report.Sections[c]
		switch section.Status {
		case models.SectionMissing:
			severity := models.SeverityWarning
			if purpose.Requires(c) {
				severity = models.SeverityCritical
			}
			gaps = append(gaps, models.DataGap{
				Section:  string(c),
				Field:    section.EvidenceField,
				Reason:   missingReason(outcomes, c),
				Severity: severity,
			})
		case models.SectionPartial:
			gaps = append(gaps, models.DataGap{
				Section:  string(c),
				Field:    section.EvidenceField,
				Reason:   fmt.Sprintf("%s not reported", section.EvidenceField),
				Severity: models.SeverityWarning,
			})
		}
	}

	if report.CompleteCount == 0 && report.PartialCount == 0 {
		gaps = append(gaps, models.DataGap{
			Section:  "location",
			Field:    "data",
			Reason:   "no data category could be resolved",
			Severity: models.SeverityCritical,
		})
	}
	return gaps
}

func missingReason(outcomes map[models.Category]CategoryOutcome, c models.Category) string {
	outcome, ok := outcomes[c]
	if !ok {
		return "not fetched"
	}
	switch outcome.Status {
	case OutcomeFailed:
		if outcome.ErrorCategory != "" {
			return fmt.Sprintf("provider failed (%s): %s", outcome.ErrorCategory, outcome.Error)
		}
		return "provider failed: " + outcome.Error
	case OutcomeNoProvider:
		return "no provider covers this location"
	case OutcomeNoData:
		return "provider returned no data"
	}
	return "not fetched"
}

// DeriveStatus computes the status a running job settles into after a refresh.
// Terminal and on-hold jobs keep their status.
func DeriveStatus(current models.Status, report models.CompletenessReport, gaps []models.DataGap) models.Status {
	if current.IsTerminal() || current == models.StatusOnHold {
		return current
	}
	switch {
	case models.HasCriticalGap(gaps):
		return models.StatusRequiresManualData
	case report.Percentage >= CompleteThreshold:
		return models.StatusComplete
	}
	return models.StatusInProgress
}
