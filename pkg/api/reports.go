package api

import (
	"github.com/zkb-tools/zkbinfo/pkg/store"
)

// SideReport aggregates one side of a subject's combat record.
type SideReport struct {
	TotalCount   uint64           `json:"total_count"`
	TotalDamage  int64            `json:"total_damage"`
	Ships        map[int64]uint64 `json:"ships"`
	SolarSystems map[int64]uint64 `json:"solar_systems"`
}

func newSideReport() SideReport {
	return SideReport{
		Ships:        make(map[int64]uint64),
		SolarSystems: make(map[int64]uint64),
	}
}

// ActivityReport is the caller-facing win/loss summary derived from
// history rows: wins are rows where the subject attacked, losses rows
// where it was the victim.
type ActivityReport struct {
	ID     int64      `json:"id"`
	Wins   SideReport `json:"wins"`
	Losses SideReport `json:"losses"`
}

// BuildActivityReport folds unordered history rows into the report.
func BuildActivityReport(id int64, rows []store.ParticipationRow) ActivityReport {
	report := ActivityReport{
		ID:     id,
		Wins:   newSideReport(),
		Losses: newSideReport(),
	}
	for _, row := range rows {
		side := &report.Wins
		if row.IsVictim {
			side = &report.Losses
		}
		side.TotalCount++
		side.TotalDamage += row.Damage
		side.SolarSystems[row.SolarSystemID]++
		if row.ShipTypeID != nil {
			side.Ships[*row.ShipTypeID]++
		}
	}
	return report
}

// DensifyHours expands non-zero histogram buckets into a dense 24-hour
// map with explicit zeros. Every consumer of the hourly activity query
// goes through this helper so the histogram shape is uniform.
func DensifyHours(buckets []store.HourCount) map[int]uint64 {
	out := make(map[int]uint64, 24)
	for hour := 0; hour < 24; hour++ {
		out[hour] = 0
	}
	for _, b := range buckets {
		if b.Hour >= 0 && b.Hour < 24 {
			out[b.Hour] = b.Count
		}
	}
	return out
}

// RelationsMap converts the tally rows into the id->count mapping the
// API serves.
func RelationsMap(rels []store.RelationCount) map[int64]uint64 {
	out := make(map[int64]uint64, len(rels))
	for _, rc := range rels {
		out[rc.ID] = rc.Count
	}
	return out
}
