package engine

import (
	"errors"
	"sort"

	"metroplan/internal/model"
)

// DefaultServiceTarget is used when an optimize request does not set one.
const DefaultServiceTarget = 18

// ErrNoEligibleVehicles is returned when a positive service target is
// requested but every vehicle is vetoed. Callers decide whether to surface
// this as a failure or to fall back to an all-standby plan.
var ErrNoEligibleVehicles = errors.New("no eligible vehicles for service")

// RunStats summarizes one planning run for the admin metrics views.
type RunStats struct {
	FleetSize        int     `json:"fleetSize"`
	EligibleCount    int     `json:"eligibleCount"`
	ServiceCount     int     `json:"serviceCount"`
	StandbyCount     int     `json:"standbyCount"`
	MaintenanceCount int     `json:"maintenanceCount"`
	Target           int     `json:"target"`
	TopScore         float64 `json:"topScore"`
	CutoffScore      float64 `json:"cutoffScore"`
}

// Rank evaluates every vehicle in canonical id order. The returned slice is
// fleet-ordered, not score-ordered; RankEligible applies the ordering.
func Rank(s Snapshot) []VehicleScore {
	ids := s.VehicleIDs()
	out := make([]VehicleScore, 0, len(ids))
	for _, id := range ids {
		out = append(out, Evaluate(s, id))
	}
	return out
}

// RankEligible filters to eligible vehicles and sorts descending by composite
// score. The sort is stable, so equal scores keep canonical id order and the
// same snapshot always produces the same ranking.
func RankEligible(scores []VehicleScore) []VehicleScore {
	eligible := make([]VehicleScore, 0, len(scores))
	for _, vs := range scores {
		if vs.Eligible {
			eligible = append(eligible, vs)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].Composite > eligible[j].Composite })
	return eligible
}

// Plan selects the top target eligible vehicles for service and partitions the
// remainder into standby and maintenance. Vehicles with any active job card or
// a due cleaning slot go to maintenance; everything else stands by. The
// caller stamps ID, PlanDate and CreatedAt on the returned allocation.
func Plan(s Snapshot, target int) (model.Allocation, RunStats, error) {
	scores := Rank(s)
	eligible := RankEligible(scores)

	stats := RunStats{FleetSize: len(scores), EligibleCount: len(eligible), Target: target}
	if len(eligible) == 0 && target > 0 {
		return model.Allocation{}, stats, ErrNoEligibleVehicles
	}

	n := target
	if n > len(eligible) {
		n = len(eligible)
	}
	service := make([]string, 0, n)
	inService := map[string]struct{}{}
	for i := 0; i < n; i++ {
		service = append(service, eligible[i].VehicleID)
		inService[eligible[i].VehicleID] = struct{}{}
	}
	if n > 0 {
		stats.TopScore = eligible[0].Composite
		stats.CutoffScore = eligible[n-1].Composite
	}

	standby := []string{}
	maintenance := []string{}
	for _, id := range s.VehicleIDs() {
		if _, ok := inService[id]; ok {
			continue
		}
		if needsMaintenance(s, id) {
			maintenance = append(maintenance, id)
		} else {
			standby = append(standby, id)
		}
	}

	alloc := model.Allocation{
		Target:      target,
		Service:     service,
		Standby:     standby,
		Maintenance: maintenance,
		Summary: model.AllocationSummary{
			ServiceCount:     len(service),
			StandbyCount:     len(standby),
			MaintenanceCount: len(maintenance),
		},
	}
	stats.ServiceCount = len(service)
	stats.StandbyCount = len(standby)
	stats.MaintenanceCount = len(maintenance)
	return alloc, stats, nil
}

func needsMaintenance(s Snapshot, id string) bool {
	for _, j := range s.VehicleJobs(id) {
		if j.Active() {
			return true
		}
	}
	if c, ok := s.VehicleCleaning(id); ok && c.Due {
		return true
	}
	return false
}
