package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"metroplan/internal/model"
)

// BuildReport re-derives scores and buckets for every vehicle in the fleet and
// synthesizes alerts and recommendations. It reads the allocation but never
// mutates it. The CRITICAL alert for expired certificates is informational:
// ranking does not veto on expired certificates, only on Critical job cards.
func BuildReport(s Snapshot, alloc model.Allocation, now time.Time) model.Report {
	rep := model.Report{
		GeneratedAt:     now.UTC().Format(time.RFC3339),
		Vehicles:        map[string]model.VehicleReport{},
		Alerts:          []string{},
		Recommendations: []string{},
	}

	for _, id := range s.VehicleIDs() {
		vs := Evaluate(s, id)
		bucket := alloc.BucketFor(id)

		issues := []string{}
		expiredDepts := []string{}
		for _, c := range s.VehicleCerts(id) {
			if c.Status == model.CertExpired {
				expiredDepts = append(expiredDepts, c.Department)
			}
		}
		if len(expiredDepts) > 0 {
			issues = append(issues, fmt.Sprintf("Expired certificates: %s", strings.Join(expiredDepts, ", ")))
		}
		if vs.CriticalJobs > 0 {
			issues = append(issues, fmt.Sprintf("Critical jobs: %d open", vs.CriticalJobs))
		}

		rep.Vehicles[id] = model.VehicleReport{
			Bucket:             bucket,
			Readiness:          round1(vs.Readiness),
			BrandingPriority:   round1(vs.Branding),
			MaintenanceUrgency: round1(vs.Urgency),
			Issues:             issues,
		}

		if bucket == model.BucketService && vs.Readiness < 50 {
			rep.Alerts = append(rep.Alerts, fmt.Sprintf("WARNING: %s inducted with low readiness score (%.1f)", id, vs.Readiness))
		}
		if len(expiredDepts) > 0 {
			rep.Alerts = append(rep.Alerts, fmt.Sprintf("CRITICAL: %s has expired certificates - cannot be inducted", id))
		}
	}

	if alloc.Summary.StandbyCount < 3 {
		rep.Recommendations = append(rep.Recommendations, "Consider maintaining more standby trains for operational flexibility")
	}
	if len(rep.Alerts) > 5 {
		rep.Recommendations = append(rep.Recommendations, "High number of alerts - review maintenance scheduling")
	}
	return rep
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
