package engine

import (
	"metroplan/internal/model"
)

// Snapshot is the read-only view of the fleet a planning run works against.
// *model.Fleet satisfies it; tests may substitute smaller fixtures.
type Snapshot interface {
	VehicleIDs() []string
	VehicleCerts(id string) []model.Certificate
	VehicleJobs(id string) []model.JobCard
	VehicleBranding(id string) (model.BrandingContract, bool)
	VehicleMileage(id string) (model.MileageRecord, bool)
	VehicleCleaning(id string) (model.CleaningRecord, bool)
	VehicleStabling(id string) (model.StablingRecord, bool)
}

// Composite score weights and penalties.
const (
	weightReadiness = 0.5
	weightBranding  = 0.3
	weightUrgency   = 0.2

	expiredCertPenalty = 25.0
)

// VehicleScore carries the per-vehicle scoring breakdown for one run.
type VehicleScore struct {
	VehicleID    string  `json:"vehicleId"`
	Readiness    float64 `json:"readiness"`
	Branding     float64 `json:"branding"`
	Urgency      float64 `json:"urgency"`
	Composite    float64 `json:"composite"`
	ExpiredCerts int     `json:"expiredCerts"`
	CriticalJobs int     `json:"criticalJobs"`
	Eligible     bool    `json:"eligible"`
}

// ReadinessScore starts at 100 and subtracts certificate, job card and wear
// penalties. The result is floored at 0 and has no upper bound beyond 100.
func ReadinessScore(s Snapshot, id string) float64 {
	score := 100.0
	for _, c := range s.VehicleCerts(id) {
		switch c.Status {
		case model.CertExpired:
			score -= 30
		case model.CertExpiringSoon:
			score -= 10
		}
	}
	for _, j := range s.VehicleJobs(id) {
		if !j.Active() {
			continue
		}
		switch j.Priority {
		case model.JobCritical:
			score -= 25
		case model.JobHigh:
			score -= 15
		case model.JobMedium:
			score -= 8
		default:
			score -= 3
		}
	}
	if m, ok := s.VehicleMileage(id); ok {
		avgWear := (m.BogieWearPct + m.BrakeWearPct + m.HVACWearPct) / 3
		score -= avgWear * 0.2
	}
	if score < 0 {
		return 0
	}
	return score
}

// BrandingPriority pushes vehicles that are behind on contractual exposure
// toward service. Vehicles without a contract score 0.
func BrandingPriority(s Snapshot, id string) float64 {
	b, ok := s.VehicleBranding(id)
	if !ok {
		return 0
	}
	switch b.Status {
	case model.BrandBelowTarget:
		return 50
	case model.BrandMeetingTarget:
		return 25
	default:
		return 10
	}
}

// MaintenanceUrgency is additive from 0: cleaning due and under-utilized
// mileage each contribute. Under-utilization is a service-push signal even
// though it lives in this score; see the planner docs before splitting it.
func MaintenanceUrgency(s Snapshot, id string) float64 {
	urgency := 0.0
	if c, ok := s.VehicleCleaning(id); ok && c.Due {
		urgency += 20
	}
	if m, ok := s.VehicleMileage(id); ok {
		if float64(m.CurrentDailyKM) < float64(m.DailyTargetKM)*0.8 {
			urgency += 30
		}
	}
	return urgency
}

// Evaluate computes the full scoring breakdown for one vehicle. Eligibility is
// vetoed only by active Critical job cards; expired certificates reduce the
// composite score but do not veto.
func Evaluate(s Snapshot, id string) VehicleScore {
	vs := VehicleScore{
		VehicleID: id,
		Readiness: ReadinessScore(s, id),
		Branding:  BrandingPriority(s, id),
		Urgency:   MaintenanceUrgency(s, id),
	}
	for _, c := range s.VehicleCerts(id) {
		if c.Status == model.CertExpired {
			vs.ExpiredCerts++
		}
	}
	for _, j := range s.VehicleJobs(id) {
		if j.Active() && j.Priority == model.JobCritical {
			vs.CriticalJobs++
		}
	}
	vs.Eligible = vs.CriticalJobs == 0
	vs.Composite = weightReadiness*vs.Readiness +
		weightBranding*vs.Branding +
		weightUrgency*vs.Urgency -
		expiredCertPenalty*float64(vs.ExpiredCerts)
	return vs
}
