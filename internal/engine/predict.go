package engine

import "metroplan/internal/model"

// FailureProbability is a rule-of-thumb estimate of a failure in the next 24h
// based on component wear and time since the last maintenance visit. It is
// exposed for informational display only; ranking does not consume it.
func FailureProbability(m model.MileageRecord, daysSinceMaintenance int) float64 {
	prob := 0.1
	prob += m.BogieWearPct * 0.002
	prob += m.BrakeWearPct * 0.003
	prob += m.HVACWearPct * 0.001
	if daysSinceMaintenance > 0 {
		prob += float64(daysSinceMaintenance) * 0.005
	}
	if prob > 1 {
		return 1
	}
	return prob
}
