package api

import (
	"fmt"
	"time"

	"metroplan/internal/model"
)

func validateOptimizeRequest(req *model.OptimizeRequest) error {
	if req.TargetServiceCount != nil && *req.TargetServiceCount < 0 {
		return fmt.Errorf("targetServiceCount must be >= 0")
	}
	if req.PlanDate != "" {
		if _, err := time.Parse("2006-01-02", req.PlanDate); err != nil {
			return fmt.Errorf("planDate must be YYYY-MM-DD: %s", req.PlanDate)
		}
	}
	return nil
}

func validateSimulationRequest(req *model.SimulationRequest) error {
	if len(req.Scenarios) == 0 {
		return fmt.Errorf("at least one scenario is required")
	}
	for i, sc := range req.Scenarios {
		if sc.TargetServiceCount != nil && *sc.TargetServiceCount < 0 {
			return fmt.Errorf("scenario %d: targetServiceCount must be >= 0", i)
		}
	}
	return nil
}
