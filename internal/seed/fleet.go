package seed

import (
    "fmt"
    "math/rand"
    "time"

    "metroplan/internal/model"
)

// Generate builds a synthetic fleet snapshot for demo and dev environments.
// Distributions deliberately include expired certificates, critical job cards
// and cleaning backlogs so a plan run always has something to veto.
func Generate(p Profile, now time.Time, rng *rand.Rand) *model.Fleet {
    f := model.NewFleet()
    ids := make([]string, 0, p.FleetSize)
    for i := 1; i <= p.FleetSize; i++ {
        ids = append(ids, fmt.Sprintf("%s-%03d", p.IDPrefix, i))
    }

    day := 24 * time.Hour
    date := func(t time.Time) string { return t.Format("2006-01-02") }

    for _, id := range ids {
        for _, dept := range p.Departments {
            issue := now.Add(-time.Duration(randBetween(rng, 1, 60)) * day)
            expiry := issue.Add(time.Duration(randBetween(rng, 30, 90)) * day)
            status := model.CertValid
            if expiry.Before(now) {
                status = model.CertExpired
            } else if expiry.Before(now.Add(7 * day)) {
                status = model.CertExpiringSoon
            }
            f.AddCertificate(model.Certificate{
                VehicleID:  id,
                Department: dept,
                CertID:     fmt.Sprintf("%s-%s-%d", dept[:2], id, randBetween(rng, 1000, 9999)),
                IssueDate:  date(issue),
                ExpiryDate: date(expiry),
                Status:     status,
                Inspector:  "Inspector " + pick(rng, []string{"A", "B", "C", "D"}),
            })
        }
    }

    descriptions := []string{
        "Brake pad replacement", "HVAC filter change", "Door mechanism check",
        "Bogie inspection", "Electrical system check", "Interior cleaning",
        "Exterior wash", "Signal system calibration",
    }
    for _, id := range ids {
        for n := randBetween(rng, 0, 3); n > 0; n-- {
            priority := pick(rng, []string{model.JobLow, model.JobMedium, model.JobHigh, model.JobCritical})
            status := pick(rng, []string{model.JobOpen, model.JobInProgress, model.JobClosed})
            if priority == model.JobCritical {
                status = pick(rng, []string{model.JobOpen, model.JobInProgress})
            }
            f.AddJobCard(model.JobCard{
                VehicleID:      id,
                JobID:          fmt.Sprintf("JC-%d", randBetween(rng, 10000, 99999)),
                Description:    pick(rng, descriptions),
                Priority:       priority,
                Status:         status,
                EstimatedHours: randBetween(rng, 1, 8),
                AssignedTo:     "Tech " + pick(rng, []string{"Team A", "Team B", "Team C"}),
                CreatedDate:    date(now.Add(-time.Duration(randBetween(rng, 1, 30)) * day)),
            })
        }
    }

    for _, id := range ids {
        if rng.Float64() <= 0.3 { continue } // 70% of the fleet carries branding
        start := now.Add(-time.Duration(randBetween(rng, 30, 365)) * day)
        end := start.Add(time.Duration(randBetween(rng, 90, 730)) * day)
        required := randBetween(rng, 8, 16)
        current := randBetween(rng, 0, required+2)
        status := model.BrandMeetingTarget
        if float64(current) < float64(required)*0.8 {
            status = model.BrandBelowTarget
        } else if current >= required {
            status = model.BrandExceedingTarget
        }
        f.SetBranding(model.BrandingContract{
            VehicleID:          id,
            Brand:              pick(rng, p.Brands),
            ContractStart:      date(start),
            ContractEnd:        date(end),
            RequiredDailyHours: required,
            CurrentDailyHours:  current,
            Status:             status,
            PenaltyPerHour:     randBetween(rng, 5000, 25000),
        })
    }

    for _, id := range ids {
        total := randBetween(rng, 50000, 200000)
        bogie := wearPct(float64(total)/1000000*100, randBetween(rng, -10, 10))
        brake := wearPct(float64(total)/500000*100, randBetween(rng, -15, 15))
        hvac := wearPct(float64(total)/750000*100, randBetween(rng, -10, 10))
        f.SetMileage(model.MileageRecord{
            VehicleID:       id,
            TotalKM:         total,
            DailyTargetKM:   randBetween(rng, 200, 400),
            CurrentDailyKM:  randBetween(rng, 150, 450),
            BogieWearPct:    bogie,
            BrakeWearPct:    brake,
            HVACWearPct:     hvac,
            LastMaintenance: date(now.Add(-time.Duration(randBetween(rng, 1, 90)) * day)),
        })
    }

    for _, id := range ids {
        due := rng.Intn(2) == 0
        rec := model.CleaningRecord{
            VehicleID:        id,
            LastDeepClean:    date(now.Add(-time.Duration(randBetween(rng, 1, 14)) * day)),
            Due:              due,
            EstimatedHours:   randBetween(rng, 2, 6),
            CleanlinessScore: randBetween(rng, 60, 100),
        }
        if due && rng.Float64() > 0.5 {
            rec.ScheduledBay = pick(rng, p.CleaningBays)
            rec.ScheduledTime = fmt.Sprintf("%d:%02d", randBetween(rng, 22, 23), randBetween(rng, 0, 59))
        }
        f.SetCleaning(rec)
    }

    positions := rng.Perm(p.FleetSize)
    for i, id := range ids {
        pos := positions[i] + 1
        var shunting int
        switch {
        case pos <= 5:
            shunting = randBetween(rng, 5, 15)
        case pos <= 15:
            shunting = randBetween(rng, 15, 30)
        default:
            shunting = randBetween(rng, 30, 45)
        }
        f.SetStabling(model.StablingRecord{
            VehicleID:        id,
            Position:         pos,
            OptimalPosition:  randBetween(rng, 1, p.FleetSize),
            ShuntingTimeMin:  shunting,
            AccessDifficulty: pick(rng, []string{"Easy", "Medium", "Hard"}),
            PowerConnection:  rng.Intn(2) == 0,
        })
    }

    return f
}

func randBetween(rng *rand.Rand, lo, hi int) int { return lo + rng.Intn(hi-lo+1) }

func pick(rng *rand.Rand, opts []string) string { return opts[rng.Intn(len(opts))] }

func wearPct(base float64, jitter int) float64 {
    v := base + float64(jitter)
    if v > 100 { v = 100 }
    if v < 0 { v = 0 }
    return v
}
