package model

// Core domain types for the induction planner.

// Certificate statuses as reported by the fitness-certificate feeds.
const (
    CertValid        = "Valid"
    CertExpiringSoon = "Expiring Soon"
    CertExpired      = "Expired"
)

// Job card priorities and statuses from the maintenance system.
const (
    JobLow      = "Low"
    JobMedium   = "Medium"
    JobHigh     = "High"
    JobCritical = "Critical"

    JobOpen       = "Open"
    JobInProgress = "In Progress"
    JobClosed     = "Closed"
)

// Branding contract statuses derived from required vs. current exposure hours.
const (
    BrandBelowTarget     = "Below Target"
    BrandMeetingTarget   = "Meeting Target"
    BrandExceedingTarget = "Exceeding Target"
)

// Allocation buckets.
const (
    BucketService     = "service"
    BucketStandby     = "standby"
    BucketMaintenance = "maintenance"
)

type Certificate struct {
    VehicleID  string `json:"vehicleId"`
    Department string `json:"department"`
    CertID     string `json:"certId,omitempty"`
    IssueDate  string `json:"issueDate,omitempty"`
    ExpiryDate string `json:"expiryDate,omitempty"`
    Status     string `json:"status"`
    Inspector  string `json:"inspector,omitempty"`
}

type JobCard struct {
    VehicleID      string `json:"vehicleId"`
    JobID          string `json:"jobId,omitempty"`
    Description    string `json:"description,omitempty"`
    Priority       string `json:"priority"`
    Status         string `json:"status"`
    EstimatedHours int    `json:"estimatedHours,omitempty"`
    AssignedTo     string `json:"assignedTo,omitempty"`
    CreatedDate    string `json:"createdDate,omitempty"`
}

// Active reports whether the card still consumes maintenance attention.
func (j JobCard) Active() bool { return j.Status == JobOpen || j.Status == JobInProgress }

type BrandingContract struct {
    VehicleID          string `json:"vehicleId"`
    Brand              string `json:"brand"`
    ContractStart      string `json:"contractStart,omitempty"`
    ContractEnd        string `json:"contractEnd,omitempty"`
    RequiredDailyHours int    `json:"requiredDailyHours"`
    CurrentDailyHours  int    `json:"currentDailyHours"`
    Status             string `json:"status"`
    PenaltyPerHour     int    `json:"penaltyPerHour,omitempty"`
}

type MileageRecord struct {
    VehicleID       string  `json:"vehicleId"`
    TotalKM         int     `json:"totalKm"`
    DailyTargetKM   int     `json:"dailyTargetKm"`
    CurrentDailyKM  int     `json:"currentDailyKm"`
    BogieWearPct    float64 `json:"bogieWearPct"`
    BrakeWearPct    float64 `json:"brakeWearPct"`
    HVACWearPct     float64 `json:"hvacWearPct"`
    LastMaintenance string  `json:"lastMaintenance,omitempty"`
}

type CleaningRecord struct {
    VehicleID        string `json:"vehicleId"`
    LastDeepClean    string `json:"lastDeepClean,omitempty"`
    Due              bool   `json:"due"`
    ScheduledBay     string `json:"scheduledBay,omitempty"`
    ScheduledTime    string `json:"scheduledTime,omitempty"`
    EstimatedHours   int    `json:"estimatedHours,omitempty"`
    CleanlinessScore int    `json:"cleanlinessScore,omitempty"`
}

type StablingRecord struct {
    VehicleID        string `json:"vehicleId"`
    Position         int    `json:"position"`
    OptimalPosition  int    `json:"optimalPosition,omitempty"`
    ShuntingTimeMin  int    `json:"shuntingTimeMin"`
    AccessDifficulty string `json:"accessDifficulty,omitempty"`
    PowerConnection  bool   `json:"powerConnection"`
}

// OptimizeRequest parametrizes one allocation run.
type OptimizeRequest struct {
    TenantID           string `json:"tenantId"`
    PlanDate           string `json:"planDate,omitempty"`
    TargetServiceCount *int   `json:"targetServiceCount,omitempty"`
}

// Allocation is the three-way partition of the fleet produced by one run.
type Allocation struct {
    ID          string            `json:"id"`
    PlanDate    string            `json:"planDate,omitempty"`
    Target      int               `json:"target"`
    Service     []string          `json:"service"`
    Standby     []string          `json:"standby"`
    Maintenance []string          `json:"maintenance"`
    Summary     AllocationSummary `json:"summary"`
    CreatedAt   string            `json:"createdAt"`
}

type AllocationSummary struct {
    ServiceCount     int `json:"serviceCount"`
    StandbyCount     int `json:"standbyCount"`
    MaintenanceCount int `json:"maintenanceCount"`
}

// BucketFor returns the bucket an id landed in; vehicles missing from the
// allocation default to standby.
func (a Allocation) BucketFor(id string) string {
    for _, v := range a.Service {
        if v == id { return BucketService }
    }
    for _, v := range a.Maintenance {
        if v == id { return BucketMaintenance }
    }
    return BucketStandby
}

// Report is derived from an allocation; it never mutates it.
type Report struct {
    GeneratedAt     string                   `json:"generatedAt"`
    Vehicles        map[string]VehicleReport `json:"vehicles"`
    Alerts          []string                 `json:"alerts"`
    Recommendations []string                 `json:"recommendations"`
}

type VehicleReport struct {
    Bucket             string   `json:"bucket"`
    Readiness          float64  `json:"readiness"`
    BrandingPriority   float64  `json:"brandingPriority"`
    MaintenanceUrgency float64  `json:"maintenanceUrgency"`
    Issues             []string `json:"issues"`
}

// VehicleSummary is the list-view read model for API responses.
type VehicleSummary struct {
    VehicleID          string   `json:"vehicleId"`
    Status             string   `json:"status"`
    Readiness          float64  `json:"readiness"`
    BrandingPriority   float64  `json:"brandingPriority"`
    MaintenanceUrgency float64  `json:"maintenanceUrgency"`
    Issues             []string `json:"issues"`
}

type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}

// SimulationRequest runs what-if scenarios without replacing the current allocation.
type SimulationRequest struct {
    TenantID  string               `json:"tenantId"`
    Scenarios []SimulationScenario `json:"scenarios"`
}

type SimulationScenario struct {
    Name               string `json:"name,omitempty"`
    TargetServiceCount *int   `json:"targetServiceCount,omitempty"`
}

type SimulationResult struct {
    ScenarioName         string      `json:"scenarioName"`
    Target               int         `json:"target"`
    Allocation           *Allocation `json:"allocation,omitempty"`
    AlertsCount          int         `json:"alertsCount"`
    RecommendationsCount int         `json:"recommendationsCount"`
    Error                string      `json:"error,omitempty"`
}
