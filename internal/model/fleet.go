package model

import "sort"

// Fleet is an immutable snapshot of all per-vehicle records for one tenant.
// It is the single source of truth for a planning run; the engine only reads it.
type Fleet struct {
    Certificates map[string][]Certificate     `json:"certificates"`
    JobCards     map[string][]JobCard         `json:"jobCards"`
    Branding     map[string]BrandingContract  `json:"branding"`
    Mileage      map[string]MileageRecord     `json:"mileage"`
    Cleaning     map[string]CleaningRecord    `json:"cleaning"`
    Stabling     map[string]StablingRecord    `json:"stabling"`
    ids          []string
}

func NewFleet() *Fleet {
    return &Fleet{
        Certificates: map[string][]Certificate{},
        JobCards:     map[string][]JobCard{},
        Branding:     map[string]BrandingContract{},
        Mileage:      map[string]MileageRecord{},
        Cleaning:     map[string]CleaningRecord{},
        Stabling:     map[string]StablingRecord{},
    }
}

// VehicleIDs returns the canonical ordering of the fleet: ascending vehicle id.
// The ranking step relies on this order for deterministic tie-breaks.
func (f *Fleet) VehicleIDs() []string {
    if f.ids != nil { return f.ids }
    seen := map[string]struct{}{}
    add := func(id string) {
        if _, ok := seen[id]; !ok { seen[id] = struct{}{}; f.ids = append(f.ids, id) }
    }
    for id := range f.Certificates { add(id) }
    for id := range f.JobCards { add(id) }
    for id := range f.Branding { add(id) }
    for id := range f.Mileage { add(id) }
    for id := range f.Cleaning { add(id) }
    for id := range f.Stabling { add(id) }
    sort.Strings(f.ids)
    return f.ids
}

func (f *Fleet) VehicleCerts(id string) []Certificate { return f.Certificates[id] }

func (f *Fleet) VehicleJobs(id string) []JobCard { return f.JobCards[id] }

func (f *Fleet) VehicleBranding(id string) (BrandingContract, bool) {
    b, ok := f.Branding[id]
    return b, ok
}

func (f *Fleet) VehicleMileage(id string) (MileageRecord, bool) {
    m, ok := f.Mileage[id]
    return m, ok
}

func (f *Fleet) VehicleCleaning(id string) (CleaningRecord, bool) {
    c, ok := f.Cleaning[id]
    return c, ok
}

func (f *Fleet) VehicleStabling(id string) (StablingRecord, bool) {
    s, ok := f.Stabling[id]
    return s, ok
}

// AddCertificate and friends build a snapshot; they invalidate the cached id order.
func (f *Fleet) AddCertificate(c Certificate) {
    f.Certificates[c.VehicleID] = append(f.Certificates[c.VehicleID], c)
    f.ids = nil
}

func (f *Fleet) AddJobCard(j JobCard) {
    f.JobCards[j.VehicleID] = append(f.JobCards[j.VehicleID], j)
    f.ids = nil
}

func (f *Fleet) SetBranding(b BrandingContract) { f.Branding[b.VehicleID] = b; f.ids = nil }

func (f *Fleet) SetMileage(m MileageRecord) { f.Mileage[m.VehicleID] = m; f.ids = nil }

func (f *Fleet) SetCleaning(c CleaningRecord) { f.Cleaning[c.VehicleID] = c; f.ids = nil }

func (f *Fleet) SetStabling(s StablingRecord) { f.Stabling[s.VehicleID] = s; f.ids = nil }
