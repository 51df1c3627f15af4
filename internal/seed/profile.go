package seed

import (
    "os"

    "gopkg.in/yaml.v3"
)

// Profile controls the shape of a generated fleet. Depots override the
// defaults with a YAML file pointed at by FLEET_PROFILE.
type Profile struct {
    FleetSize    int      `yaml:"fleetSize"`
    IDPrefix     string   `yaml:"idPrefix"`
    Departments  []string `yaml:"departments"`
    Brands       []string `yaml:"brands"`
    CleaningBays []string `yaml:"cleaningBays"`
}

func DefaultProfile() Profile {
    return Profile{
        FleetSize:    25,
        IDPrefix:     "KMRL",
        Departments:  []string{"Rolling-Stock", "Signalling", "Telecom"},
        Brands:       []string{"Coca-Cola", "Samsung", "Airtel", "BSNL", "Kerala Tourism"},
        CleaningBays: []string{"Bay-A", "Bay-B", "Bay-C", "Bay-D"},
    }
}

// LoadProfile reads a YAML profile over the defaults. Missing keys keep
// their default values.
func LoadProfile(path string) (Profile, error) {
    p := DefaultProfile()
    b, err := os.ReadFile(path)
    if err != nil { return p, err }
    if err := yaml.Unmarshal(b, &p); err != nil { return p, err }
    if p.FleetSize <= 0 { p.FleetSize = 25 }
    if p.IDPrefix == "" { p.IDPrefix = "KMRL" }
    return p, nil
}

// ProfileFromEnv loads FLEET_PROFILE when set, otherwise the defaults.
func ProfileFromEnv() Profile {
    if path := os.Getenv("FLEET_PROFILE"); path != "" {
        if p, err := LoadProfile(path); err == nil { return p }
    }
    return DefaultProfile()
}
