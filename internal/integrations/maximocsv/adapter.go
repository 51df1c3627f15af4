package maximocsv

import (
    "encoding/csv"
    "os"
    "strconv"

    "metroplan/internal/integrations"
    "metroplan/internal/model"
)

// Adapter parses job-card exports dropped as CSV files. Columns follow the
// standard export header: train_id, job_card_id, description, priority,
// status, estimated_hours, assigned_to, created_date.
type Adapter struct {
    Path string
}

var _ integrations.FeedAdapter = Adapter{}

func (a Adapter) Name() string { return "maximo-csv" }

func (a Adapter) Authenticate(cfg map[string]any) (integrations.AuthState, error) {
    return integrations.AuthState{Method: "file", Token: a.Path}, nil
}

func (a Adapter) FetchJobCards(since string, cursor string) (integrations.JobCardBatch, error) {
    f, err := os.Open(a.Path)
    if err != nil { return integrations.JobCardBatch{}, err }
    defer f.Close()

    r := csv.NewReader(f)
    rows, err := r.ReadAll()
    if err != nil { return integrations.JobCardBatch{}, err }
    if len(rows) == 0 { return integrations.JobCardBatch{}, nil }

    col := map[string]int{}
    for i, name := range rows[0] { col[name] = i }
    get := func(row []string, name string) string {
        i, ok := col[name]
        if !ok || i >= len(row) { return "" }
        return row[i]
    }

    batch := integrations.JobCardBatch{}
    for _, row := range rows[1:] {
        hours, _ := strconv.Atoi(get(row, "estimated_hours"))
        card := model.JobCard{
            VehicleID:      get(row, "train_id"),
            JobID:          get(row, "job_card_id"),
            Description:    get(row, "description"),
            Priority:       get(row, "priority"),
            Status:         get(row, "status"),
            EstimatedHours: hours,
            AssignedTo:     get(row, "assigned_to"),
            CreatedDate:    get(row, "created_date"),
        }
        if card.VehicleID == "" { continue }
        if card.Priority == "" { card.Priority = model.JobLow }
        if card.Status == "" { card.Status = model.JobOpen }
        batch.Cards = append(batch.Cards, card)
    }
    return batch, nil
}

func (a Adapter) AckJobCards(ids []string) error { return nil }
