package maximocsv

import (
	"os"
	"path/filepath"
	"testing"

	"metroplan/internal/model"
)

const sampleExport = `train_id,job_card_id,description,priority,status,estimated_hours,assigned_to,created_date
KMRL-001,JC-10001,Brake pad replacement,Critical,Open,4,Tech Team A,2026-02-20
KMRL-002,JC-10002,HVAC filter change,Low,Closed,2,Tech Team B,2026-02-18
,JC-10003,Orphan row without a vehicle,Low,Open,1,Tech Team C,2026-02-19
`

func TestFetchJobCards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_cards.csv")
	if err := os.WriteFile(path, []byte(sampleExport), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	a := Adapter{Path: path}
	batch, err := a.FetchJobCards("", "")
	if err != nil {
		t.Fatalf("FetchJobCards: %v", err)
	}
	if len(batch.Cards) != 2 {
		t.Fatalf("expected 2 cards (orphan skipped), got %d", len(batch.Cards))
	}
	c := batch.Cards[0]
	if c.VehicleID != "KMRL-001" || c.Priority != model.JobCritical || c.EstimatedHours != 4 {
		t.Fatalf("unexpected card: %+v", c)
	}
	if !c.Active() {
		t.Fatalf("open card should be active")
	}
	if batch.Cards[1].Active() {
		t.Fatalf("closed card should not be active")
	}
}

func TestFetchJobCardsMissingFile(t *testing.T) {
	a := Adapter{Path: "/nonexistent/job_cards.csv"}
	if _, err := a.FetchJobCards("", ""); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
