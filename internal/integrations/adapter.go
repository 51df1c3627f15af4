package integrations

import "metroplan/internal/model"

// FeedAdapter defines the minimal interface for maintenance-system feeds
// that supply job cards during a fleet refresh.
type FeedAdapter interface {
    Name() string
    Authenticate(cfg map[string]any) (AuthState, error)
    FetchJobCards(since string, cursor string) (JobCardBatch, error)
    AckJobCards(ids []string) error
}

type AuthState struct {
    Method string
    Token  string
}

type JobCardBatch struct {
    Cards  []model.JobCard
    Cursor string
}
