package usecase

import (
	"context"
	"time"
)

// MatchSpec is the input the simulation worker consumes.
type MatchSpec struct {
	SchemaVersion int           `json:"schemaVersion"`
	MatchID       string        `json:"matchId"`
	LeagueID      string        `json:"leagueId"`
	SeasonID      string        `json:"seasonId"`
	KickoffUTC    string        `json:"kickoffUtc"`
	RNGSeed       int64         `json:"rngSeed"`
	Dispatch      int           `json:"dispatch"`
	CallbackURL   string        `json:"callbackUrl,omitempty"`
	ResultPath    string        `json:"resultPath"`
	ReplayPath    string        `json:"replayPath"`
	Home          MatchSpecSide `json:"home"`
	Away          MatchSpecSide `json:"away"`
}

type MatchSpecSide struct {
	TeamID    string           `json:"teamId"`
	Name      string           `json:"name"`
	Formation string           `json:"formation"`
	Tactics   map[string]any   `json:"tactics,omitempty"`
	Players   []MatchSpecEntry `json:"players"`
	Bench     []MatchSpecEntry `json:"bench"`
}

type MatchSpecEntry struct {
	PlayerID string `json:"pid"`
	Position string `json:"pos,omitempty"`
	Overall  int    `json:"ovr,omitempty"`
}

// WorkerTrigger starts a simulation and returns without waiting for it.
type WorkerTrigger interface {
	Trigger(ctx context.Context, spec MatchSpec) error
}

type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

type Alert struct {
	Severity AlertSeverity
	Title    string
	Message  string
	Fields   map[string]string
}

type Alerter interface {
	Alert(ctx context.Context, alert Alert) error
}

type noopAlerter struct{}

func (noopAlerter) Alert(context.Context, Alert) error { return nil }

// BlobStore is the object store holding results, replays and manifests.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	SignedWriteURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

// HeartbeatMarker is the write side of the heartbeat, handed to the stage
// services so they can tick off their duty for the day.
type HeartbeatMarker interface {
	Mark(ctx context.Context, patch map[string]any) error
}

type noopHeartbeat struct{}

func (noopHeartbeat) Mark(context.Context, map[string]any) error { return nil }
