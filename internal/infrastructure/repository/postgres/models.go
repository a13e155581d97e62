package postgres

import (
	"database/sql"
	"time"
)

type leagueTableModel struct {
	ID        int64        `db:"id"`
	PublicID  string       `db:"public_id"`
	Name      string       `db:"name"`
	SeasonID  string       `db:"season_id"`
	State     string       `db:"state"`
	StartDate sql.NullTime `db:"start_date"`
}

type teamTableModel struct {
	ID        int64  `db:"id"`
	PublicID  string `db:"public_id"`
	LeagueID  string `db:"league_public_id"`
	Name      string `db:"name"`
	Formation string `db:"formation"`
	Tactics   []byte `db:"tactics"`
	Starters  []byte `db:"starters"`
	Subs      []byte `db:"subs"`
}

type teamPlayerTableModel struct {
	PublicID string `db:"public_id"`
	TeamID   string `db:"team_public_id"`
	Position string `db:"position"`
	Overall  int    `db:"overall"`
}

type fixtureTableModel struct {
	ID            int64         `db:"id"`
	PublicID      string        `db:"public_id"`
	LeagueID      string        `db:"league_public_id"`
	SeasonID      string        `db:"season_id"`
	Round         int           `db:"round"`
	HomeTeamID    string        `db:"home_team_public_id"`
	AwayTeamID    string        `db:"away_team_public_id"`
	KickoffAt     time.Time     `db:"kickoff_at"`
	Seed          sql.NullInt64 `db:"seed"`
	Status        string        `db:"status"`
	HomeScore     sql.NullInt64 `db:"home_score"`
	AwayScore     sql.NullInt64 `db:"away_score"`
	ReplayPath    string        `db:"replay_path"`
	FailReason    string        `db:"fail_reason"`
	DispatchCount int           `db:"dispatch_count"`
	StartedAt     sql.NullTime  `db:"started_at"`
	PlayedAt      sql.NullTime  `db:"played_at"`
	FailedAt      sql.NullTime  `db:"failed_at"`
}

var fixtureColumns = []string{
	"id", "public_id", "league_public_id", "season_id", "round",
	"home_team_public_id", "away_team_public_id", "kickoff_at", "seed", "status",
	"home_score", "away_score", "replay_path", "fail_reason", "dispatch_count",
	"started_at", "played_at", "failed_at",
}

type fixtureInsertModel struct {
	PublicID   string        `db:"public_id"`
	LeagueID   string        `db:"league_public_id"`
	SeasonID   string        `db:"season_id"`
	Round      int           `db:"round"`
	HomeTeamID string        `db:"home_team_public_id"`
	AwayTeamID string        `db:"away_team_public_id"`
	KickoffAt  time.Time     `db:"kickoff_at"`
	Seed       sql.NullInt64 `db:"seed"`
	Status     string        `db:"status"`
}

type matchPlanTableModel struct {
	MatchID   string    `db:"match_public_id"`
	LeagueID  string    `db:"league_public_id"`
	SeasonID  string    `db:"season_id"`
	Seed      int64     `db:"seed"`
	KickoffAt time.Time `db:"kickoff_at"`
	Home      []byte    `db:"home"`
	Away      []byte    `db:"away"`
	CreatedAt time.Time `db:"created_at"`
}

type matchPlanInsertModel struct {
	MatchID   string    `db:"match_public_id"`
	LeagueID  string    `db:"league_public_id"`
	SeasonID  string    `db:"season_id"`
	Seed      int64     `db:"seed"`
	KickoffAt time.Time `db:"kickoff_at"`
	Home      string    `db:"home"`
	Away      string    `db:"away"`
	CreatedAt time.Time `db:"created_at"`
}

type leagueStandingTableModel struct {
	LeagueID       string    `db:"league_public_id"`
	TeamID         string    `db:"team_public_id"`
	Name           string    `db:"name"`
	Played         int       `db:"played"`
	Won            int       `db:"won"`
	Draw           int       `db:"draw"`
	Lost           int       `db:"lost"`
	GoalsFor       int       `db:"goals_for"`
	GoalsAgainst   int       `db:"goals_against"`
	GoalDifference int       `db:"goal_difference"`
	Points         int       `db:"points"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type failedJobTableModel struct {
	MatchID    string    `db:"match_public_id"`
	LeagueID   string    `db:"league_public_id"`
	LastStatus string    `db:"last_status"`
	Reason     string    `db:"reason"`
	Attempt    int       `db:"attempt"`
	CreatedAt  time.Time `db:"created_at"`
}

type jobDispatchInsertModel struct {
	DispatchID  string     `db:"dispatch_id"`
	JobName     string     `db:"job_name"`
	JobPath     string     `db:"job_path"`
	LeagueID    string     `db:"league_public_id"`
	MatchID     string     `db:"match_public_id"`
	Attempt     int        `db:"attempt"`
	Payload     string     `db:"payload"`
	Status      string     `db:"status"`
	StatusRank  int        `db:"status_rank"`
	SentAt      *time.Time `db:"sent_at"`
	CompletedAt *time.Time `db:"completed_at"`
	FailedAt    *time.Time `db:"failed_at"`
	LastError   *string    `db:"last_error"`
	TraceID     *string    `db:"trace_id"`
	SpanID      *string    `db:"span_id"`
}

type heartbeatTableModel struct {
	Day         time.Time `db:"day"`
	Fields      []byte    `db:"fields"`
	LastUpdated time.Time `db:"last_updated"`
}
