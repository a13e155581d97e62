package postgres

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
)

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	if !isNotFound(fmt.Errorf("get fixture: %w", sql.ErrNoRows)) {
		t.Fatalf("expected wrapped sql.ErrNoRows to be not found")
	}
	if isNotFound(fmt.Errorf("pq: relation fixtures does not exist")) {
		t.Fatalf("expected unrelated error to be ignored")
	}
}

func TestOptionalString(t *testing.T) {
	t.Parallel()

	if optionalString("") != nil {
		t.Fatalf("expected nil for empty string")
	}
	got := optionalString("boom")
	if got == nil || *got != "boom" {
		t.Fatalf("unexpected optional string: %v", got)
	}
}

func TestMarshalJSONEmptyValues(t *testing.T) {
	t.Parallel()

	var tactics map[string]any
	got, err := marshalJSON(tactics, "{}")
	if err != nil || got != "{}" {
		t.Fatalf("unexpected nil map encoding: got=%q err=%v", got, err)
	}

	var starters []string
	got, err = marshalJSON(starters, "[]")
	if err != nil || got != "[]" {
		t.Fatalf("unexpected nil slice encoding: got=%q err=%v", got, err)
	}

	got, err = marshalJSON([]string{"p1", "p2"}, "[]")
	if err != nil || got != `["p1","p2"]` {
		t.Fatalf("unexpected slice encoding: got=%q err=%v", got, err)
	}
}

func TestUnmarshalJSONSkipsEmptyColumn(t *testing.T) {
	t.Parallel()

	out := map[string]any{"kept": true}
	if err := unmarshalJSON(nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["kept"] != true {
		t.Fatalf("empty column must leave target untouched: %v", out)
	}
}

func TestMapFixtureRow(t *testing.T) {
	t.Parallel()

	kickoff := time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC)
	played := kickoff.Add(2 * time.Hour)
	row := fixtureTableModel{
		PublicID:      "M1",
		LeagueID:      "L1",
		SeasonID:      "S1",
		Round:         3,
		HomeTeamID:    "T1",
		AwayTeamID:    "T2",
		KickoffAt:     kickoff,
		Seed:          sql.NullInt64{Int64: 42, Valid: true},
		Status:        "played",
		HomeScore:     sql.NullInt64{Int64: 2, Valid: true},
		AwayScore:     sql.NullInt64{Int64: 1, Valid: true},
		ReplayPath:    "replays/S1/L1/M1.json",
		DispatchCount: 1,
		PlayedAt:      sql.NullTime{Time: played, Valid: true},
	}

	got := mapFixtureRow(row)
	if got.Status != fixture.StatusPlayed || got.Score == nil || *got.Score != (fixture.Score{Home: 2, Away: 1}) {
		t.Fatalf("unexpected mapped fixture: %+v", got)
	}
	if got.Seed == nil || *got.Seed != 42 {
		t.Fatalf("unexpected seed: %v", got.Seed)
	}
	if got.StartedAt != nil || got.PlayedAt == nil || !got.PlayedAt.Equal(played) {
		t.Fatalf("unexpected timestamps: started=%v played=%v", got.StartedAt, got.PlayedAt)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("mapped fixture must validate: %v", err)
	}

	row.Status = "scheduled"
	row.HomeScore = sql.NullInt64{}
	row.AwayScore = sql.NullInt64{}
	if got := mapFixtureRow(row); got.Score != nil {
		t.Fatalf("expected no score for unplayed row, got %+v", got.Score)
	}
}

func TestStandingModelRoundTrip(t *testing.T) {
	t.Parallel()

	home, away := leaguestanding.New("L1", "T1", "Home"), leaguestanding.New("L1", "T2", "Away")
	leaguestanding.ApplyResult(&home, &away, fixture.Score{Home: 3, Away: 1})

	got := mapStandingRow(standingModel(home))
	if got != home {
		t.Fatalf("unexpected standing: got=%+v want=%+v", got, home)
	}
}

func TestSeedStandingsQueryLeavesExistingRows(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 10, 15, 19, 0, 0, 0, time.UTC)
	item := fixture.Fixture{LeagueID: "L1", HomeTeamID: "T1", AwayTeamID: "T2"}
	query, args, err := seedStandingsQuery(item, map[string]string{"T1": "Home", "T2": "Away"}, at)
	if err != nil {
		t.Fatalf("build seed query: %v", err)
	}
	if !strings.Contains(query, "DO NOTHING") || strings.Contains(query, "DO UPDATE") {
		t.Fatalf("seed must not overwrite existing rows: %s", query)
	}

	var names []string
	for _, arg := range args {
		switch v := arg.(type) {
		case int:
			if v != 0 {
				t.Fatalf("seed rows must start at zero, got %d in %v", v, args)
			}
		case string:
			names = append(names, v)
		}
	}
	for _, want := range []string{"L1", "T1", "T2", "Home", "Away"} {
		found := false
		for _, got := range names {
			found = found || got == want
		}
		if !found {
			t.Fatalf("missing seed arg %q in %v", want, args)
		}
	}
}
