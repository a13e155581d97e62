package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/team"
	leaguemock "github.com/riskibarqy/matchday-pipeline/internal/mocks/domain/league"
	leaguestandingmock "github.com/riskibarqy/matchday-pipeline/internal/mocks/domain/leaguestanding"
	teammock "github.com/riskibarqy/matchday-pipeline/internal/mocks/domain/team"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/clock"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/stretchr/testify/mock"
)

func TestStandingsService_ListByLeague_SortedUsingMockery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	leagueRepo := leaguemock.NewRepository(t)
	standingRepo := leaguestandingmock.NewRepository(t)
	service := NewStandingsService(leagueRepo, standingRepo)

	leagueID := "league-tr-1"
	leagueRepo.
		On("GetByID", mock.Anything, leagueID).
		Return(league.League{ID: leagueID, State: league.StateActive}, true, nil).
		Once()
	standingRepo.
		On("ListByLeague", mock.Anything, leagueID).
		Return([]leaguestanding.Standing{
			{LeagueID: leagueID, TeamID: "t-b", Name: "Bravo", Played: 2, Won: 1, Draw: 1, GoalsFor: 3, GoalsAgainst: 2, GoalDifference: 1, Points: 4},
			{LeagueID: leagueID, TeamID: "t-a", Name: "Alpha", Played: 2, Won: 2, GoalsFor: 4, GoalsAgainst: 1, GoalDifference: 3, Points: 6},
			{LeagueID: leagueID, TeamID: "t-c", Name: "Charlie", Played: 2, Won: 1, Draw: 1, GoalsFor: 5, GoalsAgainst: 4, GoalDifference: 1, Points: 4},
		}, nil).
		Once()

	got, err := service.ListByLeague(ctx, " "+leagueID+" ")
	if err != nil {
		t.Fatalf("list standings: %v", err)
	}
	want := []string{"t-a", "t-c", "t-b"}
	if len(got) != len(want) {
		t.Fatalf("unexpected row count: got=%d want=%d", len(got), len(want))
	}
	for i, teamID := range want {
		if got[i].TeamID != teamID {
			t.Fatalf("unexpected team at %d: got=%s want=%s", i, got[i].TeamID, teamID)
		}
	}
}

func TestStandingsService_ListByLeague_LeagueNotFoundUsingMockery(t *testing.T) {
	t.Parallel()

	leagueRepo := leaguemock.NewRepository(t)
	standingRepo := leaguestandingmock.NewRepository(t)
	service := NewStandingsService(leagueRepo, standingRepo)

	leagueRepo.
		On("GetByID", mock.Anything, "missing-league").
		Return(league.League{}, false, nil).
		Once()

	_, err := service.ListByLeague(context.Background(), "missing-league")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got=%v", err)
	}
	standingRepo.AssertNotCalled(t, "ListByLeague", mock.Anything, mock.Anything)
}

func TestStandingsService_ListByLeague_RepositoryErrorUsingMockery(t *testing.T) {
	t.Parallel()

	leagueRepo := leaguemock.NewRepository(t)
	standingRepo := leaguestandingmock.NewRepository(t)
	service := NewStandingsService(leagueRepo, standingRepo)

	boom := errors.New("connection reset")
	leagueRepo.
		On("GetByID", mock.Anything, "league-tr-1").
		Return(league.League{ID: "league-tr-1"}, true, nil).
		Once()
	standingRepo.
		On("ListByLeague", mock.Anything, "league-tr-1").
		Return(nil, boom).
		Once()

	_, err := service.ListByLeague(context.Background(), "league-tr-1")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repository error, got=%v", err)
	}
}

func TestStandingsService_ListByLeague_EmptyIDUsingMockery(t *testing.T) {
	t.Parallel()

	service := NewStandingsService(leaguemock.NewRepository(t), leaguestandingmock.NewRepository(t))
	_, err := service.ListByLeague(context.Background(), "  ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got=%v", err)
	}
}

func TestScheduleService_GenerateSeason_TooFewTeamsUsingMockery(t *testing.T) {
	t.Parallel()

	leagueRepo := leaguemock.NewRepository(t)
	teamRepo := teammock.NewRepository(t)
	clk := clock.Fixed(time.UTC, testKickoff)
	service := NewScheduleService(leagueRepo, teamRepo, nil, clk, logging.NewNop())

	leagueRepo.
		On("GetByID", mock.Anything, "league-solo").
		Return(league.League{ID: "league-solo", Name: "Solo", SeasonID: "S1", State: league.StateForming, StartDate: "2026-04-01"}, true, nil).
		Once()
	teamRepo.
		On("ListByLeague", mock.Anything, "league-solo").
		Return([]team.Team{{ID: "only", LeagueID: "league-solo", Name: "Only FC"}}, nil).
		Once()

	_, err := service.GenerateSeason(context.Background(), GenerateSeasonInput{LeagueID: "league-solo"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got=%v", err)
	}
	leagueRepo.AssertNotCalled(t, "CompareAndSetState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
