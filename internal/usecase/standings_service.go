package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
)

type StandingsService struct {
	leagueRepo   league.Repository
	standingRepo leaguestanding.Repository
}

func NewStandingsService(leagueRepo league.Repository, standingRepo leaguestanding.Repository) *StandingsService {
	return &StandingsService{leagueRepo: leagueRepo, standingRepo: standingRepo}
}

// ListByLeague returns the table sorted by points, goal difference, goals
// for, then name.
func (s *StandingsService) ListByLeague(ctx context.Context, leagueID string) (rows []leaguestanding.Standing, err error) {
	leagueID = strings.TrimSpace(leagueID)
	ctx, span := startUsecaseSpan(ctx, "usecase.StandingsService.ListByLeague", matchAttrs(leagueID, "")...)
	defer func() { endSpan(span, err) }()

	if leagueID == "" {
		return nil, fmt.Errorf("%w: leagueId is required", ErrInvalidInput)
	}
	if s.leagueRepo != nil {
		_, exists, err := s.leagueRepo.GetByID(ctx, leagueID)
		if err != nil {
			return nil, fmt.Errorf("get league: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: league=%s", ErrNotFound, leagueID)
		}
	}

	rows, err = s.standingRepo.ListByLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	leaguestanding.Sort(rows)
	return rows, nil
}
