package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/team"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/clock"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
)

type GenerateSeasonInput struct {
	LeagueID  string
	StartDate string
}

type GenerateSeasonResult struct {
	OK        bool   `json:"ok"`
	LeagueID  string `json:"leagueId"`
	SeasonID  string `json:"seasonId"`
	StartDate string `json:"startDate"`
	Rounds    int    `json:"rounds"`
	Fixtures  int    `json:"fixtures"`
	Inserted  int    `json:"inserted"`
}

type pairing struct {
	home string
	away string
}

// ScheduleService turns a forming league into a double round-robin season.
type ScheduleService struct {
	leagueRepo  league.Repository
	teamRepo    team.Repository
	fixtureRepo fixture.Repository
	clock       clock.Clock
	logger      *logging.Logger
}

func NewScheduleService(leagueRepo league.Repository, teamRepo team.Repository, fixtureRepo fixture.Repository, clk clock.Clock, logger *logging.Logger) *ScheduleService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ScheduleService{
		leagueRepo:  leagueRepo,
		teamRepo:    teamRepo,
		fixtureRepo: fixtureRepo,
		clock:       clk,
		logger:      logger,
	}
}

// GenerateSeason is idempotent: fixture ids are derived from league,
// round and slot, so a re-run inserts nothing new.
func (s *ScheduleService) GenerateSeason(ctx context.Context, input GenerateSeasonInput) (result GenerateSeasonResult, err error) {
	input.LeagueID = strings.TrimSpace(input.LeagueID)
	ctx, span := startUsecaseSpan(ctx, "usecase.ScheduleService.GenerateSeason", matchAttrs(input.LeagueID, "")...)
	defer func() { endSpan(span, err) }()

	if input.LeagueID == "" {
		return GenerateSeasonResult{}, fmt.Errorf("%w: leagueId is required", ErrInvalidInput)
	}
	item, exists, err := s.leagueRepo.GetByID(ctx, input.LeagueID)
	if err != nil {
		return GenerateSeasonResult{}, fmt.Errorf("get league: %w", err)
	}
	if !exists {
		return GenerateSeasonResult{}, fmt.Errorf("%w: league=%s", ErrNotFound, input.LeagueID)
	}
	if item.State != league.StateForming && item.State != league.StateScheduled {
		return GenerateSeasonResult{}, fmt.Errorf("%w: league=%s is %s", ErrInvalidInput, item.ID, item.State)
	}

	startDate := firstNonEmpty(strings.TrimSpace(input.StartDate), item.StartDate)
	if startDate == "" {
		startDate, err = clock.AddDays(s.clock.Today(), 1, s.clock.Location())
		if err != nil {
			return GenerateSeasonResult{}, err
		}
	}
	if _, err := clock.ParseDay(startDate, s.clock.Location()); err != nil {
		return GenerateSeasonResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	teams, err := s.teamRepo.ListByLeague(ctx, item.ID)
	if err != nil {
		return GenerateSeasonResult{}, fmt.Errorf("list teams: %w", err)
	}
	if len(teams) < 2 {
		return GenerateSeasonResult{}, fmt.Errorf("%w: league=%s needs at least 2 teams, has %d", ErrInvalidInput, item.ID, len(teams))
	}
	teamIDs := make([]string, 0, len(teams))
	for _, t := range teams {
		teamIDs = append(teamIDs, t.ID)
	}
	sort.Strings(teamIDs)

	rounds := doubleRoundRobin(teamIDs)
	fixtures := make([]fixture.Fixture, 0, len(teamIDs)*(len(teamIDs)-1))
	for r, round := range rounds {
		day, err := clock.AddDays(startDate, r, s.clock.Location())
		if err != nil {
			return GenerateSeasonResult{}, err
		}
		kickoff, err := s.clock.KickoffAt(day)
		if err != nil {
			return GenerateSeasonResult{}, err
		}
		for slot, p := range round {
			fixtures = append(fixtures, fixture.Fixture{
				ID:         fmt.Sprintf("%s-r%02d-m%d", item.ID, r+1, slot+1),
				LeagueID:   item.ID,
				SeasonID:   item.SeasonID,
				Round:      r + 1,
				HomeTeamID: p.home,
				AwayTeamID: p.away,
				KickoffAt:  kickoff.UTC(),
				Status:     fixture.StatusScheduled,
			})
		}
	}

	inserted, err := s.fixtureRepo.InsertMany(ctx, fixtures)
	if err != nil {
		return GenerateSeasonResult{}, fmt.Errorf("insert fixtures: %w", err)
	}
	if _, err := s.leagueRepo.CompareAndSetState(ctx, item.ID, league.StateForming, league.StateScheduled); err != nil {
		return GenerateSeasonResult{}, fmt.Errorf("mark league scheduled: %w", err)
	}

	s.logger.InfoContext(ctx, "season generated",
		"league_id", item.ID,
		"start_date", startDate,
		"rounds", len(rounds),
		"fixtures", len(fixtures),
		"inserted", inserted,
	)
	return GenerateSeasonResult{
		OK:        true,
		LeagueID:  item.ID,
		SeasonID:  item.SeasonID,
		StartDate: startDate,
		Rounds:    len(rounds),
		Fixtures:  len(fixtures),
		Inserted:  inserted,
	}, nil
}

// doubleRoundRobin uses the circle method: the first slot stays fixed and
// the rest rotate. An empty id stands for the bye when the count is odd.
// Odd rounds swap home and away; the second half mirrors the first.
func doubleRoundRobin(teamIDs []string) [][]pairing {
	slots := append([]string{}, teamIDs...)
	if len(slots)%2 != 0 {
		slots = append(slots, "")
	}
	n := len(slots)

	firstLeg := make([][]pairing, 0, n-1)
	for r := 0; r < n-1; r++ {
		round := make([]pairing, 0, n/2)
		for i := 0; i < n/2; i++ {
			home, away := slots[i], slots[n-1-i]
			if home == "" || away == "" {
				continue
			}
			if r%2 == 1 {
				home, away = away, home
			}
			round = append(round, pairing{home: home, away: away})
		}
		firstLeg = append(firstLeg, round)

		last := slots[n-1]
		copy(slots[2:], slots[1:n-1])
		slots[1] = last
	}

	rounds := make([][]pairing, 0, 2*len(firstLeg))
	rounds = append(rounds, firstLeg...)
	for _, round := range firstLeg {
		mirrored := make([]pairing, 0, len(round))
		for _, p := range round {
			mirrored = append(mirrored, pairing{home: p.away, away: p.home})
		}
		rounds = append(rounds, mirrored)
	}
	return rounds
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
