package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/team"
	"github.com/riskibarqy/matchday-pipeline/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/clock"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
)

const (
	testDay    = "2026-03-01"
	testLeague = "L1"
	testSeason = "S1"
	testHome   = "T1"
	testAway   = "T2"
)

// Istanbul is UTC+3 all year, so tonight's 19:00 kickoff is 16:00Z.
var (
	testKickoff = time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC)
	testLockAt  = time.Date(2026, 3, 1, 15, 35, 0, 0, time.UTC)
)

type fakeTrigger struct {
	mu    sync.Mutex
	specs []MatchSpec
	err   error
}

func (f *fakeTrigger) Trigger(_ context.Context, spec MatchSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = append(f.specs, spec)
	return f.err
}

func (f *fakeTrigger) calls() []MatchSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MatchSpec(nil), f.specs...)
}

type queuedCall struct {
	path    string
	payload any
	delay   time.Duration
	dedupID string
}

type fakeQueue struct {
	mu    sync.Mutex
	items []queuedCall
	err   error
}

func (f *fakeQueue) Enqueue(_ context.Context, path string, payload any, delay time.Duration, dedupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, queuedCall{path: path, payload: payload, delay: delay, dedupID: dedupID})
	return nil
}

func (f *fakeQueue) calls() []queuedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queuedCall(nil), f.items...)
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []Alert
}

func (f *fakeAlerter) Alert(_ context.Context, alert Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeAlerter) sent() []Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Alert(nil), f.alerts...)
}

var errBlobMissing = errors.New("blob not found")

type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	signed  []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	if !ok {
		return nil, errBlobMissing
	}
	return body, nil
}

func (f *fakeBlobStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeBlobStore) Put(_ context.Context, key string, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), body...)
	return nil
}

func (f *fakeBlobStore) SignedReadURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signed = append(f.signed, "GET "+key+" "+ttl.String())
	return "https://blobs.test/" + key + "?op=get", nil
}

func (f *fakeBlobStore) SignedWriteURL(_ context.Context, key, _ string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signed = append(f.signed, "PUT "+key+" "+ttl.String())
	return "https://blobs.test/" + key + "?op=put", nil
}

type envOptions struct {
	now       time.Time
	noTrigger bool
	dispatch  DispatchConfig
	result    ResultConfig
	watchdog  WatchdogConfig
	batch     BatchConfig
}

type testEnv struct {
	store      *memory.Store
	clk        clock.Clock
	fixtures   *memory.FixtureRepository
	plans      *memory.MatchPlanRepository
	teams      *memory.TeamRepository
	leagues    *memory.LeagueRepository
	standings  *memory.LeagueStandingRepository
	failedJobs *memory.FailedJobRepository
	heartbeats *memory.HeartbeatRepository
	dispatches *memory.JobDispatchRepository

	trigger *fakeTrigger
	queue   *fakeQueue
	alerter *fakeAlerter
	blobs   *fakeBlobStore

	health       *HeartbeatService
	lock         *LockService
	dispatch     *DispatchService
	results      *ResultService
	watchdog     *WatchdogService
	batch        *BatchService
	schedule     *ScheduleService
	standingsSvc *StandingsService
}

func newTestEnv(t *testing.T, opts ...func(*envOptions)) *testEnv {
	t.Helper()

	options := envOptions{now: testLockAt}
	for _, opt := range opts {
		opt(&options)
	}
	loc, err := clock.LoadLocation(clock.DefaultTimezone)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	store := memory.NewStore()
	env := &testEnv{
		store:      store,
		clk:        clock.Fixed(loc, options.now),
		fixtures:   memory.NewFixtureRepository(store),
		plans:      memory.NewMatchPlanRepository(store),
		teams:      memory.NewTeamRepository(store),
		leagues:    memory.NewLeagueRepository(store),
		standings:  memory.NewLeagueStandingRepository(store),
		failedJobs: memory.NewFailedJobRepository(store),
		heartbeats: memory.NewHeartbeatRepository(store),
		dispatches: memory.NewJobDispatchRepository(store),
		trigger:    &fakeTrigger{},
		queue:      &fakeQueue{},
		alerter:    &fakeAlerter{},
		blobs:      newFakeBlobStore(),
	}

	logger := logging.NewNop()
	tasks := NewTaskScheduler(env.queue, env.dispatches, logger)
	var trigger WorkerTrigger = env.trigger
	if options.noTrigger {
		trigger = nil
	}

	env.health = NewHeartbeatService(env.heartbeats, env.fixtures, env.alerter, env.clk, HeartbeatConfig{}, logger)
	env.lock = NewLockService(env.fixtures, env.plans, env.teams, env.health, env.clk, LockConfig{Workers: 4}, logger)
	env.lock.newSeed = func() int64 { return 4242 }
	env.dispatch = NewDispatchService(env.fixtures, env.plans, env.teams, env.leagues, trigger, tasks, env.health, env.clk, options.dispatch, logger)
	env.results = NewResultService(memory.NewResultCommitter(store), env.fixtures, env.leagues, env.blobs, env.alerter, env.clk, options.result, logger)
	env.watchdog = NewWatchdogService(env.fixtures, env.failedJobs, env.dispatch, tasks, env.alerter, env.clk, options.watchdog, logger)
	env.batch = NewBatchService(env.fixtures, env.plans, env.leagues, env.blobs, env.health, env.clk, options.batch, logger)
	env.batch.newSeed = func() int64 { return 777 }
	env.schedule = NewScheduleService(env.leagues, env.teams, env.fixtures, env.clk, logger)
	env.standingsSvc = NewStandingsService(env.leagues, env.standings)
	return env
}

func testTeam(id, name string) team.Team {
	t := team.Team{
		ID:       id,
		LeagueID: testLeague,
		Name:     name,
		Lineup: team.Lineup{
			Formation: "4-4-2",
			Tactics:   map[string]any{"pressing": "high"},
			Starters:  []string{id + "-gk", id + "-st"},
			Subs:      []string{id + "-sub"},
		},
		Players: []team.Player{
			{ID: id + "-gk", Position: "GK", Overall: 71},
			{ID: id + "-st", Position: "FW", Overall: 80},
			{ID: id + "-sub", Position: "MF", Overall: 65},
		},
	}
	return t
}

// seedMatchday stores league L1 (scheduled), teams T1 and T2 and fixture
// M1 kicking off tonight.
func (e *testEnv) seedMatchday() {
	e.store.PutLeagues(league.League{ID: testLeague, Name: "League One", SeasonID: testSeason, State: league.StateScheduled})
	e.store.PutTeams(testTeam(testHome, "Home FC"), testTeam(testAway, "Away FC"))
	e.addFixture("M1", testKickoff, fixture.StatusScheduled)
}

func (e *testEnv) addFixture(id string, kickoff time.Time, status fixture.Status) {
	e.store.PutFixtures(fixture.Fixture{
		ID:         id,
		LeagueID:   testLeague,
		SeasonID:   testSeason,
		HomeTeamID: testHome,
		AwayTeamID: testAway,
		KickoffAt:  kickoff,
		Status:     status,
	})
}

func (e *testEnv) fixture(t *testing.T, id string) fixture.Fixture {
	t.Helper()
	item, ok, err := e.fixtures.GetByID(context.Background(), testLeague, id)
	if err != nil || !ok {
		t.Fatalf("get fixture %s: ok=%v err=%v", id, ok, err)
	}
	return item
}
