package jobsearch_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/cache"
	"github.com/kiranshivaraju/jobhunter/internal/config"
	"github.com/kiranshivaraju/jobhunter/internal/jobsearch"
	"github.com/kiranshivaraju/jobhunter/internal/ledger"
	"github.com/kiranshivaraju/jobhunter/internal/matching"
	"github.com/kiranshivaraju/jobhunter/internal/store"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeStore struct {
	mu           sync.Mutex
	jobs         map[uuid.UUID]*models.Job
	order        []uuid.UUID
	searches     []*models.Search
	interactions []*models.Interaction
	states       map[string]map[uuid.UUID]ledger.Entry
	pending      int64
	searchErr    error
	lastQuery    models.JobQuery
}

func newFakeStore(jobs ...*models.Job) *fakeStore {
	s := &fakeStore{jobs: make(map[uuid.UUID]*models.Job), states: make(map[string]map[uuid.UUID]ledger.Entry)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
		s.order = append(s.order, j.ID)
	}
	return s
}

func (s *fakeStore) PendingWrites() int64 { return s.pending }

func (s *fakeStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	if j, ok := s.jobs[id]; ok {
		return j, nil
	}
	return nil, apperr.ErrUnknownJob
}

func (s *fakeStore) GetJobs(_ context.Context, ids []uuid.UUID) ([]*models.Job, error) {
	out := []*models.Job{}
	for _, id := range ids {
		if j, ok := s.jobs[id]; ok {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *fakeStore) SearchJobs(_ context.Context, q models.JobQuery) (*models.JobPage, error) {
	s.lastQuery = q
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	page := &models.JobPage{Jobs: []*models.Job{}}
	for _, id := range s.order {
		if len(page.Jobs) == q.Limit {
			break
		}
		page.Jobs = append(page.Jobs, s.jobs[id])
	}
	page.Total = len(page.Jobs)
	return page, nil
}

func (s *fakeStore) RecordSearch(_ context.Context, search *models.Search) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search.ID = uuid.New()
	s.searches = append(s.searches, search)
	return search.ID, nil
}

func (s *fakeStore) LatestSearch(_ context.Context, userID string) (*models.Search, error) {
	for i := len(s.searches) - 1; i >= 0; i-- {
		if s.searches[i].UserID == userID && s.searches[i].ResultsCount > 0 {
			return s.searches[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) RecordInteraction(_ context.Context, in *models.Interaction) (uuid.UUID, ledger.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[in.JobID]; !ok {
		return uuid.Nil, ledger.StateNone, apperr.ErrUnknownJob
	}
	if s.states[in.UserID] == nil {
		s.states[in.UserID] = make(map[uuid.UUID]ledger.Entry)
	}
	cur := s.states[in.UserID][in.JobID]
	next, err := ledger.Next(cur.State, in.Kind)
	if err != nil {
		return uuid.Nil, ledger.StateNone, err
	}
	in.ID = uuid.New()
	s.interactions = append(s.interactions, in)
	if in.Kind == models.KindViewed && cur.State != ledger.StateNone && next == cur.State {
		return in.ID, next, nil
	}
	s.states[in.UserID][in.JobID] = ledger.Entry{JobID: in.JobID, State: next, LastInteractionAt: in.OccurredAt}
	return in.ID, next, nil
}

func (s *fakeStore) ListUserJobs(_ context.Context, userID string, filter models.UserJobFilter) ([]*models.UserJob, error) {
	out := []*models.UserJob{}
	for id, e := range s.states[userID] {
		if len(filter.States) > 0 && string(e.State) != filter.States[0] {
			continue
		}
		out = append(out, &models.UserJob{Job: s.jobs[id], State: string(e.State), LastInteractionAt: e.LastInteractionAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job.ID.String() < out[j].Job.ID.String() })
	return out, nil
}

func (s *fakeStore) UserJobStates(_ context.Context, userID string, ids []uuid.UUID) (map[uuid.UUID]ledger.State, error) {
	out := make(map[uuid.UUID]ledger.State)
	for _, id := range ids {
		if e, ok := s.states[userID][id]; ok {
			out[id] = e.State
		}
	}
	return out, nil
}

func (s *fakeStore) PipelineEntries(_ context.Context, userID string) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for _, e := range s.states[userID] {
		out = append(out, e)
	}
	return out, nil
}

type fakePublisher struct {
	channel string
	events  [][]byte
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.channel = channel
	p.events = append(p.events, payload)
	return p.err
}

type fakeCounter struct {
	counts  map[string]int64
	expiry  time.Duration
	failure error
}

func (c *fakeCounter) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	if c.failure != nil {
		return 0, c.failure
	}
	if c.counts == nil {
		c.counts = make(map[string]int64)
	}
	c.counts[key]++
	c.expiry = expiry
	return c.counts[key], nil
}

// --- helpers ---

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func intPtr(i int) *int { return &i }

func baJob() *models.Job {
	posted := now.Add(-24 * time.Hour)
	return &models.Job{
		ID:                 uuid.New(),
		Title:              "Business Analyst",
		CompanyName:        "UBS",
		RequiredSkills:     []string{"SQL", "Excel", "Requirements Gathering", "Data Analysis"},
		PreferredSkills:    []string{"Tableau", "JIRA"},
		ExperienceMinYears: intPtr(5),
		ExperienceMaxYears: intPtr(10),
		PostedAt:           &posted,
		IsActive:           true,
	}
}

func baProfile() *models.Profile {
	return &models.Profile{
		Skills:          []string{"SQL", "Excel", "Requirements Gathering"},
		ExperienceYears: 8,
		TargetRole:      "Business Analyst",
		JobHistory:      []string{"business analyst", "process improvement"},
	}
}

func newService(st *fakeStore, opts ...jobsearch.Option) *jobsearch.Service {
	opts = append([]jobsearch.Option{jobsearch.WithClock(func() time.Time { return now })}, opts...)
	return jobsearch.NewService(st, matching.NewEngine(config.DefaultMatching()), jobsearch.Limits{OverloadThreshold: 10}, opts...)
}

// --- tests ---

func TestSearch_RecordsSearch(t *testing.T) {
	a, b := baJob(), baJob()
	st := newFakeStore(a, b)
	svc := newService(st)

	res, err := svc.Search(context.Background(), jobsearch.SearchParams{
		UserID:   "u1",
		Keywords: "business analyst",
		Filter:   models.JobFilter{City: "Zürich", ActiveOnly: true},
	})
	require.NoError(t, err)
	assert.Len(t, res.Jobs, 2)
	assert.Equal(t, 20, st.lastQuery.Limit, "default limit")

	require.Len(t, st.searches, 1)
	rec := st.searches[0]
	assert.Equal(t, res.SearchID, rec.ID)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "Zürich", rec.LocationFilter)
	assert.Equal(t, 2, rec.ResultsCount)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, rec.ResultJobIDs)
	require.NotNil(t, rec.TopMatchJobID)
	assert.Equal(t, a.ID, *rec.TopMatchJobID)
}

func TestSearch_InvalidFilter(t *testing.T) {
	st := newFakeStore()
	svc := newService(st)

	_, err := svc.Search(context.Background(), jobsearch.SearchParams{
		UserID: "u1",
		Filter: models.JobFilter{ExperienceLevel: "wizard"},
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidFilter)
	assert.Empty(t, st.searches)

	_, err = svc.Search(context.Background(), jobsearch.SearchParams{Keywords: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidFilter)
}

func TestSearch_Overloaded(t *testing.T) {
	st := newFakeStore()
	st.pending = 11
	svc := newService(st)

	_, err := svc.Search(context.Background(), jobsearch.SearchParams{UserID: "u1", Keywords: "x"})
	assert.ErrorIs(t, err, apperr.ErrOverloaded)
	assert.Equal(t, "OVERLOADED", apperr.Code(err))
}

func TestSearch_QuotaVeto(t *testing.T) {
	st := newFakeStore(baJob())
	counter := &fakeCounter{}
	svc := newService(st, jobsearch.WithQuota(jobsearch.DailyQuota(counter, 2, func() time.Time { return now })))

	for i := 0; i < 2; i++ {
		_, err := svc.Search(context.Background(), jobsearch.SearchParams{UserID: "u1", Keywords: "x"})
		require.NoError(t, err)
	}
	_, err := svc.Search(context.Background(), jobsearch.SearchParams{UserID: "u1", Keywords: "x"})
	assert.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	assert.Equal(t, 12*time.Hour, counter.expiry)
	assert.Equal(t, int64(3), counter.counts[cache.SearchQuotaKey("u1", now)])

	_, err = svc.Search(context.Background(), jobsearch.SearchParams{UserID: "u2", Keywords: "x"})
	assert.NoError(t, err, "quota is per user")
}

func TestSearch_QuotaBackendFailureAllows(t *testing.T) {
	st := newFakeStore(baJob())
	counter := &fakeCounter{failure: errors.New("redis down")}
	svc := newService(st, jobsearch.WithQuota(jobsearch.DailyQuota(counter, 1, nil)))

	_, err := svc.Search(context.Background(), jobsearch.SearchParams{UserID: "u1", Keywords: "x"})
	assert.NoError(t, err)
}

func TestDailyQuota_DisabledWhenZero(t *testing.T) {
	assert.Nil(t, jobsearch.DailyQuota(&fakeCounter{}, 0, nil))
}

func TestSearch_DeadlineIsApplied(t *testing.T) {
	st := newFakeStore()
	st.searchErr = context.DeadlineExceeded
	svc := newService(st)

	_, err := svc.Search(context.Background(), jobsearch.SearchParams{UserID: "u1", Keywords: "x"})
	assert.Equal(t, "DEADLINE_EXCEEDED", apperr.Code(err))
}

func TestMatch_DeterministicExample(t *testing.T) {
	j := baJob()
	st := newFakeStore(j)
	svc := newService(st)

	first, err := svc.Match(context.Background(), jobsearch.MatchParams{UserID: "u1", Profile: baProfile(), CandidateJobIDs: []uuid.UUID{j.ID}})
	require.NoError(t, err)
	require.Len(t, first.Results, 1)
	assert.Equal(t, 0.475, first.Results[0].CompositeScore)

	second, err := svc.Match(context.Background(), jobsearch.MatchParams{UserID: "u1", Profile: baProfile(), CandidateJobIDs: []uuid.UUID{j.ID}})
	require.NoError(t, err)
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, a, b)
}

func TestMatch_UsesLatestSearch(t *testing.T) {
	j1, j2 := baJob(), baJob()
	st := newFakeStore(j1, j2)
	svc := newService(st)

	res, err := svc.Search(context.Background(), jobsearch.SearchParams{UserID: "u1", Keywords: "analyst", Limit: 1})
	require.NoError(t, err)

	m, err := svc.Match(context.Background(), jobsearch.MatchParams{UserID: "u1", Profile: baProfile()})
	require.NoError(t, err)
	require.NotNil(t, m.SearchID)
	assert.Equal(t, res.SearchID, *m.SearchID)
	require.Len(t, m.Results, 1)
	assert.Equal(t, j1.ID, m.Results[0].JobID)
}

func TestMatch_NoSearchYetIsEmpty(t *testing.T) {
	svc := newService(newFakeStore())
	m, err := svc.Match(context.Background(), jobsearch.MatchParams{UserID: "u1", Profile: baProfile()})
	require.NoError(t, err)
	assert.Empty(t, m.Results)
	assert.Nil(t, m.SearchID)
}

func TestMatch_ProfileInvalid(t *testing.T) {
	svc := newService(newFakeStore())

	_, err := svc.Match(context.Background(), jobsearch.MatchParams{UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrProfileInvalid)

	_, err = svc.Match(context.Background(), jobsearch.MatchParams{UserID: "u1", Profile: &models.Profile{ExperienceYears: -2}})
	assert.ErrorIs(t, err, apperr.ErrProfileInvalid)
}

func TestMatch_UnknownCandidates(t *testing.T) {
	svc := newService(newFakeStore())
	_, err := svc.Match(context.Background(), jobsearch.MatchParams{UserID: "u1", Profile: baProfile(), CandidateJobIDs: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, apperr.ErrUnknownJob)
}

func TestMatch_TopTruncates(t *testing.T) {
	st := newFakeStore(baJob(), baJob(), baJob())
	svc := newService(st)
	ids := append([]uuid.UUID(nil), st.order...)

	m, err := svc.Match(context.Background(), jobsearch.MatchParams{UserID: "u1", Profile: baProfile(), CandidateJobIDs: ids, Top: 2})
	require.NoError(t, err)
	assert.Len(t, m.Results, 2)
}

func TestMatch_AppliedInteractionDeprioritizes(t *testing.T) {
	j := baJob()
	st := newFakeStore(j)
	svc := newService(st)
	params := jobsearch.MatchParams{UserID: "u", Profile: baProfile(), CandidateJobIDs: []uuid.UUID{j.ID}}

	control, err := svc.Match(context.Background(), params)
	require.NoError(t, err)

	for _, kind := range []string{"viewed", "saved", "applied"} {
		_, err := svc.RecordInteraction(context.Background(), "u", j.ID, kind, nil)
		require.NoError(t, err, kind)
	}

	after, err := svc.Match(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, after.Results, 1)
	assert.InDelta(t, control.Results[0].CompositeScore*0.4, after.Results[0].CompositeScore, 1e-9)
	assert.Equal(t, 0.4, after.Results[0].Multiplier)

	other, err := svc.Match(context.Background(), jobsearch.MatchParams{UserID: "someone-else", Profile: baProfile(), CandidateJobIDs: []uuid.UUID{j.ID}})
	require.NoError(t, err)
	assert.Equal(t, control.Results[0].CompositeScore, other.Results[0].CompositeScore)

	m, err := svc.Deprioritization(context.Background(), "u", j.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.MultiplierApplied, m)
}

func TestRecordInteraction_StateMachine(t *testing.T) {
	j := baJob()
	st := newFakeStore(j)
	svc := newService(st)
	ctx := context.Background()

	_, err := svc.RecordInteraction(ctx, "u", j.ID, "viewed", nil)
	require.NoError(t, err)
	_, err = svc.RecordInteraction(ctx, "u", j.ID, "applied", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	want := []ledger.State{
		ledger.StateSaved, ledger.StateApplied, ledger.StateWithdrawn,
		ledger.StateViewed, ledger.StateSaved, ledger.StateApplied,
	}
	for i, kind := range []string{"saved", "applied", "withdrawn", "viewed", "saved", "applied"} {
		res, err := svc.RecordInteraction(ctx, "u", j.ID, kind, nil)
		require.NoError(t, err, kind)
		assert.Equal(t, want[i], res.State, kind)
	}
}

func TestRecordInteraction_Errors(t *testing.T) {
	st := newFakeStore()
	svc := newService(st)

	_, err := svc.RecordInteraction(context.Background(), "u", uuid.New(), "viewed", nil)
	assert.ErrorIs(t, err, apperr.ErrUnknownJob)

	_, err = svc.RecordInteraction(context.Background(), "u", uuid.New(), "liked", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	st.pending = 100
	_, err = svc.RecordInteraction(context.Background(), "u", uuid.New(), "viewed", nil)
	assert.ErrorIs(t, err, apperr.ErrOverloaded)
}

func TestRecordInteraction_PublishesEvent(t *testing.T) {
	j := baJob()
	pub := &fakePublisher{}
	svc := newService(newFakeStore(j), jobsearch.WithEvents(pub))

	res, err := svc.RecordInteraction(context.Background(), "u", j.ID, "viewed", map[string]any{"source": "email"})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, cache.InteractionsChannel, pub.channel)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(pub.events[0], &ev))
	assert.Equal(t, res.InteractionID.String(), ev["interaction_id"])
	assert.Equal(t, "viewed", ev["kind"])
	assert.Equal(t, "viewed", ev["state"])
}

func TestRecordInteraction_PublishFailureIsNotFatal(t *testing.T) {
	j := baJob()
	svc := newService(newFakeStore(j), jobsearch.WithEvents(&fakePublisher{err: errors.New("redis down")}))

	_, err := svc.RecordInteraction(context.Background(), "u", j.ID, "viewed", nil)
	assert.NoError(t, err)
}

func TestViews_RepeatedViewedIsIdempotent(t *testing.T) {
	j1, j2 := baJob(), baJob()
	st := newFakeStore(j1, j2)
	svc := newService(st)
	ctx := context.Background()

	_, err := svc.RecordInteraction(ctx, "u", j1.ID, "viewed", nil)
	require.NoError(t, err)
	_, err = svc.RecordInteraction(ctx, "u", j2.ID, "viewed", nil)
	require.NoError(t, err)
	_, err = svc.RecordInteraction(ctx, "u", j2.ID, "saved", nil)
	require.NoError(t, err)

	before, err := svc.Pipeline(ctx, "u")
	require.NoError(t, err)
	_, err = svc.RecordInteraction(ctx, "u", j1.ID, "viewed", nil)
	require.NoError(t, err)
	after, err := svc.Pipeline(ctx, "u")
	require.NoError(t, err)

	assert.Equal(t, before.Counts, after.Counts)
	assert.Equal(t, 1, after.Counts[ledger.StateViewed])
	assert.Equal(t, 1, after.Counts[ledger.StateSaved])
	assert.Len(t, st.interactions, 4)

	saved, err := svc.ListUserJobs(ctx, "u", "saved", 0)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, j2.ID, saved[0].Job.ID)

	_, err = svc.ListUserJobs(ctx, "u", "dreaming", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidFilter)
}

func TestViews_RepeatedViewKeepsSavedOrder(t *testing.T) {
	j1, j2 := baJob(), baJob()
	st := newFakeStore(j1, j2)
	tick := now
	svc := newService(st, jobsearch.WithClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}))
	ctx := context.Background()

	for _, step := range []struct {
		job  uuid.UUID
		kind string
	}{
		{j1.ID, "viewed"}, {j1.ID, "saved"},
		{j2.ID, "viewed"}, {j2.ID, "saved"},
	} {
		_, err := svc.RecordInteraction(ctx, "u", step.job, step.kind, nil)
		require.NoError(t, err)
	}

	before, err := svc.Pipeline(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{j2.ID, j1.ID}, before.Jobs[ledger.StateSaved])

	_, err = svc.RecordInteraction(ctx, "u", j1.ID, "viewed", nil)
	require.NoError(t, err)

	after, err := svc.Pipeline(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, st.interactions, 5)
}

func TestGetJob(t *testing.T) {
	j := baJob()
	svc := newService(newFakeStore(j))

	got, err := svc.GetJob(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)

	_, err = svc.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrUnknownJob)
}
