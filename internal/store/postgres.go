package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/textindex"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

const (
	defaultSearchLimit    = 20
	defaultSearchLimitMax = 100
	defaultDeadlineGrace  = 3
	defaultRankCandidates = 5000
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool           *pgxpool.Pool
	now            func() time.Time
	limitDefault   int
	limitMax       int
	deadlineGrace  int
	rankCandidates int
	pending        atomic.Int64
}

type Option func(*PostgresStore)

// WithClock replaces time.Now for last_updated and deadline checks.
func WithClock(now func() time.Time) Option {
	return func(s *PostgresStore) { s.now = now }
}

// WithSearchLimits sets the page size used when a query names none and the
// ceiling every requested limit is clamped to.
func WithSearchLimits(defaultLimit, max int) Option {
	return func(s *PostgresStore) {
		if defaultLimit > 0 {
			s.limitDefault = defaultLimit
		}
		if max > 0 {
			s.limitMax = max
		}
	}
}

// WithDeadlineGrace sets how many consecutive scrapes past the application
// deadline a job survives before it is deactivated.
func WithDeadlineGrace(n int) Option {
	return func(s *PostgresStore) {
		if n > 0 {
			s.deadlineGrace = n
		}
	}
}

// WithRankCandidates sets how many keyword matches are reranked by BM25.
// Matches past the cut follow in term-hit order.
func WithRankCandidates(n int) Option {
	return func(s *PostgresStore) {
		if n > 0 {
			s.rankCandidates = n
		}
	}
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	s := &PostgresStore{
		pool:           pool,
		now:            time.Now,
		limitDefault:   defaultSearchLimit,
		limitMax:       defaultSearchLimitMax,
		deadlineGrace:  defaultDeadlineGrace,
		rankCandidates: defaultRankCandidates,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limitDefault > s.limitMax {
		s.limitDefault = s.limitMax
	}
	return s
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

// PendingWrites is the number of write transactions currently in flight.
func (s *PostgresStore) PendingWrites() int64 {
	return s.pending.Load()
}

func (s *PostgresStore) track() func() {
	s.pending.Add(1)
	return func() { s.pending.Add(-1) }
}

func (s *PostgresStore) clock() time.Time {
	return s.now().UTC()
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// --- Jobs ---

const jobColumns = `id, title, company_name, company_industry, location_city, location_region, location_country,
	work_location_type, employment_type, experience_level, experience_min_years, experience_max_years,
	posted_at, application_deadline, description, requirements, required_skills, preferred_skills,
	salary_min, salary_max, salary_currency, salary_period, apply_urls, data_source, scraped_at,
	last_updated, is_active, deactivated_reason, merged_into`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	var workType, employment, level, period *string
	err := row.Scan(&j.ID, &j.Title, &j.CompanyName, &j.CompanyIndustry,
		&j.Location.City, &j.Location.Region, &j.Location.Country,
		&workType, &employment, &level, &j.ExperienceMinYears, &j.ExperienceMaxYears,
		&j.PostedAt, &j.ApplicationDeadline, &j.Description, &j.Requirements, &j.RequiredSkills, &j.PreferredSkills,
		&j.Salary.Min, &j.Salary.Max, &j.Salary.Currency, &period, &j.ApplyURLs, &j.DataSource, &j.ScrapedAt,
		&j.LastUpdated, &j.IsActive, &j.DeactivatedReason, &j.MergedInto)
	if err != nil {
		return nil, err
	}
	if workType != nil {
		j.WorkLocationType = models.ParseWorkLocationType(*workType)
	}
	if employment != nil {
		j.EmploymentType = models.ParseEmploymentType(*employment)
	}
	if level != nil {
		j.ExperienceLevel = models.ParseExperienceLevel(*level)
	}
	if period != nil {
		j.Salary.Period = models.ParseSalaryPeriod(*period)
	}
	j.ExternalIDs = map[string]string{}
	return &j, nil
}

func enumArg[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

type externalKey struct {
	provider string
	id       string
}

func (k externalKey) lockName() string { return k.provider + ":" + k.id }

func sortedKeys(ids map[string]string) []externalKey {
	keys := make([]externalKey, 0, len(ids))
	for p, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		keys = append(keys, externalKey{provider: p, id: id})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].lockName() < keys[j].lockName() })
	return keys
}

// UpsertJob inserts a job or merges it into the canonical job that already
// owns one of its external ids. When the incoming ids resolve to several
// canonical jobs they converge on the oldest, the others are marked merged.
func (s *PostgresStore) UpsertJob(ctx context.Context, job *models.Job) (uuid.UUID, bool, error) {
	if err := job.Validate(); err != nil {
		return uuid.Nil, false, fmt.Errorf("upsert job: %w", err)
	}
	for p := range job.ExternalIDs {
		if !models.IsKnownProvider(p) {
			return uuid.Nil, false, fmt.Errorf("upsert job: unknown provider %q", p)
		}
	}
	defer s.track()()

	now := s.clock()
	incoming := *job
	incoming.RequiredSkills = models.NormalizeSkills(job.RequiredSkills)
	incoming.PreferredSkills = models.NormalizeSkills(job.PreferredSkills)
	if incoming.ScrapedAt.IsZero() {
		incoming.ScrapedAt = now
	}
	keys := sortedKeys(incoming.ExternalIDs)

	var id uuid.UUID
	var created bool
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, k := range keys {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, k.lockName()); err != nil {
				return fmt.Errorf("lock external id %s: %w", k.lockName(), err)
			}
		}

		owners, err := lookupOwners(ctx, tx, keys)
		if err != nil {
			return err
		}

		if len(owners) == 0 {
			id = uuid.New()
			created = true
			incoming.ID = id
			incoming.DeactivatedReason = nil
			incoming.MergedInto = nil
			expired := 0
			if pastDeadline(&incoming, now) {
				expired = 1
			}
			s.applyLifecycle(&incoming, true, expired)
			if err := insertJob(ctx, tx, &incoming, expired, now); err != nil {
				return err
			}
			return insertExternalIDs(ctx, tx, id, keys, now)
		}

		id = owners[0]
		canonical, expired, err := lockJob(ctx, tx, id)
		if err != nil {
			return err
		}
		wasActive := canonical.IsActive
		for _, other := range owners[1:] {
			absorbed, _, err := lockJob(ctx, tx, other)
			if err != nil {
				return err
			}
			canonical = models.MergeJob(canonical, absorbed)
			if err := absorbJob(ctx, tx, id, other, now); err != nil {
				return err
			}
		}

		merged := models.MergeJob(canonical, &incoming)
		merged.ID = id
		merged.MergedInto = nil
		if pastDeadline(merged, now) {
			expired++
		} else {
			expired = 0
		}
		s.applyLifecycle(merged, wasActive, expired)
		if err := updateJob(ctx, tx, merged, expired, now); err != nil {
			return err
		}
		return insertExternalIDs(ctx, tx, id, keys, now)
	})
	if err != nil {
		return uuid.Nil, false, wrapErr("upsert job", err)
	}
	return id, created, nil
}

func pastDeadline(j *models.Job, now time.Time) bool {
	return j.ApplicationDeadline != nil && j.ApplicationDeadline.Before(now)
}

// applyLifecycle settles is_active and deactivated_reason after a merge.
func (s *PostgresStore) applyLifecycle(j *models.Job, wasActive bool, expiredScrapes int) {
	if j.IsActive && expiredScrapes >= s.deadlineGrace {
		j.IsActive = false
		reason := ReasonDeadlinePassed
		j.DeactivatedReason = &reason
		return
	}
	if j.IsActive {
		j.DeactivatedReason = nil
		return
	}
	if wasActive || j.DeactivatedReason == nil {
		reason := ReasonClosed
		j.DeactivatedReason = &reason
	}
}

func lookupOwners(ctx context.Context, q querier, keys []externalKey) ([]uuid.UUID, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	providers := make([]string, len(keys))
	ids := make([]string, len(keys))
	for i, k := range keys {
		providers[i] = k.provider
		ids[i] = k.id
	}
	rows, err := q.Query(ctx,
		`SELECT DISTINCT j.id, j.scraped_at
		 FROM job_external_ids e JOIN jobs j ON j.id = e.job_id
		 WHERE (e.provider, e.external_id) IN (SELECT * FROM unnest($1::text[], $2::text[]))
		 ORDER BY j.scraped_at, j.id`, providers, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup external ids: %w", err)
	}
	defer rows.Close()

	var owners []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		var scrapedAt time.Time
		if err := rows.Scan(&id, &scrapedAt); err != nil {
			return nil, fmt.Errorf("scan external id owner: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

func lockJob(ctx context.Context, q querier, id uuid.UUID) (*models.Job, int, error) {
	var expired int
	row := q.QueryRow(ctx, `SELECT `+jobColumns+`, expired_scrapes FROM jobs WHERE id = $1 FOR UPDATE`, id)
	j, err := scanJobWith(row, &expired)
	if err != nil {
		return nil, 0, fmt.Errorf("lock job %s: %w", id, err)
	}
	if err := loadExternalIDs(ctx, q, []*models.Job{j}); err != nil {
		return nil, 0, err
	}
	return j, expired, nil
}

// scanJobWith scans jobColumns followed by extra trailing columns.
func scanJobWith(row pgx.Row, extra ...any) (*models.Job, error) {
	return scanJob(rowWithExtra{row: row, extra: extra})
}

type rowWithExtra struct {
	row   pgx.Row
	extra []any
}

func (r rowWithExtra) Scan(dest ...any) error {
	return r.row.Scan(append(dest, r.extra...)...)
}

type searchDoc struct {
	title       string
	company     string
	description string
	terms       []string
	length      int
}

func indexJob(j *models.Job) searchDoc {
	title := textindex.Tokenize(j.Title)
	company := textindex.Tokenize(j.CompanyName)
	desc := textindex.Tokenize(j.Description)

	seen := make(map[string]bool)
	var terms []string
	for _, field := range [][]string{title, company, desc} {
		for _, t := range field {
			if !seen[t] {
				seen[t] = true
				terms = append(terms, t)
			}
		}
	}
	sort.Strings(terms)
	return searchDoc{
		title:       strings.Join(title, " "),
		company:     strings.Join(company, " "),
		description: strings.Join(desc, " "),
		terms:       terms,
		length:      len(title) + len(company) + len(desc),
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func insertJob(ctx context.Context, q querier, j *models.Job, expired int, now time.Time) error {
	doc := indexJob(j)
	_, err := q.Exec(ctx,
		`INSERT INTO jobs (id, title, company_name, company_industry, location_city, location_region, location_country,
		   location_city_key, work_location_type, employment_type, experience_level, experience_min_years,
		   experience_max_years, posted_at, application_deadline, description, requirements, required_skills,
		   preferred_skills, salary_min, salary_max, salary_currency, salary_period, apply_urls, data_source,
		   scraped_at, last_updated, is_active, deactivated_reason, expired_scrapes,
		   search_title, search_company, search_description, search_terms, search_length)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
		   $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35)`,
		j.ID, j.Title, j.CompanyName, j.CompanyIndustry, j.Location.City, j.Location.Region, j.Location.Country,
		cityKey(j.Location.City), enumArg(j.WorkLocationType), enumArg(j.EmploymentType), enumArg(j.ExperienceLevel),
		j.ExperienceMinYears, j.ExperienceMaxYears, j.PostedAt, j.ApplicationDeadline, j.Description,
		nonNilStrings(j.Requirements), nonNilStrings(j.RequiredSkills), nonNilStrings(j.PreferredSkills),
		j.Salary.Min, j.Salary.Max, j.Salary.Currency, enumArg(j.Salary.Period), nonNilMap(j.ApplyURLs), j.DataSource,
		j.ScrapedAt, now, j.IsActive, j.DeactivatedReason, expired,
		doc.title, doc.company, doc.description, nonNilStrings(doc.terms), doc.length)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func updateJob(ctx context.Context, q querier, j *models.Job, expired int, now time.Time) error {
	doc := indexJob(j)
	_, err := q.Exec(ctx,
		`UPDATE jobs SET title = $2, company_name = $3, company_industry = $4, location_city = $5,
		   location_region = $6, location_country = $7, location_city_key = $8, work_location_type = $9,
		   employment_type = $10, experience_level = $11, experience_min_years = $12, experience_max_years = $13,
		   posted_at = $14, application_deadline = $15, description = $16, requirements = $17,
		   required_skills = $18, preferred_skills = $19, salary_min = $20, salary_max = $21,
		   salary_currency = $22, salary_period = $23, apply_urls = $24, scraped_at = $25,
		   last_updated = GREATEST(last_updated, $26), is_active = $27, deactivated_reason = $28,
		   expired_scrapes = $29, search_title = $30, search_company = $31, search_description = $32,
		   search_terms = $33, search_length = $34
		 WHERE id = $1`,
		j.ID, j.Title, j.CompanyName, j.CompanyIndustry, j.Location.City,
		j.Location.Region, j.Location.Country, cityKey(j.Location.City), enumArg(j.WorkLocationType),
		enumArg(j.EmploymentType), enumArg(j.ExperienceLevel), j.ExperienceMinYears, j.ExperienceMaxYears,
		j.PostedAt, j.ApplicationDeadline, j.Description, nonNilStrings(j.Requirements),
		nonNilStrings(j.RequiredSkills), nonNilStrings(j.PreferredSkills), j.Salary.Min, j.Salary.Max,
		j.Salary.Currency, enumArg(j.Salary.Period), nonNilMap(j.ApplyURLs), j.ScrapedAt,
		now, j.IsActive, j.DeactivatedReason,
		expired, doc.title, doc.company, doc.description,
		nonNilStrings(doc.terms), doc.length)
	if err != nil {
		return fmt.Errorf("update job %s: %w", j.ID, err)
	}
	return nil
}

func insertExternalIDs(ctx context.Context, q querier, jobID uuid.UUID, keys []externalKey, now time.Time) error {
	for _, k := range keys {
		if _, err := q.Exec(ctx,
			`INSERT INTO job_external_ids (provider, external_id, job_id, first_seen_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (provider, external_id) DO NOTHING`,
			k.provider, k.id, jobID, now); err != nil {
			return fmt.Errorf("insert external id %s: %w", k.lockName(), err)
		}
	}
	return nil
}

// absorbJob re-points everything referencing other to canonical and marks
// other as merged.
func absorbJob(ctx context.Context, q querier, canonical, other uuid.UUID, now time.Time) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"external ids", `UPDATE job_external_ids SET job_id = $1 WHERE job_id = $2`},
		// The canonical pair's history stays authoritative. A user's rows on
		// the absorbed job move only when they have none on the canonical one;
		// otherwise they stay on the absorbed id as history.
		{"interactions", `UPDATE interactions i SET job_id = $1 WHERE i.job_id = $2
			AND NOT EXISTS (SELECT 1 FROM user_job_states s WHERE s.user_id = i.user_id AND s.job_id = $1)`},
		{"user states", `INSERT INTO user_job_states (user_id, job_id, state, last_interaction_at)
			SELECT user_id, $1::uuid, state, last_interaction_at FROM user_job_states WHERE job_id = $2
			ON CONFLICT (user_id, job_id) DO NOTHING`},
		{"searches", `UPDATE searches SET top_match_job_id = $1 WHERE top_match_job_id = $2`},
		{"merge chain", `UPDATE jobs SET merged_into = $1 WHERE merged_into = $2`},
	}
	for _, st := range stmts {
		if _, err := q.Exec(ctx, st.sql, canonical, other); err != nil {
			return fmt.Errorf("absorb job %s (%s): %w", other, st.name, err)
		}
	}
	if _, err := q.Exec(ctx, `DELETE FROM user_job_states WHERE job_id = $1`, other); err != nil {
		return fmt.Errorf("absorb job %s (stale user states): %w", other, err)
	}
	_, err := q.Exec(ctx,
		`UPDATE jobs SET merged_into = $1, is_active = FALSE, deactivated_reason = $3,
		   last_updated = GREATEST(last_updated, $4)
		 WHERE id = $2`, canonical, other, ReasonMerged, now)
	if err != nil {
		return fmt.Errorf("absorb job %s: %w", other, err)
	}
	return nil
}

func cityKey(city string) string {
	return textindex.Fold(strings.Join(strings.Fields(city), " "))
}

func loadExternalIDs(ctx context.Context, q querier, jobs []*models.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Job, len(jobs))
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
		ids = append(ids, j.ID.String())
	}
	rows, err := q.Query(ctx,
		`SELECT job_id, provider, external_id FROM job_external_ids
		 WHERE job_id = ANY($1::uuid[]) ORDER BY provider, first_seen_at`, ids)
	if err != nil {
		return fmt.Errorf("load external ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var jobID uuid.UUID
		var provider, externalID string
		if err := rows.Scan(&jobID, &provider, &externalID); err != nil {
			return fmt.Errorf("scan external id: %w", err)
		}
		if j, ok := byID[jobID]; ok {
			if _, dup := j.ExternalIDs[provider]; !dup {
				j.ExternalIDs[provider] = externalID
			}
		}
	}
	return rows.Err()
}

// GetJob returns the canonical job for id, following a merge if id was
// absorbed into another job.
func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE id = (SELECT COALESCE(merged_into, id) FROM jobs WHERE id = $1)`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get job %s: %w", id, apperr.ErrUnknownJob)
	}
	if err != nil {
		return nil, wrapErr("get job", err)
	}
	if err := loadExternalIDs(ctx, s.pool, []*models.Job{j}); err != nil {
		return nil, wrapErr("get job", err)
	}
	return j, nil
}

// GetJobs returns the canonical jobs for ids in the order asked. Unknown ids
// are skipped and merged ids resolve to (and dedupe onto) their canonical job.
func (s *PostgresStore) GetJobs(ctx context.Context, ids []uuid.UUID) ([]*models.Job, error) {
	if len(ids) == 0 {
		return []*models.Job{}, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	rows, err := s.pool.Query(ctx,
		`SELECT r.requested, `+prefixed("j", jobColumns)+`
		 FROM (SELECT id AS requested, COALESCE(merged_into, id) AS canonical
		       FROM jobs WHERE id = ANY($1::uuid[])) r
		 JOIN jobs j ON j.id = r.canonical`, raw)
	if err != nil {
		return nil, wrapErr("get jobs", err)
	}
	defer rows.Close()

	byRequested := make(map[uuid.UUID]*models.Job, len(ids))
	for rows.Next() {
		var requested uuid.UUID
		j, err := scanJob(rowWithLeading{row: rows, lead: []any{&requested}})
		if err != nil {
			return nil, wrapErr("scan job", err)
		}
		byRequested[requested] = j
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("get jobs", err)
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		j, ok := byRequested[id]
		if !ok || seen[j.ID] {
			continue
		}
		seen[j.ID] = true
		out = append(out, j)
	}
	if err := loadExternalIDs(ctx, s.pool, out); err != nil {
		return nil, wrapErr("get jobs", err)
	}
	return out, nil
}

type rowWithLeading struct {
	row  pgx.Row
	lead []any
}

func (r rowWithLeading) Scan(dest ...any) error {
	return r.row.Scan(append(append([]any{}, r.lead...), dest...)...)
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// DeactivateJob marks a job inactive. Deactivating an inactive job is a
// no-op and leaves last_updated untouched.
func (s *PostgresStore) DeactivateJob(ctx context.Context, id uuid.UUID, reason string) error {
	defer s.track()()
	if strings.TrimSpace(reason) == "" {
		reason = ReasonClosed
	}

	var canonical uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(merged_into, id) FROM jobs WHERE id = $1`, id).Scan(&canonical)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("deactivate job %s: %w", id, apperr.ErrUnknownJob)
	}
	if err != nil {
		return wrapErr("deactivate job", err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE jobs SET is_active = FALSE, deactivated_reason = $2, last_updated = GREATEST(last_updated, $3)
		 WHERE id = $1 AND is_active`, canonical, reason, s.clock())
	if err != nil {
		return wrapErr("deactivate job", err)
	}
	return nil
}

// --- Errors ---

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception, 57P01..03: shutdown
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P")
	}
	return strings.Contains(err.Error(), "closed pool")
}

// wrapErr prefixes op and tags connectivity failures as ErrStoreUnavailable.
func wrapErr(op string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
