package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/textindex"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

// Field weights for lexical ranking. Title matches dominate.
const (
	titleWeight       = 3.0
	companyWeight     = 1.5
	descriptionWeight = 1.0
)

const cursorPrefix = "o:"

func encodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

func decodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || !strings.HasPrefix(string(raw), cursorPrefix) {
		return 0, fmt.Errorf("%w: malformed cursor", apperr.ErrInvalidFilter)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(string(raw), cursorPrefix))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: malformed cursor", apperr.ErrInvalidFilter)
	}
	return n, nil
}

func (s *PostgresStore) clampLimit(limit int) int {
	if limit <= 0 {
		return s.limitDefault
	}
	if limit > s.limitMax {
		return s.limitMax
	}
	return limit
}

// filterClause builds the WHERE conditions for f, numbering placeholders
// from len(args)+1.
func filterClause(f models.JobFilter, args []any) ([]string, []any) {
	conds := []string{"merged_into IS NULL"}
	argIdx := len(args) + 1

	if city := cityKey(f.City); city != "" {
		conds = append(conds, fmt.Sprintf("location_city_key = $%d", argIdx))
		args = append(args, city)
		argIdx++
	}
	if v := models.ParseExperienceLevel(f.ExperienceLevel); v != nil {
		conds = append(conds, fmt.Sprintf("experience_level = $%d", argIdx))
		args = append(args, string(*v))
		argIdx++
	}
	if v := models.ParseEmploymentType(f.EmploymentType); v != nil {
		conds = append(conds, fmt.Sprintf("employment_type = $%d", argIdx))
		args = append(args, string(*v))
		argIdx++
	}
	if v := models.ParseWorkLocationType(f.WorkLocationType); v != nil {
		conds = append(conds, fmt.Sprintf("work_location_type = $%d", argIdx))
		args = append(args, string(*v))
		argIdx++
	}
	if f.SalaryMin != nil {
		conds = append(conds, fmt.Sprintf("COALESCE(salary_max, salary_min) >= $%d", argIdx))
		args = append(args, *f.SalaryMin)
		argIdx++
	}
	if f.PostedAfter != nil {
		conds = append(conds, fmt.Sprintf("posted_at >= $%d", argIdx))
		args = append(args, *f.PostedAfter)
		argIdx++
	}
	if f.ActiveOnly {
		conds = append(conds, "is_active")
	}
	return conds, args
}

func distinctTerms(keywords string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, t := range textindex.Tokenize(keywords) {
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	return terms
}

// tsQuery ORs the quoted lexemes; tokens never contain quotes.
func tsQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = "'" + t + "'"
	}
	return strings.Join(quoted, " | ")
}

// SearchJobs ranks jobs matching any keyword by BM25 over title, company and
// description, ties broken by newer posted_at then id. Without keywords it
// lists matching jobs newest first.
func (s *PostgresStore) SearchJobs(ctx context.Context, q models.JobQuery) (*models.JobPage, error) {
	if err := q.Filter.Validate(); err != nil {
		return nil, fmt.Errorf("search jobs: %w: %v", apperr.ErrInvalidFilter, err)
	}
	offset, err := decodeCursor(q.Cursor)
	if err != nil {
		return nil, err
	}
	limit := s.clampLimit(q.Limit)

	terms := distinctTerms(q.Keywords)
	if len(terms) == 0 {
		return s.browse(ctx, q.Filter, limit, offset)
	}
	return s.rank(ctx, q.Keywords, terms, q.Filter, limit, offset)
}

func (s *PostgresStore) browse(ctx context.Context, f models.JobFilter, limit, offset int) (*models.JobPage, error) {
	conds, args := filterClause(f, nil)
	where := strings.Join(conds, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, wrapErr("count jobs", err)
	}

	argIdx := len(args) + 1
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE %s
		ORDER BY posted_at DESC NULLS LAST, id LIMIT $%d OFFSET $%d`, jobColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list jobs", err)
	}
	defer rows.Close()

	page := &models.JobPage{Jobs: []*models.Job{}, Scores: []float64{}, Total: total}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, wrapErr("scan job", err)
		}
		page.Jobs = append(page.Jobs, j)
		page.Scores = append(page.Scores, 0)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list jobs", err)
	}
	if err := loadExternalIDs(ctx, s.pool, page.Jobs); err != nil {
		return nil, wrapErr("list jobs", err)
	}
	if offset+limit < total {
		page.NextCursor = encodeCursor(offset + limit)
	}
	return page, nil
}

type candidate struct {
	id       uuid.UUID
	postedAt *time.Time
	score    float64
}

// rank orders matches in two stages. SQL prefilters by query-term hits
// (title hits first, then distinct terms matched, then recency) and the
// first rankCandidates rows are reranked by BM25. Matches past that cut
// follow in prefilter order, so every match stays reachable by paging and
// Total is exact.
func (s *PostgresStore) rank(ctx context.Context, keywords string, terms []string, f models.JobFilter, limit, offset int) (*models.JobPage, error) {
	stats, err := s.corpusStats(ctx, terms)
	if err != nil {
		return nil, err
	}
	scorer := textindex.NewBM25(keywords, stats)

	args := []any{tsQuery(terms), terms}
	conds, args := filterClause(f, args)
	conds = append(conds, "search_vector @@ $1::tsquery")
	where := strings.Join(conds, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, wrapErr("count matches", err)
	}
	page := &models.JobPage{Jobs: []*models.Job{}, Scores: []float64{}, Total: total}
	if offset >= total {
		return page, nil
	}

	head, err := s.candidates(ctx, scorer, where, args, s.rankCandidates, 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(head, func(i, j int) bool { return ranksBefore(head[i], head[j]) })

	end := min(offset+limit, total)
	var window []candidate
	if offset < len(head) {
		window = append(window, head[offset:min(end, len(head))]...)
	}
	if end > len(head) {
		from := max(offset, len(head))
		tail, err := s.candidates(ctx, scorer, where, args, end-from, from)
		if err != nil {
			return nil, err
		}
		window = append(window, tail...)
	}

	ids := make([]uuid.UUID, len(window))
	scoreByID := make(map[uuid.UUID]float64, len(window))
	for i, c := range window {
		ids[i] = c.id
		scoreByID[c.id] = c.score
	}
	jobs, err := s.GetJobs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		page.Jobs = append(page.Jobs, j)
		page.Scores = append(page.Scores, scoreByID[j.ID])
	}
	if end < total {
		page.NextCursor = encodeCursor(end)
	}
	return page, nil
}

// prefilterOrder ranks by hits of the terms in $2: distinct title hits, then
// distinct terms matched anywhere.
const prefilterOrder = `cardinality(ARRAY(
		SELECT unnest(string_to_array(search_title, ' ')) INTERSECT SELECT unnest($2::text[]))) DESC,
	ts_rank(search_vector, $1::tsquery) DESC,
	posted_at DESC NULLS LAST, id`

// candidates reads matches in prefilter order and scores them with BM25.
func (s *PostgresStore) candidates(ctx context.Context, scorer *textindex.BM25, where string, args []any, limit, offset int) ([]candidate, error) {
	argIdx := len(args) + 1
	query := fmt.Sprintf(`SELECT id, posted_at, search_title, search_company, search_description
		FROM jobs WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`, where, prefilterOrder, argIdx, argIdx+1)

	rows, err := s.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, wrapErr("search jobs", err)
	}
	defer rows.Close()

	var cands []candidate
	for rows.Next() {
		var c candidate
		var title, company, desc string
		if err := rows.Scan(&c.id, &c.postedAt, &title, &company, &desc); err != nil {
			return nil, wrapErr("scan candidate", err)
		}
		c.score = scorer.Score([]textindex.Field{
			{Tokens: strings.Fields(title), Weight: titleWeight},
			{Tokens: strings.Fields(company), Weight: companyWeight},
			{Tokens: strings.Fields(desc), Weight: descriptionWeight},
		})
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("search jobs", err)
	}
	return cands, nil
}

// ranksBefore orders by BM25 score, then newer posted_at, then id.
func ranksBefore(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	switch {
	case a.postedAt != nil && b.postedAt != nil && !a.postedAt.Equal(*b.postedAt):
		return a.postedAt.After(*b.postedAt)
	case a.postedAt != nil && b.postedAt == nil:
		return true
	case a.postedAt == nil && b.postedAt != nil:
		return false
	}
	return a.id.String() < b.id.String()
}

// corpusStats reads document count, mean indexed length and per-term
// document frequencies over canonical jobs.
func (s *PostgresStore) corpusStats(ctx context.Context, terms []string) (textindex.Stats, error) {
	stats := textindex.Stats{DocFreq: make(map[string]int, len(terms))}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(search_length), 0)::float8 FROM jobs WHERE merged_into IS NULL`,
	).Scan(&stats.Docs, &stats.AvgLength)
	if err != nil {
		return stats, wrapErr("corpus stats", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT t, (SELECT COUNT(*) FROM jobs
		            WHERE merged_into IS NULL AND search_vector @@ quote_literal(t)::tsquery)
		 FROM unnest($1::text[]) AS t`, terms)
	if err != nil {
		return stats, wrapErr("term frequencies", err)
	}
	defer rows.Close()
	for rows.Next() {
		var term string
		var df int
		if err := rows.Scan(&term, &df); err != nil {
			return stats, wrapErr("scan term frequency", err)
		}
		stats.DocFreq[term] = df
	}
	if err := rows.Err(); err != nil {
		return stats, wrapErr("term frequencies", err)
	}
	return stats, nil
}
