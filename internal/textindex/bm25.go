package textindex

import "math"

const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

// Field is one weighted, tokenized field of a document.
type Field struct {
	Tokens []string
	Weight float64
}

// Stats are corpus-level figures needed for IDF and length normalization.
type Stats struct {
	Docs      int
	AvgLength float64
	DocFreq   map[string]int
}

// BM25 scores documents against a fixed query using field-weighted term
// frequencies (BM25F-style: weighted tf is summed before saturation).
type BM25 struct {
	K1    float64
	B     float64
	terms []string
	stats Stats
}

// NewBM25 prepares a scorer for query. Duplicate query terms count once.
func NewBM25(query string, stats Stats) *BM25 {
	seen := make(map[string]bool)
	var terms []string
	for _, t := range Tokenize(query) {
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	return &BM25{K1: defaultK1, B: defaultB, terms: terms, stats: stats}
}

// Terms returns the distinct folded query terms in query order.
func (s *BM25) Terms() []string { return s.terms }

func (s *BM25) idf(term string) float64 {
	n := float64(s.stats.Docs)
	df := float64(s.stats.DocFreq[term])
	if df > n {
		df = n
	}
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// Score returns the lexical score of one document.
func (s *BM25) Score(fields []Field) float64 {
	if len(s.terms) == 0 {
		return 0
	}
	var length float64
	tf := make(map[string]float64, len(s.terms))
	want := make(map[string]bool, len(s.terms))
	for _, t := range s.terms {
		want[t] = true
	}
	for _, f := range fields {
		length += float64(len(f.Tokens))
		w := f.Weight
		if w == 0 {
			w = 1
		}
		for _, tok := range f.Tokens {
			if want[tok] {
				tf[tok] += w
			}
		}
	}

	avg := s.stats.AvgLength
	if avg <= 0 {
		avg = length
	}
	if avg <= 0 {
		avg = 1
	}
	norm := 1 - s.B + s.B*length/avg

	var score float64
	for _, t := range s.terms {
		f := tf[t]
		if f == 0 {
			continue
		}
		score += s.idf(t) * (f * (s.K1 + 1)) / (f + s.K1*norm)
	}
	return score
}
