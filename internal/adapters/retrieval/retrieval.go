// Package retrieval serves a small passage corpus by term overlap. The
// resolved model URI names the corpus file (YAML or JSON).
package retrieval

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"modelgate/internal/adapters"
	"modelgate/internal/common/fsutil"
	"modelgate/internal/engine"
	"modelgate/internal/registry"
)

const Name = "retrieval"

// Passage is one corpus entry.
type Passage struct {
	ID   string `yaml:"id" json:"id"`
	Text string `yaml:"text" json:"text"`
}

type Options struct {
	// MinScore drops passages sharing fewer terms with the query.
	MinScore int `yaml:"min_score"`
}

type index struct {
	uri      string
	passages []Passage
	terms    []map[string]struct{}
}

type Adapter struct {
	*engine.Dispatch
	opts  Options
	set   registry.Settings
	index engine.Handle[index]
}

func New(s registry.Settings) (engine.Adapter, error) {
	opts := Options{MinScore: 1}
	if err := s.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	a := &Adapter{Dispatch: engine.NewDispatch(), opts: opts, set: s}
	a.Handle(engine.ModeRetrieve, a.retrieve, a.streamRetrieve)
	a.Handle(engine.ModeQuery, a.query, nil)
	return a, nil
}

func (a *Adapter) Load(ctx context.Context) error {
	return a.ReloadFromURI(ctx, a.set.ResolvedURI)
}

func (a *Adapter) ReloadFromURI(ctx context.Context, uri string) error {
	idx, err := loadIndex(uri)
	if err != nil {
		return engine.NewLoadError(uri, err)
	}
	a.index.Swap(idx)
	a.set.Logger.Debug().Str("uri", uri).Int("passages", len(idx.passages)).Msg("corpus loaded")
	return nil
}

func (a *Adapter) Close() error { return nil }

func loadIndex(uri string) (*index, error) {
	p, err := fsutil.LocalPath(uri)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	// JSON is a subset of YAML, so one decoder covers both corpus formats.
	var passages []Passage
	if err := yaml.Unmarshal(raw, &passages); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("corpus %s is empty", p)
	}
	idx := &index{uri: uri, passages: passages, terms: make([]map[string]struct{}, len(passages))}
	for i, ps := range passages {
		idx.terms[i] = termSet(ps.Text)
	}
	return idx, nil
}

func termSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		out[w] = struct{}{}
	}
	return out
}

type hit struct {
	pos   int
	score int
}

// search ranks passages by the number of distinct query terms they contain.
// Ties keep corpus order.
func (a *Adapter) search(idx *index, q string, k int) []Passage {
	qt := termSet(q)
	var hits []hit
	for i, terms := range idx.terms {
		score := 0
		for w := range qt {
			if _, ok := terms[w]; ok {
				score++
			}
		}
		if score >= a.opts.MinScore && score > 0 {
			hits = append(hits, hit{pos: i, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Passage, len(hits))
	for i, h := range hits {
		out[i] = idx.passages[h.pos]
	}
	return out
}

func (a *Adapter) topK(c engine.Call) int {
	k := adapters.Int(c.Params, "top_k", a.set.TopK)
	if k <= 0 {
		k = 4
	}
	return k
}

func texts(ps []Passage) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Text
	}
	return out
}

func (a *Adapter) retrieve(ctx context.Context, c engine.Call) (string, error) {
	return strings.Join(texts(a.search(a.index.Get(), c.Text, a.topK(c))), "\n"), nil
}

func (a *Adapter) streamRetrieve(ctx context.Context, c engine.Call) (engine.Stream, error) {
	return engine.FromSlice(texts(a.search(a.index.Get(), c.Text, a.topK(c)))), nil
}

func (a *Adapter) query(ctx context.Context, c engine.Call) (string, error) {
	best := a.search(a.index.Get(), c.Text, 1)
	if len(best) == 0 {
		return "", nil
	}
	return best[0].Text, nil
}
