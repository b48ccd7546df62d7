// Package tokenizer maps words to integer ids ranked by corpus frequency
package tokenizer

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultFilters are removed from texts when filtering is on
	DefaultFilters = "!\"#$%&()*+,-./:;=?@[\\]^_`{|}~\t\n"
	// WhitespaceFilters are removed from texts when filtering is off
	WhitespaceFilters = "\t\n"
	// OOVToken replaces words outside of the vocabulary
	OOVToken = "<unk>"
)

// Options configures tokenizer
type Options struct {
	// NumWords caps ids to [1, NumWords), 0 or negative means no cap
	NumWords int    `json:"num_words"`
	Filters  string `json:"filters"`
	Lower    bool   `json:"lower"`
	Split    string `json:"split"`
	OOVToken string `json:"oov_token"`
}

// WordCount keeps word frequency
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
	Docs  int    `json:"docs"`
}

// Tokenizer converts texts to id sequences
type Tokenizer struct {
	opt Options

	counts    map[string]*WordCount
	order     []*WordCount
	docCount  int
	wordIndex map[string]int
	maxID     int
	replacer  *strings.Replacer
}

// New creates tokenizer
func New(opt Options) *Tokenizer {
	if opt.Split == "" {
		opt.Split = " "
	}
	if opt.NumWords < 0 {
		opt.NumWords = 0
	}
	res := &Tokenizer{opt: opt, counts: make(map[string]*WordCount), wordIndex: make(map[string]int)}
	res.initReplacer()
	return res
}

func (t *Tokenizer) initReplacer() {
	var pairs []string
	for _, r := range t.opt.Filters {
		pairs = append(pairs, string(r), t.opt.Split)
	}
	t.replacer = strings.NewReplacer(pairs...)
}

// Options returns tokenizer options
func (t *Tokenizer) Options() Options {
	return t.opt
}

// Words splits text into words
func (t *Tokenizer) Words(text string) []string {
	if t.opt.Lower {
		text = strings.ToLower(text)
	}
	text = t.replacer.Replace(text)
	var res []string
	for _, w := range strings.Split(text, t.opt.Split) {
		if w != "" {
			res = append(res, w)
		}
	}
	return res
}

// FitOnTexts updates word counts and rebuilds the index
func (t *Tokenizer) FitOnTexts(texts []string) {
	for _, text := range texts {
		t.docCount++
		seen := map[string]bool{}
		for _, w := range t.Words(text) {
			wc, f := t.counts[w]
			if !f {
				wc = &WordCount{Word: w}
				t.counts[w] = wc
				t.order = append(t.order, wc)
			}
			wc.Count++
			if !seen[w] {
				wc.Docs++
				seen[w] = true
			}
		}
	}
	t.buildIndex()
}

func (t *Tokenizer) buildIndex() {
	sorted := make([]*WordCount, len(t.order))
	copy(sorted, t.order)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	t.wordIndex = make(map[string]int, len(sorted)+1)
	next := 1
	if t.opt.OOVToken != "" {
		t.wordIndex[t.opt.OOVToken] = next
		next++
	}
	// a corpus word equal to the OOV token takes its frequency position, id 1 is left unused then
	for _, wc := range sorted {
		t.wordIndex[wc.Word] = next
		next++
	}
	t.maxID = next - 1
}

// WordIndex returns id of the word and true if the word is indexed
func (t *Tokenizer) WordIndex(w string) (int, bool) {
	i, f := t.wordIndex[w]
	return i, f
}

// IndexLen returns number of indexed words including OOV token
func (t *Tokenizer) IndexLen() int {
	return len(t.wordIndex)
}

// DocumentCount returns number of fitted texts
func (t *Tokenizer) DocumentCount() int {
	return t.docCount
}

// VocabSize returns embedding table size needed for produced ids
func (t *Tokenizer) VocabSize() int {
	if t.opt.NumWords > 0 {
		if oov, f := t.oovID(); f && oov >= t.opt.NumWords {
			return oov + 1
		}
		return t.opt.NumWords
	}
	return t.maxID + 1
}

func (t *Tokenizer) oovID() (int, bool) {
	if t.opt.OOVToken == "" {
		return 0, false
	}
	i, f := t.wordIndex[t.opt.OOVToken]
	return i, f
}

// TextsToSequences converts texts to id sequences
func (t *Tokenizer) TextsToSequences(texts []string) [][]int {
	res := make([][]int, len(texts))
	for i, text := range texts {
		res[i] = t.TextToSequence(text)
	}
	return res
}

// TextToSequence converts text to ids, words outside of the vocabulary become OOV id or are dropped
func (t *Tokenizer) TextToSequence(text string) []int {
	oov, hasOOV := t.oovID()
	res := make([]int, 0)
	for _, w := range t.Words(text) {
		i, f := t.wordIndex[w]
		if f && (t.opt.NumWords == 0 || i < t.opt.NumWords) {
			res = append(res, i)
		} else if hasOOV {
			res = append(res, oov)
		}
	}
	return res
}

type jsonData struct {
	Config        Options        `json:"config"`
	DocumentCount int            `json:"document_count"`
	WordCounts    []*WordCount   `json:"word_counts"`
	WordIndex     map[string]int `json:"word_index"`
}

// Save writes tokenizer as json
func (t *Tokenizer) Save(w io.Writer) error {
	d := jsonData{Config: t.opt, DocumentCount: t.docCount, WordCounts: t.order, WordIndex: t.wordIndex}
	enc := json.NewEncoder(w)
	if err := enc.Encode(&d); err != nil {
		return errors.Wrap(err, "Can't encode tokenizer")
	}
	return nil
}

// Load reads tokenizer saved by Save
func Load(r io.Reader) (*Tokenizer, error) {
	var d jsonData
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, errors.Wrap(err, "Can't decode tokenizer")
	}
	res := New(d.Config)
	res.docCount = d.DocumentCount
	for _, wc := range d.WordCounts {
		if wc == nil || wc.Word == "" {
			return nil, errors.New("Wrong word count entry")
		}
		res.counts[wc.Word] = wc
		res.order = append(res.order, wc)
	}
	if d.WordIndex != nil {
		res.wordIndex = d.WordIndex
	}
	for _, i := range res.wordIndex {
		if i > res.maxID {
			res.maxID = i
		}
	}
	return res, nil
}
