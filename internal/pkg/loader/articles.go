package loader

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/airenas/sumtrainer/internal/pkg/cmdapp"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	// ColumnID is dropped on load
	ColumnID = "id_articles"
	// ColumnArticle keeps document texts
	ColumnArticle = "articles"
	// ColumnAbstract keeps summary texts
	ColumnAbstract = "abstracts"

	// StartToken is prepended to every summary
	StartToken = "<go>"
	// EndToken is appended to every summary
	EndToken = "<stop>"
)

// Article is one document and its summary
type Article struct {
	Document string
	Summary  string
}

// OpenFileFunc declares function to open file by name and return Reader
type OpenFileFunc func(fileName string) (io.ReadCloser, error)

// XLSXLoader reads articles from the first sheet of a spreadsheet
type XLSXLoader struct {
	Path         string
	OpenFileFunc OpenFileFunc
}

//NewXLSXLoader creates XLSXLoader instance
func NewXLSXLoader(path string) (*XLSXLoader, error) {
	cmdapp.Log.Infof("Init xlsx loader at: %s", path)
	if path == "" {
		return nil, errors.New("No path provided")
	}
	return &XLSXLoader{Path: path, OpenFileFunc: openFile}, nil
}

// LoadXLSX loads articles from the file
func LoadXLSX(path string) ([]*Article, error) {
	l, err := NewXLSXLoader(path)
	if err != nil {
		return nil, err
	}
	return l.Load()
}

// Load reads all rows having both article and abstract
func (l *XLSXLoader) Load() ([]*Article, error) {
	r, err := l.OpenFileFunc(l.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open %s", l.Path)
	}
	defer r.Close()
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read xlsx %s", l.Path)
	}
	defer func() { cmdapp.LogIf(f.Close()) }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Errorf("No sheets in %s", l.Path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read rows of %s", sheets[0])
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("No header in %s", l.Path)
	}
	ai, si, err := columns(rows[0])
	if err != nil {
		return nil, err
	}
	res := make([]*Article, 0, len(rows)-1)
	for i, row := range rows[1:] {
		a := &Article{Document: cell(row, ai), Summary: cell(row, si)}
		if a.Document == "" || a.Summary == "" {
			cmdapp.Log.Warnf("Skip row %d: empty %s or %s", i+2, ColumnArticle, ColumnAbstract)
			continue
		}
		res = append(res, a)
	}
	cmdapp.Log.Infof("Loaded %d articles", len(res))
	return res, nil
}

func columns(header []string) (int, int, error) {
	ai, si := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case ColumnArticle:
			ai = i
		case ColumnAbstract:
			si = i
		}
	}
	if ai < 0 {
		return 0, 0, errors.Errorf("No column '%s'", ColumnArticle)
	}
	if si < 0 {
		return 0, 0, errors.Errorf("No column '%s'", ColumnAbstract)
	}
	return ai, si, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func openFile(fileName string) (io.ReadCloser, error) {
	return os.Open(fileName)
}

// Documents returns article texts
func Documents(data []*Article) []string {
	res := make([]string, len(data))
	for i, a := range data {
		res[i] = a.Document
	}
	return res
}

// WrapSummaries returns summaries enclosed in start and end tokens
func WrapSummaries(data []*Article) []string {
	res := make([]string, len(data))
	for i, a := range data {
		res[i] = StartToken + " " + a.Summary + " " + EndToken
	}
	return res
}

// Stats keeps text length info in characters
type Stats struct {
	Count        int
	MeanDocument float64
	MaxDocument  int
	MeanSummary  float64
	MaxSummary   int
}

// LengthStats calculates length statistics
func LengthStats(data []*Article) Stats {
	res := Stats{Count: len(data)}
	if len(data) == 0 {
		return res
	}
	sd, ss := 0, 0
	for _, a := range data {
		ld, ls := utf8.RuneCountInString(a.Document), utf8.RuneCountInString(a.Summary)
		sd += ld
		ss += ls
		if ld > res.MaxDocument {
			res.MaxDocument = ld
		}
		if ls > res.MaxSummary {
			res.MaxSummary = ls
		}
	}
	res.MeanDocument = float64(sd) / float64(len(data))
	res.MeanSummary = float64(ss) / float64(len(data))
	return res
}
