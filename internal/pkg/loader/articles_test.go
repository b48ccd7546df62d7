package loader

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
)

func newXLSX(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	for i, r := range rows {
		c, err := excelize.CoordinatesToCellName(1, i+1)
		assert.Nil(t, err)
		row := r
		assert.Nil(t, f.SetSheetRow("Sheet1", c, &row))
	}
	b, err := f.WriteToBuffer()
	assert.Nil(t, err)
	return b
}

func newTestLoader(b *bytes.Buffer) *XLSXLoader {
	return &XLSXLoader{Path: "test.xlsx", OpenFileFunc: func(string) (io.ReadCloser, error) {
		return io.NopCloser(b), nil
	}}
}

func TestNewXLSXLoader_Fails(t *testing.T) {
	_, err := NewXLSXLoader("")
	assert.NotNil(t, err)
}

func TestLoad(t *testing.T) {
	b := newXLSX(t,
		[]interface{}{"id_articles", "articles", "abstracts"},
		[]interface{}{1, "Long news text", "Short"},
		[]interface{}{2, "Other text", "Other"})
	res, err := newTestLoader(b).Load()
	assert.Nil(t, err)
	assert.Len(t, res, 2)
	assert.Equal(t, &Article{Document: "Long news text", Summary: "Short"}, res[0])
	assert.Equal(t, "Other", res[1].Summary)
}

func TestLoad_AnyColumnOrder(t *testing.T) {
	b := newXLSX(t,
		[]interface{}{"abstracts", "id_articles", "articles"},
		[]interface{}{"s", 1, "d"})
	res, err := newTestLoader(b).Load()
	assert.Nil(t, err)
	assert.Equal(t, &Article{Document: "d", Summary: "s"}, res[0])
}

func TestLoad_SkipsEmpty(t *testing.T) {
	b := newXLSX(t,
		[]interface{}{"id_articles", "articles", "abstracts"},
		[]interface{}{1, "text"},
		[]interface{}{2, "", "sum"},
		[]interface{}{3, "text", "sum"})
	res, err := newTestLoader(b).Load()
	assert.Nil(t, err)
	assert.Len(t, res, 1)
}

func TestLoad_NoColumn(t *testing.T) {
	b := newXLSX(t, []interface{}{"id_articles", "articles"}, []interface{}{1, "text"})
	_, err := newTestLoader(b).Load()
	assert.NotNil(t, err)
}

func TestLoad_OpenFails(t *testing.T) {
	l := &XLSXLoader{Path: "test.xlsx", OpenFileFunc: func(string) (io.ReadCloser, error) {
		return nil, errors.New("olia")
	}}
	_, err := l.Load()
	assert.NotNil(t, err)
}

func TestLoad_NotXLSX(t *testing.T) {
	_, err := newTestLoader(bytes.NewBufferString("olia")).Load()
	assert.NotNil(t, err)
}

func TestLoadXLSX_File(t *testing.T) {
	b := newXLSX(t,
		[]interface{}{"id_articles", "articles", "abstracts"},
		[]interface{}{1, "a", "b"})
	fn := filepath.Join(t.TempDir(), "data.xlsx")
	assert.Nil(t, os.WriteFile(fn, b.Bytes(), 0644))
	res, err := LoadXLSX(fn)
	assert.Nil(t, err)
	assert.Len(t, res, 1)
}

func TestWrapSummaries(t *testing.T) {
	data := []*Article{{Document: "d", Summary: "the news"}}
	assert.Equal(t, []string{"<go> the news <stop>"}, WrapSummaries(data))
	assert.Equal(t, []string{"d"}, Documents(data))
}

func TestLengthStats(t *testing.T) {
	s := LengthStats([]*Article{{Document: "ąb", Summary: "a"}, {Document: "abcd", Summary: "abc"}})
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 4, s.MaxDocument)
	assert.Equal(t, 3, s.MaxSummary)
	assert.InDelta(t, 3.0, s.MeanDocument, 1e-9)
	assert.InDelta(t, 2.0, s.MeanSummary, 1e-9)
	assert.Equal(t, Stats{}, LengthStats(nil))
}
