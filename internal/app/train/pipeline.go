package train

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/airenas/sumtrainer/internal/pkg/cmdapp"
	"github.com/airenas/sumtrainer/internal/pkg/dataset"
	"github.com/airenas/sumtrainer/internal/pkg/loader"
	"github.com/airenas/sumtrainer/internal/pkg/sequence"
	"github.com/airenas/sumtrainer/internal/pkg/tokenizer"
	"github.com/pkg/errors"
)

// Data is the prepared training input
type Data struct {
	Dataset     *dataset.Dataset
	InputVocab  int
	TargetVocab int
	Documents   *tokenizer.Tokenizer
	Summaries   *tokenizer.Tokenizer
}

func prepareData(opt *Options, rng *rand.Rand) (*Data, error) {
	if err := os.MkdirAll(opt.VocabSaveDir, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "Can't create %s", opt.VocabSaveDir)
	}
	cmdapp.Log.Infof("filters = [%s]", opt.FilterChars())

	articles, err := loader.LoadXLSX(opt.DataPath)
	if err != nil {
		return nil, errors.Wrap(err, "Can't load data")
	}
	if len(articles) == 0 {
		return nil, errors.Errorf("No articles in %s", opt.DataPath)
	}
	documents := loader.Documents(articles)
	summaries := loader.WrapSummaries(articles)

	cmdapp.Log.Info("Tokenizing the texts into integer tokens")
	res := &Data{}
	res.Documents = newTokenizer(opt.EncoderMaxVocab, opt.FilterChars())
	res.Documents.FitOnTexts(documents)
	res.Summaries = newTokenizer(opt.DecoderMaxVocab, opt.FilterChars())
	res.Summaries.FitOnTexts(summaries)
	res.InputVocab = res.Documents.VocabSize()
	res.TargetVocab = res.Summaries.VocabSize()
	if err := opt.checkPositions(res.InputVocab, res.TargetVocab); err != nil {
		return nil, err
	}

	if err := saveTokenizer(res.Documents, vocabFile(opt.VocabSaveDir, "document", opt.EncoderMaxVocab)); err != nil {
		return nil, err
	}
	if err := saveTokenizer(res.Summaries, vocabFile(opt.VocabSaveDir, "summary", opt.DecoderMaxVocab)); err != nil {
		return nil, err
	}
	cmdapp.Log.Infof("Vocabulary sizes: documents %d, summaries %d", res.InputVocab, res.TargetVocab)

	st := loader.LengthStats(articles)
	cmdapp.Log.Infof("Documents: %d, mean length %.1f, max %d", st.Count, st.MeanDocument, st.MaxDocument)
	cmdapp.Log.Infof("Summaries: mean length %.1f, max %d", st.MeanSummary, st.MaxSummary)

	cmdapp.Log.Info("Padding/Truncating sequences for identical sequence lengths")
	inputs, err := sequence.PadSequences(res.Documents.TextsToSequences(documents), opt.EncoderMaxLen,
		sequence.Post, sequence.Post, 0)
	if err != nil {
		return nil, errors.Wrap(err, "Can't pad documents")
	}
	targets, err := sequence.PadSequences(res.Summaries.TextsToSequences(summaries), opt.DecoderMaxLen,
		sequence.Post, sequence.Post, 0)
	if err != nil {
		return nil, errors.Wrap(err, "Can't pad summaries")
	}

	cmdapp.Log.Info("Creating dataset pipeline")
	res.Dataset, err = dataset.FromSlices(inputs, targets)
	if err != nil {
		return nil, errors.Wrap(err, "Can't create dataset")
	}
	res.Dataset.Shuffle(st.Count, rng).Batch(opt.BatchSize)
	return res, nil
}

func newTokenizer(maxVocab int, filters string) *tokenizer.Tokenizer {
	return tokenizer.New(tokenizer.Options{NumWords: maxVocab, Filters: filters, Lower: true,
		OOVToken: tokenizer.OOVToken})
}

func vocabFile(dir, name string, maxVocab int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_tokenizer_%d.json", name, maxVocab))
}

func saveTokenizer(t *tokenizer.Tokenizer, fileName string) error {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "Can't create %s", fileName)
	}
	err = t.Save(f)
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		return errors.Wrapf(err, "Can't save %s", fileName)
	}
	cmdapp.Log.Infof("Saved vocabulary %s", fileName)
	return nil
}
