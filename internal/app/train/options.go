package train

import (
	"github.com/airenas/sumtrainer/internal/pkg/cmdapp"
	"github.com/airenas/sumtrainer/internal/pkg/tokenizer"
	"github.com/pkg/errors"
)

// Options keeps all training settings
type Options struct {
	EncoderMaxLen   int
	DecoderMaxLen   int
	BatchSize       int
	NumLayers       int
	DModel          int
	DFF             int
	NumHeads        int
	EncoderMaxVocab int
	DecoderMaxVocab int
	Epochs          int
	DataPath        string
	CheckpointPath  string
	VocabSaveDir    string
	Filters         bool
	NoFilters       bool

	Dropout     float64
	WarmupSteps int
	Replicas    int
	Seed        int64
	MaxToKeep   int
	Restore     bool
	MetricsPort int
}

func optionsFromConfig() *Options {
	c := cmdapp.Config
	return &Options{
		EncoderMaxLen:   c.GetInt("encoder_max_len"),
		DecoderMaxLen:   c.GetInt("decoder_max_len"),
		BatchSize:       c.GetInt("batch_size"),
		NumLayers:       c.GetInt("num_layers"),
		DModel:          c.GetInt("d_model"),
		DFF:             c.GetInt("dff"),
		NumHeads:        c.GetInt("num_heads"),
		EncoderMaxVocab: c.GetInt("encoder_max_vocab"),
		DecoderMaxVocab: c.GetInt("decoder_max_vocab"),
		Epochs:          c.GetInt("epochs"),
		DataPath:        c.GetString("data_path"),
		CheckpointPath:  c.GetString("checkpoint_path"),
		VocabSaveDir:    c.GetString("vocab_save_dir"),
		Filters:         c.GetBool("filters"),
		NoFilters:       c.GetBool("no_filters"),
		Dropout:         c.GetFloat64("dropout"),
		WarmupSteps:     c.GetInt("warmup_steps"),
		Replicas:        c.GetInt("replicas"),
		Seed:            c.GetInt64("seed"),
		MaxToKeep:       c.GetInt("max_to_keep"),
		Restore:         c.GetBool("restore"),
		MetricsPort:     c.GetInt("metrics_port"),
	}
}

// Validate checks options
func (o *Options) Validate() error {
	if o.Filters == o.NoFilters {
		return errors.New("Exactly one of filters, no_filters must be set")
	}
	for _, v := range []struct {
		name  string
		value int
	}{{"encoder_max_len", o.EncoderMaxLen}, {"decoder_max_len", o.DecoderMaxLen},
		{"batch_size", o.BatchSize}, {"num_layers", o.NumLayers}, {"d_model", o.DModel},
		{"dff", o.DFF}, {"num_heads", o.NumHeads}, {"epochs", o.Epochs}} {
		if v.value < 1 {
			return errors.Errorf("Wrong %s: %d", v.name, v.value)
		}
	}
	if o.DecoderMaxLen < 2 {
		return errors.Errorf("Wrong decoder_max_len %d, need at least 2", o.DecoderMaxLen)
	}
	if o.DModel%o.NumHeads != 0 {
		return errors.Errorf("d_model %d is not divisible by num_heads %d", o.DModel, o.NumHeads)
	}
	if !validVocab(o.EncoderMaxVocab) {
		return errors.Errorf("Wrong encoder_max_vocab %d", o.EncoderMaxVocab)
	}
	if !validVocab(o.DecoderMaxVocab) {
		return errors.Errorf("Wrong decoder_max_vocab %d", o.DecoderMaxVocab)
	}
	if o.DataPath == "" {
		return errors.New("No data_path")
	}
	if o.CheckpointPath == "" {
		return errors.New("No checkpoint_path")
	}
	if o.VocabSaveDir == "" {
		return errors.New("No vocab_save_dir")
	}
	if o.Dropout < 0 || o.Dropout >= 1 {
		return errors.Errorf("Wrong dropout %f", o.Dropout)
	}
	if o.Replicas < 0 {
		return errors.Errorf("Wrong replicas %d", o.Replicas)
	}
	if o.WarmupSteps < 1 {
		return errors.Errorf("Wrong warmup_steps %d", o.WarmupSteps)
	}
	if o.MaxToKeep < 1 {
		return errors.Errorf("Wrong max_to_keep %d", o.MaxToKeep)
	}
	return o.checkPositions(o.EncoderMaxVocab, o.DecoderMaxVocab)
}

// checkPositions verifies sequences fit into positional encodings, which are as long as the vocabularies.
// Not positive vocab sizes are not checked.
func (o *Options) checkPositions(inputVocab, targetVocab int) error {
	if inputVocab > 0 && o.EncoderMaxLen > inputVocab {
		return errors.Errorf("encoder_max_len %d exceeds document vocabulary size %d", o.EncoderMaxLen, inputVocab)
	}
	// decoder sees tar[:-1]
	if targetVocab > 0 && o.DecoderMaxLen-1 > targetVocab {
		return errors.Errorf("decoder_max_len %d exceeds summary vocabulary size %d", o.DecoderMaxLen, targetVocab)
	}
	return nil
}

func validVocab(v int) bool {
	return v == -1 || v > 1
}

// FilterChars returns characters removed by the tokenizers
func (o *Options) FilterChars() string {
	if o.Filters {
		return tokenizer.DefaultFilters
	}
	return tokenizer.WhitespaceFilters
}
