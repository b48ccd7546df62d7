// Package model implements the encoder/decoder transformer trained by sumTrainer
package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/airenas/sumtrainer/internal/pkg/tensor"
	"github.com/pkg/errors"
)

// Config keeps model hyperparameters
type Config struct {
	NumLayers   int     `yaml:"numLayers"`
	DModel      int     `yaml:"dModel"`
	NumHeads    int     `yaml:"numHeads"`
	DFF         int     `yaml:"dff"`
	InputVocab  int     `yaml:"inputVocab"`
	TargetVocab int     `yaml:"targetVocab"`
	PEInput     int     `yaml:"peInput"`
	PETarget    int     `yaml:"peTarget"`
	Dropout     float64 `yaml:"dropout"`
}

// Validate checks config values
func (c *Config) Validate() error {
	if c.NumLayers < 1 {
		return errors.Errorf("Wrong num layers %d", c.NumLayers)
	}
	if c.DModel < 1 || c.NumHeads < 1 || c.DModel%c.NumHeads != 0 {
		return errors.Errorf("d_model %d must be divisible by num_heads %d", c.DModel, c.NumHeads)
	}
	if c.DFF < 1 {
		return errors.Errorf("Wrong dff %d", c.DFF)
	}
	if c.InputVocab < 2 || c.TargetVocab < 2 {
		return errors.Errorf("Wrong vocab sizes %d, %d", c.InputVocab, c.TargetVocab)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return errors.Errorf("Wrong dropout rate %f", c.Dropout)
	}
	return nil
}

type encoderLayer struct {
	mha   *MultiHeadAttention
	ffn   *FeedForward
	norm1 *LayerNorm
	norm2 *LayerNorm
}

type decoderLayer struct {
	selfMHA  *MultiHeadAttention
	crossMHA *MultiHeadAttention
	ffn      *FeedForward
	norm1    *LayerNorm
	norm2    *LayerNorm
	norm3    *LayerNorm
}

// Transformer is the encoder/decoder model
type Transformer struct {
	cfg Config

	encEmbedding *tensor.Param
	encPos       *PositionalEncoding
	encLayers    []*encoderLayer

	decEmbedding *tensor.Param
	decPos       *PositionalEncoding
	decLayers    []*decoderLayer

	final  *Dense
	params []*tensor.Param
}

// New creates a transformer with freshly initialized weights
func New(cfg Config, rng *rand.Rand) (*Transformer, error) {
	if cfg.PEInput == 0 {
		cfg.PEInput = cfg.InputVocab
	}
	if cfg.PETarget == 0 {
		cfg.PETarget = cfg.TargetVocab
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ps := &paramSet{}
	res := &Transformer{cfg: cfg}
	d := cfg.DModel

	res.encEmbedding = ps.add(tensor.NewParam("encoder/embedding", cfg.InputVocab, d, uniform(rng, 0.05)))
	res.encPos = NewPositionalEncoding(cfg.PEInput, d)
	for i := 0; i < cfg.NumLayers; i++ {
		n := fmt.Sprintf("encoder/layer_%d", i)
		res.encLayers = append(res.encLayers, &encoderLayer{
			mha:   newMultiHeadAttention(ps, n+"/mha", d, cfg.NumHeads, rng),
			ffn:   newFeedForward(ps, n+"/ffn", d, cfg.DFF, rng),
			norm1: newLayerNorm(ps, n+"/layernorm_1", d),
			norm2: newLayerNorm(ps, n+"/layernorm_2", d),
		})
	}

	res.decEmbedding = ps.add(tensor.NewParam("decoder/embedding", cfg.TargetVocab, d, uniform(rng, 0.05)))
	res.decPos = NewPositionalEncoding(cfg.PETarget, d)
	for i := 0; i < cfg.NumLayers; i++ {
		n := fmt.Sprintf("decoder/layer_%d", i)
		res.decLayers = append(res.decLayers, &decoderLayer{
			selfMHA:  newMultiHeadAttention(ps, n+"/mha_1", d, cfg.NumHeads, rng),
			crossMHA: newMultiHeadAttention(ps, n+"/mha_2", d, cfg.NumHeads, rng),
			ffn:      newFeedForward(ps, n+"/ffn", d, cfg.DFF, rng),
			norm1:    newLayerNorm(ps, n+"/layernorm_1", d),
			norm2:    newLayerNorm(ps, n+"/layernorm_2", d),
			norm3:    newLayerNorm(ps, n+"/layernorm_3", d),
		})
	}
	res.final = newDense(ps, "final_layer", d, cfg.TargetVocab, rng)
	res.params = ps.list
	return res, nil
}

// Config returns model config
func (t *Transformer) Config() Config {
	return t.cfg
}

// Parameters returns trainable params in a stable order
func (t *Transformer) Parameters() []*tensor.Param {
	return t.params
}

// NumParameters returns total count of trainable values
func (t *Transformer) NumParameters() int {
	res := 0
	for _, p := range t.params {
		res += p.Size()
	}
	return res
}

// Forward runs one example through the model and returns logits (len(tarInp) x target vocab).
// A nil rng disables dropout.
func (t *Transformer) Forward(tp *tensor.Tape, inp, tarInp []int, masks *Masks, rng *rand.Rand) (*tensor.Node, error) {
	if len(inp) == 0 || len(tarInp) == 0 {
		return nil, errors.New("Empty sequence")
	}
	if masks == nil {
		masks = CreateMasks(inp, tarInp)
	}
	enc, err := t.encode(tp, inp, masks, rng)
	if err != nil {
		return nil, errors.Wrap(err, "Can't encode")
	}
	dec, err := t.decode(tp, tarInp, enc, masks, rng)
	if err != nil {
		return nil, errors.Wrap(err, "Can't decode")
	}
	return t.final.forward(tp, dec), nil
}

func (t *Transformer) embed(tp *tensor.Tape, table *tensor.Param, pe *PositionalEncoding, ids []int, rng *rand.Rand) (*tensor.Node, error) {
	vocab, _ := table.Value.Dims()
	for _, id := range ids {
		if id < 0 || id >= vocab {
			return nil, errors.Errorf("Token id %d out of vocabulary %d", id, vocab)
		}
	}
	pos, err := pe.Rows(len(ids))
	if err != nil {
		return nil, err
	}
	x := tp.Scale(tp.Embedding(tp.Param(table), ids), math.Sqrt(float64(t.cfg.DModel)))
	x = tp.Add(x, tp.Const(pos))
	return tp.Dropout(x, t.cfg.Dropout, rng), nil
}

func (t *Transformer) encode(tp *tensor.Tape, inp []int, masks *Masks, rng *rand.Rand) (*tensor.Node, error) {
	x, err := t.embed(tp, t.encEmbedding, t.encPos, inp, rng)
	if err != nil {
		return nil, err
	}
	for _, l := range t.encLayers {
		attn := tp.Dropout(l.mha.forward(tp, x, x, x, masks.Encoder), t.cfg.Dropout, rng)
		out1 := l.norm1.forward(tp, tp.Add(x, attn))
		ffn := tp.Dropout(l.ffn.forward(tp, out1), t.cfg.Dropout, rng)
		x = l.norm2.forward(tp, tp.Add(out1, ffn))
	}
	return x, nil
}

func (t *Transformer) decode(tp *tensor.Tape, tar []int, enc *tensor.Node, masks *Masks, rng *rand.Rand) (*tensor.Node, error) {
	x, err := t.embed(tp, t.decEmbedding, t.decPos, tar, rng)
	if err != nil {
		return nil, err
	}
	for _, l := range t.decLayers {
		attn1 := tp.Dropout(l.selfMHA.forward(tp, x, x, x, masks.Combined), t.cfg.Dropout, rng)
		out1 := l.norm1.forward(tp, tp.Add(attn1, x))
		attn2 := tp.Dropout(l.crossMHA.forward(tp, out1, enc, enc, masks.Decoder), t.cfg.Dropout, rng)
		out2 := l.norm2.forward(tp, tp.Add(attn2, out1))
		ffn := tp.Dropout(l.ffn.forward(tp, out2), t.cfg.Dropout, rng)
		x = l.norm3.forward(tp, tp.Add(ffn, out2))
	}
	return x, nil
}
