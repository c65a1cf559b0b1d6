package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-consciousness/core"
)

func testVocab() map[string]int {
	return map[string]int{
		"[UNK]": unkToken, "[CLS]": clsToken, "[SEP]": sepToken,
		"walk": 2000, "run": 2001, "play": 2002, "##ing": 2003, "##ed": 2004,
	}
}

func TestTokenizer_Tokenize(t *testing.T) {
	tok := NewTokenizer(testVocab())

	assert.Equal(t, []int64{2000, 2001}, tok.Tokenize("Walk, RUN!"))
	assert.Equal(t, []int64{2002, 2003}, tok.Tokenize("playing"))
	assert.Equal(t, []int64{2000, 2004}, tok.Tokenize("walked"))
	assert.Equal(t, []int64{unkToken}, tok.Tokenize("x"))
	assert.Empty(t, tok.Tokenize("  ... "))
}

func TestTokenizer_Encode(t *testing.T) {
	tok := NewTokenizer(testVocab())

	ids, mask := tok.Encode("walk run", 6)
	assert.Equal(t, []int64{clsToken, 2000, 2001, sepToken, 0, 0}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1, 0, 0}, mask)

	ids, mask = tok.Encode("walk run play walk", 4)
	assert.Equal(t, []int64{clsToken, 2000, 2001, sepToken}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1}, mask)

	ids, _ = tok.Encode("", 3)
	assert.Equal(t, []int64{clsToken, sepToken, 0}, ids)
}

func TestLoadTokenizer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokenizer.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model":{"vocab":{"walk":7}}}`), 0o644))

	tok, err := LoadTokenizer(path)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, tok.Tokenize("walk"))

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"model":{}}`), 0o644))
	_, err = LoadTokenizer(empty)
	assert.Error(t, err)

	_, err = LoadTokenizer(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestPool(t *testing.T) {
	pooled, err := pool([]float32{1, 2, 3}, []int64{1, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, pooled)

	data := []float32{
		1, 2,
		3, 4,
		100, 100,
	}
	pooled, err = pool(data, []int64{1, 3, 2}, []int64{1, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, pooled)

	_, err = pool(data, []int64{2, 3}, nil)
	assert.Error(t, err)
	_, err = pool(data, []int64{1, 4, 2}, nil)
	assert.Error(t, err)
	_, err = pool(data, []int64{6}, nil)
	assert.Error(t, err)
}

func TestFit(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0.6, 0.8, 0}, fit([]float64{3, 4}, 3), 1e-12)
	assert.Equal(t, []float64{1}, fit([]float64{3, 4}, 1))
	assert.Equal(t, []float64{0, 0}, fit(nil, 2))
}

func TestConfig(t *testing.T) {
	cfg := Config{ModelPath: "m.onnx", TokenizerPath: "t.json"}.withDefaults()
	assert.Equal(t, DefaultModelDimensions, cfg.ModelDimensions)
	assert.Equal(t, DefaultModelDimensions, cfg.Dimensions)
	assert.Equal(t, DefaultMaxLen, cfg.MaxLen)
	assert.NoError(t, cfg.validate())

	assert.ErrorIs(t, Config{TokenizerPath: "t"}.withDefaults().validate(), core.ErrInvalidConfig)
	assert.ErrorIs(t, Config{ModelPath: "m"}.withDefaults().validate(), core.ErrInvalidConfig)
	assert.ErrorIs(t, Config{ModelPath: "m", TokenizerPath: "t", MaxLen: 1}.validate(), core.ErrInvalidConfig)

	_, err := itemText(core.Item{"image": []byte{1}})
	assert.ErrorIs(t, err, core.ErrUnsupportedModality)
	text, err := itemText(core.Item{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}
