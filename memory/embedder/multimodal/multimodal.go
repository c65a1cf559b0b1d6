// Package multimodal extracts feature vectors from raw items without any
// model files: character codes for text, byte histograms for binary payloads
// and the hashing trick for structured fields.
package multimodal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/floats"

	"github.com/becomeliminal/nim-consciousness/core"
	"github.com/becomeliminal/nim-consciousness/memory"
)

// KeyJSON carries a JSON document that is flattened into structured features.
const KeyJSON = "json"

// Extractor implements memory.Embedder for text, image, audio and
// structured items.
type Extractor struct {
	dims int
	text memory.Embedder
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTextEmbedder routes text payloads through e instead of the character
// code placeholder. e must produce vectors of the extractor's size.
func WithTextEmbedder(e memory.Embedder) Option {
	return func(x *Extractor) {
		x.text = e
	}
}

// New creates an extractor producing vectors of length dims.
func New(dims int, opts ...Option) (*Extractor, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", core.ErrInvalidConfig, dims)
	}
	x := &Extractor{dims: dims}
	for _, opt := range opts {
		opt(x)
	}
	if x.text != nil && x.text.Dimensions() != dims {
		return nil, core.DimensionError("multimodal.New", dims, x.text.Dimensions())
	}
	return x, nil
}

// Dimensions returns the feature vector size.
func (x *Extractor) Dimensions() int {
	return x.dims
}

// Embed averages the feature vectors of every modality the item carries.
// An empty item yields the zero vector.
func (x *Extractor) Embed(ctx context.Context, item core.Item) ([]float64, error) {
	var parts [][]float64

	if value, ok := item[core.KeyText]; ok {
		v, err := x.embedText(ctx, value)
		if err != nil {
			return nil, err
		}
		parts = append(parts, v)
	}
	for _, key := range []string{core.KeyImage, core.KeyAudio} {
		value, ok := item[key]
		if !ok {
			continue
		}
		data, err := decodePayload(value)
		if err != nil {
			return nil, fmt.Errorf("%s payload: %w", key, err)
		}
		parts = append(parts, x.Binary(data))
	}

	structured := make(map[string]interface{})
	for key, value := range item {
		switch key {
		case core.KeyText, core.KeyImage, core.KeyAudio:
			continue
		case KeyJSON:
			if s, ok := value.(string); ok {
				var doc interface{}
				if err := json.Unmarshal([]byte(s), &doc); err != nil {
					return nil, fmt.Errorf("json payload: %w", err)
				}
				value = doc
			}
		}
		structured[key] = value
	}
	if len(structured) > 0 {
		parts = append(parts, x.Structured(structured))
	}

	out := make([]float64, x.dims)
	if len(parts) == 0 {
		return out, nil
	}
	for _, p := range parts {
		floats.Add(out, p)
	}
	floats.Scale(1/float64(len(parts)), out)
	return out, nil
}

func (x *Extractor) embedText(ctx context.Context, value interface{}) ([]float64, error) {
	s, ok := value.(string)
	if !ok && value != nil {
		return nil, fmt.Errorf("text payload %T: %w", value, core.ErrUnsupportedModality)
	}
	if x.text == nil {
		return x.Text(s), nil
	}
	v, err := x.text.Embed(ctx, core.Item{core.KeyText: s})
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(v) != x.dims {
		return nil, core.DimensionError("multimodal.Embed", x.dims, len(v))
	}
	return v, nil
}

// Text encodes each rune as (r mod 256)/256, truncated or zero-padded.
func (x *Extractor) Text(s string) []float64 {
	out := make([]float64, x.dims)
	i := 0
	for _, r := range s {
		if i == x.dims {
			break
		}
		out[i] = float64(r%256) / 256
		i++
	}
	return out
}

// Binary is the normalized 256-bin byte histogram, truncated or zero-padded.
func (x *Extractor) Binary(data []byte) []float64 {
	out := make([]float64, x.dims)
	if len(data) == 0 {
		return out
	}
	var hist [256]float64
	for _, b := range data {
		hist[b]++
	}
	n := float64(len(data))
	for i := 0; i < len(hist) && i < x.dims; i++ {
		out[i] = hist[i] / n
	}
	return out
}

// Structured flattens fields and hashes every leaf key into a slot.
// Numbers add their value, booleans ±1, strings add len×0.01 at the slot and
// the sum of their first ten runes ×0.001 at the next one. The result is
// L2-normalized. Keys are visited in sorted order so results are bit-identical
// between calls.
func (x *Extractor) Structured(fields map[string]interface{}) []float64 {
	out := make([]float64, x.dims)
	flat := Flatten(fields)
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := flat[key]
		slot := int(hashKey(key) % uint64(x.dims))
		switch v := value.(type) {
		case bool:
			if v {
				out[slot]++
			} else {
				out[slot]--
			}
		case string:
			runes := []rune(v)
			out[slot] += float64(len(runes)) * 0.01
			sum := 0
			for i, r := range runes {
				if i == 10 {
					break
				}
				sum += int(r)
			}
			out[(slot+1)%x.dims] += float64(sum) * 0.001
		default:
			if f, ok := number(v); ok {
				out[slot] += f
			}
		}
	}
	if norm := floats.Norm(out, 2); norm > 0 {
		floats.Scale(1/norm, out)
	}
	return out
}

// Flatten turns nested maps and slices into dotted / indexed leaf keys:
// {"a": {"b": [1, 2]}} becomes {"a.b[0]": 1, "a.b[1]": 2}.
func Flatten(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	flatten(out, "", data)
	return out
}

func flatten(out map[string]interface{}, prefix string, data interface{}) {
	switch v := data.(type) {
	case map[string]interface{}:
		for key, value := range v {
			if prefix != "" {
				key = prefix + "." + key
			}
			flatten(out, key, value)
		}
	case core.Item:
		flatten(out, prefix, map[string]interface{}(v))
	case []interface{}:
		for i, value := range v {
			flatten(out, fmt.Sprintf("%s[%d]", prefix, i), value)
		}
	default:
		out[prefix] = v
	}
}

// hashKey picks the slot for a flattened key. It must be stable across
// processes.
func hashKey(key string) uint64 {
	return xxhash.Sum64String(key)
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// decodePayload accepts raw bytes, base64 text, or a base64 data URI.
func decodePayload(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		if strings.HasPrefix(v, "data:") {
			comma := strings.IndexByte(v, ',')
			if comma < 0 {
				return nil, fmt.Errorf("malformed data URI")
			}
			v = v[comma+1:]
		}
		data, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%T: %w", value, core.ErrUnsupportedModality)
	}
}
