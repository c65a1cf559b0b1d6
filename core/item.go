package core

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Item is one piece of user activity: a note, a photo, a structured record.
// Keys are free-form; "text", "image" and "audio" carry modality payloads and
// every other key is treated as structured data.
//
// Items are decoded straight from JSON or YAML, so values are the usual
// decoded shapes (string, float64, bool, []interface{}, map[string]interface{}),
// plus []byte for raw binary payloads set from Go. Graph nodes keep the
// item's Encoded form, so a []byte payload is stored as base64 text.
type Item map[string]interface{}

// Well-known modality keys.
const (
	KeyText  = "text"
	KeyImage = "image"
	KeyAudio = "audio"
)

// Fields is the capability check used for modality classification.
// Anything that can report which keys it carries can be classified,
// independent of how it stores them.
type Fields interface {
	Has(key string) bool
}

// Has reports whether the item carries key.
func (it Item) Has(key string) bool {
	_, ok := it[key]
	return ok
}

// String returns the string value under key, if it is one.
func (it Item) String(key string) (string, bool) {
	s, ok := it[key].(string)
	return s, ok
}

// Encoded returns a deep copy of the item in its JSON-decoded form: numbers
// become float64, []byte becomes base64 text, nested values become maps and
// slices. It is exactly what a saved graph gives back on load. A nil item
// stays nil and an empty one stays empty.
func (it Item) Encoded() (map[string]interface{}, error) {
	if it == nil {
		return nil, nil
	}
	data, err := json.Marshal(it)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	out := make(map[string]interface{}, len(it))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return out, nil
}

// Fingerprint returns a stable 64-bit hash of the item's content. Key order
// does not matter. Values that cannot be encoded as JSON are an error.
func (it Item) Fingerprint() (uint64, error) {
	data, err := json.Marshal(it)
	if err != nil {
		return 0, fmt.Errorf("fingerprint item: %w", err)
	}
	return xxhash.Sum64(data), nil
}

// Modality is the data category of an item.
type Modality string

const (
	ModalityText       Modality = "text"
	ModalityImage      Modality = "image"
	ModalityAudio      Modality = "audio"
	ModalityMultimodal Modality = "multimodal"
	ModalityGeneric    Modality = "generic"
)

// Classify decides an item's modality from the keys it carries.
// Text and image together win over either alone; audio is only
// considered when neither text nor image is present.
func Classify(f Fields) Modality {
	text, image := f.Has(KeyText), f.Has(KeyImage)
	switch {
	case text && image:
		return ModalityMultimodal
	case text:
		return ModalityText
	case image:
		return ModalityImage
	case f.Has(KeyAudio):
		return ModalityAudio
	default:
		return ModalityGeneric
	}
}
