package gateway

import (
	"fmt"
	"sort"
	"strings"
)

// GenerationOptions are the knobs every model family understands.
type GenerationOptions struct {
	MaxTokens   int
	Temperature float64
}

// ModelOutput is the family-independent decode result. Token counts are
// provider-reported when present, zero otherwise (the caller falls back to
// estimates).
type ModelOutput struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Codec translates between the gateway's prompt/options shape and one model
// family's wire format. Adding a provider means registering a new codec, not
// branching existing code.
type Codec interface {
	Encode(prompt string, opts GenerationOptions) ([]byte, error)
	Decode(raw []byte) (ModelOutput, error)
}

var codecs = map[string]Codec{
	"anthropic.": chatCodec{},
	"meta.":      instructCodec{},
	"amazon.":    completionCodec{},
}

// RegisterCodec adds or replaces the codec for a model-id prefix.
func RegisterCodec(prefix string, codec Codec) {
	codecs[prefix] = codec
}

// codecFor picks the codec whose prefix matches the model id, preferring the
// longest match.
func codecFor(modelID string) (Codec, error) {
	var best string
	for prefix := range codecs {
		if strings.HasPrefix(modelID, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil, fmt.Errorf("no codec registered for model %q (known prefixes: %s)",
			modelID, strings.Join(knownPrefixes(), ", "))
	}
	return codecs[best], nil
}

func knownPrefixes() []string {
	prefixes := make([]string, 0, len(codecs))
	for prefix := range codecs {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}
