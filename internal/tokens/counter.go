// Package tokens estimates the size of prompts sent to the agent.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = tokenizer.Cl100kBase

// Counter counts prompt tokens with a tiktoken encoding. Bedrock agents do
// not expose their tokenizer, so counts are an approximation used for
// logging and turn statistics.
type Counter struct {
	encoding tokenizer.Encoding

	once  sync.Once
	codec tokenizer.Codec
	err   error

	fallback *Estimator
}

// NewCounter creates a counter for the named encoding. An empty name
// selects DefaultEncoding.
func NewCounter(encoding string) *Counter {
	enc := tokenizer.Encoding(encoding)
	if encoding == "" {
		enc = DefaultEncoding
	}
	return &Counter{encoding: enc, fallback: NewEstimator()}
}

func (c *Counter) loadCodec() (tokenizer.Codec, error) {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(c.encoding)
		if c.err != nil {
			c.err = fmt.Errorf("failed to get tokenizer encoding %s: %w", c.encoding, c.err)
		}
	})
	return c.codec, c.err
}

// Count returns the token count of text. Estimated is true when the
// encoding was unavailable and the character estimator was used instead.
func (c *Counter) Count(text string) (count int, estimated bool) {
	codec, err := c.loadCodec()
	if err != nil {
		return c.fallback.Count(text), true
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return c.fallback.Count(text), true
	}
	return len(ids), false
}

// Estimator approximates token counts from character length.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		CharsPerToken: 4.0,
	}
}

// Count estimates the token count of text.
func (e *Estimator) Count(text string) int {
	if e.CharsPerToken <= 0 {
		return len(text)
	}
	return int(float64(len(text)) / e.CharsPerToken)
}
