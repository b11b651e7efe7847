// Package tokenizer wraps a single, process-wide CL100K BPE encoder. It is
// expensive to construct (megabytes of merge tables) so it is built once at
// startup and shared by reference; the underlying encoder is safe for
// concurrent Encode calls.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens for streamed completion deltas using the
// CL100K-family BPE encoding, the same family the original prototype used
// via tiktoken_rs::cl100k_base().
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New constructs the shared encoder. Call once at startup.
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base encoding: %w", err)
	}
	return &Tokenizer{enc: enc}, nil
}

// Count returns the number of tokens text encodes to. Safe for concurrent
// use across requests.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}
