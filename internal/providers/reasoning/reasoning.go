package reasoning

import "context"

// Provider is the external reasoning service reached by the generation
// gateway. Complete sends one structured prompt and returns the raw text
// reply; the caller is responsible for parsing and for falling back when the
// call fails in any way.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Close() error
}
