package llm

import (
	"context"
	"encoding/json"
)

// Tool is something the model can call. Spec returns the name, description and
// JSON schema of the arguments; Call receives the arguments as a JSON string.
type Tool interface {
	Spec() (string, string, json.RawMessage)
	Call(ctx context.Context, args string) (string, error)
}
