package types

import "context"

// OracleMessage is one chat message handed to the LLM oracle.
type OracleMessage struct {
	Role    string `json:"role"` // system | user
	Content string `json:"content"`
}

// Oracle is the narrow LLM contract the core depends on. Implementations
// must run at temperature zero; the core assumes nothing else about them.
type Oracle interface {
	Invoke(ctx context.Context, messages []OracleMessage) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, messages []OracleMessage) (string, error)

// Invoke implements Oracle.
func (f OracleFunc) Invoke(ctx context.Context, messages []OracleMessage) (string, error) {
	return f(ctx, messages)
}
