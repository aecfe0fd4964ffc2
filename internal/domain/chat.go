package domain

// ChatMessage is the provider-agnostic chat message shape used by the reply
// pipeline and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FAQ is a single knowledge-base entry embedded into the system prompt.
type FAQ struct {
	Question string
	Answer   string
}
