package models

import "fmt"

// ChatRole is a closed enumeration of conversation roles. Using a dedicated
// type makes an illegal role a construction-time error instead of a runtime
// surprise.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ParseChatRole validates a wire-level role string.
func ParseChatRole(s string) (ChatRole, error) {
	switch ChatRole(s) {
	case RoleUser:
		return RoleUser, nil
	case RoleAssistant:
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("invalid chat role: %q", s)
	}
}

// ConversationTurn is one validated message in a conversation transcript.
type ConversationTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatMessage is the wire form of a conversation turn as received from
// clients. It is validated into a ConversationTurn before entering the
// pipeline.
type ChatMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

// QuestionRequest is the payload of the ask endpoint.
type QuestionRequest struct {
	Question    string        `json:"question" binding:"required,min=1,max=2000"`
	ChatHistory []ChatMessage `json:"chat_history"`
}

// AnswerResponse carries the generated answer back to the client.
type AnswerResponse struct {
	Answer string `json:"answer"`
}
