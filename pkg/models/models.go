package models

import "strings"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// NormalizeRole maps whatever role string the contract reports onto the
// two known roles. Anything that is not the assistant counts as user.
func NormalizeRole(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RoleAssistant:
		return RoleAssistant
	default:
		return RoleUser
	}
}

// Turn is one entry of a session's chat log. Immutable once created;
// ordering within a session is significant.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

func NewAssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// ResponseEnvelope is the decoded structured meaning of one assistant
// turn. Transient; only the originating Turn is retained in the session.
type ResponseEnvelope struct {
	Action      string   `json:"action"`
	Params      string   `json:"params"`
	Response    string   `json:"response"`
	Suggestions []string `json:"suggestions"`
}

type Identity struct {
	ID            string `json:"id"`
	SigningPubKey []byte `json:"signing_pub_key"`
	LedgerAddress string `json:"ledger_address"`
}
