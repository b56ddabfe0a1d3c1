package valueobjects

import (
	"strings"

	pkgerrors "bobbin-backend/pkg/errors"
)

// MessageRole identifies the author of a conversation message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// IsValid reports membership in the closed set
func (r MessageRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// ParseMessageRole accepts any casing; empty means user.
func ParseMessageRole(s string) (MessageRole, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RoleUser, nil
	}
	r := MessageRole(s)
	if !r.IsValid() {
		return "", pkgerrors.NewFieldValidationError("role", "must be one of: "+
			joinEnum([]MessageRole{RoleUser, RoleAssistant, RoleSystem}))
	}
	return r, nil
}
