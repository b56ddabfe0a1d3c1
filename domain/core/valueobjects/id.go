package valueobjects

import (
	"encoding/json"

	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/google/uuid"
)

// ID identifies an artifact, concept, connection, conversation or message.
// Value objects are immutable and have no identity beyond their value.
type ID struct {
	value string
}

// NewID creates a new random ID
func NewID() ID {
	return ID{value: uuid.New().String()}
}

// ParseID validates s as a UUID. field names the input in the error.
func ParseID(field, s string) (ID, error) {
	if s == "" {
		return ID{}, pkgerrors.NewFieldValidationError(field, "is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ID{}, pkgerrors.NewFieldValidationError(field, "must be a valid UUID").WithCause(err)
	}
	return ID{value: parsed.String()}, nil
}

// MustParseID parses s or panics. Reserved for stored values and tests.
func MustParseID(s string) ID {
	id, err := ParseID("id", s)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseIDs parses a list, rejecting duplicates.
func ParseIDs(field string, raw []string) ([]ID, error) {
	out := make([]ID, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		id, err := ParseID(field, s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id.value]; dup {
			return nil, pkgerrors.NewFieldValidationError(field, "must not contain duplicates")
		}
		seen[id.value] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// String returns the string representation of the ID
func (id ID) String() string {
	return id.value
}

// Equals checks if two IDs are equal
func (id ID) Equals(other ID) bool {
	return id.value == other.value
}

// IsZero checks if the ID is the zero value
func (id ID) IsZero() bool {
	return id.value == ""
}

// Less orders IDs lexically
func (id ID) Less(other ID) bool {
	return id.value < other.value
}

// MarshalJSON implements json.Marshaler
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return pkgerrors.NewValidationError("id must be a string").WithCause(err)
	}
	parsed, err := ParseID("id", s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// IDStrings converts ids to their string forms
func IDStrings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.value
	}
	return out
}
