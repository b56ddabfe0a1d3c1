package valueobjects

import (
	"strings"
	"unicode/utf8"

	"bobbin-backend/domain/config"
	pkgerrors "bobbin-backend/pkg/errors"
)

// Label is a concept's display name. Uniqueness is judged on Key().
type Label struct {
	value string
}

// NewLabel trims and length-checks a label
func NewLabel(s string, cfg *config.DomainConfig) (Label, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return Label{}, pkgerrors.NewFieldValidationError("label", "is required")
	}
	if utf8.RuneCountInString(s) > cfg.MaxLabelLength {
		return Label{}, pkgerrors.NewFieldValidationError("label", "is too long").
			WithDetail("max_length", cfg.MaxLabelLength)
	}
	return Label{value: s}, nil
}

// RestoreLabel rebuilds a stored label
func RestoreLabel(s string) Label {
	return Label{value: s}
}

// String returns the label as entered
func (l Label) String() string { return l.value }

// Key is the case-folded form used for uniqueness
func (l Label) Key() string {
	return LabelKey(l.value)
}

// LabelKey normalizes free text the same way Label.Key does
func LabelKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
