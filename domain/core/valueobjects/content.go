package valueobjects

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"bobbin-backend/domain/config"
	pkgerrors "bobbin-backend/pkg/errors"
)

// ArtifactKind describes what a captured artifact holds. The set is closed.
type ArtifactKind string

const (
	ArtifactNote  ArtifactKind = "note"
	ArtifactLink  ArtifactKind = "link"
	ArtifactMedia ArtifactKind = "media"
)

// ArtifactKinds lists every accepted artifact kind
func ArtifactKinds() []ArtifactKind {
	return []ArtifactKind{ArtifactNote, ArtifactLink, ArtifactMedia}
}

// IsValid reports membership in the closed set
func (k ArtifactKind) IsValid() bool {
	switch k {
	case ArtifactNote, ArtifactLink, ArtifactMedia:
		return true
	default:
		return false
	}
}

// RequiresSource reports whether the kind points at external content
func (k ArtifactKind) RequiresSource() bool {
	switch k {
	case ArtifactLink, ArtifactMedia:
		return true
	case ArtifactNote:
		return false
	default:
		return false
	}
}

// ParseArtifactKind accepts any casing; empty means note.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ArtifactNote, nil
	}
	k := ArtifactKind(s)
	if !k.IsValid() {
		return "", pkgerrors.NewFieldValidationError("kind", "must be one of: "+joinEnum(ArtifactKinds())).
			WithDetail("value", s)
	}
	return k, nil
}

// ArtifactContent is the user-visible payload of an artifact
type ArtifactContent struct {
	kind      ArtifactKind
	title     string
	body      string
	sourceURL string
}

// NewArtifactContent creates content with validation and configuration
func NewArtifactContent(kind ArtifactKind, title, body, sourceURL string, cfg *config.DomainConfig) (ArtifactContent, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	sourceURL = strings.TrimSpace(sourceURL)

	problems := pkgerrors.NewValidationErrors()

	if !kind.IsValid() {
		problems.Add("kind", "must be one of: "+joinEnum(ArtifactKinds()))
	}
	if title == "" {
		problems.Add("title", "is required")
	} else if utf8.RuneCountInString(title) > cfg.MaxTitleLength {
		problems.Addf("title", "must be at most %d characters", cfg.MaxTitleLength)
	}
	if utf8.RuneCountInString(body) > cfg.MaxBodyLength {
		problems.Addf("body", "must be at most %d characters", cfg.MaxBodyLength)
	}
	if kind == ArtifactNote && body == "" && sourceURL == "" {
		problems.Add("body", "is required for notes")
	}
	if kind.RequiresSource() && sourceURL == "" {
		problems.Addf("source_url", "is required for %s artifacts", kind)
	}
	if sourceURL != "" && !isAbsoluteURL(sourceURL) {
		problems.Add("source_url", "must be an absolute http(s) URL")
	}

	if err := problems.Err(); err != nil {
		return ArtifactContent{}, err
	}

	return ArtifactContent{
		kind:      kind,
		title:     title,
		body:      body,
		sourceURL: sourceURL,
	}, nil
}

// RestoreArtifactContent rebuilds stored content without validation
func RestoreArtifactContent(kind ArtifactKind, title, body, sourceURL string) ArtifactContent {
	return ArtifactContent{kind: kind, title: title, body: body, sourceURL: sourceURL}
}

// Kind returns the artifact kind
func (c ArtifactContent) Kind() ArtifactKind { return c.kind }

// Title returns the content title
func (c ArtifactContent) Title() string { return c.title }

// Body returns the content body
func (c ArtifactContent) Body() string { return c.body }

// SourceURL returns the external location, if any
func (c ArtifactContent) SourceURL() string { return c.sourceURL }

// Equals checks if two contents are equal
func (c ArtifactContent) Equals(other ArtifactContent) bool {
	return c == other
}

// Text joins title and body for keyword and embedding use
func (c ArtifactContent) Text() string {
	if c.body == "" {
		return c.title
	}
	return c.title + "\n" + c.body
}

// Summary returns a truncated summary of the content
func (c ArtifactContent) Summary(maxLength int) string {
	if maxLength <= 3 {
		return ""
	}

	combined := c.title
	if c.body != "" {
		combined += ": " + c.body
	}

	if utf8.RuneCountInString(combined) <= maxLength {
		return combined
	}

	runes := []rune(combined)
	return string(runes[:maxLength-3]) + "..."
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
