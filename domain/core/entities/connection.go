package entities

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"bobbin-backend/domain/config"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/domain/events"
	pkgerrors "bobbin-backend/pkg/errors"
	"bobbin-backend/pkg/utils"
)

const maxConnectionLabelLength = 200

// Connection is an edge between two endpoints in a user's graph
type Connection struct {
	id         valueobjects.ID
	ownerID    string
	source     valueobjects.Endpoint
	target     valueobjects.Endpoint
	kind       valueobjects.RelationshipKind
	label      string
	strength   float64
	directed   bool
	status     valueobjects.ConnectionStatus
	confidence *float64
	reason     string

	tracking
}

// ConnectionOptions carries the optional attributes of a new connection
type ConnectionOptions struct {
	Label      string
	Strength   *float64
	Directed   *bool
	Status     valueobjects.ConnectionStatus
	Confidence *float64
	Reason     string
}

// EndpointState is the flat form of an endpoint
type EndpointState struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// ConnectionState is the flat, serializable form of a Connection
type ConnectionState struct {
	ID         string        `json:"id"`
	OwnerID    string        `json:"owner_id"`
	Source     EndpointState `json:"source"`
	Target     EndpointState `json:"target"`
	Kind       string        `json:"kind"`
	Label      string        `json:"label,omitempty"`
	Strength   float64       `json:"strength"`
	Directed   bool          `json:"directed"`
	Status     string        `json:"status"`
	Confidence *float64      `json:"confidence,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Version    int           `json:"version"`
}

// NewConnection creates a connection between two endpoints. Existence of
// the endpoints is checked by the caller against the store.
func NewConnection(
	ownerID string,
	source, target valueobjects.Endpoint,
	kind valueobjects.RelationshipKind,
	opts ConnectionOptions,
	cfg *config.DomainConfig,
) (*Connection, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("owner cannot be empty")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.NewFieldValidationError("kind", "is not a recognised relationship")
	}
	if source.Equals(target) && !cfg.AllowSelfConnections {
		return nil, pkgerrors.NewValidationError("cannot connect an endpoint to itself").
			WithDetail("endpoint", source.Key())
	}

	verrs := pkgerrors.NewValidationErrors()

	label, err := normalizeConnectionLabel(opts.Label)
	if err != nil {
		verrs.Add("label", "is too long")
	}

	strength := cfg.DefaultConnectionStrength
	if opts.Strength != nil {
		strength = *opts.Strength
		if !unitInterval(strength) {
			verrs.Add("strength", "must be between 0 and 1")
		}
	}

	directed := kind.DirectedByDefault()
	if opts.Directed != nil {
		directed = *opts.Directed
	}

	status := opts.Status
	if status == "" {
		status = valueobjects.StatusConfirmed
	}
	if !status.IsValid() {
		verrs.Add("status", "is not a recognised connection status")
	}

	var confidence *float64
	if opts.Confidence != nil {
		if !unitInterval(*opts.Confidence) {
			verrs.Add("confidence", "must be between 0 and 1")
		}
		v := *opts.Confidence
		confidence = &v
	}

	if err := verrs.Err(); err != nil {
		return nil, err
	}

	c := &Connection{
		id:         valueobjects.NewID(),
		ownerID:    ownerID,
		source:     source,
		target:     target,
		kind:       kind,
		label:      label,
		strength:   strength,
		directed:   directed,
		status:     status,
		confidence: confidence,
		reason:     strings.TrimSpace(opts.Reason),
		tracking:   newTracking(utils.Now()),
	}

	c.addEvent(events.NewConnectionCreated(
		c.id.String(),
		ownerID,
		source.Key(),
		target.Key(),
		string(kind),
		string(status),
		confidence,
		c.createdAt,
	))

	return c, nil
}

// ReconstructConnection rebuilds a connection from stored state
func ReconstructConnection(s ConnectionState) (*Connection, error) {
	id, err := valueobjects.ParseID("id", s.ID)
	if err != nil {
		return nil, err
	}
	source, err := valueobjects.NewEndpoint("source", s.Source.Kind, s.Source.ID)
	if err != nil {
		return nil, err
	}
	target, err := valueobjects.NewEndpoint("target", s.Target.Kind, s.Target.ID)
	if err != nil {
		return nil, err
	}
	kind, err := valueobjects.ParseRelationshipKind(s.Kind)
	if err != nil {
		return nil, err
	}
	status, err := valueobjects.ParseConnectionStatus(s.Status)
	if err != nil {
		return nil, err
	}

	var confidence *float64
	if s.Confidence != nil {
		v := *s.Confidence
		confidence = &v
	}

	return &Connection{
		id:         id,
		ownerID:    s.OwnerID,
		source:     source,
		target:     target,
		kind:       kind,
		label:      s.Label,
		strength:   s.Strength,
		directed:   s.Directed,
		status:     status,
		confidence: confidence,
		reason:     s.Reason,
		tracking:   restoreTracking(s.CreatedAt, s.UpdatedAt, s.Version),
	}, nil
}

func normalizeConnectionLabel(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxConnectionLabelLength {
		return "", pkgerrors.NewFieldValidationError("label", "is too long")
	}
	return s, nil
}

func unitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// ID returns the connection's unique identifier
func (c *Connection) ID() valueobjects.ID { return c.id }

// OwnerID returns the owner's ID
func (c *Connection) OwnerID() string { return c.ownerID }

// Source returns the source endpoint
func (c *Connection) Source() valueobjects.Endpoint { return c.source }

// Target returns the target endpoint
func (c *Connection) Target() valueobjects.Endpoint { return c.target }

// Kind returns the relationship kind
func (c *Connection) Kind() valueobjects.RelationshipKind { return c.kind }

// Label returns the optional free-text label
func (c *Connection) Label() string { return c.label }

// Strength returns the edge weight in [0,1]
func (c *Connection) Strength() float64 { return c.strength }

// IsDirected reports whether the edge reads one way
func (c *Connection) IsDirected() bool { return c.directed }

// Status returns the confirmation status
func (c *Connection) Status() valueobjects.ConnectionStatus { return c.status }

// Confidence returns the suggestion confidence, if any
func (c *Connection) Confidence() *float64 {
	if c.confidence == nil {
		return nil
	}
	v := *c.confidence
	return &v
}

// Reason returns the suggestion rationale, if any
func (c *Connection) Reason() string { return c.reason }

// Touches reports whether e is either endpoint
func (c *Connection) Touches(e valueobjects.Endpoint) bool {
	return c.source.Equals(e) || c.target.Equals(e)
}

// Other returns the endpoint opposite e
func (c *Connection) Other(e valueobjects.Endpoint) valueobjects.Endpoint {
	if c.source.Equals(e) {
		return c.target
	}
	return c.source
}

// DuplicateKey identifies connections that would duplicate each other.
// Undirected edges ignore endpoint order.
func (c *Connection) DuplicateKey() string {
	return ConnectionDuplicateKey(c.source, c.target, c.kind, c.directed)
}

// ConnectionDuplicateKey builds the duplicate key for the given attributes
func ConnectionDuplicateKey(source, target valueobjects.Endpoint, kind valueobjects.RelationshipKind, directed bool) string {
	a, b := source, target
	if !directed && b.Less(a) {
		a, b = b, a
	}
	return string(kind) + "|" + a.Key() + "|" + b.Key()
}

// SetKind changes the relationship kind
func (c *Connection) SetKind(kind valueobjects.RelationshipKind) error {
	if !kind.IsValid() {
		return pkgerrors.NewFieldValidationError("kind", "is not a recognised relationship")
	}
	if kind == c.kind {
		return nil
	}
	c.kind = kind
	c.markChanged("kind")
	return nil
}

// SetLabel changes the free-text label
func (c *Connection) SetLabel(label string) error {
	label, err := normalizeConnectionLabel(label)
	if err != nil {
		return err
	}
	if label == c.label {
		return nil
	}
	c.label = label
	c.markChanged("label")
	return nil
}

// SetStrength changes the edge weight
func (c *Connection) SetStrength(strength float64) error {
	if !unitInterval(strength) {
		return pkgerrors.NewFieldValidationError("strength", "must be between 0 and 1")
	}
	if strength == c.strength {
		return nil
	}
	c.strength = strength
	c.markChanged("strength")
	return nil
}

// SetDirected changes the directionality
func (c *Connection) SetDirected(directed bool) {
	if directed == c.directed {
		return
	}
	c.directed = directed
	c.markChanged("directed")
}

// Confirm marks a suggested connection as confirmed by the user
func (c *Connection) Confirm() {
	if c.status == valueobjects.StatusConfirmed {
		return
	}
	c.status = valueobjects.StatusConfirmed
	c.markChanged("status")
}

// CommitUpdate bumps the version for pending changes and records the event
func (c *Connection) CommitUpdate() bool {
	changed := c.ChangedFields()
	if !c.commit(utils.Now()) {
		return false
	}
	c.addEvent(events.NewConnectionUpdated(c.id.String(), c.ownerID, c.version, changed, c.updatedAt))
	c.resetChanges()
	return true
}

// State returns the flat representation
func (c *Connection) State() ConnectionState {
	return ConnectionState{
		ID:         c.id.String(),
		OwnerID:    c.ownerID,
		Source:     EndpointState{Kind: string(c.source.Kind()), ID: c.source.ID().String()},
		Target:     EndpointState{Kind: string(c.target.Kind()), ID: c.target.ID().String()},
		Kind:       string(c.kind),
		Label:      c.label,
		Strength:   c.strength,
		Directed:   c.directed,
		Status:     string(c.status),
		Confidence: c.Confidence(),
		Reason:     c.reason,
		CreatedAt:  c.createdAt,
		UpdatedAt:  c.updatedAt,
		Version:    c.version,
	}
}
