package commands

import (
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/utils"
)

// EndpointInput references an artifact or concept by kind and id
type EndpointInput struct {
	Kind string `json:"kind" validate:"required"`
	ID   string `json:"id" validate:"required,uuid"`
}

// Endpoint parses the input; field prefixes error messages
func (e EndpointInput) Endpoint(field string) (valueobjects.Endpoint, error) {
	return valueobjects.NewEndpoint(field, e.Kind, e.ID)
}

// CreateConnectionCommand connects two existing endpoints
type CreateConnectionCommand struct {
	Source     EndpointInput `json:"source" validate:"required"`
	Target     EndpointInput `json:"target" validate:"required"`
	Kind       string        `json:"kind"`
	Label      string        `json:"label"`
	Strength   *float64      `json:"strength,omitempty" validate:"omitempty,gte=0,lte=1"`
	Directed   *bool         `json:"directed,omitempty"`
	Status     string        `json:"status"`
	Confidence *float64      `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Reason     string        `json:"reason"`
}

// Validate checks the structural rules
func (c CreateConnectionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdateConnectionCommand changes only the fields that are set
type UpdateConnectionCommand struct {
	Kind            *string  `json:"kind,omitempty"`
	Label           *string  `json:"label,omitempty"`
	Strength        *float64 `json:"strength,omitempty" validate:"omitempty,gte=0,lte=1"`
	Directed        *bool    `json:"directed,omitempty"`
	ExpectedVersion *int     `json:"expected_version,omitempty" validate:"omitempty,gte=1"`
}

// Validate checks the structural rules of the supplied fields
func (c UpdateConnectionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// IsEmpty reports whether no mutable field was supplied
func (c UpdateConnectionCommand) IsEmpty() bool {
	return c.Kind == nil && c.Label == nil && c.Strength == nil && c.Directed == nil
}
