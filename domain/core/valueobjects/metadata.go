package valueobjects

import (
	"strings"

	"bobbin-backend/domain/config"
	pkgerrors "bobbin-backend/pkg/errors"
)

const (
	maxMetadataKeyLength   = 64
	maxMetadataValueLength = 1024
)

// Metadata is free-form string annotation attached to an entity
type Metadata map[string]string

// NewMetadata validates entry count and sizes and returns a copy
func NewMetadata(in map[string]string, cfg *config.DomainConfig) (Metadata, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if len(in) > cfg.MaxMetadataEntries {
		return nil, pkgerrors.NewFieldValidationError("metadata", "has too many entries").
			WithDetail("max_entries", cfg.MaxMetadataEntries)
	}

	out := make(Metadata, len(in))
	for k, v := range in {
		key := strings.TrimSpace(k)
		if key == "" || len(key) > maxMetadataKeyLength {
			return nil, pkgerrors.NewFieldValidationError("metadata", "keys must be 1-64 bytes")
		}
		if len(v) > maxMetadataValueLength {
			return nil, pkgerrors.NewFieldValidationError("metadata."+key, "value is too long")
		}
		out[key] = v
	}
	return out, nil
}

// Clone returns an independent copy; nil stays nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
