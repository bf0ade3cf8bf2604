// Package registry holds the shared row shape for the three capability
// registries (cleaning rules, feature-selection algorithms, ML model
// types) synced by workers at startup. All three tables share this
// struct; only TableName differs per concrete repository (see
// internal/data/repos/registry).
package registry

import (
	"time"

	"gorm.io/datatypes"
)

// Entry is one row in a capability registry table.
type Entry struct {
	Name string `gorm:"column:name;primaryKey" json:"name"`

	DisplayName string `gorm:"column:display_name;not null" json:"display_name"`
	Description string `gorm:"column:description" json:"description,omitempty"`

	// ParameterSchema decodes to []ParamDef (declared below).
	ParameterSchema datatypes.JSON `gorm:"column:parameter_schema;type:jsonb" json:"parameter_schema"`

	IsImplemented bool   `gorm:"column:is_implemented;not null;default:true;index" json:"is_implemented"`
	LastUpdatedBy string `gorm:"column:last_updated_by;not null;index" json:"last_updated_by"`

	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

// ParamType enumerates the hyper-parameter schema contract from spec
// section 4.4.
type ParamType string

const (
	ParamInteger    ParamType = "integer"
	ParamFloat      ParamType = "float"
	ParamString     ParamType = "string"
	ParamBoolean    ParamType = "boolean"
	ParamTextChoice ParamType = "text_choice"
	ParamEnum       ParamType = "enum"
)

// ParamRange describes a numeric parameter's bounds for integer/float
// types.
type ParamRange struct {
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Step *float64 `json:"step,omitempty"`
	Log  bool     `json:"log,omitempty"`
}

// ParamDef is one hyper-parameter descriptor, shared verbatim across
// cleaning rules, feature-selection algorithms, and model types (spec
// section 4.4's "Hyper-parameter schema contract").
type ParamDef struct {
	Name     string      `json:"name"`
	Type     ParamType   `json:"type"`
	Default  any         `json:"default,omitempty"`
	Range    *ParamRange `json:"range,omitempty"`
	Options  []string    `json:"options,omitempty"`
	Required bool        `json:"required"`
}

// Descriptor is what a plug-in package contributes to a sync pass: the
// registry row fields plus its decoded parameter schema.
type Descriptor struct {
	Name          string
	DisplayName   string
	Description   string
	Parameters    []ParamDef
	IsImplemented bool
}
