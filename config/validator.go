package config

import (
	"sync"

	"github.com/grovetools/hop/schema"
)

var (
	validatorOnce sync.Once
	validator     *SchemaValidator
	validatorErr  error
)

// SchemaValidator validates raw configuration documents against the
// generated hop.yml schema.
type SchemaValidator struct {
	validator *schema.Validator
}

// NewSchemaValidator returns the shared validator, compiling the schema on
// first use.
func NewSchemaValidator() (*SchemaValidator, error) {
	validatorOnce.Do(func() {
		doc, err := GenerateSchema()
		if err != nil {
			validatorErr = err
			return
		}
		v, err := schema.NewValidator("hop.json", doc)
		if err != nil {
			validatorErr = err
			return
		}
		validator = &SchemaValidator{validator: v}
	})
	return validator, validatorErr
}

// Validate validates configuration data against the schema.
func (v *SchemaValidator) Validate(configData interface{}) error {
	return v.validator.Validate(configData)
}
