// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree.  Any validation error aborts startup,
// so the binary never runs with partial, malformed, or missing
// configuration.
//
// Custom rules
// ------------
//   - `dbname` – value must be usable as a physical schema name
//     (same rule the connection factory enforces).
//
// Notes
// -----
//   - Oxford commas, two spaces after periods.

package config

import (
	"github.com/go-playground/validator/v10"

	"github.com/yanizio/clinic/internal/database"
)

//
// validator instance (package-level singleton)
//

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	_ = val.RegisterValidation("dbname", func(fl validator.FieldLevel) bool {
		return database.ValidName(fl.Field().String()) == nil
	})
	return val
}

//
// public API
//

// validateStruct returns the validation errors, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
