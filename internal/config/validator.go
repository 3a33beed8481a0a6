// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any tag
// mismatch or validation error aborts startup, ensuring the binary never
// runs with partial, malformed, or missing configuration.
//
// One custom rule is registered here: `Database.GlobalDSN` must carry the
// `{password}` placeholder whenever `GlobalPassword` is set, otherwise the
// secret would silently never reach the driver.

package config

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterStructValidation(func(sl validator.StructLevel) {
		db := sl.Current().Interface().(Database)
		if db.GlobalPassword != "" && !strings.Contains(db.GlobalDSN, PasswordPlaceholder) {
			sl.ReportError(db.GlobalDSN, "GlobalDSN", "global_dsn", "password_placeholder", "")
		}
	}, Database{})
	return val
}

// PasswordPlaceholder marks where the resolved password goes in GlobalDSN.
const PasswordPlaceholder = "{password}"

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("config: invalid")

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	if err := v.Struct(c); err != nil {
		return errors.Join(ErrInvalid, err)
	}
	return nil
}

// DSN returns GlobalDSN with the placeholder replaced by password.
func (d Database) DSN(password string) string {
	return strings.ReplaceAll(d.GlobalDSN, PasswordPlaceholder, password)
}
