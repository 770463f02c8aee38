// internal/tenant/helpers.go
//
// Tenant helper functions shared by the lifecycle manager, admin API, and
// tests.
//
//   - `PhysicalName` – derives a schema name from a tenant id when the
//     caller does not pick one.  Anything outside [A-Za-z0-9_] is dropped,
//     so "3f2a-…-9c" becomes "clinic_3f2a…9c".
//
// Notes
// -----
//   - No logging here; caller decides what to log.
package tenant

import (
	"strings"
)

// DBPrefix is prepended to derived physical database names.
const DBPrefix = "clinic_"

// PhysicalName returns DBPrefix + id with every character outside
// [A-Za-z0-9_] removed, truncated to the 64-byte MySQL identifier limit.
func PhysicalName(id string) string {
	var b strings.Builder
	b.WriteString(DBPrefix)
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		}
	}
	name := b.String()
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
