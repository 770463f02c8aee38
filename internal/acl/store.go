// internal/acl/store.go
//
// Role lookup for per-tenant access control.
//
// Context
// -------
// Roles live in the tenant database, on the `users.role` column, so a user
// id from a token only means something against the handle the request was
// routed to.  The same id on the default database is a different person.
//
// Notes
// -----
//   - Oxford commas, two spaces after periods.
//   - Max line length 100 columns.
package acl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/yanizio/clinic/internal/database"
	"github.com/yanizio/clinic/internal/model"
)

// ErrUnknownUser is returned when the id has no row in the handle's users
// table, or is not a numeric id at all.
var ErrUnknownUser = errors.New("unknown user")

// UserRole returns the role of userID in the database behind h.
func UserRole(ctx context.Context, h *database.Handle, userID string) (string, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownUser, userID)
	}
	users, err := model.UsersOf(h)
	if err != nil {
		return "", err
	}

	var role string
	err = users.DB().GetContext(ctx, &role, "SELECT role FROM `users` WHERE id = ? LIMIT 1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %d on %s", ErrUnknownUser, id, h.Name())
	}
	return role, err
}
