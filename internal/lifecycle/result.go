// internal/lifecycle/result.go
//
// Per-step lifecycle results.
//
// Every lifecycle operation touches two things: the directory row and the
// physical database.  Result reports each half separately so an operator
// can tell "the row is fine, the DROP failed" from the reverse and retry
// only what needs it.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrOpFailed is wrapped by every lifecycle step failure.
var ErrOpFailed = errors.New("tenant lifecycle operation failed")

// Halves of a lifecycle operation.
const (
	HalfRecord   = "record"
	HalfDatabase = "database"
)

// Operation names, also used as metric labels.
const (
	OpCreateTenant         = "create_tenant"
	OpCreateTenantDatabase = "create_tenant_database"
	OpDeleteTenant         = "delete_tenant"
	OpDeleteTenantDatabase = "delete_tenant_database"
	OpDeactivateTenant     = "deactivate_tenant"
	OpActivateTenant       = "activate_tenant"
)

// Step is the outcome of one half.  A step that never ran has
// Attempted == false.
type Step struct {
	Attempted bool
	Err       error
}

// OK reports whether the step ran and succeeded.
func (s Step) OK() bool { return s.Attempted && s.Err == nil }

func (s *Step) fail(err error) { s.Attempted, s.Err = true, err }
func (s *Step) done()          { s.Attempted, s.Err = true, nil }

// Result describes one lifecycle call.
type Result struct {
	Op       string
	TenantID string
	DBName   string
	Record   Step
	Database Step
	Evicted  bool // a cached connection was closed
}

// OK reports whether no attempted step failed.
func (r Result) OK() bool { return r.Err() == nil }

// Err joins every failed step into one error.  Each part is an *OpError,
// and errors.Is(err, ErrOpFailed) holds whenever Err is non-nil.
func (r Result) Err() error {
	var merr *multierror.Error
	if r.Record.Err != nil {
		merr = multierror.Append(merr, &OpError{Op: r.Op, Half: HalfRecord, TenantID: r.TenantID, Err: r.Record.Err})
	}
	if r.Database.Err != nil {
		merr = multierror.Append(merr, &OpError{Op: r.Op, Half: HalfDatabase, TenantID: r.TenantID, Err: r.Database.Err})
	}
	return merr.ErrorOrNil()
}

// OpError names the half that failed.
type OpError struct {
	Op       string
	Half     string
	TenantID string
	Err      error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %s step: %v", e.Op, e.TenantID, e.Half, e.Err)
}

// Unwrap exposes both ErrOpFailed and the underlying cause.
func (e *OpError) Unwrap() []error { return []error{ErrOpFailed, e.Err} }
