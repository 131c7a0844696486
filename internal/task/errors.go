package task

import (
	"errors"
	"fmt"
)

// Kind classifies errors returned by the orchestrator and the connector layer.
type Kind string

// Error kinds
const (
	KindTaskNotFound            Kind = "TaskNotFound"
	KindDuplicateTaskCode       Kind = "DuplicateTaskCode"
	KindInvalidTransition       Kind = "InvalidTransition"
	KindDeleteBlocked           Kind = "DeleteBlocked"
	KindUpdateBlocked           Kind = "UpdateBlocked"
	KindUnsupportedDatabaseKind Kind = "UnsupportedDatabaseKind"
	KindSourceUnreachable       Kind = "SourceUnreachable"
	KindNoConnectorReference    Kind = "NoConnectorReference"
	KindOperationFailed         Kind = "OperationFailed"
	KindTimeout                 Kind = "Timeout"
	KindConflict                Kind = "Conflict"
	KindInvalidArgument         Kind = "InvalidArgument"
	KindRestartThrottled        Kind = "RestartThrottled"
	KindTenantNotFound          Kind = "TenantNotFound"
	KindDuplicateTenantCode     Kind = "DuplicateTenantCode"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrTaskNotFound            = &Error{Kind: KindTaskNotFound}
	ErrDuplicateTaskCode       = &Error{Kind: KindDuplicateTaskCode}
	ErrInvalidTransition       = &Error{Kind: KindInvalidTransition}
	ErrDeleteBlocked           = &Error{Kind: KindDeleteBlocked}
	ErrUpdateBlocked           = &Error{Kind: KindUpdateBlocked}
	ErrUnsupportedDatabaseKind = &Error{Kind: KindUnsupportedDatabaseKind}
	ErrSourceUnreachable       = &Error{Kind: KindSourceUnreachable}
	ErrNoConnectorReference    = &Error{Kind: KindNoConnectorReference}
	ErrOperationFailed         = &Error{Kind: KindOperationFailed}
	ErrTimeout                 = &Error{Kind: KindTimeout}
	ErrConflict                = &Error{Kind: KindConflict}
	ErrInvalidArgument         = &Error{Kind: KindInvalidArgument}
	ErrRestartThrottled        = &Error{Kind: KindRestartThrottled}
	ErrTenantNotFound          = &Error{Kind: KindTenantNotFound}
	ErrDuplicateTenantCode     = &Error{Kind: KindDuplicateTenantCode}
)

// Error is a typed orchestrator error. Current and Requested are set for transition errors.
type Error struct {
	Kind      Kind
	Message   string
	Current   Status
	Requested Status
	Err       error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain, or an empty kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NewTaskNotFound reports a missing or soft-deleted task.
func NewTaskNotFound(id fmt.Stringer) *Error {
	return &Error{Kind: KindTaskNotFound, Message: fmt.Sprintf("task %s not found", id)}
}

// NewTaskCodeNotFound reports a missing task looked up by its tenant-scoped code.
func NewTaskCodeNotFound(code string) *Error {
	return &Error{Kind: KindTaskNotFound, Message: fmt.Sprintf("task %q not found", code)}
}

// NewDuplicateTaskCode reports a task code already used by a live task of the tenant.
func NewDuplicateTaskCode(tenantID fmt.Stringer, code string) *Error {
	return &Error{
		Kind:    KindDuplicateTaskCode,
		Message: fmt.Sprintf("task code %q already exists for tenant %s", code, tenantID),
	}
}

// NewInvalidTransition reports a transition missing from the transition table.
func NewInvalidTransition(current, requested Status) *Error {
	return &Error{
		Kind:      KindInvalidTransition,
		Message:   fmt.Sprintf("cannot transition task from %s to %s", current, requested),
		Current:   current,
		Requested: requested,
	}
}

// NewResumeNotPaused reports a resume attempt on a task that is not paused.
func NewResumeNotPaused(current Status) *Error {
	return &Error{
		Kind:      KindInvalidTransition,
		Message:   fmt.Sprintf("only paused tasks can be resumed, task is %s", current),
		Current:   current,
		Requested: StatusRunning,
	}
}

// NewDeleteBlocked reports a non-forced delete of a running task.
func NewDeleteBlocked(id fmt.Stringer) *Error {
	return &Error{
		Kind:    KindDeleteBlocked,
		Message: fmt.Sprintf("task %s is running, stop it first or force the deletion", id),
		Current: StatusRunning,
	}
}

// NewUpdateBlocked reports an update attempt on a running task.
func NewUpdateBlocked(id fmt.Stringer) *Error {
	return &Error{
		Kind:    KindUpdateBlocked,
		Message: fmt.Sprintf("task %s is running and cannot be updated", id),
		Current: StatusRunning,
	}
}

// NewUnsupportedDatabaseKind reports a database kind without a registered builder.
func NewUnsupportedDatabaseKind(kind DatabaseKind) *Error {
	return &Error{
		Kind:    KindUnsupportedDatabaseKind,
		Message: fmt.Sprintf("unsupported database kind %q", kind),
	}
}

// NewSourceUnreachable reports a failed source reachability probe.
func NewSourceUnreachable(kind DatabaseKind) *Error {
	return &Error{
		Kind:    KindSourceUnreachable,
		Message: fmt.Sprintf("source %s database is unreachable", kind),
	}
}

// NewNoConnectorReference reports an operation that needs a provisioned connector.
func NewNoConnectorReference(code string) *Error {
	return &Error{
		Kind:    KindNoConnectorReference,
		Message: fmt.Sprintf("task %q has no connector reference", code),
	}
}

// NewOperationFailed wraps a remote or transport failure, preserving its message.
func NewOperationFailed(op string, err error) *Error {
	return &Error{Kind: KindOperationFailed, Message: op + " failed", Err: err}
}

// NewTimeout reports an operation that exceeded the caller's deadline.
func NewTimeout(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: op + " timed out", Err: err}
}

// NewConflict reports a lost optimistic concurrency race.
func NewConflict(id fmt.Stringer, err error) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("task %s was modified concurrently", id),
		Err:     err,
	}
}

// NewInvalidArgument reports malformed input.
func NewInvalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NewRestartThrottled reports a restart rejected by the restart rate limit.
func NewRestartThrottled(id fmt.Stringer) *Error {
	return &Error{
		Kind:    KindRestartThrottled,
		Message: fmt.Sprintf("task %s was restarted too often, retry later", id),
	}
}

// NewTenantNotFound reports a missing or soft-deleted tenant.
func NewTenantNotFound(ref string) *Error {
	return &Error{Kind: KindTenantNotFound, Message: fmt.Sprintf("tenant %s not found", ref)}
}

// NewDuplicateTenantCode reports a tenant code already in use.
func NewDuplicateTenantCode(code string) *Error {
	return &Error{Kind: KindDuplicateTenantCode, Message: fmt.Sprintf("tenant code %q already exists", code)}
}
