// Package errors provides predefined sentinel errors for common failure cases.
package errors

// Object table / lifecycle errors (§4.1, §4.2).
var (
	ErrUnknownObjectID = &Error{Code: UnknownObjectID, Detail: "no object with that id"}
	ErrNoFreeObjectID  = &Error{Code: NoFreeObjectID, Detail: "object id space exhausted"}
	ErrObjectIsLocked  = &Error{Code: ObjectIsLocked, Detail: "value-type object is locked"}
	ErrInvalidOperation = &Error{Code: InvalidOperation, Detail: "operation not permitted in current state"}
)

// Session errors (§4.3).
var (
	ErrUnknownSessionID = &Error{Code: UnknownSessionID, Detail: "no session with that id"}
	ErrNoFreeSessionID  = &Error{Code: NoFreeSessionID, Detail: "session id space exhausted"}
)

// String / List errors (§4.4).
var (
	ErrOutOfRange          = &Error{Code: OutOfRange, Detail: "offset beyond object length"}
	ErrNotSupportedSelfRef = &Error{Code: NotSupported, Detail: "list cannot contain itself"}
	ErrWrongListItemType   = &Error{Code: WrongListItemType, Detail: "list item is not of the requested type"}
)

// Process errors (§4.6).
var (
	ErrProcessTerminal = &Error{Code: InvalidOperation, Detail: "process is in a terminal state"}
)

// Program config errors (§4.8).
var (
	ErrMalformedProgramConfig = &Error{Code: MalformedProgramConfig, Detail: "program.conf could not be parsed"}
	ErrInvalidProgramID       = &Error{Code: InvalidParameter, Detail: "program identifier fails validation"}
)
