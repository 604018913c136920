package models

// ErrorKind is the cross-cutting error taxonomy. Kinds travel in
// SessionContext.Errors entries, audit records, and terminal stream events.
type ErrorKind string

const (
	// ErrorKindUnauthorised — identity not trusted or policy denies.
	ErrorKindUnauthorised ErrorKind = "unauthorised"
	// ErrorKindMalformed — message or input fails schema/signature checks.
	ErrorKindMalformed ErrorKind = "malformed"
	// ErrorKindExpired — message TTL exceeded.
	ErrorKindExpired ErrorKind = "expired"
	// ErrorKindBusy — queue or buffer full.
	ErrorKindBusy ErrorKind = "busy"
	// ErrorKindUnknownRecipient — routing target absent.
	ErrorKindUnknownRecipient ErrorKind = "unknown_recipient"
	// ErrorKindNotFound — session or record absent in the store.
	ErrorKindNotFound ErrorKind = "not_found"
	// ErrorKindStoreUnavailable — transient persistence failure.
	ErrorKindStoreUnavailable ErrorKind = "store_unavailable"
	// ErrorKindAgentFault — plug-in raised an unexpected error.
	ErrorKindAgentFault ErrorKind = "agent_fault"
	// ErrorKindCancelled — cooperative cancellation observed.
	ErrorKindCancelled ErrorKind = "cancelled"
	// ErrorKindResourceExhausted — workflow exceeded its duration budget.
	ErrorKindResourceExhausted ErrorKind = "resource_exhausted"
	// ErrorKindConfigInvalid — startup-time configuration check failed.
	ErrorKindConfigInvalid ErrorKind = "config_invalid"
)

// IsFatal reports whether this kind forces the workflow into failed
// without running subsequent steps.
func (k ErrorKind) IsFatal() bool {
	return k == ErrorKindCancelled || k == ErrorKindResourceExhausted
}
