package log

// Shared attribute keys so every package logs the same field names.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldUserID      = "user_id"
	FieldAccountID   = "account_id"
	FieldTxID        = "transaction_id"
	FieldTxType      = "transaction_type"
	FieldAmount      = "amount"
	FieldPairID      = "pair_id"
	FieldAuditAction = "audit_action"
)

// Component tags for the two binaries.
const (
	ComponentApp    = "app"
	ComponentWorker = "worker"
)
