package engine

// AuditEntry records one attempted mutation, accepted or not.
// Implemented in internal/persistence.
type AuditEntry struct {
	Seq       uint64 `json:"seq"`
	Actor     string `json:"actor"`
	Op        string `json:"op"`
	PieceID   string `json:"piece_id,omitempty"`
	PieceType string `json:"piece_type,omitempty"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	OK        bool   `json:"ok"`
	Code      string `json:"code,omitempty"`
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}
