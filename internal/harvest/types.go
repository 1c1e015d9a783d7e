// internal/harvest/types.go
package harvest

import "time"

// Status tracks a record through downstream processing. This package only
// ever produces StatusPending; consumers own the transitions.
type Status string

const StatusPending Status = "pending"

// Record is the scan result for one message. Built once, never mutated.
type Record struct {
	Name           string             `json:"name"`
	Subject        string             `json:"subject"`
	ConversationID string             `json:"conversation_id"`
	From           string             `json:"from"`
	Sender         string             `json:"sender"`
	Body           string             `json:"body"`
	Files          []AttachmentRecord `json:"files"`
	Status         Status             `json:"status"`
}

// AttachmentRecord points at a saved attachment copy. ID is freshly
// generated per download; saving the same attachment twice yields two ids.
type AttachmentRecord struct {
	Path string `json:"path"`
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Spec parameterizes one scan.
type Spec struct {
	Account         string
	Folder          string
	SubjectContains string
	Since           time.Time // zero means no received-time lower bound
	IncludeRead     bool
	OutputDir       string
	AllowedTypes    []string // extensions with leading dot; empty allows all
	Workers         int      // per-message fetch concurrency, 0 for default
}
