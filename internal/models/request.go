package models

import (
	"time"
)

// Access request status values.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// AccessRequest is a recipient's request for permission to download a file.
// Created anonymously against a share id; only the file owner may change
// its status. Rows are never deleted, they serve as the audit trail.
type AccessRequest struct {
	RequestID    string     `json:"request_id"`
	FileID       string     `json:"-"`
	Reason       string     `json:"reason,omitempty"`
	Status       string     `json:"status"`
	IPHash       string     `json:"-"`
	EncryptedKey string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty"`
}
