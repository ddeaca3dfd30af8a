// Package record defines the two record kinds the agent persists locally
// and reconciles with the remote system: access events and diagnostics.
package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an access record.
type Status string

const (
	StatusEntering Status = "entering"
	StatusExiting  Status = "exiting"
	StatusPending  Status = "pending"
)

// ParseStatus maps a stored or user-supplied string onto a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusEntering:
		return StatusEntering, nil
	case StatusExiting:
		return StatusExiting, nil
	case StatusPending:
		return StatusPending, nil
	}
	return "", fmt.Errorf("unknown access status %q", s)
}

// Attachment is a file captured alongside an access event.  Content is
// optional inline data (base64 or data URL, the store does not care).
type Attachment struct {
	Category string `json:"category"`
	Content  string `json:"content,omitempty"`
}

// Access represents one physical-access event.  Records are created
// local-first with Synced=false; the sync engine deletes them once the
// remote system has confirmed receipt.
type Access struct {
	ID            string       `json:"id"`
	Status        Status       `json:"status"`
	Subjects      []string     `json:"subjects,omitempty"`
	Organizations []string     `json:"organizations,omitempty"`
	VehiclePlate  string       `json:"vehiclePlate,omitempty"`
	PhoneNumber   string       `json:"phoneNumber,omitempty"`
	DoorID        string       `json:"doorId,omitempty"`
	EntryTime     time.Time    `json:"entryTime"`
	ExitTime      *time.Time   `json:"exitTime,omitempty"`
	Attachments   []Attachment `json:"attachedFiles,omitempty"`
	Synced        bool         `json:"synced"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Diagnostic represents one captured failure/error event, either from an
// application error path or synthesized by the sync engine itself.
type Diagnostic struct {
	ID          string    `json:"id"`
	Message     string    `json:"message"`
	ServiceName string    `json:"serviceName"`
	ErrorKind   string    `json:"errorKind"`
	Code        string    `json:"code"`
	Timestamp   time.Time `json:"timestamp"`
	DoorID      string    `json:"doorId,omitempty"`
	Synced      bool      `json:"synced"`
}

// NewID returns a fresh globally unique record id.
func NewID() string {
	return uuid.NewString()
}
