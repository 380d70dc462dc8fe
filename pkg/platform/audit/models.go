package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// Sinks may route or retain categories differently.
type EventCategory string

const (
	// CategoryCompliance covers records of data the service accepted and stored.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to abuse monitoring, such as
	// guessing access codes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// Subject is a SHA-256 of the normalized email; raw addresses never
	// leave the service through audit.
	Subject   string `json:"subject"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	Device    string `json:"device,omitempty"`
}

type AuditEvent string

const (
	EventRegistrationCreated  AuditEvent = "registration_created"
	EventRegistrationConflict AuditEvent = "registration_conflict"
	EventRecoverySucceeded    AuditEvent = "recovery_succeeded"
	EventRecoveryFailed       AuditEvent = "recovery_failed"
	EventNotificationFailed   AuditEvent = "notification_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRegistrationCreated:  CategoryCompliance,
	EventRegistrationConflict: CategorySecurity,
	EventRecoverySucceeded:    CategoryCompliance,
	EventRecoveryFailed:       CategorySecurity,
	EventNotificationFailed:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store is any sink that accepts audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// HashSubject returns the hex SHA-256 used as Event.Subject.
func HashSubject(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
