package models

// Record is one registration, keyed by normalized email. Records are created
// once and never updated; AccessCode is immutable after insert.
type Record struct {
	Email      string
	Name       string
	Prompt     string
	Twitter    string
	AccessCode string
	Premium    bool
}

// AccessCodeNotification is what the outbound mailer needs to deliver a code.
type AccessCodeNotification struct {
	Email      string
	Name       string
	AccessCode string
	Prompt     string
}

// RegistrationResult is returned to the registrant.
type RegistrationResult struct {
	AccessCode string
}

// RecoveryResult carries the content released by a matching access code.
type RecoveryResult struct {
	Prompt string
}
