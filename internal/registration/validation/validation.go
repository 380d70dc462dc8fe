// Package validation turns untrusted request fields into the normalized field
// sets each workflow consumes. Inputs use pointer fields so a missing key is
// distinguishable from an empty value; a missing key is invalid input, never a
// panic.
package validation

import (
	dErrors "nftform/pkg/domain-errors"
)

// RegistrationInput is the raw registration payload.
type RegistrationInput struct {
	Email   *string
	Name    *string
	Prompt  *string
	Twitter *string
}

// RegistrationFields is the normalized registration field set.
type RegistrationFields struct {
	Email   string
	Name    string
	Prompt  string
	Twitter string
}

// RecoveryInput is the raw recovery payload.
type RecoveryInput struct {
	Email      *string
	AccessCode *string
}

// RecoveryFields is the normalized recovery field set.
type RecoveryFields struct {
	Email      string
	AccessCode string
}

// Registration validates every registration field.
func Registration(in RegistrationInput) (RegistrationFields, error) {
	if in.Email == nil || in.Name == nil || in.Prompt == nil || in.Twitter == nil {
		return RegistrationFields{}, missingField()
	}
	email, err := NormalizeEmail(*in.Email)
	if err != nil {
		return RegistrationFields{}, err
	}
	return RegistrationFields{
		Email:   email,
		Name:    Escape(*in.Name),
		Prompt:  Escape(*in.Prompt),
		Twitter: Escape(*in.Twitter),
	}, nil
}

// EmailOnly validates the single field used by the existence check.
func EmailOnly(email *string) (string, error) {
	if email == nil {
		return "", missingField()
	}
	return NormalizeEmail(*email)
}

// Recovery validates the email and access code pair.
func Recovery(in RecoveryInput) (RecoveryFields, error) {
	if in.Email == nil || in.AccessCode == nil {
		return RecoveryFields{}, missingField()
	}
	email, err := NormalizeEmail(*in.Email)
	if err != nil {
		return RecoveryFields{}, err
	}
	return RecoveryFields{
		Email:      email,
		AccessCode: Escape(*in.AccessCode),
	}, nil
}

func missingField() error {
	return dErrors.New(dErrors.CodeInvalidInput, "missing required field")
}
