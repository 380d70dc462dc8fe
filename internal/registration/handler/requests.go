package handler

import (
	"net/url"

	"nftform/internal/registration/validation"
	dErrors "nftform/pkg/domain-errors"
)

// wrongFields is the single message clients get for any invalid payload.
const wrongFields = "wrong fields"

type checkEmailRequest struct {
	Email *string `json:"email"`

	email string
}

func (r *checkEmailRequest) Validate() error {
	email, err := validation.EmailOnly(r.Email)
	if err != nil {
		return invalid(err)
	}
	r.email = email
	return nil
}

type entryFormRequest struct {
	Email   *string `json:"email"`
	Name    *string `json:"name"`
	Prompt  *string `json:"prompt"`
	Twitter *string `json:"twitter"`

	fields validation.RegistrationFields
}

func (r *entryFormRequest) Validate() error {
	fields, err := validation.Registration(validation.RegistrationInput{
		Email:   r.Email,
		Name:    r.Name,
		Prompt:  r.Prompt,
		Twitter: r.Twitter,
	})
	if err != nil {
		return invalid(err)
	}
	r.fields = fields
	return nil
}

type recoverPromptRequest struct {
	Email      *string `json:"email"`
	AccessCode *string `json:"accesscode"`

	fields validation.RecoveryFields
}

func (r *recoverPromptRequest) Validate() error {
	fields, err := validation.Recovery(validation.RecoveryInput{
		Email:      r.Email,
		AccessCode: r.AccessCode,
	})
	if err != nil {
		return invalid(err)
	}
	r.fields = fields
	return nil
}

// recoverPromptFromQuery reads the GET form. An absent parameter stays nil so
// it fails validation the same way a missing JSON key does.
func recoverPromptFromQuery(q url.Values) *recoverPromptRequest {
	req := &recoverPromptRequest{}
	if q.Has("email") {
		v := q.Get("email")
		req.Email = &v
	}
	if q.Has("accesscode") {
		v := q.Get("accesscode")
		req.AccessCode = &v
	}
	return req
}

func invalid(err error) error {
	return dErrors.Wrap(err, dErrors.CodeInvalidInput, wrongFields)
}
