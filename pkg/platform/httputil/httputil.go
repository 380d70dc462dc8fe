package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "nftform/pkg/domain-errors"
)

// InternalErrorMessage is the only text clients ever see for unexpected faults.
const InternalErrorMessage = "oups"

// MaxBodyBytes bounds request bodies read by DecodeJSON.
const MaxBodyBytes = 64 << 10

// Validatable is implemented by request types that normalize and validate
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorMessage writes the {"error": message} envelope.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteError translates a domain error into its HTTP status and envelope.
// Internal and uncoded errors never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) || de.Code == dErrors.CodeInternal {
		WriteErrorMessage(w, http.StatusInternalServerError, InternalErrorMessage)
		return
	}
	WriteErrorMessage(w, dErrors.ToHTTPStatus(de.Code), de.Message)
}

// DecodeJSON decodes a single JSON object from the request body. The
// Content-Type header is not enforced; browser clients post text/plain.
func DecodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

// DecodeAndPrepare decodes the body into a new T and runs its Validate.
// Decode failures are reported as invalid input with the supplied message.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](r *http.Request, invalidMessage string) (PT, error) {
	req := PT(new(T))
	if err := DecodeJSON(r, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, invalidMessage)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}
