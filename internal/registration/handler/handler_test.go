package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"nftform/internal/registration/handler/mocks"
	"nftform/internal/registration/models"
	"nftform/internal/registration/validation"
	dErrors "nftform/pkg/domain-errors"
	"nftform/pkg/requestcontext"
	"nftform/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type RegistrationHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *RegistrationHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestRegistrationHandlerSuite(t *testing.T) {
	suite.Run(t, new(RegistrationHandlerSuite))
}

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	r.MethodNotAllowed(MethodNotAllowed)
	New(mockService, logger).Register(r)
	return r, mockService
}

func (s *RegistrationHandlerSuite) TestHandleEntryForm() {
	s.Run("valid submission returns the access code", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Register(gomock.Any(), validation.RegistrationFields{
			Email:   "jane@gmail.com",
			Name:    "Jane &amp; Co",
			Prompt:  "a &lt;b&gt; fox",
			Twitter: "@jane",
		}).Return(&models.RegistrationResult{AccessCode: "ABCDEFGHIJ"}, nil)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/entry-form", map[string]string{
			"email":   "  Jane+promo@Gmail.com ",
			"name":    "Jane & Co",
			"prompt":  "a <b> fox",
			"twitter": "@jane",
		}))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "accessCode", "ABCDEFGHIJ")
	})

	s.Run("missing key is wrong fields", func() {
		router, _ := newTestRouter(s.T())
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/entry-form", map[string]string{
			"email": "jane@x.com",
			"name":  "Jane",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "wrong fields")
	})

	s.Run("invalid email is wrong fields", func() {
		router, _ := newTestRouter(s.T())
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/entry-form", map[string]string{
			"email": "not-an-email", "name": "", "prompt": "", "twitter": "",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "wrong fields")
	})

	s.Run("malformed body is wrong fields", func() {
		router, _ := newTestRouter(s.T())
		rr := testutil.DoRequest(router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/entry-form", `{"email":`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "wrong fields")
	})

	s.Run("conflict is email exists", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeConflict, "email exists"))

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/entry-form", map[string]string{
			"email": "a@x.com", "name": "A", "prompt": "p", "twitter": "t",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "email exists")
	})

	s.Run("internal error is opaque", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to save registration"))

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/entry-form", map[string]string{
			"email": "a@x.com", "name": "A", "prompt": "p", "twitter": "t",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "oups")
	})

	s.Run("non-POST is rejected", func() {
		router, _ := newTestRouter(s.T())
		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/entry-form"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "only POST allowed")
	})
}

func (s *RegistrationHandlerSuite) TestHandleCheckEmail() {
	s.Run("registered email", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().CheckExists(gomock.Any(), "a@x.com").Return(nil)

		rr := testutil.DoRequest(router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/check-email", `{"email":"A@X.com"}`))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "success", "it does")
	})

	s.Run("unknown email", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().CheckExists(gomock.Any(), "b@x.com").Return(dErrors.New(dErrors.CodeNotFound, "email not found"))

		rr := testutil.DoRequest(router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/check-email", `{"email":"b@x.com"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "email not found")
	})

	s.Run("storage failure", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().CheckExists(gomock.Any(), "b@x.com").Return(dErrors.New(dErrors.CodeInternal, "failed to check email"))

		rr := testutil.DoRequest(router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/check-email", `{"email":"b@x.com"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "oups")
	})

	s.Run("missing email", func() {
		router, _ := newTestRouter(s.T())
		rr := testutil.DoRequest(router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/check-email", `{}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "wrong fields")
	})

	s.Run("text/plain body is accepted", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().CheckExists(gomock.Any(), "a@x.com").Return(nil)

		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/check-email", `{"email":"a@x.com"}`)
		req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
		testutil.AssertStatusOK(s.T(), testutil.DoRequest(router, req))
	})

	s.Run("request metadata reaches the service", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().CheckExists(gomock.Any(), "a@x.com").DoAndReturn(func(ctx context.Context, _ string) error {
			s.Equal("req-42", requestcontext.RequestID(ctx))
			s.Equal("198.51.100.4", requestcontext.ClientIP(ctx))
			s.Equal("Chrome on Android (mobile)", requestcontext.Device(ctx))
			return nil
		})

		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/check-email", `{"email":"a@x.com"}`)
		req = testutil.WithRequestID(req, "req-42")
		req = testutil.WithClient(req, "198.51.100.4", "Chrome on Android (mobile)")
		testutil.AssertStatusOK(s.T(), testutil.DoRequest(router, req))
	})

	s.Run("PUT is rejected", func() {
		router, _ := newTestRouter(s.T())
		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodPut, "/check-email"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "only POST allowed")
	})
}

func (s *RegistrationHandlerSuite) TestHandleRecoverPrompt() {
	fields := validation.RecoveryFields{Email: "a@x.com", AccessCode: "ABCDEFGHIJ"}

	s.Run("POST body", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Recover(gomock.Any(), fields).Return(&models.RecoveryResult{Prompt: "a red fox"}, nil)

		rr := testutil.DoRequest(router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/recover-prompt",
			`{"email":"a@x.com","accesscode":"ABCDEFGHIJ"}`))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "prompt", "a red fox")
	})

	s.Run("GET query", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Recover(gomock.Any(), fields).Return(&models.RecoveryResult{Prompt: "a red fox"}, nil)

		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/recover-prompt?email=a%40x.com&accesscode=ABCDEFGHIJ"))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "prompt", "a red fox")
	})

	s.Run("GET without access code is wrong fields", func() {
		router, _ := newTestRouter(s.T())
		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/recover-prompt?email=a%40x.com"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "wrong fields")
	})

	s.Run("no match is 400 No email exists", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Recover(gomock.Any(), fields).Return(nil, dErrors.New(dErrors.CodeNotFound, "No email exists"))

		rr := testutil.DoRequest(router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/recover-prompt",
			`{"email":"a@x.com","accesscode":"ABCDEFGHIJ"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "No email exists")
	})

	s.Run("inconsistent state is opaque 500", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Recover(gomock.Any(), fields).Return(nil, dErrors.New(dErrors.CodeInternal, "inconsistent registration state"))

		rr := testutil.DoRequest(router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/recover-prompt",
			`{"email":"a@x.com","accesscode":"ABCDEFGHIJ"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "oups")
	})
}

func TestRecoverPromptFromQueryKeepsAbsenceDistinct(t *testing.T) {
	req := recoverPromptFromQuery(map[string][]string{"email": {""}})
	if assert.NotNil(t, req.Email) {
		assert.Equal(t, "", *req.Email)
	}
	assert.Nil(t, req.AccessCode)
}
