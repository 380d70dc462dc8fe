package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftform/internal/registration/accesscode"
	"nftform/internal/registration/metrics"
	"nftform/internal/registration/models"
	"nftform/internal/registration/validation"
	dErrors "nftform/pkg/domain-errors"
	audit "nftform/pkg/platform/audit"
	"nftform/pkg/platform/sentinel"
	"nftform/pkg/requestcontext"
)

const tracerName = "nftform/internal/registration/service"

// DefaultNotifyTimeout bounds the access code email.
const DefaultNotifyTimeout = 30 * time.Second

type Store interface {
	Create(ctx context.Context, record *models.Record) error
	FindByEmail(ctx context.Context, email string) (*models.Record, error)
	FindByEmailAndCode(ctx context.Context, email, code string) (*models.Record, error)
}

// ExistenceCache remembers emails already known to be registered.
type ExistenceCache interface {
	IsRegistered(ctx context.Context, email string) (bool, error)
	MarkRegistered(ctx context.Context, email string) error
}

type Notifier interface {
	SendAccessCode(ctx context.Context, n models.AccessCodeNotification) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the registration, existence check and recovery workflows
// over one shared store.
type Service struct {
	store          Store
	notifier       Notifier
	cache          ExistenceCache
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	generateCode   func() (string, error)
	notifyTimeout  time.Duration
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCache enables the Redis-backed (or any) existence cache.
func WithCache(cache ExistenceCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithCodeGenerator replaces the access code source; tests pin codes with it.
func WithCodeGenerator(fn func() (string, error)) Option {
	return func(s *Service) {
		s.generateCode = fn
	}
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// New constructs a Service.
func New(store Store, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:         store,
		notifier:      notifier,
		generateCode:  accesscode.Generate,
		notifyTimeout: DefaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// Register issues an access code for a new email. The pre-check is advisory;
// the store's uniqueness constraint is what decides a race. The email is sent
// only after the record is persisted, and its failure never fails the call.
func (s *Service) Register(ctx context.Context, fields validation.RegistrationFields) (result *models.RegistrationResult, err error) {
	ctx, span := s.tracer.Start(ctx, "registration.Register")
	defer func() { endSpan(span, err) }()

	subject := audit.HashSubject(fields.Email)
	span.SetAttributes(attribute.String("registration.subject", subject))

	exists, err := s.isRegistered(ctx, fields.Email)
	if err != nil {
		s.metrics.IncRegistration(metrics.OutcomeError)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check registration")
	}
	if exists {
		return nil, s.conflict(ctx, subject, "precheck")
	}

	code, err := s.generateCode()
	if err != nil {
		s.metrics.IncRegistration(metrics.OutcomeError)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access code")
	}

	record := &models.Record{
		Email:      fields.Email,
		Name:       fields.Name,
		Prompt:     fields.Prompt,
		Twitter:    fields.Twitter,
		AccessCode: code,
		Premium:    false,
	}
	if err := s.store.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, s.conflict(ctx, subject, "unique_violation")
		}
		s.metrics.IncRegistration(metrics.OutcomeError)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registration")
	}

	s.notify(ctx, record, subject)
	s.markRegistered(ctx, fields.Email)
	s.emitAudit(ctx, audit.Event{
		Action:   string(audit.EventRegistrationCreated),
		Subject:  subject,
		Decision: "created",
	})
	s.metrics.IncRegistration(metrics.OutcomeCreated)
	s.logger.InfoContext(ctx, "registration created",
		"request_id", requestcontext.RequestID(ctx),
		"subject", subject,
	)

	return &models.RegistrationResult{AccessCode: code}, nil
}

// CheckExists returns nil when email is registered and a not_found domain
// error when it is not. Storage failures are internal errors, never "absent".
func (s *Service) CheckExists(ctx context.Context, email string) (err error) {
	ctx, span := s.tracer.Start(ctx, "registration.CheckExists")
	defer func() { endSpan(span, err) }()

	if s.cacheHit(ctx, email) {
		s.metrics.IncExistenceCheck(metrics.ResultCacheHit)
		return nil
	}

	_, err = s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.markRegistered(ctx, email)
		s.metrics.IncExistenceCheck(metrics.ResultFound)
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		s.metrics.IncExistenceCheck(metrics.ResultNotFound)
		return dErrors.New(dErrors.CodeNotFound, "email not found")
	default:
		s.metrics.IncExistenceCheck(metrics.ResultError)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}
}

// Recover releases the stored prompt for an exact (email, access code) match.
func (s *Service) Recover(ctx context.Context, fields validation.RecoveryFields) (result *models.RecoveryResult, err error) {
	ctx, span := s.tracer.Start(ctx, "registration.Recover")
	defer func() { endSpan(span, err) }()

	subject := audit.HashSubject(fields.Email)
	record, err := s.store.FindByEmailAndCode(ctx, fields.Email, fields.AccessCode)
	switch {
	case err == nil:
		s.metrics.IncRecovery(metrics.ResultFound)
		s.emitAudit(ctx, audit.Event{
			Action:   string(audit.EventRecoverySucceeded),
			Subject:  subject,
			Decision: "released",
		})
		return &models.RecoveryResult{Prompt: record.Prompt}, nil
	case errors.Is(err, sentinel.ErrNotFound):
		s.metrics.IncRecovery(metrics.ResultNotFound)
		s.emitAudit(ctx, audit.Event{
			Action:   string(audit.EventRecoveryFailed),
			Subject:  subject,
			Decision: "denied",
			Reason:   "no_match",
		})
		return nil, dErrors.New(dErrors.CodeNotFound, "No email exists")
	case errors.Is(err, sentinel.ErrInvalidState):
		s.metrics.IncRecovery(metrics.ResultError)
		s.logger.ErrorContext(ctx, "multiple registrations matched one email and code",
			"request_id", requestcontext.RequestID(ctx),
			"subject", subject,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "inconsistent registration state")
	default:
		s.metrics.IncRecovery(metrics.ResultError)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to recover registration")
	}
}

// isRegistered consults the cache first, then the store. Only a store error
// is returned; an unreachable cache just falls through.
func (s *Service) isRegistered(ctx context.Context, email string) (bool, error) {
	if s.cacheHit(ctx, email) {
		return true, nil
	}
	_, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) cacheHit(ctx context.Context, email string) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.IsRegistered(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "existence cache read failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return false
	}
	return hit
}

func (s *Service) markRegistered(ctx context.Context, email string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.MarkRegistered(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "existence cache write failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (s *Service) conflict(ctx context.Context, subject, reason string) error {
	s.metrics.IncRegistration(metrics.OutcomeConflict)
	s.emitAudit(ctx, audit.Event{
		Action:   string(audit.EventRegistrationConflict),
		Subject:  subject,
		Decision: "rejected",
		Reason:   reason,
	})
	return dErrors.New(dErrors.CodeConflict, "email exists")
}

// notify sends the access code on a context detached from the request so a
// client disconnect cannot abort delivery; notifyTimeout still bounds it.
func (s *Service) notify(ctx context.Context, record *models.Record, subject string) {
	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	start := time.Now()
	err := s.notifier.SendAccessCode(notifyCtx, models.AccessCodeNotification{
		Email:      record.Email,
		Name:       record.Name,
		AccessCode: record.AccessCode,
		Prompt:     record.Prompt,
	})
	s.metrics.ObserveNotification(time.Since(start))
	if err == nil {
		return
	}

	s.metrics.IncNotificationFailure()
	s.logger.ErrorContext(ctx, "failed to send access code email",
		"request_id", requestcontext.RequestID(ctx),
		"subject", subject,
		"error", err,
	)
	s.emitAudit(ctx, audit.Event{
		Action:  string(audit.EventNotificationFailed),
		Subject: subject,
		Reason:  err.Error(),
	})
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", event.Action,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("error.code", string(dErrors.CodeOf(err))))
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
