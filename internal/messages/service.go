package messages

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lyftr/internal/constants"
	"lyftr/internal/logger"
	"lyftr/pkg/errors"
	"lyftr/pkg/logging"
	"lyftr/pkg/metrics"
	"lyftr/pkg/signature"
	"lyftr/pkg/tracing"
)

const createdAtLayout = "2006-01-02T15:04:05.000000Z"

type Option func(*Service)

// WithClock overrides the created_at source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithEventPublisher enables message.created events.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

type Service struct {
	repo      Repository
	verifier  *signature.Verifier
	sink      metrics.Sink
	publisher EventPublisher
	logger    logger.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

func NewService(repo Repository, secret []byte, sink metrics.Sink, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		verifier: signature.NewVerifier(secret),
		sink:     sink,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest authenticates, validates and stores one webhook body. The returned
// result always carries an outcome, and exactly one outcome is reported to the
// metrics sink per call. The error is nil only for created and duplicate.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (result IngestResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "messages.ingest")
	defer func() {
		tracing.EndIngestSpan(span, result.Outcome.String(), result.MessageID, result.Outcome.Accepted())
		s.sink.IncWebhookResult(result.Outcome.String())
	}()

	// A body cut short cannot match the sender's signature over the full body.
	if !req.SignaturePresent || req.BodyIncomplete || !s.verifier.Verify(req.Body, req.Signature) {
		result.Outcome = OutcomeInvalidSignature
		return result, errors.ErrUnauthorized
	}

	payload, violations := ParsePayload(req.Body)
	if len(violations) > 0 {
		result.Outcome = OutcomeValidationError
		result.Violations = violations
		s.logger.InfowCtx(ctx, "webhook payload rejected", "violations", violations)
		return result, errors.ErrValidation.WithDetail(errors.DetailErrors, violations)
	}

	result.MessageID = payload.MessageID
	ctx = logging.WithMessageID(ctx, payload.MessageID)

	msg := Message{
		MessageID:  payload.MessageID,
		FromMSISDN: payload.From,
		ToMSISDN:   payload.To,
		TS:         payload.TS,
		Text:       payload.Text,
		CreatedAt:  s.now().UTC().Format(createdAtLayout),
	}

	outcome, err := s.repo.Insert(ctx, msg)
	if err != nil {
		result.Outcome = OutcomeStorageError
		s.logger.ErrorwCtx(ctx, "failed to store message", "error", err)
		if errors.IsUnavailable(err) {
			return result, err
		}
		return result, errors.ErrServiceUnavailable.WithCause(err)
	}
	result.Outcome = outcome

	if outcome == OutcomeCreated {
		s.publishCreated(ctx, msg)
	}

	return result, nil
}

func (s *Service) publishCreated(ctx context.Context, msg Message) {
	if s.publisher == nil {
		return
	}

	publishCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(publishCtx, constants.KafkaWriteTimeout)
		defer cancel()

		if err := s.publisher.PublishCreated(ctx, msg); err != nil {
			s.logger.WarnwCtx(ctx, "failed to publish message event", "error", err)
		}
	}()
}

// RecordRateLimited reports a webhook request rejected before ingestion.
func (s *Service) RecordRateLimited() {
	s.sink.IncWebhookResult(OutcomeRateLimited.String())
}

// Query returns one filtered page of messages.
func (s *Service) Query(ctx context.Context, filter Filter, limit, offset int) (QueryResult, error) {
	result, err := s.repo.Query(ctx, filter, limit, offset)
	if err != nil {
		return QueryResult{}, storageError(err)
	}
	return result, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return Stats{}, storageError(err)
	}
	return stats, nil
}

// Close waits for in-flight event publishes.
func (s *Service) Close() {
	s.wg.Wait()
}

func storageError(err error) error {
	if errors.IsUnavailable(err) {
		return err
	}
	return errors.ErrServiceUnavailable.WithCause(fmt.Errorf("message store: %w", err))
}
