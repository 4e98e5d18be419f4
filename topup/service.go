package topup

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alovak/topup-playground/internal/amount"
	"github.com/alovak/topup-playground/internal/envelope"
	"github.com/alovak/topup-playground/internal/failure"
	"github.com/alovak/topup-playground/internal/transport"
	"github.com/alovak/topup-playground/topup/models"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// Sender delivers a request body under a retry policy. *transport.Client
// implements it.
type Sender interface {
	Send(ctx context.Context, req transport.Request, policy transport.Policy) (string, error)
}

// Service runs one transaction per Process call: send, classify and, for
// ambiguous failures, reverse. It keeps no state between calls.
type Service struct {
	sender     Sender
	classifier Classifier
	policy     ReversalPolicy
	cfg        *Config
	logger     *slog.Logger
}

type Option func(*Service)

func WithClassifier(c Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

func WithReversalPolicy(p ReversalPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// NewService builds a Service from cfg. An unknown cfg.Classifier falls back
// to the marker classifier; ConfigFromEnv rejects it before it gets here.
func NewService(sender Sender, cfg *Config, logger *slog.Logger, opts ...Option) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	classifier, err := NewClassifier(cfg.Classifier)
	if err != nil {
		logger.Warn("using marker classifier", slog.String("err", err.Error()))
		classifier = NewMarkerClassifier()
	}

	s := &Service{
		sender:     sender,
		classifier: classifier,
		policy:     NewProviderPolicy(cfg.ReversalProviders),
		cfg:        cfg,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process validates req, sends it and returns the outcome.
//
// An error is returned only when nothing was sent (validation failure) or
// when the send failed in a way that does not call for a reversal. Business
// failures and reversed attempts come back as a negative outcome.
func (s *Service) Process(ctx context.Context, req models.TransactionRequest) (models.TransactionOutcome, error) {
	logger := s.logger.With(
		slog.String("txn_id", uuid.NewString()),
		slog.String("provider", req.Provider),
		slog.String("service", req.Service),
		slog.String("sequence", req.Sequence),
		slog.String("batch", req.Batch),
	)

	if err := req.Validate(); err != nil {
		return models.TransactionOutcome{}, fmt.Errorf("validating request: %w", err)
	}
	monto, err := amount.FormatDecimal(req.Amount)
	if err != nil {
		return models.TransactionOutcome{}, fmt.Errorf("formatting amount: %w", err)
	}

	logger.Info("sending transaction", slog.String("type", req.Type()), slog.String("amount", monto))

	body, err := s.sender.Send(ctx, s.request(envelope.Build(req, monto, req.Type())), s.cfg.Primary)
	if err == nil {
		ok := s.classifier.Classify(body)
		logger.Info("transaction answered", slog.Bool("approved", ok))
		return models.TransactionOutcome{Success: ok, ResultBody: body}, nil
	}

	kind := failure.KindOf(err)
	if !s.policy.Eligible(req.Provider, kind) {
		logger.Error("transaction failed", slog.String("kind", kind.String()), slog.String("err", err.Error()))
		return models.TransactionOutcome{}, fmt.Errorf("sending transaction: %w", err)
	}

	logger.Warn("transaction outcome unknown, sending reversal", slog.String("err", err.Error()))

	// The reversal runs to completion even if the caller goes away.
	revCtx := context.WithoutCancel(ctx)
	revBody, revErr := s.sender.Send(revCtx, s.request(envelope.Build(req, monto, models.TransactionTypeReversal)), s.cfg.Reversal)
	if revErr != nil {
		logger.Error("reversal failed", slog.String("err", revErr.Error()))
		return models.TransactionOutcome{
			ResultBody:        fmt.Sprintf("%v; reversal also failed: %v", err, revErr),
			ReversalAttempted: true,
		}, nil
	}

	logger.Info("reversal sent", slog.Bool("approved", s.classifier.Classify(revBody)))
	return models.TransactionOutcome{
		ResultBody:        err.Error(),
		ReversalAttempted: true,
	}, nil
}

func (s *Service) request(body string) transport.Request {
	h := http.Header{}
	h.Set("Content-Type", envelope.ContentType)
	h.Set("SOAPAction", s.cfg.SOAPAction)
	return transport.Request{Endpoint: s.cfg.Endpoint, Body: body, Header: h}
}
