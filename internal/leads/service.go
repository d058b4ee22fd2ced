package leads

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sogif-site/internal/alerting"
	"sogif-site/internal/metrics"
	"sogif-site/internal/storage"
)

// Store persists accepted leads.
type Store interface {
	InsertLead(ctx context.Context, lead storage.Lead) (storage.Lead, error)
}

// Options tune the lead service.
type Options struct {
	IPSalt string
	// RatePerHour and Burst bound submissions per client IP; zero disables the limit.
	RatePerHour      float64
	Burst            int
	RequireTurnstile bool
	Now              func() time.Time
	Metrics          *metrics.Registry
}

// Service validates, stores and announces lead submissions.
type Service struct {
	store    Store
	verifier Verifier
	notifier alerting.Notifier
	limiter  *ipLimiter
	opts     Options
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService wires the lead pipeline. store, verifier and notifier may each be nil:
// without a store leads are only announced, without a verifier no bot check runs.
func NewService(store Store, verifier Verifier, notifier alerting.Notifier, opts Options, logger zerolog.Logger) *Service {
	if notifier == nil {
		notifier = alerting.Nop{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Service{
		store:    store,
		verifier: verifier,
		notifier: notifier,
		opts:     opts,
		now:      now,
		logger:   logger.With().Str("component", "leads").Logger(),
	}
	if opts.RatePerHour > 0 {
		s.limiter = newIPLimiter(opts.RatePerHour, opts.Burst)
	}
	return s
}

// Submit accepts one form submission.
func (s *Service) Submit(ctx context.Context, sub Submission, client Client) (storage.Lead, error) {
	if err := normalize(&sub); err != nil {
		s.opts.Metrics.LeadRejected("invalid")
		return storage.Lead{}, err
	}

	ipHash := HashIP(s.opts.IPSalt, client.IP)
	if s.limiter != nil && !s.limiter.allow(ipHash, s.now()) {
		s.opts.Metrics.LeadRejected("rate_limited")
		s.logger.Warn().Str("ip_hash", ipHash).Msg("lead submission rate limited")
		return storage.Lead{}, ErrRateLimited
	}

	passed := false
	if s.verifier != nil {
		ok, err := s.verifier.Verify(ctx, sub.TurnstileToken, client.IP)
		if err != nil {
			s.logger.Warn().Err(err).Msg("bot verification unavailable")
		}
		passed = ok
	}
	if s.opts.RequireTurnstile && !passed {
		s.opts.Metrics.LeadRejected("bot_check")
		return storage.Lead{}, ErrBotCheck
	}

	lead := storage.Lead{
		ID:               uuid.New(),
		Email:            sub.Email,
		Phone:            optional(sub.Phone),
		InvestmentMinK:   sub.InvestmentMinK,
		InvestmentMaxK:   sub.InvestmentMaxK,
		Source:           sub.Source,
		TurnstileSuccess: passed,
		IPHash:           optional(ipHash),
		UserAgent:        optional(client.UserAgent),
		CreatedAt:        s.now().UTC(),
	}

	if s.store != nil {
		stored, err := s.store.InsertLead(ctx, lead)
		if err != nil {
			s.opts.Metrics.LeadRejected("store")
			return storage.Lead{}, fmt.Errorf("store lead: %w", err)
		}
		lead = stored
	} else {
		s.logger.Warn().Str("lead_id", lead.ID.String()).Msg("no lead store configured; lead not persisted")
	}

	s.opts.Metrics.LeadAccepted()
	s.logger.Info().Str("lead_id", lead.ID.String()).Str("source", lead.Source).Bool("turnstile", passed).Msg("lead accepted")

	if err := s.notifier.Notify(ctx, notification(lead)); err != nil {
		s.logger.Warn().Err(err).Str("lead_id", lead.ID.String()).Msg("lead notification failed")
	}
	return lead, nil
}

func notification(lead storage.Lead) alerting.Notification {
	bot := "not verified"
	if lead.TurnstileSuccess {
		bot = "passed"
	}
	return alerting.Notification{
		Subject: "New investor enquiry",
		At:      lead.CreatedAt,
		Fields: []alerting.Field{
			{Name: "Email", Value: lead.Email},
			{Name: "Phone", Value: deref(lead.Phone)},
			{Name: "Investment", Value: Band(lead.InvestmentMinK, lead.InvestmentMaxK)},
			{Name: "Source", Value: lead.Source},
			{Name: "Bot check", Value: bot},
			{Name: "Lead ID", Value: lead.ID.String()},
		},
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
