package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicrecords/securelink-server/internal/config"
	apperrors "github.com/clinicrecords/securelink-server/internal/errors"
	"github.com/clinicrecords/securelink-server/internal/metrics"
	"github.com/clinicrecords/securelink-server/internal/model"
	"github.com/clinicrecords/securelink-server/internal/repository"
	"github.com/clinicrecords/securelink-server/internal/util"
)

const (
	DashboardPath = "/patient/dashboard"
	DocumentsPath = "/documents"
)

// SecureLinkConfig carries the tunables of SecureLinkService. Zero values
// fall back to defaults.
type SecureLinkConfig struct {
	PublicBaseURL        string
	IssueLimitPerPatient int
	Now                  func() time.Time
	Generate             TokenGenerator
}

// SecureLinkService issues, validates, revokes and sweeps secure link tokens.
type SecureLinkService struct {
	tokenRepo   repository.SecureLinkTokenRepository
	patientRepo repository.PatientRepository
	limiter     Limiter
	baseURL     string
	issueLimit  int
	now         func() time.Time
	generate    TokenGenerator
}

// NewSecureLinkService creates a new secure link service. limiter may be nil
// to disable issuance throttling.
func NewSecureLinkService(
	tokenRepo repository.SecureLinkTokenRepository,
	patientRepo repository.PatientRepository,
	limiter Limiter,
	cfg SecureLinkConfig,
) *SecureLinkService {
	s := &SecureLinkService{
		tokenRepo:   tokenRepo,
		patientRepo: patientRepo,
		limiter:     limiter,
		baseURL:     strings.TrimRight(cfg.PublicBaseURL, "/"),
		issueLimit:  cfg.IssueLimitPerPatient,
		now:         cfg.Now,
		generate:    cfg.Generate,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.generate == nil {
		s.generate = DefaultTokenGenerator
	}
	return s
}

// IssueParams describes one issuance request. TTL is always explicit.
type IssueParams struct {
	PatientID      int64
	TTL            time.Duration
	TargetPathHint *string
	StaffID        *int64
}

// IssuedLink is what the issuer hands back to staff. TokenValue is only ever
// revealed here.
type IssuedLink struct {
	Token      *model.SecureLinkToken
	TokenValue string
	URL        string
	ExpiresAt  time.Time
}

// Issue creates a token for an existing patient.
func (s *SecureLinkService) Issue(ctx context.Context, params IssueParams) (*IssuedLink, error) {
	if params.TTL <= 0 {
		return nil, apperrors.ValidationError("ttl must be a positive duration")
	}

	patient, err := s.patientRepo.FindByID(ctx, params.PatientID)
	if err != nil {
		log.Error().Err(err).Int64("patientId", params.PatientID).Msg("patient lookup failed")
		return nil, apperrors.Persistence(err)
	}
	if patient == nil {
		return nil, apperrors.UnknownPatient(params.PatientID)
	}

	if s.limiter != nil && s.issueLimit > 0 {
		allowed, resetAt, err := s.limiter.CheckLimit(ctx, issueLimitKey(params.PatientID), s.issueLimit, config.IssueLimitWindow)
		if err != nil {
			log.Error().Err(err).Int64("patientId", params.PatientID).Msg("issuance limit check failed")
			return nil, apperrors.Persistence(err)
		}
		if !allowed {
			log.Warn().Int64("patientId", params.PatientID).Time("resetAt", resetAt).Msg("link issuance throttled")
			return nil, apperrors.RateLimitExceeded().WithDetails(map[string]any{"resetAt": resetAt})
		}
	}

	now := s.now()
	expiresAt := now.Add(params.TTL)

	for attempt := 1; attempt <= maxGenerationAttempts; attempt++ {
		value, err := s.generate()
		if err != nil {
			log.Error().Err(err).Int("attempt", attempt).Msg("token generation failed")
			continue
		}

		token, err := s.tokenRepo.Create(ctx, model.CreateSecureLinkTokenParams{
			PatientID:        params.PatientID,
			TokenValue:       value,
			TargetPathHint:   params.TargetPathHint,
			CreatedAt:        now,
			ExpiresAt:        expiresAt,
			CreatedByStaffID: params.StaffID,
		})
		if repository.IsUniqueViolation(err) {
			log.Warn().Int("attempt", attempt).Msg("token collision, regenerating")
			continue
		}
		if err != nil {
			log.Error().Err(err).Int64("patientId", params.PatientID).Msg("insert secure link token")
			return nil, apperrors.Persistence(err)
		}

		metrics.LinksIssued.Inc()
		log.Info().
			Int64("patientId", params.PatientID).
			Str("token", util.MaskToken(value)).
			Time("expiresAt", token.ExpiresAt).
			Msg("secure link issued")

		return &IssuedLink{
			Token:      token,
			TokenValue: value,
			URL:        s.DashboardURL(value),
			ExpiresAt:  token.ExpiresAt,
		}, nil
	}

	log.Error().Int64("patientId", params.PatientID).Msg("could not generate a unique token")
	return nil, apperrors.GenerationFailure(maxGenerationAttempts)
}

// Validate resolves a token value to its row. It never writes.
func (s *SecureLinkService) Validate(ctx context.Context, tokenValue string) (*model.SecureLinkToken, error) {
	token, err := s.validate(ctx, tokenValue)
	if err != nil {
		metrics.Validations.WithLabelValues(string(apperrors.GetCode(err))).Inc()
		return nil, err
	}
	metrics.Validations.WithLabelValues("ok").Inc()
	return token, nil
}

func (s *SecureLinkService) validate(ctx context.Context, tokenValue string) (*model.SecureLinkToken, error) {
	if tokenValue == "" {
		return nil, apperrors.MissingCredential("token")
	}
	// Nothing of another shape was ever issued.
	if !util.IsWellFormedToken(tokenValue) {
		return nil, apperrors.TokenNotFound()
	}

	token, err := s.tokenRepo.FindByValue(ctx, tokenValue)
	if err != nil {
		log.Error().Err(err).Str("token", util.MaskToken(tokenValue)).Msg("token lookup failed")
		return nil, apperrors.Persistence(err)
	}
	if token == nil {
		return nil, apperrors.TokenNotFound()
	}
	if token.IsExpiredAt(s.now()) {
		return nil, apperrors.TokenExpired()
	}
	return token, nil
}

// Revoke deletes the token immediately.
func (s *SecureLinkService) Revoke(ctx context.Context, tokenValue string) error {
	if tokenValue == "" {
		return apperrors.MissingRequired("token")
	}

	n, err := s.tokenRepo.DeleteByValue(ctx, tokenValue)
	if err != nil {
		log.Error().Err(err).Str("token", util.MaskToken(tokenValue)).Msg("revoke secure link")
		return apperrors.Persistence(err)
	}
	if n == 0 {
		return apperrors.TokenNotFound()
	}

	metrics.LinksRevoked.Inc()
	log.Info().Str("token", util.MaskToken(tokenValue)).Msg("secure link revoked")
	return nil
}

// RevokeByID deletes the token with the given row id, as listed to staff.
func (s *SecureLinkService) RevokeByID(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperrors.MissingRequired("id")
	}

	n, err := s.tokenRepo.DeleteByID(ctx, id)
	if err != nil {
		log.Error().Err(err).Int64("tokenId", id).Msg("revoke secure link")
		return apperrors.Persistence(err)
	}
	if n == 0 {
		return apperrors.TokenNotFound()
	}

	metrics.LinksRevoked.Inc()
	log.Info().Int64("tokenId", id).Msg("secure link revoked")
	return nil
}

// CleanupExpired deletes every token whose expiry has passed and returns
// how many rows went away. A second run with nothing new expired returns 0.
func (s *SecureLinkService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.tokenRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("delete expired secure links")
		return 0, apperrors.Persistence(err)
	}
	metrics.CleanupRemoved.WithLabelValues("secure_link_tokens").Add(float64(n))
	return n, nil
}

// MarkUsed records that the token served a document. Failures are logged only.
func (s *SecureLinkService) MarkUsed(ctx context.Context, token *model.SecureLinkToken) {
	if token.Used {
		return
	}
	if err := s.tokenRepo.MarkUsed(ctx, token.ID); err != nil {
		log.Warn().Err(err).Int64("tokenId", token.ID).Msg("mark secure link used")
	}
}

// LinkSummary is the staff-facing view of an issued token.
type LinkSummary struct {
	model.SecureLinkToken
	MaskedToken string           `json:"token"`
	Status      model.LinkStatus `json:"status"`
}

func (s *SecureLinkService) ListForPatient(ctx context.Context, patientID int64) ([]LinkSummary, error) {
	tokens, err := s.tokenRepo.ListByPatient(ctx, patientID)
	if err != nil {
		log.Error().Err(err).Int64("patientId", patientID).Msg("list secure links")
		return nil, apperrors.Persistence(err)
	}

	now := s.now()
	out := make([]LinkSummary, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, LinkSummary{
			SecureLinkToken: t,
			MaskedToken:     util.MaskToken(t.TokenValue),
			Status:          t.StatusAt(now),
		})
	}
	return out, nil
}

// DashboardURL is the shareable link. It carries the token and nothing else.
func (s *SecureLinkService) DashboardURL(tokenValue string) string {
	q := url.Values{}
	q.Set("token", tokenValue)
	return s.baseURL + DashboardPath + "?" + q.Encode()
}

// DocumentURL points at one document for the token holder.
func (s *SecureLinkService) DocumentURL(kind model.DocumentKind, tokenValue, reference string) string {
	q := url.Values{}
	q.Set("token", tokenValue)
	q.Set("doc", reference)
	return s.baseURL + DocumentsPath + "/" + string(kind) + "?" + q.Encode()
}
