package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicrecords/securelink-server/internal/config"
	apperrors "github.com/clinicrecords/securelink-server/internal/errors"
	"github.com/clinicrecords/securelink-server/internal/metrics"
	"github.com/clinicrecords/securelink-server/internal/model"
	"github.com/clinicrecords/securelink-server/internal/repository"
	"github.com/clinicrecords/securelink-server/internal/util"
)

// dummyPasswordHash keeps the bcrypt cost on the unknown-user path.
const dummyPasswordHash = "$2a$12$C6UzMDM.H6dfI/f/IKcEeO5n1o3Hn6bB5pQ7kZ5Y8mL2m3sWzqk3a"

// StaffService authenticates clinic staff and resolves session cookies into
// StaffSession capabilities.
type StaffService struct {
	userRepo      repository.StaffUserRepository
	sessionRepo   repository.StaffSessionRepository
	limiter       Limiter
	sessionSecret string
	now           func() time.Time
}

func NewStaffService(
	userRepo repository.StaffUserRepository,
	sessionRepo repository.StaffSessionRepository,
	limiter Limiter,
	sessionSecret string,
) *StaffService {
	return &StaffService{
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		limiter:       limiter,
		sessionSecret: sessionSecret,
		now:           time.Now,
	}
}

// Login checks credentials and opens a session. The returned token goes in
// the cookie; only its HMAC is stored.
func (s *StaffService) Login(ctx context.Context, username, password string) (string, *model.StaffUser, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		log.Error().Err(err).Msg("staff user lookup failed")
		return "", nil, apperrors.Persistence(err)
	}
	if user == nil {
		util.CheckPasswordHash(password, dummyPasswordHash)
		return "", nil, apperrors.Unauthorized("Invalid credentials")
	}
	if !util.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, apperrors.Unauthorized("Invalid credentials")
	}

	token, err := util.GenerateToken()
	if err != nil {
		return "", nil, apperrors.Internal("Could not create session").WithCause(err)
	}

	err = s.sessionRepo.Create(ctx, model.CreateStaffSessionParams{
		TokenHash: util.HmacSHA256(s.sessionSecret, token),
		StaffID:   user.ID,
		ExpiresAt: s.now().Add(config.StaffSessionTTL),
	})
	if err != nil {
		log.Error().Err(err).Int64("staffId", user.ID).Msg("create staff session")
		return "", nil, apperrors.Persistence(err)
	}

	return token, user, nil
}

func (s *StaffService) Logout(ctx context.Context, token string) error {
	tokenHash := util.HmacSHA256(s.sessionSecret, token)
	if err := s.sessionRepo.DeleteByTokenHash(ctx, tokenHash); err != nil {
		return apperrors.Persistence(err)
	}
	return nil
}

// ValidateSession returns nil when the token is unknown or expired.
func (s *StaffService) ValidateSession(ctx context.Context, token string) (*model.StaffSession, error) {
	if token == "" {
		return nil, nil
	}
	tokenHash := util.HmacSHA256(s.sessionSecret, token)
	session, err := s.sessionRepo.FindByTokenHash(ctx, tokenHash, s.now())
	if err != nil {
		log.Error().Err(err).Msg("staff session lookup failed")
		return nil, apperrors.Persistence(err)
	}
	return session, nil
}

// CheckLoginLimit allows config.StaffLoginLimit attempts per IP per window.
// A limiter outage is reported as a Persistence error.
func (s *StaffService) CheckLoginLimit(ctx context.Context, ip string) (allowed bool, resetAt time.Time, err error) {
	if s.limiter == nil {
		return true, time.Time{}, nil
	}
	allowed, resetAt, err = s.limiter.CheckLimit(ctx, staffLoginLimitKey(ip), config.StaffLoginLimit, config.StaffLoginWindow)
	if err != nil {
		return false, time.Time{}, apperrors.Persistence(err)
	}
	return allowed, resetAt, nil
}

func (s *StaffService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessionRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, apperrors.Persistence(err)
	}
	metrics.CleanupRemoved.WithLabelValues("staff_sessions").Add(float64(n))
	return n, nil
}
