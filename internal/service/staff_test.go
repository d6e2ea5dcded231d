package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinicrecords/securelink-server/internal/config"
	apperrors "github.com/clinicrecords/securelink-server/internal/errors"
	"github.com/clinicrecords/securelink-server/internal/model"
	"github.com/clinicrecords/securelink-server/internal/util"
)

const testSessionSecret = "test-session-secret-with-enough-length"

func newTestStaffService(users *mockStaffUserRepo, sessions *mockStaffSessionRepo, limiter Limiter) *StaffService {
	svc := NewStaffService(users, sessions, limiter, testSessionSecret)
	svc.now = func() time.Time { return testEpoch }
	return svc
}

func TestStaffService_Login(t *testing.T) {
	ctx := context.Background()
	hash, err := util.HashPassword("s3cret!")
	require.NoError(t, err)
	user := &model.StaffUser{ID: 3, Username: "dr.kim", PasswordHash: hash, Role: model.StaffRoleDoctor}

	t.Run("creates hashed session", func(t *testing.T) {
		users := new(mockStaffUserRepo)
		sessions := new(mockStaffSessionRepo)
		users.On("FindByUsername", mock.Anything, "dr.kim").Return(user, nil)

		var stored model.CreateStaffSessionParams
		sessions.On("Create", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { stored = args.Get(1).(model.CreateStaffSessionParams) }).
			Return(nil)

		token, got, err := newTestStaffService(users, sessions, nil).Login(ctx, "dr.kim", "s3cret!")
		require.NoError(t, err)
		assert.Equal(t, user, got)
		assert.Len(t, token, 64)
		assert.Equal(t, util.HmacSHA256(testSessionSecret, token), stored.TokenHash)
		assert.NotEqual(t, token, stored.TokenHash)
		assert.Equal(t, int64(3), stored.StaffID)
		assert.Equal(t, testEpoch.Add(config.StaffSessionTTL), stored.ExpiresAt)
	})

	t.Run("wrong password", func(t *testing.T) {
		users := new(mockStaffUserRepo)
		sessions := new(mockStaffSessionRepo)
		users.On("FindByUsername", mock.Anything, "dr.kim").Return(user, nil)

		_, _, err := newTestStaffService(users, sessions, nil).Login(ctx, "dr.kim", "guess")
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
		sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unknown user looks the same", func(t *testing.T) {
		users := new(mockStaffUserRepo)
		sessions := new(mockStaffSessionRepo)
		users.On("FindByUsername", mock.Anything, "ghost").Return(nil, nil)

		_, _, err := newTestStaffService(users, sessions, nil).Login(ctx, "ghost", "s3cret!")
		require.Error(t, err)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, "Invalid credentials", appErr.Message)
	})

	t.Run("lookup failure", func(t *testing.T) {
		users := new(mockStaffUserRepo)
		users.On("FindByUsername", mock.Anything, "dr.kim").Return(nil, errors.New("timeout"))

		_, _, err := newTestStaffService(users, new(mockStaffSessionRepo), nil).Login(ctx, "dr.kim", "s3cret!")
		assert.Equal(t, apperrors.ErrCodePersistence, apperrors.GetCode(err))
	})
}

func TestStaffService_ValidateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves session by hmac", func(t *testing.T) {
		sessions := new(mockStaffSessionRepo)
		want := &model.StaffSession{ID: 1, StaffID: 3, Role: model.StaffRoleNurse}
		sessions.On("FindByTokenHash", mock.Anything, util.HmacSHA256(testSessionSecret, "tok"), testEpoch).Return(want, nil)

		got, err := newTestStaffService(new(mockStaffUserRepo), sessions, nil).ValidateSession(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("empty token", func(t *testing.T) {
		sessions := new(mockStaffSessionRepo)
		got, err := newTestStaffService(new(mockStaffUserRepo), sessions, nil).ValidateSession(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, got)
		sessions.AssertNotCalled(t, "FindByTokenHash", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown session", func(t *testing.T) {
		sessions := new(mockStaffSessionRepo)
		sessions.On("FindByTokenHash", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

		got, err := newTestStaffService(new(mockStaffUserRepo), sessions, nil).ValidateSession(ctx, "tok")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStaffService_Logout(t *testing.T) {
	sessions := new(mockStaffSessionRepo)
	sessions.On("DeleteByTokenHash", mock.Anything, util.HmacSHA256(testSessionSecret, "tok")).Return(nil)

	err := newTestStaffService(new(mockStaffUserRepo), sessions, nil).Logout(context.Background(), "tok")
	require.NoError(t, err)
	sessions.AssertExpectations(t)
}

func TestStaffService_CheckLoginLimit(t *testing.T) {
	t.Run("uses ip key", func(t *testing.T) {
		limiter := &stubLimiter{allow: true}
		svc := newTestStaffService(new(mockStaffUserRepo), new(mockStaffSessionRepo), limiter)

		allowed, _, err := svc.CheckLoginLimit(context.Background(), "203.0.113.9")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, []string{"staff_login:203.0.113.9"}, limiter.keys)
	})

	t.Run("limiter outage is a persistence failure", func(t *testing.T) {
		limiter := &stubLimiter{err: errors.New("redis: connection refused")}
		svc := newTestStaffService(new(mockStaffUserRepo), new(mockStaffSessionRepo), limiter)

		allowed, _, err := svc.CheckLoginLimit(context.Background(), "203.0.113.9")
		assert.False(t, allowed)
		assert.Equal(t, apperrors.ErrCodePersistence, apperrors.GetCode(err))
	})

	t.Run("nil limiter allows", func(t *testing.T) {
		svc := newTestStaffService(new(mockStaffUserRepo), new(mockStaffSessionRepo), nil)
		allowed, _, err := svc.CheckLoginLimit(context.Background(), "203.0.113.9")
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestStaffService_CleanupExpiredSessions(t *testing.T) {
	sessions := new(mockStaffSessionRepo)
	sessions.On("DeleteExpired", mock.Anything, testEpoch).Return(int64(2), nil)

	n, err := newTestStaffService(new(mockStaffUserRepo), sessions, nil).CleanupExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
