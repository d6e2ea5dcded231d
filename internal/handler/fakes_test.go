package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicrecords/securelink-server/internal/middleware"
	"github.com/clinicrecords/securelink-server/internal/model"
	"github.com/clinicrecords/securelink-server/internal/service"
)

type fakeLinks struct {
	issueFunc   func(ctx context.Context, params service.IssueParams) (*service.IssuedLink, error)
	listFunc    func(ctx context.Context, patientID int64) ([]service.LinkSummary, error)
	revokeFunc  func(ctx context.Context, tokenValue string) error
	revokeIDFn  func(ctx context.Context, id int64) error
	cleanupFunc func(ctx context.Context) (int64, error)
}

func (f *fakeLinks) Issue(ctx context.Context, params service.IssueParams) (*service.IssuedLink, error) {
	return f.issueFunc(ctx, params)
}

func (f *fakeLinks) ListForPatient(ctx context.Context, patientID int64) ([]service.LinkSummary, error) {
	return f.listFunc(ctx, patientID)
}

func (f *fakeLinks) Revoke(ctx context.Context, tokenValue string) error {
	return f.revokeFunc(ctx, tokenValue)
}

func (f *fakeLinks) RevokeByID(ctx context.Context, id int64) error {
	return f.revokeIDFn(ctx, id)
}

func (f *fakeLinks) CleanupExpired(ctx context.Context) (int64, error) {
	return f.cleanupFunc(ctx)
}

type fakeLogs struct {
	listFunc    func(ctx context.Context, patientID int64, limit, offset int) ([]model.AccessLogEntry, int, error)
	cleanupFunc func(ctx context.Context, retention time.Duration) (int64, error)
}

func (f *fakeLogs) ListForPatient(ctx context.Context, patientID int64, limit, offset int) ([]model.AccessLogEntry, int, error) {
	return f.listFunc(ctx, patientID, limit, offset)
}

func (f *fakeLogs) CleanupOldAccessLogs(ctx context.Context, retention time.Duration) (int64, error) {
	return f.cleanupFunc(ctx, retention)
}

type fakeDocFinder struct {
	findFunc func(ctx context.Context, kind model.DocumentKind, id, patientID int64) (*model.Document, error)
}

func (f *fakeDocFinder) FindForPatient(ctx context.Context, kind model.DocumentKind, id, patientID int64) (*model.Document, error) {
	return f.findFunc(ctx, kind, id, patientID)
}

type fakeViewer struct {
	viewFunc      func(ctx context.Context, kind model.DocumentKind, tokenValue, reference string, from service.Requester) (*service.DocumentView, error)
	staffViewFunc func(ctx context.Context, staff *model.StaffSession, kind model.DocumentKind, documentID int64) (*service.DocumentView, error)
	dashboardFunc func(ctx context.Context, tokenValue string) (*service.Dashboard, error)
}

func (f *fakeViewer) ViewDocument(ctx context.Context, kind model.DocumentKind, tokenValue, reference string, from service.Requester) (*service.DocumentView, error) {
	return f.viewFunc(ctx, kind, tokenValue, reference, from)
}

func (f *fakeViewer) StaffView(ctx context.Context, staff *model.StaffSession, kind model.DocumentKind, documentID int64) (*service.DocumentView, error) {
	return f.staffViewFunc(ctx, staff, kind, documentID)
}

func (f *fakeViewer) Dashboard(ctx context.Context, tokenValue string) (*service.Dashboard, error) {
	return f.dashboardFunc(ctx, tokenValue)
}

type fakeAuth struct {
	loginFunc    func(ctx context.Context, username, password string) (string, *model.StaffUser, error)
	logoutFunc   func(ctx context.Context, token string) error
	validateFunc func(ctx context.Context, token string) (*model.StaffSession, error)
	allow        bool
	limitErr     error
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (string, *model.StaffUser, error) {
	return f.loginFunc(ctx, username, password)
}

func (f *fakeAuth) Logout(ctx context.Context, token string) error {
	return f.logoutFunc(ctx, token)
}

func (f *fakeAuth) ValidateSession(ctx context.Context, token string) (*model.StaffSession, error) {
	if f.validateFunc == nil {
		return nil, nil
	}
	return f.validateFunc(ctx, token)
}

func (f *fakeAuth) CheckLoginLimit(ctx context.Context, ip string) (bool, time.Time, error) {
	if f.limitErr != nil {
		return false, time.Time{}, f.limitErr
	}
	return f.allow, time.Now().Add(time.Minute), nil
}

// withSession stands in for StaffSessionMiddleware in handler tests.
func withSession(session *model.StaffSession) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session != nil {
				r = r.WithContext(middleware.WithStaffSession(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newRouter(session *model.StaffSession, register func(chi.Router)) chi.Router {
	r := chi.NewRouter()
	r.Use(withSession(session))
	register(r)
	return r
}

func staffSession(role model.StaffRole) *model.StaffSession {
	return &model.StaffSession{ID: 1, StaffID: 7, Username: "dr.kim", Role: role}
}

const testTokenValue = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
