package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/clinicrecords/securelink-server/internal/errors"
	"github.com/clinicrecords/securelink-server/internal/metrics"
	"github.com/clinicrecords/securelink-server/internal/model"
	"github.com/clinicrecords/securelink-server/internal/repository"
)

// Authorization is the positive outcome of the token + reference check.
type Authorization struct {
	Token      *model.SecureLinkToken
	PatientID  int64
	DocumentID int64
}

// DocumentView is a document cleared for rendering.
type DocumentView struct {
	Document *model.Document
	// TokenID is zero for staff views.
	TokenID int64
}

// Requester identifies where a request came from, for the access trail.
type Requester struct {
	SourceAddress string
	ClientAgent   string
}

// DocumentAccessService is the single authorization path shared by every
// document kind.
type DocumentAccessService struct {
	links       *SecureLinkService
	auditor     *AccessAuditor
	docRepo     repository.DocumentRepository
	patientRepo repository.PatientRepository
}

func NewDocumentAccessService(
	links *SecureLinkService,
	auditor *AccessAuditor,
	docRepo repository.DocumentRepository,
	patientRepo repository.PatientRepository,
) *DocumentAccessService {
	return &DocumentAccessService{
		links:       links,
		auditor:     auditor,
		docRepo:     docRepo,
		patientRepo: patientRepo,
	}
}

// Authorize checks a token and an encoded document reference, in order:
// both present, token valid, reference well formed, same patient.
// Every rejection is returned as-is for the caller to log.
func (s *DocumentAccessService) Authorize(ctx context.Context, tokenValue, reference string) (*Authorization, error) {
	if tokenValue == "" {
		return nil, apperrors.MissingCredential("token")
	}
	if reference == "" {
		return nil, apperrors.MissingCredential("doc")
	}

	token, err := s.links.Validate(ctx, tokenValue)
	if err != nil {
		return nil, err
	}

	ref, err := DecodeReference(reference)
	if err != nil {
		return nil, err
	}

	if ref.ClaimedPatientID != token.PatientID {
		return nil, apperrors.PatientMismatch()
	}

	return &Authorization{
		Token:      token,
		PatientID:  token.PatientID,
		DocumentID: ref.DocumentID,
	}, nil
}

// ViewDocument authorizes a token-holder request and loads the document.
// The lookup is scoped to the token's patient, so a reference that passes
// Authorize but points at someone else's row still fails closed.
func (s *DocumentAccessService) ViewDocument(
	ctx context.Context,
	kind model.DocumentKind,
	tokenValue, reference string,
	from Requester,
) (*DocumentView, error) {
	if !kind.IsValid() {
		return nil, apperrors.NotFound("document kind")
	}

	auth, err := s.Authorize(ctx, tokenValue, reference)
	if err != nil {
		return nil, err
	}

	doc, err := s.docRepo.FindForPatient(ctx, kind, auth.DocumentID, auth.PatientID)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Int64("documentId", auth.DocumentID).Msg("document lookup failed")
		return nil, apperrors.Persistence(err)
	}
	if doc == nil {
		return nil, apperrors.DocumentNotFound()
	}

	// Audit and the used flag never block the render.
	_ = s.auditor.Record(ctx, AccessRecord{
		TokenID:       auth.Token.ID,
		PatientID:     auth.PatientID,
		DocumentKind:  kind,
		DocumentID:    doc.ID,
		SourceAddress: from.SourceAddress,
		ClientAgent:   from.ClientAgent,
	})
	s.links.MarkUsed(ctx, auth.Token)

	metrics.DocumentViews.WithLabelValues(string(kind), "token").Inc()
	return &DocumentView{Document: doc, TokenID: auth.Token.ID}, nil
}

// StaffView is the bypass for an authenticated staff session: raw id, no
// token. A nil session means no capability.
func (s *DocumentAccessService) StaffView(
	ctx context.Context,
	staff *model.StaffSession,
	kind model.DocumentKind,
	documentID int64,
) (*DocumentView, error) {
	if staff == nil {
		return nil, apperrors.Unauthorized("Staff session required")
	}
	if !staff.CanViewDocuments() {
		return nil, apperrors.Forbidden("Role may not view documents")
	}
	if !kind.IsValid() {
		return nil, apperrors.NotFound("document kind")
	}

	doc, err := s.docRepo.FindByID(ctx, kind, documentID)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Int64("documentId", documentID).Msg("document lookup failed")
		return nil, apperrors.Persistence(err)
	}
	if doc == nil {
		return nil, apperrors.NotFound("document")
	}

	metrics.DocumentViews.WithLabelValues(string(kind), "staff").Inc()
	return &DocumentView{Document: doc}, nil
}

// DashboardDocument is one entry on the patient dashboard.
type DashboardDocument struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Reference string    `json:"doc"`
	URL       string    `json:"url"`
}

type DashboardSection struct {
	Kind      model.DocumentKind  `json:"kind"`
	Documents []DashboardDocument `json:"documents"`
}

// Dashboard is the landing page behind a shareable link.
type Dashboard struct {
	PatientID   int64              `json:"patientId"`
	PatientName string             `json:"patientName"`
	ExpiresAt   time.Time          `json:"expiresAt"`
	Sections    []DashboardSection `json:"sections"`
}

// Dashboard validates the token alone and lists the patient's documents with
// ready-made references.
func (s *DocumentAccessService) Dashboard(ctx context.Context, tokenValue string) (*Dashboard, error) {
	token, err := s.links.Validate(ctx, tokenValue)
	if err != nil {
		return nil, err
	}

	patient, err := s.patientRepo.FindByID(ctx, token.PatientID)
	if err != nil {
		log.Error().Err(err).Int64("patientId", token.PatientID).Msg("patient lookup failed")
		return nil, apperrors.Persistence(err)
	}
	if patient == nil {
		// Token outlived its patient row.
		return nil, apperrors.TokenNotFound()
	}

	dash := &Dashboard{
		PatientID:   patient.ID,
		PatientName: patient.FullName,
		ExpiresAt:   token.ExpiresAt,
		Sections:    make([]DashboardSection, 0, len(model.AllDocumentKinds)),
	}

	for _, kind := range model.AllDocumentKinds {
		docs, err := s.docRepo.ListByPatient(ctx, kind, patient.ID)
		if err != nil {
			log.Error().Err(err).Str("kind", string(kind)).Int64("patientId", patient.ID).Msg("list documents")
			return nil, apperrors.Persistence(err)
		}

		section := DashboardSection{Kind: kind, Documents: make([]DashboardDocument, 0, len(docs))}
		for _, d := range docs {
			ref := EncodeReference(d.ID, patient.ID)
			section.Documents = append(section.Documents, DashboardDocument{
				ID:        d.ID,
				Title:     d.Title,
				CreatedAt: d.CreatedAt,
				Reference: ref,
				URL:       s.links.DocumentURL(kind, tokenValue, ref),
			})
		}
		dash.Sections = append(dash.Sections, section)
	}

	return dash, nil
}
