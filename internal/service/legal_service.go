package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"gorm.io/gorm"
)

// errNoRowMatched aborts a transition transaction when the conditional update missed
var errNoRowMatched = errors.New("no row matched")

// LegalService takedown inquiries and their forward-only status machine
type LegalService interface {
	File(ctx context.Context, requesterID string, req *domain.FileLegalInquiryRequest) (*domain.LegalInquiry, error)
	Transition(ctx context.Context, actorID string, id uint64, expected, next domain.LegalStatus, meta domain.AuditMeta) (*domain.LegalInquiry, error)
	Get(ctx context.Context, id uint64) (*domain.LegalInquiry, error)
	List(ctx context.Context, status domain.LegalStatus, page, perPage int) ([]*domain.LegalInquiry, *common.Meta, error)
}

type legalService struct {
	repo  *repository.LegalRepository
	audit *repository.AuditRepository
	now   func() time.Time
}

// NewLegalService creates a new LegalService
func NewLegalService(repo *repository.LegalRepository, audit *repository.AuditRepository) LegalService {
	return &legalService{repo: repo, audit: audit, now: time.Now}
}

// File records a new takedown request in RECEIVED
func (s *legalService) File(ctx context.Context, requesterID string, req *domain.FileLegalInquiryRequest) (*domain.LegalInquiry, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
	req.InfringedRight = strings.TrimSpace(req.InfringedRight)
	req.TargetLocator = strings.TrimSpace(req.TargetLocator)
	if err := common.ValidateStruct(req); err != nil {
		return nil, err
	}

	inquiry := &domain.LegalInquiry{
		Subject:     req.Subject,
		Message:     req.Message,
		RequesterID: requesterID,
		Details: domain.LegalDetails{
			InfringedRight:      req.InfringedRight,
			TargetLocator:       req.TargetLocator,
			IdentityDocumentRef: strings.TrimSpace(req.IdentityDocumentRef),
			LegalStatus:         domain.LegalReceived,
		},
	}
	if err := s.repo.Create(ctx, inquiry); err != nil {
		return nil, err
	}
	return inquiry, nil
}

// Transition applies expected → next as one conditional update and writes the
// audit entry in the same transaction. Invalid edges are rejected before any write.
func (s *legalService) Transition(ctx context.Context, actorID string, id uint64, expected, next domain.LegalStatus, meta domain.AuditMeta) (*domain.LegalInquiry, error) {
	if !expected.Valid() {
		return nil, common.NewValidationError("expected", "알 수 없는 상태입니다")
	}
	if !domain.CanTransitionLegal(expected, next) {
		return nil, common.NewValidationError("next", "허용되지 않는 상태 전이입니다: "+string(expected)+" → "+string(next))
	}

	now := s.now()
	err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).CompareAndSetStatus(ctx, id, expected, next, now)
		if err != nil {
			return err
		}
		if !ok {
			return errNoRowMatched
		}

		entry, err := domain.NewAuditEntry(actorID, domain.AuditLegalTransition, "legal_inquiry",
			strconv.FormatUint(id, 10), meta, domain.LegalTransitionMetadata{From: expected, To: next})
		if err != nil {
			return err
		}
		return s.audit.WithTx(tx).Create(ctx, entry)
	})

	if errors.Is(err, errNoRowMatched) {
		exists, existsErr := s.repo.Exists(ctx, id)
		if existsErr != nil {
			return nil, existsErr
		}
		if !exists {
			return nil, common.ErrInquiryNotFound
		}
		return nil, common.ErrStaleStatus
	}
	if err != nil {
		return nil, err
	}

	legalTransitions.WithLabelValues(string(next)).Inc()
	return s.Get(ctx, id)
}

// Get returns an inquiry
func (s *legalService) Get(ctx context.Context, id uint64) (*domain.LegalInquiry, error) {
	inquiry, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrInquiryNotFound
	}
	return inquiry, err
}

// List returns inquiries for the admin console
func (s *legalService) List(ctx context.Context, status domain.LegalStatus, page, perPage int) ([]*domain.LegalInquiry, *common.Meta, error) {
	if status != "" && !status.Valid() {
		return nil, nil, common.NewValidationError("status", "알 수 없는 상태입니다")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	inquiries, total, err := s.repo.List(ctx, status, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	return inquiries, common.NewMeta(page, perPage, total), nil
}
