package domain

import (
	"math"
	"time"
)

// LegalStatus 권리침해 신고 처리 상태
type LegalStatus string

const (
	LegalReceived      LegalStatus = "RECEIVED"
	LegalInquirySent   LegalStatus = "INQUIRY_SENT"
	LegalAgreedDelete  LegalStatus = "AGREED_DELETE"
	LegalRefusedDelete LegalStatus = "REFUSED_DELETE"
	LegalCompleted     LegalStatus = "COMPLETED"
)

// LegalResponseWindow 게시자 회신 기한
const LegalResponseWindow = 7 * 24 * time.Hour

// legalTransitions allowed forward edges
var legalTransitions = map[LegalStatus][]LegalStatus{
	LegalReceived:     {LegalInquirySent},
	LegalInquirySent:  {LegalAgreedDelete, LegalRefusedDelete},
	LegalAgreedDelete: {LegalCompleted},
}

// Valid reports whether s is a known status
func (s LegalStatus) Valid() bool {
	switch s {
	case LegalReceived, LegalInquirySent, LegalAgreedDelete, LegalRefusedDelete, LegalCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s LegalStatus) IsTerminal() bool {
	return len(legalTransitions[s]) == 0
}

// CanTransitionLegal reports whether from → to is an allowed edge
func CanTransitionLegal(from, to LegalStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextLegalStatuses returns the statuses reachable from s in one step
func NextLegalStatuses(s LegalStatus) []LegalStatus {
	out := make([]LegalStatus, len(legalTransitions[s]))
	copy(out, legalTransitions[s])
	return out
}

// LegalDetails takedown-specific fields, embedded in the inquiry row
type LegalDetails struct {
	InfringedRight      string      `gorm:"column:infringed_right;size:200" json:"infringed_right"`
	TargetLocator       string      `gorm:"column:target_locator;size:1000" json:"target_locator"`
	IdentityDocumentRef string      `gorm:"column:identity_document_ref;size:500" json:"identity_document_ref,omitempty"`
	LegalStatus         LegalStatus `gorm:"column:legal_status;size:20;not null;index" json:"legal_status"`
	InquirySentAt       *time.Time  `gorm:"column:inquiry_sent_at" json:"inquiry_sent_at,omitempty"`
}

// LegalInquiry 권리침해(게시중단) 요청
type LegalInquiry struct {
	ID          uint64       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Subject     string       `gorm:"column:subject;size:200;not null" json:"subject"`
	Message     string       `gorm:"column:message;type:text" json:"message"`
	RequesterID string       `gorm:"column:requester_id;size:64;index" json:"requester_id"`
	Details     LegalDetails `gorm:"embedded" json:"details"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (LegalInquiry) TableName() string {
	return "legal_inquiries"
}

// ResponseDeadline inquiry_sent_at + 7 days; zero when no inquiry was sent yet
func (l *LegalInquiry) ResponseDeadline() (time.Time, bool) {
	if l.Details.InquirySentAt == nil {
		return time.Time{}, false
	}
	return l.Details.InquirySentAt.Add(LegalResponseWindow), true
}

// DaysRemaining whole days until the deadline, rounded up. Negative once overdue.
// Advisory only: nothing transitions automatically when it reaches zero.
func (l *LegalInquiry) DaysRemaining(now time.Time) (int, bool) {
	deadline, ok := l.ResponseDeadline()
	if !ok {
		return 0, false
	}
	days := deadline.Sub(now).Hours() / 24
	return int(math.Ceil(days)), true
}

// FileLegalInquiryRequest 게시중단 요청 접수
type FileLegalInquiryRequest struct {
	Subject             string `json:"subject" validate:"required,max=200"`
	Message             string `json:"message" validate:"required"`
	InfringedRight      string `json:"infringed_right" validate:"required,max=200"`
	TargetLocator       string `json:"target_locator" validate:"required,max=1000"`
	IdentityDocumentRef string `json:"identity_document_ref" validate:"omitempty,max=500"`
}

// LegalTransitionRequest 상태 전이 요청
type LegalTransitionRequest struct {
	Expected LegalStatus `json:"expected" binding:"required"`
	Next     LegalStatus `json:"next" binding:"required"`
}

// LegalInquiryResponse inquiry with derived deadline fields
type LegalInquiryResponse struct {
	*LegalInquiry
	ResponseDeadline string        `json:"response_deadline,omitempty"`
	DaysRemaining    *int          `json:"days_remaining,omitempty"`
	NextStatuses     []LegalStatus `json:"next_statuses"`
}

// ToResponse converts LegalInquiry to LegalInquiryResponse
func (l *LegalInquiry) ToResponse(now time.Time) *LegalInquiryResponse {
	resp := &LegalInquiryResponse{
		LegalInquiry: l,
		NextStatuses: NextLegalStatuses(l.Details.LegalStatus),
	}
	if deadline, ok := l.ResponseDeadline(); ok {
		resp.ResponseDeadline = deadline.Format(time.RFC3339)
		days, _ := l.DaysRemaining(now)
		resp.DaysRemaining = &days
	}
	return resp
}
