package domain

import (
	"strings"
	"time"
)

// InspectorStep 관리자 대화 열람 단계
type InspectorStep string

const (
	StepSearch        InspectorStep = "SEARCH"
	StepConfirmAccess InspectorStep = "CONFIRM_ACCESS"
	StepViewer        InspectorStep = "VIEWER"
)

// inspectorTransitions forward edges; reset to SEARCH is handled separately
var inspectorTransitions = map[InspectorStep]InspectorStep{
	StepSearch:        StepConfirmAccess,
	StepConfirmAccess: StepViewer,
}

// CanAdvanceInspector reports whether from → to is an allowed forward edge.
// Returning to SEARCH is always allowed (reset).
func CanAdvanceInspector(from, to InspectorStep) bool {
	if to == StepSearch {
		return true
	}
	next, ok := inspectorTransitions[from]
	return ok && next == to
}

// ChatTypeFilter inspector room filter
type ChatTypeFilter string

const (
	ChatTypeAll   ChatTypeFilter = ""
	ChatTypeDM    ChatTypeFilter = "DM"
	ChatTypeGroup ChatTypeFilter = "GROUP"
)

// ParseChatTypeFilter accepts DM/GROUP/ALL case-insensitively; anything else means all
func ParseChatTypeFilter(s string) ChatTypeFilter {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DM":
		return ChatTypeDM
	case "GROUP":
		return ChatTypeGroup
	}
	return ChatTypeAll
}

// RoomType maps the filter to a room type; ok is false for "all"
func (f ChatTypeFilter) RoomType() (RoomType, bool) {
	switch f {
	case ChatTypeDM:
		return RoomTypeDM, true
	case ChatTypeGroup:
		return RoomTypeGroup, true
	}
	return "", false
}

// AccessReason 열람 사유 구분
type AccessReason string

const (
	AccessReasonReport AccessReason = "REPORT"
	AccessReasonPolice AccessReason = "POLICE"
)

// InspectorQuery search criteria. CoMemberIDs only narrows group rooms.
type InspectorQuery struct {
	TargetUserID string         `json:"target_user_id"`
	ChatType     ChatTypeFilter `json:"chat_type"`
	CoMemberIDs  []string       `json:"co_member_ids"`
}

// AccessRequest justification required before message content is shown
type AccessRequest struct {
	Reason      AccessReason `json:"reason" validate:"required,oneof=REPORT POLICE"`
	ReferenceID string       `json:"reference_id" validate:"required"`
	Note        string       `json:"note" validate:"required"`
}

// Normalize trims surrounding whitespace so blank fields fail validation
func (r *AccessRequest) Normalize() {
	r.Reason = AccessReason(strings.ToUpper(strings.TrimSpace(string(r.Reason))))
	r.ReferenceID = strings.TrimSpace(r.ReferenceID)
	r.Note = strings.TrimSpace(r.Note)
}

// InspectorRoom room metadata shown in SEARCH
type InspectorRoom struct {
	RoomID    string    `json:"room_id"`
	Type      RoomType  `json:"type"`
	Name      string    `json:"name,omitempty"`
	MemberIDs []string  `json:"member_ids"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InspectorSession per-admin flow state
type InspectorSession struct {
	ID           string         `json:"id"`
	AdminID      string         `json:"admin_id"`
	Step         InspectorStep  `json:"step"`
	TargetUserID string         `json:"target_user_id,omitempty"`
	Room         *InspectorRoom `json:"room,omitempty"`
	Request      *AccessRequest `json:"request,omitempty"`
	AuditID      uint64         `json:"audit_id,omitempty"`
	Messages     []*Message     `json:"messages,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Reset returns to SEARCH and drops loaded content and form state
func (s *InspectorSession) Reset() {
	s.Step = StepSearch
	s.TargetUserID = ""
	s.Room = nil
	s.Request = nil
	s.AuditID = 0
	s.Messages = nil
}

// SelectRoomRequest 방 선택
type SelectRoomRequest struct {
	RoomID       string `json:"room_id" binding:"required"`
	TargetUserID string `json:"target_user_id" binding:"required"`
}
