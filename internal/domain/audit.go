package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Audit actions
const (
	AuditInspectorAccessGranted = "inspector.access_granted"
	AuditInspectorReset         = "inspector.reset"
	AuditLegalTransition        = "legal.transition"
	AuditBroadcastCanceled      = "broadcast.canceled"
)

// AuditLogEntry append-only record of a sensitive operation
type AuditLogEntry struct {
	ID         uint64         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ActorID    string         `gorm:"column:actor_id;size:64;not null;index" json:"actor_id"`
	Action     string         `gorm:"column:action;size:64;not null;index" json:"action"`
	Resource   string         `gorm:"column:resource;size:32" json:"resource"`
	ResourceID string         `gorm:"column:resource_id;size:64;index" json:"resource_id"`
	ClientIP   string         `gorm:"column:client_ip;size:64" json:"client_ip,omitempty"`
	UserAgent  string         `gorm:"column:user_agent;size:500" json:"user_agent,omitempty"`
	RequestID  string         `gorm:"column:request_id;size:64" json:"request_id,omitempty"`
	Metadata   datatypes.JSON `gorm:"column:metadata;type:json" json:"metadata"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}

func (AuditLogEntry) TableName() string {
	return "audit_logs"
}

// AuditMeta request context copied onto audit entries
type AuditMeta struct {
	ClientIP  string
	UserAgent string
	RequestID string
}

// NewAuditEntry builds an entry with metadata marshalled to JSON
func NewAuditEntry(actorID, action, resource, resourceID string, meta AuditMeta, metadata any) (*AuditLogEntry, error) {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return &AuditLogEntry{
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
		RequestID:  meta.RequestID,
		Metadata:   datatypes.JSON(raw),
	}, nil
}

// InspectorAccessMetadata payload of inspector.access_granted
type InspectorAccessMetadata struct {
	AdminID      string       `json:"admin_id"`
	TargetUserID string       `json:"target_user_id"`
	RoomID       string       `json:"room_id"`
	MemberIDs    []string     `json:"member_ids"`
	Reason       AccessReason `json:"reason"`
	ReferenceID  string       `json:"reference_id"`
	Note         string       `json:"note"`
}

// LegalTransitionMetadata payload of legal.transition
type LegalTransitionMetadata struct {
	From LegalStatus `json:"from"`
	To   LegalStatus `json:"to"`
}

// AuditLogFilter admin audit log query
type AuditLogFilter struct {
	ActorID string
	Action  string
	Page    int
	PerPage int
}
