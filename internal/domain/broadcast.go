package domain

import "time"

// BroadcastJobStatus 예약 발송 상태
type BroadcastJobStatus string

const (
	JobStatusPending    BroadcastJobStatus = "pending"
	JobStatusProcessing BroadcastJobStatus = "processing"
	JobStatusSent       BroadcastJobStatus = "sent"
	JobStatusFailed     BroadcastJobStatus = "failed"
)

// RecipientStatus 수신자별 발송 결과
type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

// BroadcastJob scheduled broadcast. Only pending jobs may be claimed or canceled.
type BroadcastJob struct {
	ID             uint64             `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SenderID       string             `gorm:"column:sender_id;size:64;not null;index" json:"sender_id"`
	Content        string             `gorm:"column:content;type:text" json:"content"`
	ImageURL       string             `gorm:"column:image_url;size:1000" json:"image_url,omitempty"`
	LinkURL        string             `gorm:"column:link_url;size:1000" json:"link_url,omitempty"`
	TargetCount    int                `gorm:"column:target_count" json:"target_count"`
	DeliveredCount int                `gorm:"column:delivered_count" json:"delivered_count"`
	Status         BroadcastJobStatus `gorm:"column:status;size:16;not null;index:idx_broadcast_jobs_due,priority:1" json:"status"`
	ScheduledAt    time.Time          `gorm:"column:scheduled_at;not null;index:idx_broadcast_jobs_due,priority:2" json:"scheduled_at"`
	ClaimedAt      *time.Time         `gorm:"column:claimed_at" json:"claimed_at,omitempty"`
	SentAt         *time.Time         `gorm:"column:sent_at" json:"sent_at,omitempty"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Recipients []BroadcastRecipient `gorm:"foreignKey:JobID;references:ID" json:"recipients,omitempty"`
}

func (BroadcastJob) TableName() string {
	return "broadcast_jobs"
}

// BroadcastRecipient one target of a scheduled job
type BroadcastRecipient struct {
	ID     uint64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	JobID  uint64          `gorm:"column:job_id;not null;uniqueIndex:uk_broadcast_recipient,priority:1" json:"job_id"`
	UserID string          `gorm:"column:user_id;size:64;not null;uniqueIndex:uk_broadcast_recipient,priority:2" json:"user_id"`
	Status RecipientStatus `gorm:"column:status;size:16;not null;default:pending" json:"status"`
	RoomID string          `gorm:"column:room_id;size:36" json:"room_id,omitempty"`
	Error  string          `gorm:"column:error;size:500" json:"error,omitempty"`
}

func (BroadcastRecipient) TableName() string {
	return "broadcast_recipients"
}

// CastGroup a cast affiliated with a store and that cast's accepted connections
type CastGroup struct {
	Cast    ProfileSummary   `json:"cast"`
	UserIDs []string         `json:"user_ids"`
	Users   []ProfileSummary `json:"users"`
}

// BroadcastTargets reachable recipients of a sender
type BroadcastTargets struct {
	DirectUsers []ProfileSummary `json:"direct_users"`
	CastGroups  []CastGroup      `json:"cast_groups"`
}

// SendBroadcastRequest 즉시 발송 요청
type SendBroadcastRequest struct {
	TargetUserIDs []string `json:"target_user_ids" validate:"required,min=1,dive,required"`
	Content       string   `json:"content" validate:"required_without=ImageURL"`
	ImageURL      string   `json:"image_url" validate:"omitempty,url"`
	LinkURL       string   `json:"link_url" validate:"omitempty,url"`
}

// ScheduleBroadcastRequest 예약 발송 요청
type ScheduleBroadcastRequest struct {
	SendBroadcastRequest
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// BroadcastJobResponse job in API responses
type BroadcastJobResponse struct {
	ID             uint64             `json:"id"`
	Content        string             `json:"content"`
	ImageURL       string             `json:"image_url,omitempty"`
	LinkURL        string             `json:"link_url,omitempty"`
	TargetCount    int                `json:"target_count"`
	DeliveredCount int                `json:"delivered_count"`
	Status         BroadcastJobStatus `json:"status"`
	ScheduledAt    string             `json:"scheduled_at"`
	SentAt         string             `json:"sent_at,omitempty"`
}

// ToResponse converts BroadcastJob to BroadcastJobResponse
func (j *BroadcastJob) ToResponse() *BroadcastJobResponse {
	resp := &BroadcastJobResponse{
		ID:             j.ID,
		Content:        j.Content,
		ImageURL:       j.ImageURL,
		LinkURL:        j.LinkURL,
		TargetCount:    j.TargetCount,
		DeliveredCount: j.DeliveredCount,
		Status:         j.Status,
		ScheduledAt:    j.ScheduledAt.Format(time.RFC3339),
	}
	if j.SentAt != nil {
		resp.SentAt = j.SentAt.Format(time.RFC3339)
	}
	return resp
}
