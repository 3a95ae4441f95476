package domain

import "time"

// Profile identity record (owned by the identity provider; read-only here)
type Profile struct {
	ID        string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	Role      Role      `gorm:"column:role;size:16;index;not null" json:"role"`
	Handle    string    `gorm:"column:handle;size:64;index" json:"handle"`
	Name      string    `gorm:"column:name;size:100" json:"name"`
	AvatarURL string    `gorm:"column:avatar_url;size:500" json:"avatar_url,omitempty"`
	StoreID   *string   `gorm:"column:store_id;size:64;index" json:"store_id,omitempty"` // cast → store
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// ConnectionStatus 친구 요청 상태
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionRejected ConnectionStatus = "rejected"
)

// Connection friend/connection request (bookkeeping lives outside this core)
type Connection struct {
	ID          uint64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RequesterID string           `gorm:"column:requester_id;size:64;index;uniqueIndex:uk_connection_pair" json:"requester_id"`
	AddresseeID string           `gorm:"column:addressee_id;size:64;index;uniqueIndex:uk_connection_pair" json:"addressee_id"`
	Status      ConnectionStatus `gorm:"column:status;size:16;index" json:"status"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Connection) TableName() string {
	return "connections"
}

// ProfileSummary compact profile for lists
type ProfileSummary struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Handle    string `json:"handle"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ToSummary converts Profile to ProfileSummary
func (p *Profile) ToSummary() ProfileSummary {
	return ProfileSummary{
		ID:        p.ID,
		Role:      p.Role,
		Handle:    p.Handle,
		Name:      p.Name,
		AvatarURL: p.AvatarURL,
	}
}
