package domain

import (
	"time"
)

// RoomType 채팅방 종류
type RoomType string

const (
	RoomTypeDM    RoomType = "dm"
	RoomTypeGroup RoomType = "group"
)

// Room conversation room. dm_key is unique so at most one DM room exists per pair.
type Room struct {
	ID        string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Type      RoomType  `gorm:"column:type;size:8;index;not null" json:"type"`
	Name      string    `gorm:"column:name;size:100" json:"name,omitempty"`
	OwnerID   string    `gorm:"column:owner_id;size:64;index" json:"owner_id,omitempty"`
	DMKey     *string   `gorm:"column:dm_key;size:140;uniqueIndex:uk_rooms_dm_key" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;index" json:"updated_at"` // 마지막 메시지 시각

	Members []RoomMember `gorm:"foreignKey:RoomID;references:ID" json:"members,omitempty"`
}

func (Room) TableName() string {
	return "rooms"
}

// MemberIDs returns the member user ids in stored order
func (r *Room) MemberIDs() []string {
	ids := make([]string, len(r.Members))
	for i, m := range r.Members {
		ids[i] = m.UserID
	}
	return ids
}

// HasMember reports whether userID belongs to the room
func (r *Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// RoomMember membership row
type RoomMember struct {
	RoomID   string    `gorm:"column:room_id;primaryKey;size:36" json:"room_id"`
	UserID   string    `gorm:"column:user_id;primaryKey;size:64;index" json:"user_id"`
	JoinedAt time.Time `gorm:"column:joined_at;autoCreateTime" json:"joined_at"`
}

func (RoomMember) TableName() string {
	return "room_members"
}

// DMKey returns the order-independent key of a pair
func DMKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// NormalizeMembers dedupes ids, drops empties and guarantees ownerID is present
func NormalizeMembers(ownerID string, memberIDs []string) []string {
	seen := make(map[string]bool, len(memberIDs)+1)
	out := make([]string, 0, len(memberIDs)+1)
	if ownerID != "" {
		seen[ownerID] = true
		out = append(out, ownerID)
	}
	for _, id := range memberIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// OpenDMRequest 1:1 대화방 열기
type OpenDMRequest struct {
	PeerID string `json:"peer_id" binding:"required"`
}

// AddMemberRequest 그룹 멤버 추가
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// CreateGroupRequest 그룹 생성 요청
type CreateGroupRequest struct {
	Name      string   `json:"name" binding:"required"`
	MemberIDs []string `json:"member_ids"`
}

// UpdateGroupRequest 그룹 수정 요청 (이름 + 전체 멤버 교체)
type UpdateGroupRequest struct {
	Name      string   `json:"name" binding:"required"`
	MemberIDs []string `json:"member_ids" binding:"required"`
}

// RoomResponse room in API responses
type RoomResponse struct {
	ID        string   `json:"id"`
	Type      RoomType `json:"type"`
	Name      string   `json:"name,omitempty"`
	OwnerID   string   `json:"owner_id,omitempty"`
	MemberIDs []string `json:"member_ids"`
	UpdatedAt string   `json:"updated_at"`
	Unread    int64    `json:"unread"`
}

// ToResponse converts Room to RoomResponse
func (r *Room) ToResponse() *RoomResponse {
	return &RoomResponse{
		ID:        r.ID,
		Type:      r.Type,
		Name:      r.Name,
		OwnerID:   r.OwnerID,
		MemberIDs: r.MemberIDs(),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
}
