package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDMKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, DMKey("u1", "u2"), DMKey("u2", "u1"))
	assert.Equal(t, "a:b", DMKey("b", "a"))
}

func TestNormalizeMembers(t *testing.T) {
	got := NormalizeMembers("store-1", []string{"u1", "", "u1", "store-1", "u2"})
	assert.Equal(t, []string{"store-1", "u1", "u2"}, got)

	assert.Empty(t, NormalizeMembers("", nil))
}

func TestCanAccess(t *testing.T) {
	assert.True(t, CanAccess(RoleUser, ResourceChat))
	assert.False(t, CanAccess(RoleUser, ResourceBroadcast))
	assert.True(t, CanAccess(RoleCast, ResourceBroadcast))
	assert.True(t, CanAccess(RoleStore, ResourceGroupManage))
	assert.False(t, CanAccess(RoleCast, ResourceGroupManage))
	assert.False(t, CanAccess(RoleAdmin, ResourceGroupManage))
	assert.True(t, CanAccess(RoleAdmin, ResourceAdminInspector))
	assert.False(t, CanAccess(RoleStore, ResourceAdminInspector))
	assert.False(t, CanAccess(Role("ghost"), ResourceChat))
}

func TestInspectorTransitions(t *testing.T) {
	assert.True(t, CanAdvanceInspector(StepSearch, StepConfirmAccess))
	assert.True(t, CanAdvanceInspector(StepConfirmAccess, StepViewer))
	assert.False(t, CanAdvanceInspector(StepSearch, StepViewer))
	assert.False(t, CanAdvanceInspector(StepViewer, StepConfirmAccess))

	// reset
	assert.True(t, CanAdvanceInspector(StepViewer, StepSearch))
	assert.True(t, CanAdvanceInspector(StepConfirmAccess, StepSearch))
}

func TestParseChatTypeFilter(t *testing.T) {
	assert.Equal(t, ChatTypeDM, ParseChatTypeFilter("dm"))
	assert.Equal(t, ChatTypeGroup, ParseChatTypeFilter(" GROUP "))
	assert.Equal(t, ChatTypeAll, ParseChatTypeFilter("all"))
	assert.Equal(t, ChatTypeAll, ParseChatTypeFilter(""))

	rt, ok := ChatTypeGroup.RoomType()
	assert.True(t, ok)
	assert.Equal(t, RoomTypeGroup, rt)
	_, ok = ChatTypeAll.RoomType()
	assert.False(t, ok)
}

func TestInspectorSessionReset(t *testing.T) {
	s := &InspectorSession{
		Step:     StepViewer,
		Room:     &InspectorRoom{RoomID: "r1"},
		Request:  &AccessRequest{Reason: AccessReasonReport, ReferenceID: "R-1", Note: "n"},
		AuditID:  9,
		Messages: []*Message{{ID: 1}},
	}
	s.Reset()

	assert.Equal(t, StepSearch, s.Step)
	assert.Nil(t, s.Room)
	assert.Nil(t, s.Request)
	assert.Nil(t, s.Messages)
	assert.Zero(t, s.AuditID)
}

func TestNewAuditEntry(t *testing.T) {
	entry, err := NewAuditEntry("admin-1", AuditInspectorAccessGranted, "room", "r1",
		AuditMeta{ClientIP: "10.0.0.1", RequestID: "req-1"},
		InspectorAccessMetadata{AdminID: "admin-1", MemberIDs: []string{"u1", "u2"}, Reason: AccessReasonPolice})
	require.NoError(t, err)

	var meta InspectorAccessMetadata
	require.NoError(t, json.Unmarshal(entry.Metadata, &meta))
	assert.Equal(t, []string{"u1", "u2"}, meta.MemberIDs)
	assert.Equal(t, "10.0.0.1", entry.ClientIP)
}

func TestMessageTypeIsObjectReference(t *testing.T) {
	assert.True(t, MessageTypeImage.IsObjectReference())
	assert.True(t, MessageTypeAudio.IsObjectReference())
	assert.False(t, MessageTypeText.IsObjectReference())
	assert.False(t, MessageType("video").Valid())
}
