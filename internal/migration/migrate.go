package migration

import (
	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// Models every table owned or read by the messaging core
func Models() []interface{} {
	return []interface{}{
		&domain.Profile{},
		&domain.Connection{},
		&domain.Room{},
		&domain.RoomMember{},
		&domain.Message{},
		&domain.ReadCursor{},
		&domain.BroadcastJob{},
		&domain.BroadcastRecipient{},
		&domain.LegalInquiry{},
		&domain.AuditLogEntry{},
	}
}

// Run executes AutoMigrate for all tables.
func Run(db *gorm.DB) error {
	// 테이블 없으면 생성, 있으면 컬럼/인덱스만 보강
	return db.AutoMigrate(Models()...)
}

// SeedDemo inserts demo profiles and connections when the profiles table is empty.
func SeedDemo(db *gorm.DB) error {
	var count int64
	if err := db.Model(&domain.Profile{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	storeID := "store-1"
	profiles := []domain.Profile{
		{ID: "admin-1", Role: domain.RoleAdmin, Handle: "admin", Name: "운영자"},
		{ID: storeID, Role: domain.RoleStore, Handle: "store1", Name: "매장 1"},
		{ID: "cast-1", Role: domain.RoleCast, Handle: "cast1", Name: "캐스트 1", StoreID: &storeID},
		{ID: "u1", Role: domain.RoleUser, Handle: "u1", Name: "사용자 1"},
		{ID: "u2", Role: domain.RoleUser, Handle: "u2", Name: "사용자 2"},
		{ID: "u3", Role: domain.RoleUser, Handle: "u3", Name: "사용자 3"},
	}
	connections := []domain.Connection{
		{RequesterID: "u1", AddresseeID: storeID, Status: domain.ConnectionAccepted},
		{RequesterID: storeID, AddresseeID: "u2", Status: domain.ConnectionAccepted},
		{RequesterID: "u3", AddresseeID: "cast-1", Status: domain.ConnectionAccepted},
		{RequesterID: "u2", AddresseeID: "cast-1", Status: domain.ConnectionPending},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&profiles).Error; err != nil {
			return err
		}
		return tx.Create(&connections).Error
	})
}
