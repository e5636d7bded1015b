package mockserver

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type userRecord struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	FirstName    string
	LastName     string
	AvatarID     string
	CreatedAt    time.Time
}

type channelRecord struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Type      string
	Members   string // comma-joined user ids
	CreatedAt time.Time
}

func (c channelRecord) memberIDs() []string {
	if c.Members == "" {
		return nil
	}
	return strings.Split(c.Members, ",")
}

func (c channelRecord) hasMember(userID string) bool {
	for _, id := range c.memberIDs() {
		if id == userID {
			return true
		}
	}
	return false
}

type messageRecord struct {
	ID           string `gorm:"primaryKey"`
	ChannelID    string `gorm:"index;not null"`
	SenderID     string `gorm:"not null"`
	Content      string
	AttachmentID string
	StickerID    string
	CreatedAt    time.Time `gorm:"index"`
}

func openDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("mockserver: open db: %w", err)
	}
	if err := db.AutoMigrate(&userRecord{}, &channelRecord{}, &messageRecord{}); err != nil {
		return nil, fmt.Errorf("mockserver: migrate: %w", err)
	}
	return db, nil
}
