// Package tokenstore persists the two bearer tokens the client holds between
// runs, the way a browser client keeps them in localStorage.
package tokenstore

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
)

type credential struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (credential) TableName() string { return "credentials" }

type Store struct {
	db *gorm.DB
}

// Open creates or opens the sqlite file at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("tokenstore: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&credential{}); err != nil {
		return nil, fmt.Errorf("tokenstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Tokens returns the stored access and refresh tokens. Missing rows read as
// empty strings; absence of a token is a normal state, not an error.
func (s *Store) Tokens() (access, refresh string) {
	return s.get(accessTokenKey), s.get(refreshTokenKey)
}

func (s *Store) AccessToken() string {
	return s.get(accessTokenKey)
}

func (s *Store) get(key string) string {
	var row credential
	if err := s.db.First(&row, "key = ?", key).Error; err != nil {
		return ""
	}
	return row.Value
}

// Save writes both tokens, replacing any previous pair.
func (s *Store) Save(access, refresh string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range map[string]string{
			accessTokenKey:  access,
			refreshTokenKey: refresh,
		} {
			row := credential{Key: key, Value: value}
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("tokenstore: save %s: %w", key, err)
			}
		}
		return nil
	})
}

// Clear removes both tokens.
func (s *Store) Clear() error {
	err := s.db.Delete(&credential{}, "key IN ?", []string{accessTokenKey, refreshTokenKey}).Error
	if err != nil {
		return fmt.Errorf("tokenstore: clear: %w", err)
	}
	return nil
}
