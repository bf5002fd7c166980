package service

import (
	"fmt"
	"strings"
	"testing"

	"chatserver/internal/config"
	"chatserver/internal/db"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a per-test in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gdb
}

func testConfig() config.Config {
	return config.Config{
		Port:        "0",
		DatabaseDSN: ":memory:",
		JWTSecret:   "test-secret",
		Env:         "dev",
	}
}

func newServices(t *testing.T) (*gorm.DB, *UserService, *ChatService, *MessageService, *ActivityService) {
	t.Helper()
	gdb := newTestDB(t)
	activity := NewActivityService(gdb)
	users := NewUserService(gdb, testConfig(), activity)
	chats := NewChatService(gdb)
	msgs := NewMessageService(gdb)
	return gdb, users, chats, msgs, activity
}

func mustRegister(t *testing.T, users *UserService, name, password string) uint {
	t.Helper()
	u, err := users.Register(name, "Tester", password)
	if err != nil {
		t.Fatalf("Register(%q) error = %v", name, err)
	}
	return u.ID
}

func mustLogin(t *testing.T, users *UserService, id uint, password, ip, device string) string {
	t.Helper()
	token, err := users.Login(id, password, ip, device)
	if err != nil {
		t.Fatalf("Login(%d) error = %v", id, err)
	}
	return token
}
