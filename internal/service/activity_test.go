package service

import (
	"errors"
	"testing"

	"chatserver/internal/models"
)

func TestTimeline_LoginLogoutOrder(t *testing.T) {
	_, users, _, _, activity := newServices(t)
	id := mustRegister(t, users, "Alice", "pw")

	token := mustLogin(t, users, id, "pw", "1.2.3.4", "laptop")
	if err := users.Logout(token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	// A logout awaited by the caller must already be visible here.
	events, err := activity.Timeline(id)
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Timeline() len = %d, want 2", len(events))
	}
	if events[0].Kind != models.ActivityLogin || events[1].Kind != models.ActivityLogout {
		t.Errorf("Timeline() kinds = [%s %s], want [login logout]", events[0].Kind, events[1].Kind)
	}
}

func TestTimeline_MultiDevice(t *testing.T) {
	_, users, _, _, activity := newServices(t)
	id := mustRegister(t, users, "Alice", "pw")

	laptop := mustLogin(t, users, id, "pw", "1.2.3.4", "laptop")
	mustLogin(t, users, id, "pw", "5.6.7.8", "phone")
	if err := users.Logout(laptop); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	events, err := activity.Timeline(id)
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	kinds := make([]string, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	want := []string{models.ActivityLogin, models.ActivityLogin, models.ActivityLogout}
	if len(kinds) != len(want) {
		t.Fatalf("Timeline() kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("Timeline() kinds = %v, want %v", kinds, want)
		}
	}
}

func TestTimeline_UnknownUser(t *testing.T) {
	_, _, _, _, activity := newServices(t)

	if _, err := activity.Timeline(9999); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Timeline() error = %v, want ErrUnknownUser", err)
	}
}

func TestIsActive(t *testing.T) {
	_, users, _, _, activity := newServices(t)
	id := mustRegister(t, users, "Alice", "pw")

	active, err := activity.IsActive(id)
	if err != nil {
		t.Fatalf("IsActive() error = %v", err)
	}
	if active {
		t.Error("IsActive() before login = true, want false")
	}

	token := mustLogin(t, users, id, "pw", "1.2.3.4", "laptop")
	if active, _ = activity.IsActive(id); !active {
		t.Error("IsActive() after login = false, want true")
	}

	if err := users.Logout(token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if active, _ = activity.IsActive(id); active {
		t.Error("IsActive() after logout = true, want false")
	}
}

func TestLastActive_CacheFollowsEvents(t *testing.T) {
	gdb, users, _, _, _ := newServices(t)
	id := mustRegister(t, users, "Alice", "pw")

	var before models.User
	if err := gdb.First(&before, id).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}

	mustLogin(t, users, id, "pw", "1.2.3.4", "laptop")

	var after models.User
	if err := gdb.First(&after, id).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if after.LastActive < before.LastActive {
		t.Errorf("last_active went backwards: %d -> %d", before.LastActive, after.LastActive)
	}
	if after.LastActive == 0 {
		t.Error("last_active should be set after login")
	}
}
