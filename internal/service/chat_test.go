package service

import (
	"errors"
	"testing"

	"chatserver/internal/models"
)

func TestCreateChat_Validation(t *testing.T) {
	_, users, chats, _, _ := newServices(t)
	owner := mustRegister(t, users, "Alice", "pw")

	tests := []struct {
		name    string
		title   string
		wantErr error
	}{
		{"valid", "General", nil},
		{"empty title", "", ErrValidation},
		{"whitespace title", "   ", ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chats.Create(owner, tt.title, "talk about everything")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateChat_OwnerIsMember(t *testing.T) {
	_, users, chats, _, _ := newServices(t)
	owner := mustRegister(t, users, "Alice", "pw")

	chat, err := chats.Create(owner, "G1", "first group")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	member, err := chats.IsMember(owner, chat.ID)
	if err != nil {
		t.Fatalf("IsMember() error = %v", err)
	}
	if !member {
		t.Error("creator should be a member of the new chat")
	}

	list, err := chats.ChatsFor(owner)
	if err != nil {
		t.Fatalf("ChatsFor() error = %v", err)
	}
	if len(list) != 1 || list[0].Title != "G1" {
		t.Errorf("ChatsFor() = %+v, want exactly one chat titled G1", list)
	}
}

func TestInvite_Idempotent(t *testing.T) {
	gdb, users, chats, _, _ := newServices(t)
	owner := mustRegister(t, users, "Alice", "pw")
	target := mustRegister(t, users, "Bob", "pw")
	chat, err := chats.Create(owner, "G1", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := chats.Invite(owner, chat.ID, target); err != nil {
		t.Fatalf("first Invite() error = %v", err)
	}
	if err := chats.Invite(owner, chat.ID, target); err != nil {
		t.Fatalf("second Invite() error = %v, want idempotent success", err)
	}

	var count int64
	if err := gdb.Model(&models.Invitation{}).
		Where("chat_id = ? AND user_id = ?", chat.ID, target).
		Count(&count).Error; err != nil {
		t.Fatalf("count invitations: %v", err)
	}
	if count != 1 {
		t.Errorf("invitation rows = %d, want 1", count)
	}
}

func TestInvite_NonMemberForbidden(t *testing.T) {
	_, users, chats, _, _ := newServices(t)
	owner := mustRegister(t, users, "Alice", "pw")
	outsider := mustRegister(t, users, "Mallory", "pw")
	target := mustRegister(t, users, "Bob", "pw")
	chat, err := chats.Create(owner, "G1", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := chats.Invite(outsider, chat.ID, target); !errors.Is(err, ErrForbidden) {
		t.Errorf("Invite() by outsider error = %v, want ErrForbidden", err)
	}
}

func TestInvite_UnknownIDs(t *testing.T) {
	_, users, chats, _, _ := newServices(t)
	owner := mustRegister(t, users, "Alice", "pw")
	chat, err := chats.Create(owner, "G1", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := chats.Invite(owner, 9999, owner); !errors.Is(err, ErrUnknownChat) {
		t.Errorf("Invite() unknown chat error = %v, want ErrUnknownChat", err)
	}
	if err := chats.Invite(owner, chat.ID, 9999); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Invite() unknown user error = %v, want ErrUnknownUser", err)
	}
}

func TestChatsFor_MembershipOrder(t *testing.T) {
	_, users, chats, _, _ := newServices(t)
	owner := mustRegister(t, users, "Alice", "pw")
	member := mustRegister(t, users, "Bob", "pw")

	a, err := chats.Create(owner, "A", "")
	if err != nil {
		t.Fatalf("Create(A) error = %v", err)
	}
	b, err := chats.Create(owner, "B", "")
	if err != nil {
		t.Fatalf("Create(B) error = %v", err)
	}

	// Bob joins B first, then A; his list follows join order, not chat id order.
	if err := chats.Invite(owner, b.ID, member); err != nil {
		t.Fatalf("Invite(B) error = %v", err)
	}
	if err := chats.Invite(owner, a.ID, member); err != nil {
		t.Fatalf("Invite(A) error = %v", err)
	}

	list, err := chats.ChatsFor(member)
	if err != nil {
		t.Fatalf("ChatsFor() error = %v", err)
	}
	if len(list) != 2 || list[0].Title != "B" || list[1].Title != "A" {
		t.Errorf("ChatsFor() = %+v, want [B A]", list)
	}
}
