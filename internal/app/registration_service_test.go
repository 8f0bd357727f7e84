package app

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"clan_helper_bot/internal/domain/group"
	"clan_helper_bot/internal/domain/member"
)

func TestRegistrationPostPinsMessage(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	client.admins[[2]int64{testGroupID, adminID}] = true
	svc := NewRegistrationService(newFakeMembers(), client, testLogger())

	if _, err := svc.PostRegistration(ctx, testGroupID, testTopicID, 7); !errors.Is(err, ErrAdminNotAuthorized) {
		t.Fatalf("non-admin err = %v", err)
	}

	id, err := svc.PostRegistration(ctx, testGroupID, testTopicID, adminID)
	if err != nil {
		t.Fatal(err)
	}
	if len(client.callOuts) != 1 || client.callOuts[0].KB[0][0].Data != "-1001" {
		t.Fatalf("registration message = %+v", client.callOuts)
	}
	if !slices.Equal(client.pinned, []int{id}) {
		t.Errorf("pinned = %v, want [%d]", client.pinned, id)
	}

	client.failPin = errors.New("not enough rights")
	if _, err := svc.PostRegistration(ctx, testGroupID, testTopicID, adminID); err != nil {
		t.Errorf("pin failure surfaced: %v", err)
	}
	if len(client.callOuts) != 2 {
		t.Errorf("call-outs = %d", len(client.callOuts))
	}
}

func TestRegistrationRegister(t *testing.T) {
	ctx := context.Background()
	members := newFakeMembers()
	members.add(testGroupID, 9, "Ушедший", member.StatusUnregistered)
	client := newFakeClient()
	svc := NewRegistrationService(members, client, testLogger())

	groupButton := member.RegistrationButton{GroupID: testGroupID}
	tests := []struct {
		name    string
		chatID  int64
		button  member.RegistrationButton
		userID  int64
		want    string
		deleted bool
	}{
		{"foreign button", testGroupID, member.RegistrationButton{GroupID: -2002}, 5, "❌ Эта кнопка предназначена для другой группы", false},
		{"group button", testGroupID, groupButton, 5, "✅ Вы успешно зарегистрированы!", false},
		{"group button again", testGroupID, groupButton, 5, "ℹ️ Вы уже зарегистрированы!", false},
		{"someone else's welcome", testGroupID, member.RegistrationButton{GroupID: testGroupID, UserID: 7}, 8, "✅ Вы успешно зарегистрированы!", false},
		{"own welcome", testGroupID, member.RegistrationButton{GroupID: testGroupID, UserID: 7}, 7, "✅ Вы успешно зарегистрированы!", true},
		{"comes back", testGroupID, groupButton, 9, "✅ Вы успешно зарегистрированы!", false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messageID := 500 + i
			got, err := svc.Register(ctx, tt.chatID, messageID, tt.button, member.Member{UserID: tt.userID, FirstName: "Боец"})
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
			if slices.Contains(client.deleted, messageID) != tt.deleted {
				t.Errorf("message deleted = %v, want %v", !tt.deleted, tt.deleted)
			}
		})
	}

	active, _ := members.ActiveMembers(ctx, testGroupID)
	var ids []int64
	for _, m := range active {
		ids = append(ids, m.UserID)
	}
	if !slices.Equal(ids, []int64{9, 5, 8, 7}) {
		t.Errorf("registered = %v", ids)
	}
}

func TestRegistrationUnregisterSurvivesActivity(t *testing.T) {
	ctx := context.Background()
	members := newFakeMembers()
	members.add(testGroupID, 3, "Игрок", member.StatusMember)
	svc := NewRegistrationService(members, newFakeClient(), testLogger())
	seen := NewMemberService(members, testLogger())

	got, err := svc.Unregister(ctx, testGroupID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "✅ <b>Регистрация отменена</b>") {
		t.Errorf("reply = %q", got)
	}
	if err := seen.Seen(ctx, member.Member{GroupID: testGroupID, UserID: 3, FirstName: "Игрок"}); err != nil {
		t.Fatal(err)
	}
	if active, _ := members.ActiveMembers(ctx, testGroupID); len(active) != 0 {
		t.Errorf("unregistered member back in directory: %+v", active)
	}

	for _, uid := range []int64{3, 404} {
		got, err := svc.Unregister(ctx, testGroupID, uid)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(got, "ℹ️ <b>Вы не зарегистрированы</b>") {
			t.Errorf("user %d reply = %q", uid, got)
		}
	}
}

func TestRegistrationGoInactive(t *testing.T) {
	ctx := context.Background()
	members := newFakeMembers()
	members.add(testGroupID, 3, "Игрок", member.StatusMember)
	members.add(testGroupID, 4, "Ушедший", member.StatusLeft)
	svc := NewRegistrationService(members, newFakeClient(), testLogger())

	tests := []struct {
		name   string
		userID int64
		want   string
	}{
		{"registered", 3, "Игрок, на период неактивности варны не начисляются"},
		{"already off", 3, "ℹ️ <b>Вы уже в статусе \"неактивен\"</b>"},
		{"left", 4, "/register"},
		{"unknown", 404, "/register"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.GoInactive(ctx, testGroupID, tt.userID)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("reply = %q, want it to contain %q", got, tt.want)
			}
		})
	}
	if m, _ := members.Get(ctx, testGroupID, 3); m.Status != member.StatusOff {
		t.Errorf("status = %s, want off", m.Status)
	}
}

func TestRegistrationPromptAndWelcome(t *testing.T) {
	ctx := context.Background()
	members := newFakeMembers()
	members.add(testGroupID, 3, "Игрок", member.StatusMember)
	client := newFakeClient()
	svc := NewRegistrationService(members, client, testLogger())

	newcomer := member.Member{GroupID: testGroupID, UserID: 8, FirstName: "Новичок"}
	if err := svc.Prompt(ctx, testTopicID, newcomer); err != nil {
		t.Fatal(err)
	}
	if err := svc.Prompt(ctx, testTopicID, member.Member{GroupID: testGroupID, UserID: 3, FirstName: "Игрок"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Welcome(ctx, newcomer); err != nil {
		t.Fatal(err)
	}

	if len(client.callOuts) != 2 || len(client.plain) != 1 {
		t.Fatalf("call-outs = %d, plain = %d", len(client.callOuts), len(client.plain))
	}
	prompt := client.callOuts[0]
	if !strings.Contains(prompt.Text, "Новичок</a>, для участия") || prompt.KB[0][0].Data != "-1001:8" || prompt.TopicID != testTopicID {
		t.Errorf("prompt = %+v", prompt)
	}
	if !strings.HasPrefix(client.plain[0].Text, "ℹ️ <b>Вы уже зарегистрированы!</b>") {
		t.Errorf("registered prompt = %q", client.plain[0].Text)
	}
	welcome := client.callOuts[1]
	if welcome.TopicID != group.GeneralTopicID || !strings.HasPrefix(welcome.Text, "Привет, <a href=\"tg://user?id=8\">Новичок</a>!") || welcome.KB[0][0].Data != "-1001:8" {
		t.Errorf("welcome = %+v", welcome)
	}
}
