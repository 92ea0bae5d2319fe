package handlers

import (
	"context"
	"strings"
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/wardenbot/warden/internal/auth"
	"github.com/wardenbot/warden/internal/broadcast"
	errs "github.com/wardenbot/warden/internal/errors"
	"github.com/wardenbot/warden/internal/ledger"
)

type fakeReplySender struct {
	sent []string
}

func (f *fakeReplySender) Send(c api.Chattable) (api.Message, error) {
	if msg, ok := c.(api.MessageConfig); ok {
		f.sent = append(f.sent, msg.Text)
	}
	return api.Message{}, nil
}

type fakeBroadcaster struct {
	startedPayloads   []string
	startedRecipients [][]int64
	startErr          error
	cancelled         int
	cancelErr         error
	current           *broadcast.JobStatus
}

func (f *fakeBroadcaster) StartJob(payload string, recipients []int64, _ int64) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.startedPayloads = append(f.startedPayloads, payload)
	f.startedRecipients = append(f.startedRecipients, recipients)
	return "job-1", nil
}

func (f *fakeBroadcaster) CancelCurrent() (string, error) {
	if f.cancelErr != nil {
		return "", f.cancelErr
	}
	f.cancelled++
	return "job-1", nil
}

func (f *fakeBroadcaster) Current() (broadcast.JobStatus, bool) {
	if f.current == nil {
		return broadcast.JobStatus{}, false
	}
	return *f.current, true
}

type fakeAdminStore struct {
	chatIDs []int64
	kv      map[string]string
}

func (f *fakeAdminStore) GetKnownChatIDs(_ context.Context) ([]int64, error) { return f.chatIDs, nil }
func (f *fakeAdminStore) CountKnownChats(_ context.Context) (int64, error) {
	return int64(len(f.chatIDs)), nil
}
func (f *fakeAdminStore) CountBanRecords(_ context.Context) (int64, error) { return 7, nil }
func (f *fakeAdminStore) GetKV(_ context.Context, key string) (string, error) {
	return f.kv[key], nil
}

func newAdminUnderTest(adminIDs []int64) (*Admin, *fakeReplySender, *fakeBroadcaster, *fakeAdminStore) {
	sender := &fakeReplySender{}
	broadcasts := &fakeBroadcaster{}
	store := &fakeAdminStore{chatIDs: []int64{-1, -2, -3}}
	a := NewAdmin(sender, auth.NewAuthorizer(adminIDs), broadcasts, store, ledger.New(), "en")
	return a, sender, broadcasts, store
}

func commandUpdate(userID int64, text string) (*api.Update, *api.Chat, *api.User) {
	command := text
	if i := strings.IndexByte(text, ' '); i > 0 {
		command = text[:i]
	}
	chat := api.Chat{ID: 500, Type: "private"}
	user := api.User{ID: userID, UserName: "operator"}
	u := &api.Update{
		Message: &api.Message{
			Chat: chat,
			From: &user,
			Text: text,
			Entities: []api.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: len(command)},
			},
		},
	}
	return u, &chat, &user
}

func TestUnauthorizedBroadcastIsRefused(t *testing.T) {
	t.Parallel()

	a, sender, broadcasts, _ := newAdminUnderTest([]int64{1})
	u, chat, user := commandUpdate(99, "/broadcast hello")

	proceed, err := a.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handling failed: %v", err)
	}
	if proceed {
		t.Fatalf("refused commands must not proceed")
	}
	if len(broadcasts.startedPayloads) != 0 {
		t.Fatalf("unauthorized user must not start a broadcast")
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "not authorized") {
		t.Fatalf("expected refusal reply, got %v", sender.sent)
	}
}

func TestBroadcastStartsWithKnownChats(t *testing.T) {
	t.Parallel()

	a, sender, broadcasts, store := newAdminUnderTest([]int64{1})
	u, chat, user := commandUpdate(1, "/broadcast hello everyone")

	if _, err := a.Handle(context.Background(), u, chat, user); err != nil {
		t.Fatalf("handling failed: %v", err)
	}
	if len(broadcasts.startedPayloads) != 1 || broadcasts.startedPayloads[0] != "hello everyone" {
		t.Fatalf("unexpected payloads: %v", broadcasts.startedPayloads)
	}
	if got := broadcasts.startedRecipients[0]; len(got) != len(store.chatIDs) {
		t.Fatalf("expected %d recipients, got %d", len(store.chatIDs), len(got))
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "job-1") {
		t.Fatalf("expected start confirmation with job id, got %v", sender.sent)
	}
}

func TestBroadcastWithoutPayloadShowsUsage(t *testing.T) {
	t.Parallel()

	a, sender, broadcasts, _ := newAdminUnderTest([]int64{1})
	u, chat, user := commandUpdate(1, "/broadcast")

	if _, err := a.Handle(context.Background(), u, chat, user); err != nil {
		t.Fatalf("handling failed: %v", err)
	}
	if len(broadcasts.startedPayloads) != 0 {
		t.Fatalf("empty payload must not start a broadcast")
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "/broadcast") {
		t.Fatalf("expected usage reply, got %v", sender.sent)
	}
}

func TestSecondBroadcastIsRejectedGracefully(t *testing.T) {
	t.Parallel()

	a, sender, broadcasts, _ := newAdminUnderTest([]int64{1})
	broadcasts.startErr = errs.ErrAlreadyRunning
	u, chat, user := commandUpdate(1, "/broadcast again")

	if _, err := a.Handle(context.Background(), u, chat, user); err != nil {
		t.Fatalf("busy broadcaster must not surface an error, got %v", err)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "already in progress") {
		t.Fatalf("expected busy reply, got %v", sender.sent)
	}
}

func TestCancelWithoutRunningJob(t *testing.T) {
	t.Parallel()

	a, sender, broadcasts, _ := newAdminUnderTest([]int64{1})
	broadcasts.cancelErr = errs.ErrNotRunning
	u, chat, user := commandUpdate(1, "/cancel")

	if _, err := a.Handle(context.Background(), u, chat, user); err != nil {
		t.Fatalf("handling failed: %v", err)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "No broadcast is running") {
		t.Fatalf("expected idle reply, got %v", sender.sent)
	}
}

func TestCancelRequestsStop(t *testing.T) {
	t.Parallel()

	a, sender, broadcasts, _ := newAdminUnderTest([]int64{1})
	u, chat, user := commandUpdate(1, "/cancel")

	if _, err := a.Handle(context.Background(), u, chat, user); err != nil {
		t.Fatalf("handling failed: %v", err)
	}
	if broadcasts.cancelled != 1 {
		t.Fatalf("expected one cancel request, got %d", broadcasts.cancelled)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "job-1") {
		t.Fatalf("expected cancel confirmation, got %v", sender.sent)
	}
}

func TestStatsReportsCounters(t *testing.T) {
	t.Parallel()

	a, sender, broadcasts, _ := newAdminUnderTest([]int64{1})
	broadcasts.current = &broadcast.JobStatus{
		ID: "job-1", State: broadcast.StateRunning, Sent: 2, Failed: 1, Total: 10,
	}
	u, chat, user := commandUpdate(1, "/stats")

	if _, err := a.Handle(context.Background(), u, chat, user); err != nil {
		t.Fatalf("handling failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one reply, got %v", sender.sent)
	}
	for _, want := range []string{"3", "7", "running 2/10"} {
		if !strings.Contains(sender.sent[0], want) {
			t.Fatalf("stats reply missing %q:\n%s", want, sender.sent[0])
		}
	}
}

func TestStatsFallsBackToPersistedBroadcastSummary(t *testing.T) {
	t.Parallel()

	a, sender, _, store := newAdminUnderTest([]int64{1})
	store.kv = map[string]string{
		KVLastBroadcast: "Broadcast job-0 completed: 9 sent, 1 failed of 10",
	}
	u, chat, user := commandUpdate(1, "/stats")

	if _, err := a.Handle(context.Background(), u, chat, user); err != nil {
		t.Fatalf("handling failed: %v", err)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "9 sent, 1 failed of 10") {
		t.Fatalf("stats must surface the persisted summary when the controller is empty, got %v", sender.sent)
	}
}

func TestNonCommandMessagesProceed(t *testing.T) {
	t.Parallel()

	a, _, _, _ := newAdminUnderTest([]int64{1})
	chat := api.Chat{ID: 500, Type: "private"}
	user := api.User{ID: 1}
	u := &api.Update{Message: &api.Message{Chat: chat, From: &user, Text: "hello"}}

	proceed, err := a.Handle(context.Background(), u, &chat, &user)
	if err != nil {
		t.Fatalf("handling failed: %v", err)
	}
	if !proceed {
		t.Fatalf("plain messages must proceed to other handlers")
	}
}
