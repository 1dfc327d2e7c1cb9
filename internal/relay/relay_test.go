package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEndpoint struct {
	id   uuid.UUID
	fail bool

	mu       sync.Mutex
	payloads [][]byte
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{id: uuid.New()}
}

func (f *fakeEndpoint) ID() uuid.UUID { return f.id }

func (f *fakeEndpoint) Deliver(payload []byte) error {
	if f.fail {
		return ErrEndpointQueueFull
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeEndpoint) deliveries(t *testing.T) []Delivery {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Delivery, len(f.payloads))
	for i, p := range f.payloads {
		require.NoError(t, json.Unmarshal(p, &out[i]))
	}
	return out
}

type fakeVerifier struct {
	identities map[string]Identity
}

func (f *fakeVerifier) Verify(_ context.Context, credential string) (*Identity, error) {
	id, ok := f.identities[credential]
	if !ok {
		return nil, ErrUnauthorized
	}
	return &id, nil
}

type fakeDirectory struct {
	rooms map[uuid.UUID]*RoomInfo
}

func (f *fakeDirectory) RoomInfo(_ context.Context, roomID uuid.UUID) (*RoomInfo, error) {
	info, ok := f.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return info, nil
}

type fakeDispatcher struct {
	fail bool

	mu       sync.Mutex
	recorded []LastMessage
}

func (f *fakeDispatcher) DispatchLastMessage(_ context.Context, lm LastMessage) error {
	if f.fail {
		return errors.New("redis down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, lm)
	return nil
}

func (f *fakeDispatcher) last() (LastMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recorded) == 0 {
		return LastMessage{}, false
	}
	return f.recorded[len(f.recorded)-1], true
}

type testRig struct {
	registry   *Registry
	relay      *Relay
	dispatcher *fakeDispatcher
	roomID     uuid.UUID
	alice      Identity
	bob        Identity
}

func newTestRig(t *testing.T, opts ...Option) *testRig {
	t.Helper()

	alice := Identity{UserID: uuid.New(), Username: "alice"}
	bob := Identity{UserID: uuid.New(), Username: "bob"}
	roomID := uuid.New()

	verifier := &fakeVerifier{identities: map[string]Identity{
		"token-alice": alice,
		"token-bob":   bob,
	}}
	directory := &fakeDirectory{rooms: map[uuid.UUID]*RoomInfo{
		roomID: {
			ID:            roomID,
			Participants:  []uuid.UUID{alice.UserID, bob.UserID},
			MessageExpiry: 60 * time.Second,
		},
	}}

	registry := NewRegistry(verifier, directory)
	dispatcher := &fakeDispatcher{}
	return &testRig{
		registry:   registry,
		relay:      New(registry, dispatcher, opts...),
		dispatcher: dispatcher,
		roomID:     roomID,
		alice:      alice,
		bob:        bob,
	}
}

func (r *testRig) join(t *testing.T, token string) *fakeEndpoint {
	t.Helper()
	ep := newFakeEndpoint()
	_, err := r.registry.Join(context.Background(), r.roomID, token, ep)
	require.NoError(t, err)
	return ep
}

func TestSendFanOut(t *testing.T) {
	rig := newTestRig(t)

	a := rig.join(t, "token-alice")
	b := rig.join(t, "token-bob")
	require.Equal(t, 2, rig.registry.Count(rig.roomID))

	ack, err := rig.relay.Send(context.Background(), rig.roomID, a.ID(), Message{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 2, ack.Delivered)
	assert.Empty(t, ack.Warning)

	got := b.deliveries(t)
	require.Len(t, got, 1)
	assert.Equal(t, "message", got[0].Type)
	assert.Equal(t, "hi", got[0].Text)
	assert.Equal(t, "alice", got[0].Sender)
	assert.Equal(t, rig.roomID, got[0].RoomID)
	assert.Equal(t, got[0].Timestamp.Add(60*time.Second), got[0].ExpiresAt)

	// Отправитель тоже получает собственное сообщение
	require.Len(t, a.deliveries(t), 1)

	lm, ok := rig.dispatcher.last()
	require.True(t, ok)
	assert.Equal(t, rig.roomID, lm.RoomID)
	assert.Equal(t, "hi", lm.Text)
	assert.Equal(t, "alice", lm.Sender)
	assert.Equal(t, 60*time.Second, lm.Expiry)
}

func TestSendNotAMember(t *testing.T) {
	rig := newTestRig(t)

	a := rig.join(t, "token-alice")
	stranger := newFakeEndpoint()

	_, err := rig.relay.Send(context.Background(), rig.roomID, stranger.ID(), Message{Text: "spoofed"})
	assert.ErrorIs(t, err, ErrNotAMember)
	assert.Empty(t, a.deliveries(t))
	_, recorded := rig.dispatcher.last()
	assert.False(t, recorded)
}

func TestSendLooseMembership(t *testing.T) {
	rig := newTestRig(t, WithLooseMembership())

	a := rig.join(t, "token-alice")
	stranger := newFakeEndpoint()

	ack, err := rig.relay.Send(context.Background(), rig.roomID, stranger.ID(), Message{Text: "hello", Sender: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 1, ack.Delivered)

	got := a.deliveries(t)
	require.Len(t, got, 1)
	assert.Equal(t, "ghost", got[0].Sender)
}

func TestSendSenderIsVerifiedIdentity(t *testing.T) {
	rig := newTestRig(t)

	a := rig.join(t, "token-alice")
	b := rig.join(t, "token-bob")

	_, err := rig.relay.Send(context.Background(), rig.roomID, a.ID(), Message{Text: "hi", Sender: "mallory"})
	require.NoError(t, err)

	got := b.deliveries(t)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Sender)
}

func TestSendOrderingPerSender(t *testing.T) {
	rig := newTestRig(t)

	a := rig.join(t, "token-alice")
	b := rig.join(t, "token-bob")

	texts := []string{"one", "two", "three", "four", "five"}
	for _, text := range texts {
		_, err := rig.relay.Send(context.Background(), rig.roomID, a.ID(), Message{Text: text})
		require.NoError(t, err)
	}

	got := b.deliveries(t)
	require.Len(t, got, len(texts))
	for i, text := range texts {
		assert.Equal(t, text, got[i].Text)
	}
}

func TestSendSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	rig := newTestRig(t)

	a := rig.join(t, "token-alice")
	b := rig.join(t, "token-bob")
	b.fail = true

	ack, err := rig.relay.Send(context.Background(), rig.roomID, a.ID(), Message{Text: "hi"})
	require.NoError(t, err)

	assert.Equal(t, 1, ack.Delivered)
	assert.Len(t, a.deliveries(t), 1)
	assert.Empty(t, b.deliveries(t))
}

func TestSendDispatchFailureIsSoftWarning(t *testing.T) {
	rig := newTestRig(t)
	rig.dispatcher.fail = true

	a := rig.join(t, "token-alice")
	b := rig.join(t, "token-bob")

	ack, err := rig.relay.Send(context.Background(), rig.roomID, a.ID(), Message{Text: "hi"})
	require.NoError(t, err)

	// Рассылка состоялась, несмотря на отказ очереди
	assert.Equal(t, 2, ack.Delivered)
	assert.Equal(t, ErrDirectoryUnavailable.Error(), ack.Warning)
	assert.Len(t, b.deliveries(t), 1)
}

func TestSendEmptyText(t *testing.T) {
	rig := newTestRig(t)
	a := rig.join(t, "token-alice")

	_, err := rig.relay.Send(context.Background(), rig.roomID, a.ID(), Message{Text: "   "})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestNoDeliveryAfterDisconnect(t *testing.T) {
	rig := newTestRig(t)

	a := rig.join(t, "token-alice")
	b := rig.join(t, "token-bob")

	rig.registry.LeaveAll(b.ID())
	require.Equal(t, 1, rig.registry.Count(rig.roomID))

	_, err := rig.relay.Send(context.Background(), rig.roomID, a.ID(), Message{Text: "still here?"})
	require.NoError(t, err)

	assert.Empty(t, b.deliveries(t))
	assert.Len(t, a.deliveries(t), 1)
}
