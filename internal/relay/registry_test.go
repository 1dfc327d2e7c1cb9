package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinBadCredential(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.registry.Join(context.Background(), rig.roomID, "garbage", newFakeEndpoint())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, rig.registry.Count(rig.roomID))
}

func TestJoinUnknownRoom(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.registry.Join(context.Background(), uuid.New(), "token-alice", newFakeEndpoint())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinNotAParticipant(t *testing.T) {
	rig := newTestRig(t)

	// carol аутентифицирована, но не входит в пару участников комнаты
	carol := Identity{UserID: uuid.New(), Username: "carol"}
	rig.registry.verifier.(*fakeVerifier).identities["token-carol"] = carol

	_, err := rig.registry.Join(context.Background(), rig.roomID, "token-carol", newFakeEndpoint())
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestJoinIdempotent(t *testing.T) {
	rig := newTestRig(t)

	ep := newFakeEndpoint()
	for i := 0; i < 3; i++ {
		identity, err := rig.registry.Join(context.Background(), rig.roomID, "token-alice", ep)
		require.NoError(t, err)
		assert.Equal(t, "alice", identity.Username)
	}

	assert.Equal(t, 1, rig.registry.Count(rig.roomID))
}

func TestJoinReturnsIdentity(t *testing.T) {
	rig := newTestRig(t)

	identity, err := rig.registry.Join(context.Background(), rig.roomID, "token-bob", newFakeEndpoint())
	require.NoError(t, err)
	assert.Equal(t, rig.bob.UserID, identity.UserID)
	assert.Equal(t, "bob", identity.Username)
}

func TestLeave(t *testing.T) {
	rig := newTestRig(t)

	a := rig.join(t, "token-alice")
	rig.join(t, "token-bob")

	rig.registry.Leave(rig.roomID, a.ID())
	assert.Equal(t, 1, rig.registry.Count(rig.roomID))

	// Повторный leave — no-op
	rig.registry.Leave(rig.roomID, a.ID())
	assert.Equal(t, 1, rig.registry.Count(rig.roomID))
}

func TestLeaveUnknownRoom(t *testing.T) {
	rig := newTestRig(t)
	rig.registry.Leave(uuid.New(), uuid.New())
}

func TestLeaveAll(t *testing.T) {
	alice := Identity{UserID: uuid.New(), Username: "alice"}
	bob := Identity{UserID: uuid.New(), Username: "bob"}
	room1 := uuid.New()
	room2 := uuid.New()

	verifier := &fakeVerifier{identities: map[string]Identity{"token-alice": alice, "token-bob": bob}}
	directory := &fakeDirectory{rooms: map[uuid.UUID]*RoomInfo{
		room1: {ID: room1, Participants: []uuid.UUID{alice.UserID, bob.UserID}, MessageExpiry: time.Minute},
		room2: {ID: room2, Participants: []uuid.UUID{alice.UserID, bob.UserID}, MessageExpiry: time.Minute},
	}}
	registry := NewRegistry(verifier, directory)

	a := newFakeEndpoint()
	b := newFakeEndpoint()
	for _, roomID := range []uuid.UUID{room1, room2} {
		_, err := registry.Join(context.Background(), roomID, "token-alice", a)
		require.NoError(t, err)
		_, err = registry.Join(context.Background(), roomID, "token-bob", b)
		require.NoError(t, err)
	}

	registry.LeaveAll(a.ID())

	assert.Equal(t, 1, registry.Count(room1))
	assert.Equal(t, 1, registry.Count(room2))
	assert.Empty(t, registry.Rooms(a.ID()))
	assert.ElementsMatch(t, []uuid.UUID{room1, room2}, registry.Rooms(b.ID()))
}

func TestSubscribersUnknownRoom(t *testing.T) {
	rig := newTestRig(t)
	assert.Empty(t, rig.registry.Subscribers(uuid.New()))
}

func TestConcurrentJoinsNoLostUpdates(t *testing.T) {
	rig := newTestRig(t)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := rig.registry.Join(context.Background(), rig.roomID, "token-alice", newFakeEndpoint())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, n, rig.registry.Count(rig.roomID))
	assert.Len(t, rig.registry.Subscribers(rig.roomID), n)
}

func TestConcurrentJoinLeaveRace(t *testing.T) {
	rig := newTestRig(t)

	// Гонка join/leave на одной комнате не должна терять подписчиков
	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ep := newFakeEndpoint()
			_, err := rig.registry.Join(context.Background(), rig.roomID, "token-alice", ep)
			assert.NoError(t, err)
			rig.registry.Leave(rig.roomID, ep.ID())
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, rig.registry.Count(rig.roomID))

	// После гонки комната снова пригодна для join
	rig.join(t, "token-bob")
	assert.Equal(t, 1, rig.registry.Count(rig.roomID))
}
