package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestParticipantKeyIsOrderIndependent(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	assert.Equal(t, ParticipantKey(a, b), ParticipantKey(b, a))
	assert.NotEqual(t, ParticipantKey(a, b), ParticipantKey(a, uuid.New()))
}

func TestMessageExpiry(t *testing.T) {
	room := Room{MessageExpiryTime: 90}
	assert.Equal(t, 90*time.Second, room.MessageExpiry())

	room.MessageExpiryTime = -5
	assert.Equal(t, time.Duration(0), room.MessageExpiry())
}

func TestHasParticipant(t *testing.T) {
	alice := User{ID: uuid.New()}
	bob := User{ID: uuid.New()}
	room := Room{Participants: []User{alice, bob}}

	assert.True(t, room.HasParticipant(alice.ID))
	assert.False(t, room.HasParticipant(uuid.New()))
}
