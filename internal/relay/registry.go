package relay

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type subscription struct {
	endpoint Endpoint
	identity Identity
}

// room — подписчики одной комнаты. Своя блокировка, чтобы join/leave/рассылка
// по разным комнатам не мешали друг другу.
type room struct {
	mu     sync.RWMutex
	expiry time.Duration
	subs   map[uuid.UUID]*subscription
	// true после удаления записи из таблицы комнат; в такую комнату
	// уже нельзя добавлять подписчиков
	dead bool
}

// Registry отслеживает, какие соединения сейчас подписаны на какие комнаты.
type Registry struct {
	verifier  Verifier
	directory Directory

	mu    sync.RWMutex
	rooms map[uuid.UUID]*room
	// Комнаты каждого соединения, для LeaveAll при disconnect
	conns map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewRegistry(verifier Verifier, directory Directory) *Registry {
	return &Registry{
		verifier:  verifier,
		directory: directory,
		rooms:     make(map[uuid.UUID]*room),
		conns:     make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Join проверяет credential, сверяет участие в комнате и добавляет endpoint
// в набор подписчиков. Повторный join того же соединения — no-op.
func (r *Registry) Join(ctx context.Context, roomID uuid.UUID, credential string, ep Endpoint) (*Identity, error) {
	identity, err := r.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, ErrUnauthorized
	}

	info, err := r.directory.RoomInfo(ctx, roomID)
	if err != nil {
		return nil, err
	}

	isParticipant := false
	for _, p := range info.Participants {
		if p == identity.UserID {
			isParticipant = true
			break
		}
	}
	if !isParticipant {
		return nil, ErrNotAMember
	}

	for {
		rm := r.getOrCreateRoom(roomID)

		rm.mu.Lock()
		if rm.dead {
			// Комнату успели удалить между lookup и lock — пробуем заново
			rm.mu.Unlock()
			continue
		}
		rm.expiry = info.MessageExpiry
		if _, ok := rm.subs[ep.ID()]; !ok {
			rm.subs[ep.ID()] = &subscription{endpoint: ep, identity: *identity}
		}
		rm.mu.Unlock()
		break
	}

	r.mu.Lock()
	if _, ok := r.conns[ep.ID()]; !ok {
		r.conns[ep.ID()] = make(map[uuid.UUID]struct{})
	}
	r.conns[ep.ID()][roomID] = struct{}{}
	r.mu.Unlock()

	log.Printf("User %s joined room %s", identity.Username, roomID)
	return identity, nil
}

// Leave удаляет соединение из комнаты. No-op, если его там нет.
func (r *Registry) Leave(roomID, connID uuid.UUID) {
	r.mu.Lock()
	rm := r.rooms[roomID]
	if conns, ok := r.conns[connID]; ok {
		delete(conns, roomID)
		if len(conns) == 0 {
			delete(r.conns, connID)
		}
	}
	r.mu.Unlock()

	if rm == nil {
		return
	}

	rm.mu.Lock()
	delete(rm.subs, connID)
	drop := len(rm.subs) == 0 && !rm.dead
	if drop {
		rm.dead = true
	}
	rm.mu.Unlock()

	if drop {
		r.mu.Lock()
		if r.rooms[roomID] == rm {
			delete(r.rooms, roomID)
		}
		r.mu.Unlock()
	}
}

// LeaveAll вызывается при разрыве соединения: убирает его из всех комнат.
func (r *Registry) LeaveAll(connID uuid.UUID) {
	r.mu.RLock()
	roomIDs := make([]uuid.UUID, 0, len(r.conns[connID]))
	for roomID := range r.conns[connID] {
		roomIDs = append(roomIDs, roomID)
	}
	r.mu.RUnlock()

	for _, roomID := range roomIDs {
		r.Leave(roomID, connID)
	}
}

// Rooms возвращает комнаты, на которые подписано соединение.
func (r *Registry) Rooms(connID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomIDs := make([]uuid.UUID, 0, len(r.conns[connID]))
	for roomID := range r.conns[connID] {
		roomIDs = append(roomIDs, roomID)
	}
	return roomIDs
}

// Subscribers возвращает снимок подписчиков комнаты.
// Для неизвестной комнаты — пустой срез, не ошибка.
func (r *Registry) Subscribers(roomID uuid.UUID) []Endpoint {
	rm := r.getRoom(roomID)
	if rm == nil {
		return nil
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	eps := make([]Endpoint, 0, len(rm.subs))
	for _, sub := range rm.subs {
		eps = append(eps, sub.endpoint)
	}
	return eps
}

// Count возвращает число подписчиков комнаты.
func (r *Registry) Count(roomID uuid.UUID) int {
	rm := r.getRoom(roomID)
	if rm == nil {
		return 0
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.subs)
}

// subscriber используется relay для проверки членства при отправке.
func (r *Registry) subscriber(roomID, connID uuid.UUID) (*subscription, bool) {
	rm := r.getRoom(roomID)
	if rm == nil {
		return nil, false
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	sub, ok := rm.subs[connID]
	return sub, ok
}

// roomExpiry возвращает закэшированный messageExpiryTime комнаты.
func (r *Registry) roomExpiry(roomID uuid.UUID) (time.Duration, bool) {
	rm := r.getRoom(roomID)
	if rm == nil {
		return 0, false
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.expiry, true
}

func (r *Registry) getRoom(roomID uuid.UUID) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

func (r *Registry) getOrCreateRoom(roomID uuid.UUID) *room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{subs: make(map[uuid.UUID]*subscription)}
		r.rooms[roomID] = rm
	}
	return rm
}
