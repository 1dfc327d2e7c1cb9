package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/thereayou/quickchat/internal/relay"
)

const (
	QueueChat = "chat"

	// Апсерт сводки последнего сообщения комнаты
	TypeLastMessageUpsert = "room:last_message"
	// Отложенная очистка lastMessage по истечении messageExpiryTime
	TypeLastMessageExpire = "room:expire_last_message"
)

// lastMessagePayload — JSON-полезная нагрузка обеих задач.
type lastMessagePayload struct {
	RoomID        uuid.UUID `json:"room_id"`
	Text          string    `json:"text"`
	Sender        string    `json:"sender"`
	SentAt        time.Time `json:"sent_at"`
	ExpirySeconds int       `json:"expiry_seconds"`
}

// Directory — durable-операции, нужные обработчикам задач.
type Directory interface {
	UpdateLastMessage(roomID uuid.UUID, text, sender string, sentAt time.Time) error
	ClearLastMessageIfStale(roomID uuid.UUID, sentAt time.Time) error
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher ставит задачу обновления lastMessage в очередь.
// Реализует relay.Dispatcher поверх asynq.
type Dispatcher struct {
	client *asynq.Client
}

func NewDispatcher(redisURL string) (*Dispatcher, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	return &Dispatcher{client: asynq.NewClient(opt)}, nil
}

var _ relay.Dispatcher = (*Dispatcher)(nil)

func (d *Dispatcher) DispatchLastMessage(ctx context.Context, lm relay.LastMessage) error {
	payload, err := json.Marshal(lastMessagePayload{
		RoomID:        lm.RoomID,
		Text:          lm.Text,
		Sender:        lm.Sender,
		SentAt:        lm.SentAt,
		ExpirySeconds: int(lm.Expiry / time.Second),
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeLastMessageUpsert, payload)
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueChat),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Second),
	)
	return err
}

func (d *Dispatcher) Close() error {
	return d.client.Close()
}

// Client отдает низкоуровневый asynq-клиент для обработчиков,
// которым нужно ставить цепочки задач.
func (d *Dispatcher) Client() *asynq.Client {
	return d.client
}

// Handlers обрабатывает задачи очереди. Оба обработчика идемпотентны.
type Handlers struct {
	directory Directory
	enq       enqueuer
}

func NewHandlers(directory Directory, enq enqueuer) *Handlers {
	return &Handlers{directory: directory, enq: enq}
}

func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeLastMessageUpsert, h.HandleLastMessageUpsert)
	mux.HandleFunc(TypeLastMessageExpire, h.HandleLastMessageExpire)
}

// HandleLastMessageUpsert пишет сводку в Directory и ставит отложенную
// задачу очистки на момент истечения сообщения.
func (h *Handlers) HandleLastMessageUpsert(ctx context.Context, t *asynq.Task) error {
	var p lastMessagePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// Битая нагрузка, перезапуск не поможет
		return fmt.Errorf("unmarshal %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	if err := h.directory.UpdateLastMessage(p.RoomID, p.Text, p.Sender, p.SentAt); err != nil {
		return fmt.Errorf("update last message for room %s: %w", p.RoomID, err)
	}

	expiry := time.Duration(p.ExpirySeconds) * time.Second
	expireTask := asynq.NewTask(TypeLastMessageExpire, t.Payload())
	if _, err := h.enq.EnqueueContext(ctx, expireTask,
		asynq.Queue(QueueChat),
		asynq.ProcessIn(expiry),
		asynq.MaxRetry(3),
	); err != nil {
		return fmt.Errorf("enqueue expire for room %s: %w", p.RoomID, err)
	}

	return nil
}

// HandleLastMessageExpire очищает lastMessage, если его не заменило
// более свежее сообщение.
func (h *Handlers) HandleLastMessageExpire(ctx context.Context, t *asynq.Task) error {
	var p lastMessagePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	if err := h.directory.ClearLastMessageIfStale(p.RoomID, p.SentAt); err != nil {
		return fmt.Errorf("clear last message for room %s: %w", p.RoomID, err)
	}
	return nil
}

// NewServer собирает asynq-сервер для очереди чата.
func NewServer(redisURL string, concurrency int) (*asynq.Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueChat: 2, "default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Printf("Task %s failed: %v", task.Type(), err)
		}),
	})
	return srv, nil
}
