package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/ambunow/ambugo-app/internal/broker/messages"
	"github.com/ambunow/ambugo-app/internal/models"
)

// Repository выдаёт актуальный список заявок на старте и при ресинке.
type Repository interface {
	ListRequests(ctx context.Context) ([]*models.Request, error)
}

// Feed держит в памяти снимок заявок для админского списка.
// Снимок наполняется один раз из хранилища и дальше обновляется
// событиями из кафки; запись идёт из одной горутины-консьюмера,
// чтение из HTTP-хендлеров.
type Feed struct {
	repo   Repository
	logger *slog.Logger

	createdTopic string
	statusTopic  string

	mu       sync.RWMutex
	requests []*models.Request // новые в начале
	loaded   bool
	lastErr  error
}

func New(repo Repository, createdTopic, statusTopic string, logger *slog.Logger) *Feed {
	return &Feed{
		repo:         repo,
		logger:       logger,
		createdTopic: createdTopic,
		statusTopic:  statusTopic,
	}
}

// Load подтягивает полный список из хранилища. Вызывается на старте
// и после восстановления консьюмера.
func (f *Feed) Load(ctx context.Context) error {
	requests, err := f.repo.ListRequests(ctx)
	if err != nil {
		f.mu.Lock()
		f.lastErr = err
		f.mu.Unlock()
		return errors.Wrap(err, "list requests")
	}

	f.mu.Lock()
	f.requests = requests
	f.loaded = true
	f.lastErr = nil
	f.mu.Unlock()
	return nil
}

// HandleMessage разбирает событие брокера и накатывает его на снимок.
// Сигнатура совпадает с хендлером консьюмера.
func (f *Feed) HandleMessage(topic string, _, value []byte) error {
	switch topic {
	case f.createdTopic:
		var msg messages.RequestCreated
		if err := json.Unmarshal(value, &msg); err != nil {
			return errors.Wrap(err, "unmarshal request created")
		}
		f.applyCreated(msg)
	case f.statusTopic:
		var msg messages.RequestStatusChanged
		if err := json.Unmarshal(value, &msg); err != nil {
			return errors.Wrap(err, "unmarshal status changed")
		}
		f.applyStatusChanged(msg)
	default:
		f.logger.Warn("feed: unknown topic", "topic", topic)
	}
	return nil
}

func (f *Feed) applyCreated(msg messages.RequestCreated) {
	r := &models.Request{
		ID:            msg.RequestID,
		PickupText:    msg.PickupText,
		DestText:      msg.DestText,
		PickupLat:     msg.PickupLat,
		PickupLng:     msg.PickupLng,
		DestLat:       msg.DestLat,
		DestLng:       msg.DestLng,
		Date:          msg.Date,
		TimeFrom:      msg.TimeFrom,
		TimeTo:        msg.TimeTo,
		AmbulanceType: msg.AmbulanceType,
		IsEmergency:   msg.IsEmergency,
		Email:         msg.Email,
		FullName:      msg.FullName,
		Phone:         msg.Phone,
		Comments:      msg.Comments,
		CreatedAt:     msg.CreatedAt,
		Status:        msg.Status,
		Source:        msg.Source,
		PublicToken:   msg.PublicToken,
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Консьюмер может перечитать сообщение после рестарта.
	for _, existing := range f.requests {
		if existing.ID == r.ID {
			return
		}
	}
	f.requests = append([]*models.Request{r}, f.requests...)
}

func (f *Feed) applyStatusChanged(msg messages.RequestStatusChanged) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, r := range f.requests {
		if r.ID == msg.RequestID {
			updated := *r
			updated.Status = msg.Status
			f.requests[i] = &updated
			return
		}
	}
	f.logger.Warn("feed: status change for unknown request", "request_id", msg.RequestID)
}

// Snapshot возвращает копию текущего списка (новые в начале).
func (f *Feed) Snapshot() []*models.Request {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]*models.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// MarkError фиксирует сбой подписки. Снимок не сбрасывается:
// админка продолжает показывать последние данные с баннером.
func (f *Feed) MarkError(err error) {
	f.mu.Lock()
	f.lastErr = err
	f.mu.Unlock()
}

// Err возвращает последнюю ошибку подписки, если она не снята.
func (f *Feed) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

func (f *Feed) Loaded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loaded
}
