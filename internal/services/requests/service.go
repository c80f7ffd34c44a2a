package requests

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ambunow/ambugo-app/internal/broker/messages"
	"github.com/ambunow/ambugo-app/internal/cache"
	"github.com/ambunow/ambugo-app/internal/integrations/geocode"
	"github.com/ambunow/ambugo-app/internal/models"
	"github.com/ambunow/ambugo-app/internal/token"
)

// ErrValidation помечает ошибки пользовательского ввода,
// чтобы HTTP-слой отвечал 400 вместо 500.
var ErrValidation = errors.New("invalid input")

type Repository interface {
	CreateRequest(ctx context.Context, in models.RequestCreateInput) (*models.Request, error)
	GetByToken(ctx context.Context, publicToken string) (*models.Request, error)
	UpdateStatus(ctx context.Context, id uint64, status string) (*models.Request, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Config struct {
	SourceTag          string
	CreatedTopic       string
	StatusChangedTopic string
	LookupCacheTTL     time.Duration
}

type Service struct {
	repo     Repository
	geo      geocode.Client
	producer Publisher
	tokens   *token.Generator
	cache    cache.BytesCache
	cfg      Config
	logger   *slog.Logger
}

func New(repo Repository, geo geocode.Client, producer Publisher, tokens *token.Generator, c cache.BytesCache, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		geo:      geo,
		producer: producer,
		tokens:   tokens,
		cache:    c,
		cfg:      cfg,
		logger:   logger,
	}
}

type SubmitInput struct {
	PickupText string
	DestText   string
	PickupLat  *float64
	PickupLng  *float64
	DestLat    *float64
	DestLng    *float64

	Date     string
	TimeFrom *string
	TimeTo   *string

	AmbulanceType string
	IsEmergency   bool

	Email    *string
	FullName *string
	Phone    *string
	Comments *string
}

// Submit проверяет заявку, дорезолвивает координаты, пишет в базу и
// публикует событие. Геокодинг и публикация не блокируют подачу:
// их сбои только логируются.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Request, error) {
	in.PickupText = strings.TrimSpace(in.PickupText)
	in.DestText = strings.TrimSpace(in.DestText)
	in.Date = strings.TrimSpace(in.Date)
	in.Email = trimOpt(in.Email)
	in.FullName = trimOpt(in.FullName)
	in.Phone = trimOpt(in.Phone)
	in.Comments = trimOpt(in.Comments)
	in.TimeFrom = trimOpt(in.TimeFrom)
	in.TimeTo = trimOpt(in.TimeTo)

	if in.PickupText == "" {
		return nil, errors.Wrap(ErrValidation, "pickup address is required")
	}
	if in.DestText == "" {
		return nil, errors.Wrap(ErrValidation, "destination address is required")
	}
	if in.Date == "" {
		return nil, errors.Wrap(ErrValidation, "date is required")
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return nil, errors.Wrap(ErrValidation, "date must be YYYY-MM-DD")
	}
	if !models.ValidAmbulanceType(in.AmbulanceType) {
		return nil, errors.Wrap(ErrValidation, "unknown ambulance type")
	}
	if in.Email == nil || !strings.Contains(*in.Email, "@") {
		return nil, errors.Wrap(ErrValidation, "email is required")
	}
	for _, tv := range []*string{in.TimeFrom, in.TimeTo} {
		if tv == nil {
			continue
		}
		if _, err := time.Parse("15:04", *tv); err != nil {
			return nil, errors.Wrap(ErrValidation, "time must be HH:MM")
		}
	}

	// Координаты с клиента (выбор из подсказок) имеют приоритет;
	// геокодим только то, чего не хватает.
	s.fillCoords(ctx, in.PickupText, &in.PickupLat, &in.PickupLng)
	s.fillCoords(ctx, in.DestText, &in.DestLat, &in.DestLng)

	created, err := s.repo.CreateRequest(ctx, models.RequestCreateInput{
		PickupText:    in.PickupText,
		DestText:      in.DestText,
		PickupLat:     in.PickupLat,
		PickupLng:     in.PickupLng,
		DestLat:       in.DestLat,
		DestLng:       in.DestLng,
		Date:          in.Date,
		TimeFrom:      in.TimeFrom,
		TimeTo:        in.TimeTo,
		AmbulanceType: in.AmbulanceType,
		IsEmergency:   in.IsEmergency,
		Email:         in.Email,
		FullName:      in.FullName,
		Phone:         in.Phone,
		Comments:      in.Comments,
		Source:        s.cfg.SourceTag,
		PublicToken:   s.tokens.Token(),
	})
	if err != nil {
		return nil, err
	}

	s.publishCreated(ctx, created)
	return created, nil
}

func (s *Service) fillCoords(ctx context.Context, text string, lat, lng **float64) {
	if *lat != nil && *lng != nil {
		return
	}
	if s.geo == nil {
		return
	}

	p, found, err := s.geo.Geocode(ctx, text)
	if err != nil {
		s.logger.Warn("geocode failed", "error", err.Error())
		return
	}
	if !found {
		return
	}
	*lat = &p.Lat
	*lng = &p.Lng
}

func (s *Service) publishCreated(ctx context.Context, r *models.Request) {
	if s.producer == nil {
		return
	}

	msg := messages.RequestCreated{
		MessageID:     uuid.NewString(),
		RequestID:     r.ID,
		CreatedAt:     r.CreatedAt,
		PickupText:    r.PickupText,
		DestText:      r.DestText,
		PickupLat:     r.PickupLat,
		PickupLng:     r.PickupLng,
		DestLat:       r.DestLat,
		DestLng:       r.DestLng,
		Date:          r.Date,
		TimeFrom:      r.TimeFrom,
		TimeTo:        r.TimeTo,
		AmbulanceType: r.AmbulanceType,
		IsEmergency:   r.IsEmergency,
		Email:         r.Email,
		FullName:      r.FullName,
		Phone:         r.Phone,
		Comments:      r.Comments,
		Status:        r.Status,
		Source:        r.Source,
		PublicToken:   r.PublicToken,
	}
	b, _ := json.Marshal(msg)
	key := []byte(strconv.FormatUint(r.ID, 10))
	if err := s.producer.Publish(ctx, s.cfg.CreatedTopic, key, b); err != nil {
		s.logger.Error("publish request.created failed", "request_id", r.ID, "error", err.Error())
	}
}

// ChangeStatus переводит заявку в новый статус. Порядок переходов не
// проверяется: админ волен двигать статус в любую сторону.
func (s *Service) ChangeStatus(ctx context.Context, id uint64, status string) (*models.Request, error) {
	if id == 0 {
		return nil, errors.Wrap(ErrValidation, "request id is required")
	}
	if !models.ValidStatus(status) {
		return nil, errors.Wrap(ErrValidation, "unknown status")
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	// Обновляем кэш публичной страницы, чтобы смена статуса была
	// видна по токену сразу, а не после истечения TTL.
	s.cacheView(ctx, updated)

	if s.producer != nil {
		b, _ := json.Marshal(messages.RequestStatusChanged{
			MessageID: uuid.NewString(),
			RequestID: updated.ID,
			Status:    updated.Status,
			ChangedAt: time.Now().UTC(),
		})
		key := []byte(strconv.FormatUint(updated.ID, 10))
		if err := s.producer.Publish(ctx, s.cfg.StatusChangedTopic, key, b); err != nil {
			s.logger.Error("publish status change failed", "request_id", updated.ID, "error", err.Error())
		}
	}

	return updated, nil
}

// Offer зарезервирован под предложения перевозчиков на публичной
// странице. Пока список всегда пуст.
type Offer struct {
	Company string `json:"company"`
	Price   string `json:"price"`
	Note    string `json:"note,omitempty"`
}

// PublicView это то, что видит получатель ссылки /r/<token>.
// Контакты и свободный текст подставляются прочерком, если пусты.
type PublicView struct {
	PickupText string `json:"pickup_text"`
	DestText   string `json:"dest_text"`

	Date       string `json:"date"`
	TimeWindow string `json:"time_window"`

	AmbulanceType      string `json:"ambulance_type"`
	AmbulanceTypeLabel string `json:"ambulance_type_label"`
	IsEmergency        bool   `json:"is_emergency"`

	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`

	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Comments string `json:"comments"`

	CreatedAt time.Time `json:"created_at"`
	Offers    []Offer   `json:"offers"`
}

// LookupByToken резолвит публичный токен в представление заявки.
// Читает сквозь redis: кэш необязателен, его сбои игнорируются.
func (s *Service) LookupByToken(ctx context.Context, publicToken string) (*PublicView, error) {
	publicToken = strings.TrimSpace(publicToken)
	if publicToken == "" {
		return nil, errors.Wrap(ErrValidation, "token is required")
	}

	if s.cache != nil && s.cfg.LookupCacheTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, viewKey(publicToken)); err == nil && ok {
			var v PublicView
			if json.Unmarshal(b, &v) == nil {
				return &v, nil
			}
		}
	}

	r, err := s.repo.GetByToken(ctx, publicToken)
	if err != nil {
		return nil, err
	}

	v := buildView(r)
	s.cacheView(ctx, r)
	return v, nil
}

func (s *Service) cacheView(ctx context.Context, r *models.Request) {
	if s.cache == nil || s.cfg.LookupCacheTTL <= 0 {
		return
	}
	b, _ := json.Marshal(buildView(r))
	_ = s.cache.Set(ctx, viewKey(r.PublicToken), b, s.cfg.LookupCacheTTL)
}

func buildView(r *models.Request) *PublicView {
	status := r.Status
	if status == "" {
		status = models.RequestStatusPending
	}

	return &PublicView{
		PickupText:         r.PickupText,
		DestText:           r.DestText,
		Date:               r.Date,
		TimeWindow:         timeWindow(r.TimeFrom, r.TimeTo),
		AmbulanceType:      r.AmbulanceType,
		AmbulanceTypeLabel: models.AmbulanceTypeLabel[r.AmbulanceType],
		IsEmergency:        r.IsEmergency,
		Status:             status,
		StatusLabel:        models.StatusLabel[status],
		FullName:           orDash(r.FullName),
		Phone:              orDash(r.Phone),
		Email:              orDash(r.Email),
		Comments:           orDash(r.Comments),
		CreatedAt:          r.CreatedAt,
		Offers:             []Offer{},
	}
}

func timeWindow(from, to *string) string {
	switch {
	case from != nil && to != nil:
		return fmt.Sprintf("%s - %s", *from, *to)
	case from != nil:
		return *from
	case to != nil:
		return *to
	}
	return "-"
}

func orDash(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

func trimOpt(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func viewKey(publicToken string) string {
	return fmt.Sprintf("request:view:%s", publicToken)
}
