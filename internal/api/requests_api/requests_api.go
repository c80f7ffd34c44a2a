package requests_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/ambunow/ambugo-app/internal/integrations/geocode"
	"github.com/ambunow/ambugo-app/internal/models"
	"github.com/ambunow/ambugo-app/internal/services/feed"
	"github.com/ambunow/ambugo-app/internal/services/listview"
	"github.com/ambunow/ambugo-app/internal/services/requests"
	"github.com/ambunow/ambugo-app/internal/services/suggest"
	"github.com/ambunow/ambugo-app/internal/storage/pgrequest"
)

// RateLimiter прикрывает публичные ручки. nil = без ограничений.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Config struct {
	SubmitLimitPerMinute  int64
	SuggestLimitPerMinute int64
}

type API struct {
	svc     *requests.Service
	feed    *feed.Feed
	suggest *suggest.Service
	geo     geocode.Client
	limiter RateLimiter
	cfg     Config
	logger  *slog.Logger

	// now подменяется в тестах, чтобы фильтры today/yesterday были
	// детерминированными.
	now func() time.Time

	// inFlight защищает от повторной смены статуса одной заявки,
	// пока первый запрос ещё не завершился.
	mu       sync.Mutex
	inFlight map[uint64]struct{}
}

func New(svc *requests.Service, f *feed.Feed, sg *suggest.Service, geo geocode.Client, limiter RateLimiter, cfg Config, logger *slog.Logger) *API {
	return &API{
		svc:      svc,
		feed:     f,
		suggest:  sg,
		geo:      geo,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		inFlight: map[uint64]struct{}{},
	}
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/requests", a.handleSubmit)
		r.Get("/requests", a.handleList)
		r.Patch("/requests/{id}/status", a.handleChangeStatus)
		r.Get("/r/{token}", a.handleLookup)
		r.Get("/suggest", a.handleSuggest)
		r.Get("/geocode/reverse", a.handleReverseGeocode)
	})

	return r
}

type submitRequest struct {
	PickupText string   `json:"pickup_text"`
	DestText   string   `json:"dest_text"`
	PickupLat  *float64 `json:"pickup_lat"`
	PickupLng  *float64 `json:"pickup_lng"`
	DestLat    *float64 `json:"dest_lat"`
	DestLng    *float64 `json:"dest_lng"`

	Date     string  `json:"date"`
	TimeFrom *string `json:"time_from"`
	TimeTo   *string `json:"time_to"`

	AmbulanceType string `json:"ambulance_type"`
	IsEmergency   bool   `json:"is_emergency"`

	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Comments *string `json:"comments"`
}

type submitResponse struct {
	ID          uint64    `json:"id"`
	PublicToken string    `json:"public_token"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !a.allow(r, "rl:submit:", a.cfg.SubmitLimitPerMinute) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	created, err := a.svc.Submit(r.Context(), requests.SubmitInput{
		PickupText:    req.PickupText,
		DestText:      req.DestText,
		PickupLat:     req.PickupLat,
		PickupLng:     req.PickupLng,
		DestLat:       req.DestLat,
		DestLng:       req.DestLng,
		Date:          req.Date,
		TimeFrom:      req.TimeFrom,
		TimeTo:        req.TimeTo,
		AmbulanceType: req.AmbulanceType,
		IsEmergency:   req.IsEmergency,
		Email:         req.Email,
		FullName:      req.FullName,
		Phone:         req.Phone,
		Comments:      req.Comments,
	})
	if err != nil {
		if errors.Is(err, requests.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error("submit failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		ID:          created.ID,
		PublicToken: created.PublicToken,
		Status:      created.Status,
		CreatedAt:   created.CreatedAt,
	})
}

type listItem struct {
	ID uint64 `json:"id"`

	PickupText string `json:"pickup_text"`
	DestText   string `json:"dest_text"`

	Date     string  `json:"date"`
	TimeFrom *string `json:"time_from,omitempty"`
	TimeTo   *string `json:"time_to,omitempty"`

	AmbulanceType string `json:"ambulance_type"`
	IsEmergency   bool   `json:"is_emergency"`

	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Comments *string `json:"comments,omitempty"`

	Status      string    `json:"status"`
	PublicToken string    `json:"public_token"`
	CreatedAt   time.Time `json:"created_at"`
}

type listResponse struct {
	Requests []listItem `json:"requests"`
	Empty    bool       `json:"empty"`
	NoMatch  bool       `json:"no_match"`
	Banner   string     `json:"banner,omitempty"`
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := listview.DefaultFilters()
	if v := q.Get("status"); v != "" {
		if v != listview.FilterAll && !models.ValidStatus(v) {
			writeError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		f.Status = v
	}
	if v := q.Get("emergency"); v != "" {
		switch v {
		case listview.FilterAll, listview.EmergencyOnly, listview.NonEmergencyOnly:
			f.Emergency = v
		default:
			writeError(w, http.StatusBadRequest, "unknown emergency filter")
			return
		}
	}
	if v := q.Get("date"); v != "" {
		switch v {
		case listview.DateToday, listview.DateYesterday, listview.DateAll, listview.DateRange:
			f.DateFilter = v
		default:
			writeError(w, http.StatusBadRequest, "unknown date filter")
			return
		}
	}
	f.DateFrom = q.Get("date_from")
	f.DateTo = q.Get("date_to")
	if v := q.Get("sort"); v == listview.SortAsc {
		f.SortDir = listview.SortAsc
	}

	now := a.now()
	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")

	res := listview.View(a.feed.Snapshot(), f, today, yesterday)

	out := listResponse{
		Requests: make([]listItem, 0, len(res.Requests)),
		Empty:    res.Empty,
		NoMatch:  res.NoMatch,
	}
	for _, req := range res.Requests {
		status := req.Status
		if status == "" {
			status = models.RequestStatusPending
		}
		out.Requests = append(out.Requests, listItem{
			ID:            req.ID,
			PickupText:    req.PickupText,
			DestText:      req.DestText,
			Date:          req.Date,
			TimeFrom:      req.TimeFrom,
			TimeTo:        req.TimeTo,
			AmbulanceType: req.AmbulanceType,
			IsEmergency:   req.IsEmergency,
			Email:         req.Email,
			FullName:      req.FullName,
			Phone:         req.Phone,
			Comments:      req.Comments,
			Status:        status,
			PublicToken:   req.PublicToken,
			CreatedAt:     req.CreatedAt,
		})
	}
	if err := a.feed.Err(); err != nil {
		// Показываем последние данные с предупреждением, не 500.
		out.Banner = "live updates unavailable"
	}

	writeJSON(w, http.StatusOK, out)
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if !a.beginStatusChange(id) {
		writeError(w, http.StatusConflict, "status change already in progress")
		return
	}
	defer a.endStatusChange(id)

	updated, err := a.svc.ChangeStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, requests.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, pgrequest.ErrNotFound):
			writeError(w, http.StatusNotFound, "request not found")
		default:
			a.logger.Error("status change failed", "request_id", id, "error", err.Error())
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     updated.ID,
		"status": updated.Status,
	})
}

func (a *API) beginStatusChange(id uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inFlight[id]; busy {
		return false
	}
	a.inFlight[id] = struct{}{}
	return true
}

func (a *API) endStatusChange(id uint64) {
	a.mu.Lock()
	delete(a.inFlight, id)
	a.mu.Unlock()
}

func (a *API) handleLookup(w http.ResponseWriter, r *http.Request) {
	view, err := a.svc.LookupByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		switch {
		case errors.Is(err, pgrequest.ErrNotFound), errors.Is(err, requests.ErrValidation):
			writeError(w, http.StatusNotFound, "request not found")
		default:
			a.logger.Error("lookup failed", "error", err.Error())
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type suggestResponse struct {
	Seq         uint64           `json:"seq"`
	Suggestions []suggestionItem `json:"suggestions"`
}

type suggestionItem struct {
	Description string `json:"description"`
	PlaceID     string `json:"place_id"`
}

func (a *API) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if !a.allow(r, "rl:suggest:", a.cfg.SuggestLimitPerMinute) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	q := r.URL.Query()
	seq, _ := strconv.ParseUint(q.Get("seq"), 10, 64)

	res, err := a.suggest.Suggest(r.Context(), q.Get("input"), seq)
	if err != nil {
		a.logger.Error("suggest failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := suggestResponse{Seq: res.Seq, Suggestions: make([]suggestionItem, 0, len(res.Suggestions))}
	for _, s := range res.Suggestions {
		out.Suggestions = append(out.Suggestions, suggestionItem{Description: s.Description, PlaceID: s.PlaceID})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}

	text, found, err := a.geo.ReverseGeocode(r.Context(), lat, lng)
	if err != nil {
		a.logger.Error("reverse geocode failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "address not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allow проверяет лимит по IP. Сбой редиса не блокирует запрос.
func (a *API) allow(r *http.Request, prefix string, limit int64) bool {
	if a.limiter == nil || limit <= 0 {
		return true
	}
	ok, _, err := a.limiter.Allow(r.Context(), prefix+clientIP(r), limit, time.Minute)
	if err != nil {
		a.logger.Warn("rate limiter unavailable", "error", err.Error())
		return true
	}
	return ok
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
