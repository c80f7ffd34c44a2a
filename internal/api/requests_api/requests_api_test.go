package requests_api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ambunow/ambugo-app/internal/integrations/geocode"
	"github.com/ambunow/ambugo-app/internal/models"
	"github.com/ambunow/ambugo-app/internal/services/feed"
	"github.com/ambunow/ambugo-app/internal/services/requests"
	"github.com/ambunow/ambugo-app/internal/services/suggest"
	"github.com/ambunow/ambugo-app/internal/storage/pgrequest"
	"github.com/ambunow/ambugo-app/internal/token"
)

type fakeRepo struct {
	mu       sync.Mutex
	nextID   uint64
	requests []*models.Request

	onUpdate func()
}

func (f *fakeRepo) CreateRequest(_ context.Context, in models.RequestCreateInput) (*models.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	r := &models.Request{
		ID:            f.nextID,
		PickupText:    in.PickupText,
		DestText:      in.DestText,
		Date:          in.Date,
		TimeFrom:      in.TimeFrom,
		TimeTo:        in.TimeTo,
		AmbulanceType: in.AmbulanceType,
		IsEmergency:   in.IsEmergency,
		Email:         in.Email,
		FullName:      in.FullName,
		Phone:         in.Phone,
		Comments:      in.Comments,
		CreatedAt:     time.Now().UTC(),
		Status:        models.RequestStatusPending,
		Source:        in.Source,
		PublicToken:   in.PublicToken,
	}
	f.requests = append([]*models.Request{r}, f.requests...)
	return r, nil
}

func (f *fakeRepo) ListRequests(_ context.Context) ([]*models.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Request{}, f.requests...), nil
}

func (f *fakeRepo) GetByToken(_ context.Context, publicToken string) (*models.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.PublicToken == publicToken {
			return r, nil
		}
	}
	return nil, pgrequest.ErrNotFound
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uint64, status string) (*models.Request, error) {
	if f.onUpdate != nil {
		f.onUpdate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.ID == id {
			r.Status = status
			return r, nil
		}
	}
	return nil, pgrequest.ErrNotFound
}

type fakeGeo struct {
	suggestions []geocode.Suggestion
	reverseText string
}

func (f *fakeGeo) Geocode(_ context.Context, _ string) (geocode.Point, bool, error) {
	return geocode.Point{Lat: 37.97, Lng: 23.73}, true, nil
}

func (f *fakeGeo) ReverseGeocode(_ context.Context, _, _ float64) (string, bool, error) {
	if f.reverseText == "" {
		return "", false, nil
	}
	return f.reverseText, true, nil
}

func (f *fakeGeo) Suggestions(_ context.Context, _ string) ([]geocode.Suggestion, error) {
	return f.suggestions, nil
}

func (f *fakeGeo) PlaceDetails(_ context.Context, _ string) (geocode.Point, error) {
	return geocode.Point{}, nil
}

type fakeLimiter struct {
	allowed bool
	keys    []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int64, _ time.Duration) (bool, int64, error) {
	f.keys = append(f.keys, key)
	return f.allowed, 1, nil
}

type env struct {
	api  *API
	repo *fakeRepo
	feed *feed.Feed
}

func newEnv(t *testing.T, geo geocode.Client, limiter RateLimiter) *env {
	t.Helper()

	repo := &fakeRepo{}
	svc := requests.New(repo, geo, nil, token.New(), nil, requests.Config{
		SourceTag:    "ambugo-web",
		CreatedTopic: "request.created",
	}, slog.Default())

	fd := feed.New(repo, "request.created", "request.status.changed", slog.Default())
	require.NoError(t, fd.Load(context.Background()))

	sg := suggest.New(geo, 3)

	api := New(svc, fd, sg, geo, limiter, Config{
		SubmitLimitPerMinute:  10,
		SuggestLimitPerMinute: 30,
	}, slog.Default())
	api.now = func() time.Time {
		return time.Date(2025, 7, 2, 12, 0, 0, 0, time.UTC)
	}
	return &env{api: api, repo: repo, feed: fd}
}

func (e *env) do(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	e.api.Routes().ServeHTTP(rec, req)
	return rec
}

func submitBody() map[string]any {
	return map[string]any{
		"pickup_text":    "Νοσοκομείο Ευαγγελισμός, Αθήνα",
		"dest_text":      "Μαρούσι",
		"date":           "2025-07-02",
		"ambulance_type": "basic",
		"is_emergency":   false,
		"email":          "maria@example.gr",
	}
}

func TestSubmit(t *testing.T) {
	e := newEnv(t, &fakeGeo{}, nil)

	rec := e.do(http.MethodPost, "/api/requests", submitBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID          uint64    `json:"id"`
		PublicToken string    `json:"public_token"`
		Status      string    `json:"status"`
		CreatedAt   time.Time `json:"created_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotZero(t, resp.ID)
	require.Len(t, resp.PublicToken, token.Length)
	require.Equal(t, models.RequestStatusPending, resp.Status)
	require.False(t, resp.CreatedAt.IsZero())
}

func TestSubmit_Validation(t *testing.T) {
	e := newEnv(t, &fakeGeo{}, nil)

	body := submitBody()
	body["pickup_text"] = "   "
	rec := e.do(http.MethodPost, "/api/requests", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "pickup address is required")
}

func TestSubmit_BadJSON(t *testing.T) {
	e := newEnv(t, &fakeGeo{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	e.api.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_RateLimited(t *testing.T) {
	limiter := &fakeLimiter{allowed: false}
	e := newEnv(t, &fakeGeo{}, limiter)

	rec := e.do(http.MethodPost, "/api/requests", submitBody())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Len(t, limiter.keys, 1)
	require.True(t, strings.HasPrefix(limiter.keys[0], "rl:submit:"))
}

func seed(e *env, t *testing.T) {
	t.Helper()
	cases := []struct {
		body map[string]any
	}{
		{map[string]any{"pickup_text": "A", "dest_text": "B", "date": "2025-07-02", "ambulance_type": "basic", "is_emergency": true, "email": "a@b.gr"}},
		{map[string]any{"pickup_text": "C", "dest_text": "D", "date": "2025-07-01", "ambulance_type": "icu", "is_emergency": false, "email": "c@d.gr"}},
		{map[string]any{"pickup_text": "E", "dest_text": "F", "date": "2025-06-01", "ambulance_type": "doctor", "is_emergency": false, "email": "e@f.gr"}},
	}
	for _, c := range cases {
		rec := e.do(http.MethodPost, "/api/requests", c.body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	require.NoError(t, e.feed.Load(context.Background()))
}

type listResp struct {
	Requests []struct {
		ID          uint64 `json:"id"`
		Status      string `json:"status"`
		IsEmergency bool   `json:"is_emergency"`
		Date        string `json:"date"`
	} `json:"requests"`
	Empty   bool   `json:"empty"`
	NoMatch bool   `json:"no_match"`
	Banner  string `json:"banner"`
}

func TestList(t *testing.T) {
	e := newEnv(t, &fakeGeo{}, nil)
	seed(e, t)

	rec := e.do(http.MethodGet, "/api/requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Requests, 3)
	require.False(t, resp.Empty)
	require.False(t, resp.NoMatch)
	// Новые первыми.
	require.Equal(t, uint64(3), resp.Requests[0].ID)
}

func TestList_Filters(t *testing.T) {
	e := newEnv(t, &fakeGeo{}, nil)
	seed(e, t)

	rec := e.do(http.MethodGet, "/api/requests?emergency=emergency", nil)
	var resp listResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Requests, 1)
	require.True(t, resp.Requests[0].IsEmergency)

	// today берётся из часов сервера (в тесте 2025-07-02).
	rec = e.do(http.MethodGet, "/api/requests?date=today", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Requests, 1)
	require.Equal(t, "2025-07-02", resp.Requests[0].Date)

	rec = e.do(http.MethodGet, "/api/requests?date=range&date_from=2025-07-01&date_to=2025-07-02", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Requests, 2)

	rec = e.do(http.MethodGet, "/api/requests?sort=asc", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, uint64(1), resp.Requests[0].ID)

	rec = e.do(http.MethodGet, "/api/requests?status=cancelled", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Requests)
	require.True(t, resp.NoMatch)
	require.False(t, resp.Empty)

	rec = e.do(http.MethodGet, "/api/requests?status=shipped", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestList_EmptyStore(t *testing.T) {
	e := newEnv(t, &fakeGeo{}, nil)

	rec := e.do(http.MethodGet, "/api/requests", nil)
	var resp listResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Empty)
	require.False(t, resp.NoMatch)
}

func TestList_BannerOnFeedError(t *testing.T) {
	e := newEnv(t, &fakeGeo{}, nil)
	seed(e, t)
	e.feed.MarkError(context.DeadlineExceeded)

	rec := e.do(http.MethodGet, "/api/requests", nil)
	var resp listResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Banner)
	// Данные остаются видимыми.
	require.Len(t, resp.Requests, 3)
}

func TestChangeStatus(t *testing.T) {
	e := newEnv(t, &fakeGeo{}, nil)
	seed(e, t)

	rec := e.do(http.MethodPatch, "/api/requests/1/status", map[string]string{"status": "booked"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"booked"`)

	rec = e.do(http.MethodPatch, "/api/requests/1/status", map[string]string{"status": "shipped"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPatch, "/api/requests/999/status", map[string]string{"status": "booked"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodPatch, "/api/requests/abc/status", map[string]string{"status": "booked"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangeStatus_ConflictWhileInFlight(t *testing.T) {
	e := newEnv(t, &fakeGeo{}, nil)
	seed(e, t)

	entered := make(chan struct{})
	release := make(chan struct{})
	e.repo.onUpdate = func() {
		close(entered)
		<-release
	}

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- e.do(http.MethodPatch, "/api/requests/1/status", map[string]string{"status": "booked"})
	}()

	<-entered
	e.repo.onUpdate = nil

	// Пока первый запрос висит в репозитории, второй получает 409.
	rec := e.do(http.MethodPatch, "/api/requests/1/status", map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	require.Equal(t, http.StatusOK, (<-done).Code)

	// После завершения заявка снова доступна для смены статуса.
	rec = e.do(http.MethodPatch, "/api/requests/1/status", map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLookup(t *testing.T) {
	e := newEnv(t, &fakeGeo{}, nil)

	rec := e.do(http.MethodPost, "/api/requests", submitBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		PublicToken string `json:"public_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = e.do(http.MethodGet, "/api/r/"+created.PublicToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		PickupText  string `json:"pickup_text"`
		StatusLabel string `json:"status_label"`
		Phone       string `json:"phone"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "Νοσοκομείο Ευαγγελισμός, Αθήνα", view.PickupText)
	require.Equal(t, "Σε αναμονή για προσφορές", view.StatusLabel)
	require.Equal(t, "-", view.Phone)

	rec = e.do(http.MethodGet, "/api/r/no-such-token", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuggest(t *testing.T) {
	geo := &fakeGeo{suggestions: []geocode.Suggestion{
		{Description: "Αθήνα, Ελλάδα", PlaceID: "p1"},
	}}
	e := newEnv(t, geo, nil)

	rec := e.do(http.MethodGet, "/api/suggest?input=%CE%91%CE%B8%CE%AE%CE%BD%CE%B1&seq=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Seq         uint64 `json:"seq"`
		Suggestions []struct {
			Description string `json:"description"`
			PlaceID     string `json:"place_id"`
		} `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, uint64(7), resp.Seq)
	require.Len(t, resp.Suggestions, 1)

	// Короткий ввод не ходит к провайдеру и отдаёт пустой список.
	rec = e.do(http.MethodGet, "/api/suggest?input=ab&seq=8", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, uint64(8), resp.Seq)
	require.Empty(t, resp.Suggestions)
}

func TestReverseGeocode(t *testing.T) {
	e := newEnv(t, &fakeGeo{reverseText: "Λεωφόρος Κηφισίας 10, Αθήνα"}, nil)

	rec := e.do(http.MethodGet, "/api/geocode/reverse?lat=37.97&lng=23.73", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Κηφισίας")

	rec = e.do(http.MethodGet, "/api/geocode/reverse?lat=x", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	e = newEnv(t, &fakeGeo{}, nil)
	rec = e.do(http.MethodGet, "/api/geocode/reverse?lat=1&lng=1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, &fakeGeo{}, nil)
	rec := e.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
