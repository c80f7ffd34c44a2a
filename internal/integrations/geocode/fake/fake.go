package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/ambunow/ambugo-app/internal/integrations/geocode"
)

// FakeClient это детерминированная заглушка провайдера карт для локальной
// разработки и тестов (без ключа API). Координаты выводятся из hash текста.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Geocode(ctx context.Context, text string) (geocode.Point, bool, error) {
	if strings.TrimSpace(text) == "" {
		return geocode.Point{}, false, nil
	}
	lat, lng := coords(text)
	return geocode.Point{Text: text, Lat: lat, Lng: lng}, true, nil
}

func (f *FakeClient) ReverseGeocode(ctx context.Context, lat, lng float64) (string, bool, error) {
	return fmt.Sprintf("%.6f, %.6f", lat, lng), true, nil
}

func (f *FakeClient) Suggestions(ctx context.Context, input string) ([]geocode.Suggestion, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	return []geocode.Suggestion{
		{Description: input + ", Αθήνα", PlaceID: "fake-" + hashStr(input) + "-1"},
		{Description: input + ", Θεσσαλονίκη", PlaceID: "fake-" + hashStr(input) + "-2"},
	}, nil
}

func (f *FakeClient) PlaceDetails(ctx context.Context, placeID string) (geocode.Point, error) {
	lat, lng := coords(placeID)
	return geocode.Point{Text: placeID, Lat: lat, Lng: lng}, nil
}

// Примерно в границах Греции, чтобы демо-данные выглядели правдоподобно.
func coords(s string) (float64, float64) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	v := h.Sum32()
	lat := 35.0 + float64(v%5000)/1000.0
	lng := 20.0 + float64((v/5000)%8000)/1000.0
	return lat, lng
}

func hashStr(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}
