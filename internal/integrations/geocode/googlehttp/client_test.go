package googlehttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeocode_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		require.Equal(t, "Ευαγγελισμός, Αθήνα", r.URL.Query().Get("address"))
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"formatted_address": "Νοσοκομείο Ευαγγελισμός, Αθήνα 106 76",
				"geometry": {"location": {"lat": 37.9755, "lng": 23.7458}}
			}]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "gr")
	p, found, err := c.Geocode(context.Background(), "Ευαγγελισμός, Αθήνα")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Νοσοκομείο Ευαγγελισμός, Αθήνα 106 76", p.Text)
	require.Equal(t, 37.9755, p.Lat)
	require.Equal(t, 23.7458, p.Lng)
}

func TestGeocode_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "")
	_, found, err := c.Geocode(context.Background(), "asdfgh")
	require.NoError(t, err)
	require.False(t, found)
}

func TestGeocode_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "")
	_, _, err := c.Geocode(context.Background(), "x")
	require.Error(t, err)
}

func TestReverseGeocode_SkipsPlusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.URL.Query().Get("latlng"))
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [
				{"formatted_address": "8Q7X+FV Αθήνα", "geometry": {"location": {"lat": 1, "lng": 2}}},
				{"formatted_address": "Λεωφ. Κηφισίας 10, Μαρούσι", "geometry": {"location": {"lat": 1, "lng": 2}}}
			]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "gr")
	text, found, err := c.ReverseGeocode(context.Background(), 38.05, 23.8)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Λεωφ. Κηφισίας 10, Μαρούσι", text)
}

func TestReverseGeocode_OnlyPlusCodeResultsFallBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [{"formatted_address": "8Q7X+FV Αθήνα", "geometry": {"location": {"lat": 1, "lng": 2}}}]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "")
	text, found, err := c.ReverseGeocode(context.Background(), 38.05, 23.8)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "8Q7X+FV Αθήνα", text)
}

func TestSuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/maps/api/place/autocomplete/json", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"predictions": [
				{"description": "Μαρούσι, Ελλάδα", "place_id": "p1"},
				{"description": "Μαρούπολη", "place_id": "p2"}
			]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "gr")
	out, err := c.Suggestions(context.Background(), "Μαρ")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "Μαρούσι, Ελλάδα", out[0].Description)
	require.Equal(t, "p1", out[0].PlaceID)
}

func TestPlaceDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/maps/api/place/details/json", r.URL.Path)
		require.Equal(t, "p1", r.URL.Query().Get("place_id"))
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"result": {
				"formatted_address": "Μαρούσι 151 24, Ελλάδα",
				"geometry": {"location": {"lat": 38.0561, "lng": 23.8042}}
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "")
	p, err := c.PlaceDetails(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "Μαρούσι 151 24, Ελλάδα", p.Text)
	require.Equal(t, 38.0561, p.Lat)
}

func TestContainsPlusCode(t *testing.T) {
	require.True(t, containsPlusCode("8Q7X+FV Αθήνα"))
	require.False(t, containsPlusCode("Λεωφ. Κηφισίας 10"))
	require.False(t, containsPlusCode("C+C Market, Αθήνα"))
}
