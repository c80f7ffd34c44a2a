package googlehttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ambunow/ambugo-app/internal/integrations/geocode"
	"github.com/pkg/errors"
)

// Client talks to the Google Maps Web Service JSON endpoints
// (geocoding, place autocomplete, place details).
type Client struct {
	baseURL string
	apiKey  string
	region  string
	httpc   *http.Client
}

func New(baseURL, apiKey, region string) *Client {
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		region:  region,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type geocodeResp struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (c *Client) Geocode(ctx context.Context, text string) (geocode.Point, bool, error) {
	q := url.Values{}
	q.Set("address", text)
	var r geocodeResp
	if err := c.getJSON(ctx, "/maps/api/geocode/json", q, &r); err != nil {
		return geocode.Point{}, false, err
	}
	if r.Status == "ZERO_RESULTS" || len(r.Results) == 0 {
		return geocode.Point{}, false, nil
	}
	if r.Status != "OK" {
		return geocode.Point{}, false, fmt.Errorf("geocode status=%s", r.Status)
	}

	res := r.Results[0]
	return geocode.Point{
		Text: res.FormattedAddress,
		Lat:  res.Geometry.Location.Lat,
		Lng:  res.Geometry.Location.Lng,
	}, true, nil
}

func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, bool, error) {
	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%f,%f", lat, lng))
	var r geocodeResp
	if err := c.getJSON(ctx, "/maps/api/geocode/json", q, &r); err != nil {
		return "", false, err
	}
	if r.Status == "ZERO_RESULTS" || len(r.Results) == 0 {
		return "", false, nil
	}
	if r.Status != "OK" {
		return "", false, fmt.Errorf("reverse geocode status=%s", r.Status)
	}

	// Предпочитаем адрес без plus-code: "8Q7X+FV Αθήνα" бесполезен водителю.
	for _, res := range r.Results {
		if res.FormattedAddress != "" && !containsPlusCode(res.FormattedAddress) {
			return res.FormattedAddress, true, nil
		}
	}
	return r.Results[0].FormattedAddress, r.Results[0].FormattedAddress != "", nil
}

type autocompleteResp struct {
	Status      string `json:"status"`
	Predictions []struct {
		Description string `json:"description"`
		PlaceID     string `json:"place_id"`
	} `json:"predictions"`
}

func (c *Client) Suggestions(ctx context.Context, input string) ([]geocode.Suggestion, error) {
	q := url.Values{}
	q.Set("input", input)
	var r autocompleteResp
	if err := c.getJSON(ctx, "/maps/api/place/autocomplete/json", q, &r); err != nil {
		return nil, err
	}
	if r.Status == "ZERO_RESULTS" {
		return nil, nil
	}
	if r.Status != "OK" {
		return nil, fmt.Errorf("autocomplete status=%s", r.Status)
	}

	out := make([]geocode.Suggestion, 0, len(r.Predictions))
	for _, p := range r.Predictions {
		out = append(out, geocode.Suggestion{Description: p.Description, PlaceID: p.PlaceID})
	}
	return out, nil
}

type detailsResp struct {
	Status string `json:"status"`
	Result struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

func (c *Client) PlaceDetails(ctx context.Context, placeID string) (geocode.Point, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "formatted_address,geometry")
	var r detailsResp
	if err := c.getJSON(ctx, "/maps/api/place/details/json", q, &r); err != nil {
		return geocode.Point{}, err
	}
	if r.Status != "OK" {
		return geocode.Point{}, fmt.Errorf("place details status=%s", r.Status)
	}
	return geocode.Point{
		Text: r.Result.FormattedAddress,
		Lat:  r.Result.Geometry.Location.Lat,
		Lng:  r.Result.Geometry.Location.Lng,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path = path

	q.Set("key", c.apiKey)
	if c.region != "" {
		q.Set("region", c.region)
	}
	q.Set("language", "el")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("maps api http %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}

// containsPlusCode обнаруживает open-location-code в начале адреса
// ("8Q7X+FV Αθήνα" и т.п.).
func containsPlusCode(addr string) bool {
	first := addr
	if i := strings.IndexByte(addr, ' '); i > 0 {
		first = addr[:i]
	}
	plus := strings.IndexByte(first, '+')
	if plus < 2 || plus > len(first)-2 {
		return false
	}
	for _, c := range first {
		if c == '+' {
			continue
		}
		if !strings.ContainsRune("23456789CFGHJMPQRVWX", c) {
			return false
		}
	}
	return true
}
