package geo

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Nominatim is a ReverseGeocoder backed by an OpenStreetMap Nominatim server.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewNominatim(baseURL, userAgent string, client *http.Client) *Nominatim {
	if client == nil {
		client = http.DefaultClient
	}
	return &Nominatim{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
		client:    client,
	}
}

type nominatimReply struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

func (n *Nominatim) Reverse(ctx context.Context, pos Position) ([]Address, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(pos.Latitude, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(pos.Longitude, 'f', 6, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build geocoding request")
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "geocoding request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("geocoder answered %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read geocoding reply")
	}

	var reply nominatimReply
	if err := sonic.Unmarshal(body, &reply); err != nil {
		return nil, errors.Wrap(err, "failed to decode geocoding reply")
	}
	if reply.Error != "" {
		// "Unable to geocode" means open sea or similar; there is simply no address.
		return nil, nil
	}

	return []Address{reply.address()}, nil
}

func (r nominatimReply) address() Address {
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := r.Address[k]; v != "" {
				return v
			}
		}
		return ""
	}

	return Address{
		FeatureName: r.Name,
		SubLocality: first("suburb", "neighbourhood", "quarter", "city_district"),
		Locality:    first("city", "town", "village", "municipality"),
		AdminArea:   first("state", "region", "county"),
		AddressLine: r.DisplayName,
	}
}
