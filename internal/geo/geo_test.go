package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var colosseum = Position{Latitude: 41.890251, Longitude: 12.492373}

func TestFormatAddress(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		want string
	}{
		{
			name: "all parts",
			addr: Address{FeatureName: "Colosseo", SubLocality: "Monti", Locality: "Roma", AdminArea: "Lazio"},
			want: "at Colosseo, Monti, Roma, Lazio",
		},
		{
			name: "no admin area keeps no trailing separator",
			addr: Address{Locality: "Roma"},
			want: "Roma",
		},
		{
			name: "blank parts skipped",
			addr: Address{FeatureName: "  ", Locality: "Roma", AdminArea: "Lazio"},
			want: "Roma, Lazio",
		},
		{
			name: "address line fallback",
			addr: Address{AddressLine: "Piazza del Colosseo, 00184 Roma RM"},
			want: "Piazza del Colosseo, 00184 Roma RM",
		},
		{
			name: "coordinates fallback",
			addr: Address{},
			want: "41.890251, 12.492373",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAddress(tt.addr, colosseum))
		})
	}
}

type fakeGeocoder struct {
	addresses []Address
	err       error
}

func (f fakeGeocoder) Reverse(context.Context, Position) ([]Address, error) {
	return f.addresses, f.err
}

type blockingProvider struct{}

func (blockingProvider) Position(ctx context.Context) (Position, error) {
	<-ctx.Done()
	return Position{}, ctx.Err()
}

func TestLocatorDescribe(t *testing.T) {
	pos := NewFixedPosition(&colosseum)

	got, err := NewLocator(pos, fakeGeocoder{addresses: []Address{{Locality: "Roma"}}}, 0).Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Roma", got)

	got, err = NewLocator(pos, fakeGeocoder{err: errors.New("offline")}, 0).Describe(context.Background())
	require.NoError(t, err, "geocoding failures fall back to coordinates")
	assert.Equal(t, "Location: 41.890251, 12.492373", got)

	got, err = NewLocator(pos, fakeGeocoder{}, 0).Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Location: 41.890251, 12.492373", got)

	got, err = NewLocator(pos, nil, 0).Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Location: 41.890251, 12.492373", got)
}

func TestLocatorErrors(t *testing.T) {
	_, err := NewLocator(NewFixedPosition(nil), nil, 0).Describe(context.Background())
	assert.ErrorIs(t, err, PermissionDenied)
	assert.ErrorIs(t, err, LocationError)

	start := time.Now()
	_, err = NewLocator(blockingProvider{}, nil, 20*time.Millisecond).Describe(context.Background())
	assert.ErrorIs(t, err, TimedOut)
	assert.ErrorIs(t, err, LocationError)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNominatimReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "41.890251", r.URL.Query().Get("lat"))
		assert.Equal(t, "12.492373", r.URL.Query().Get("lon"))
		assert.Equal(t, "landmarkcam-test", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "Colosseo",
			"display_name": "Colosseo, Piazza del Colosseo, Monti, Roma, Lazio, Italia",
			"address": {"tourism": "Colosseo", "suburb": "Monti", "city": "Roma", "state": "Lazio"}
		}`))
	}))
	defer srv.Close()

	addrs, err := NewNominatim(srv.URL+"/", "landmarkcam-test", srv.Client()).Reverse(context.Background(), colosseum)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, "at Colosseo, Monti, Roma, Lazio", FormatAddress(addrs[0], colosseum))
}

func TestNominatimNoAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": "Unable to geocode"}`))
	}))
	defer srv.Close()

	addrs, err := NewNominatim(srv.URL, "t", nil).Reverse(context.Background(), colosseum)
	require.NoError(t, err)
	assert.Empty(t, addrs)
}

func TestNominatimHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewNominatim(srv.URL, "t", nil).Reverse(context.Background(), colosseum)
	assert.Error(t, err)
}
