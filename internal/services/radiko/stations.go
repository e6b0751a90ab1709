package radiko

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const stationListURL = "https://radiko.jp/v3/station/list/%s.xml"

// Station describes one entry of an area's station registry.
type Station struct {
	ID     string
	Name   string
	AreaID string
}

// StationRegistry resolves and validates station identifiers for an area.
// Lookups are cached per instance; one registry serves one recording
// operation, so no cross-operation state is shared.
type StationRegistry struct {
	baseURL string
	client  *http.Client

	mu       sync.Mutex
	byAreaID map[string][]Station
}

// RegistryOption configures the station registry.
type RegistryOption func(*StationRegistry)

// WithRegistryBaseURL overrides the station list endpoint (used in tests).
// The URL must contain one %s placeholder for the area code.
func WithRegistryBaseURL(base string) RegistryOption {
	return func(r *StationRegistry) {
		if base != "" {
			r.baseURL = base
		}
	}
}

// WithRegistryHTTPClient supplies the HTTP client to use.
func WithRegistryHTTPClient(client *http.Client) RegistryOption {
	return func(r *StationRegistry) {
		if client != nil {
			r.client = client
		}
	}
}

// NewStationRegistry constructs a registry with the given timeout.
func NewStationRegistry(timeout time.Duration, opts ...RegistryOption) *StationRegistry {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	registry := &StationRegistry{
		baseURL:  stationListURL,
		client:   &http.Client{Timeout: timeout},
		byAreaID: make(map[string][]Station),
	}
	for _, opt := range opts {
		opt(registry)
	}
	return registry
}

type stationListXML struct {
	AreaID   string `xml:"area_id,attr"`
	Stations []struct {
		ID   string `xml:"id"`
		Name string `xml:"name"`
	} `xml:"station"`
}

// Stations returns the station registry for an area.
func (r *StationRegistry) Stations(ctx context.Context, areaID string) ([]Station, error) {
	areaID = strings.ToUpper(strings.TrimSpace(areaID))
	if areaID == "" {
		return nil, fmt.Errorf("station registry: empty area")
	}

	r.mu.Lock()
	cached, ok := r.byAreaID[areaID]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(r.baseURL, areaID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("station list %s: %w", areaID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("station list %s: status %d", areaID, resp.StatusCode)
	}

	var parsed stationListXML
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("station list %s: %w", areaID, err)
	}

	stations := make([]Station, 0, len(parsed.Stations))
	for _, entry := range parsed.Stations {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			continue
		}
		stations = append(stations, Station{ID: id, Name: strings.TrimSpace(entry.Name), AreaID: areaID})
	}

	r.mu.Lock()
	r.byAreaID[areaID] = stations
	r.mu.Unlock()
	return stations, nil
}

// Validate confirms the station broadcasts in the given area.
func (r *StationRegistry) Validate(ctx context.Context, areaID, stationID string) (Station, error) {
	stationID = strings.ToUpper(strings.TrimSpace(stationID))
	if stationID == "" {
		return Station{}, fmt.Errorf("station registry: empty station id")
	}
	stations, err := r.Stations(ctx, areaID)
	if err != nil {
		return Station{}, err
	}
	for _, station := range stations {
		if strings.EqualFold(station.ID, stationID) {
			return station, nil
		}
	}
	return Station{}, fmt.Errorf("station %s is not available in area %s", stationID, areaID)
}
