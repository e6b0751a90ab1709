package radiko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const tokyoStationList = `<?xml version="1.0" encoding="UTF-8"?>
<stations area_id="JP13">
  <station><id>TBS</id><name>TBSラジオ</name></station>
  <station><id>QRR</id><name>文化放送</name></station>
  <station><id></id><name>broken entry</name></station>
</stations>`

func newStationServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if !strings.HasSuffix(r.URL.Path, "/JP13.xml") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(tokyoStationList))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStationsParsesList(t *testing.T) {
	server := newStationServer(t, nil)
	registry := NewStationRegistry(5*time.Second, WithRegistryBaseURL(server.URL+"/%s.xml"))

	stations, err := registry.Stations(context.Background(), "jp13")
	if err != nil {
		t.Fatalf("stations: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("stations = %+v, want 2 entries", stations)
	}
	if stations[0].ID != "TBS" || stations[0].Name != "TBSラジオ" || stations[0].AreaID != "JP13" {
		t.Fatalf("first station = %+v", stations[0])
	}
}

func TestStationsCachesPerArea(t *testing.T) {
	var hits atomic.Int64
	server := newStationServer(t, &hits)
	registry := NewStationRegistry(5*time.Second, WithRegistryBaseURL(server.URL+"/%s.xml"))

	for i := 0; i < 3; i++ {
		if _, err := registry.Stations(context.Background(), "JP13"); err != nil {
			t.Fatalf("stations: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("server hits = %d, want 1", hits.Load())
	}
}

func TestValidateKnownStation(t *testing.T) {
	server := newStationServer(t, nil)
	registry := NewStationRegistry(5*time.Second, WithRegistryBaseURL(server.URL+"/%s.xml"))

	station, err := registry.Validate(context.Background(), "JP13", "tbs")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if station.ID != "TBS" {
		t.Fatalf("station = %+v", station)
	}
}

func TestValidateUnknownStation(t *testing.T) {
	server := newStationServer(t, nil)
	registry := NewStationRegistry(5*time.Second, WithRegistryBaseURL(server.URL+"/%s.xml"))

	if _, err := registry.Validate(context.Background(), "JP13", "HBC"); err == nil {
		t.Fatal("unknown station must not validate")
	}
}

func TestStationsUnknownArea(t *testing.T) {
	server := newStationServer(t, nil)
	registry := NewStationRegistry(5*time.Second, WithRegistryBaseURL(server.URL+"/%s.xml"))

	if _, err := registry.Stations(context.Background(), "JP47"); err == nil {
		t.Fatal("missing area list must error")
	}
}
