package nautobot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"cockpit_go/internal/model"
)

func TestGetLocations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/graphql/" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token secret" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		fmt.Fprint(w, `{"data":{"locations":[
			{"id":"1","name":"Europe","parent":null},
			{"id":"2","name":"Berlin","parent":{"id":"1"}}
		]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0)
	locations, err := c.GetLocations(context.Background())
	if err != nil {
		t.Fatalf("GetLocations() error = %v", err)
	}
	if len(locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(locations))
	}
	if locations[0].Parent != nil {
		t.Fatalf("root must have nil parent, got %+v", locations[0].Parent)
	}
	if locations[1].Parent == nil || locations[1].Parent.ID != "1" {
		t.Fatalf("unexpected parent ref: %+v", locations[1].Parent)
	}
}

func TestGetLocations_GraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"permission denied"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0)
	if _, err := c.GetLocations(context.Background()); err == nil {
		t.Fatal("expected error for graphql errors, got nil")
	}
}

func TestQueryDevices_FilterParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"count":1,"next":null,"results":[
			{"id":"d1","name":"sw-a","location":{"name":"Berlin"},"role":{"name":"switch"},
			 "status":{"value":"active","label":"Active"},
			 "device_type":{"model":"C9300","manufacturer":{"name":"Cisco"}}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0)
	devices, err := c.QueryDevices(context.Background(), "name", model.OperatorContains, "sw")
	if err != nil {
		t.Fatalf("QueryDevices() error = %v", err)
	}

	// contains 映射成 __ic 参数
	if got := parseParam(t, gotQuery, "name__ic"); got != "sw" {
		t.Fatalf("expected name__ic=sw, query=%q", gotQuery)
	}

	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}
	d := devices[0]
	if d.Location != "Berlin" || d.Role != "switch" || d.Status != "Active" ||
		d.DeviceType != "C9300" || d.Manufacturer != "Cisco" {
		t.Fatalf("device not flattened correctly: %+v", d)
	}
}

func TestQueryDevices_HasPrimaryMapped(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"count":0,"next":null,"results":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	if _, err := c.QueryDevices(context.Background(), "has_primary", model.OperatorEquals, "true"); err != nil {
		t.Fatalf("QueryDevices() error = %v", err)
	}
	if got := parseParam(t, gotQuery, "has_primary_ip"); got != "true" {
		t.Fatalf("expected has_primary_ip=true, query=%q", gotQuery)
	}
}

func TestQueryDevices_UnsupportedField(t *testing.T) {
	c := NewClient("http://localhost", "", 0)
	if _, err := c.QueryDevices(context.Background(), "bogus", model.OperatorEquals, "x"); err == nil {
		t.Fatal("expected error for unsupported field, got nil")
	}
}

func TestListDevices_FollowsPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			fmt.Fprintf(w, `{"count":2,"next":"%s/api/dcim/devices/?limit=200&offset=1","results":[{"id":"d1","name":"sw-a"}]}`, srv.URL)
			return
		}
		fmt.Fprint(w, `{"count":2,"next":null,"results":[{"id":"d2","name":"sw-b"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	devices, err := c.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices across pages, got %d", len(devices))
	}
}

func TestQueryDevices_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	if _, err := c.QueryDevices(context.Background(), "role", model.OperatorEquals, "switch"); err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
}

func parseParam(t *testing.T, rawQuery, key string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "/?"+rawQuery, nil)
	if err != nil {
		t.Fatalf("failed to parse query: %v", err)
	}
	return req.URL.Query().Get(key)
}
