package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"polytraderv1/internal/model"
)

func eventJSON(slug, endDate, conditionID string, closed bool, upPrice, downPrice string) string {
	return fmt.Sprintf(`{
		"title": "Bitcoin Up or Down",
		"slug": %q,
		"endDate": %q,
		"markets": [{
			"conditionId": %q,
			"clobTokenIds": "[\"tok-up\",\"tok-down\"]",
			"outcomePrices": "[\"%s\",\"%s\"]",
			"closed": %v
		}]
	}`, slug, endDate, conditionID, upPrice, downPrice, closed)
}

func TestActiveWindow_PicksSoonestEndingLive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 37, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events":
			if got := r.URL.Query().Get("series_id"); got != "10192" {
				t.Errorf("series_id = %s", got)
			}
			fmt.Fprintf(w, "[%s,%s,%s]",
				eventJSON("ended", "2025-06-01T12:30:00Z", "cond-ended", false, "0.5", "0.5"),
				eventJSON("next", "2025-06-01T13:00:00Z", "cond-next", false, "0.5", "0.5"),
				eventJSON("current", "2025-06-01T12:45:00Z", "cond-current", false, "0.52", "0.48"),
			)
		case "/price":
			// Live book disagrees with the cached event price.
			if r.URL.Query().Get("token_id") == "tok-up" {
				fmt.Fprint(w, `{"price":"0.55"}`)
			} else {
				fmt.Fprint(w, `{"price":"0.45"}`)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(Config{GammaAPIURL: srv.URL, CLOBAPIURL: srv.URL, SeriesID: 10192})
	w, err := c.ActiveWindow(context.Background(), now)
	if err != nil {
		t.Fatalf("ActiveWindow: %v", err)
	}
	if w.ID != "cond-current" {
		t.Errorf("picked window %s, want cond-current", w.ID)
	}
	if !w.Start.Equal(time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("start = %v", w.Start)
	}
	if w.UpToken != "tok-up" || w.DownToken != "tok-down" {
		t.Errorf("tokens: %s / %s", w.UpToken, w.DownToken)
	}
	if w.UpPrice != 0.55 || w.DownPrice != 0.45 {
		t.Errorf("expected live book prices, got %v / %v", w.UpPrice, w.DownPrice)
	}
}

func TestActiveWindow_FallsBackToCachedPrices(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 37, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events":
			fmt.Fprintf(w, "[%s]", eventJSON("current", "2025-06-01T12:45:00Z", "c1", false, "0.52", "0.48"))
		case "/price":
			http.Error(w, "book unavailable", http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(Config{GammaAPIURL: srv.URL, CLOBAPIURL: srv.URL, SeriesID: 10192})
	w, err := c.ActiveWindow(context.Background(), now)
	if err != nil {
		t.Fatalf("ActiveWindow: %v", err)
	}
	if w.UpPrice != 0.52 || w.DownPrice != 0.48 {
		t.Errorf("expected cached prices, got %v / %v", w.UpPrice, w.DownPrice)
	}
}

func TestActiveWindow_NoLiveWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	c := New(Config{GammaAPIURL: srv.URL, CLOBAPIURL: srv.URL, SeriesID: 10192})
	if _, err := c.ActiveWindow(context.Background(), time.Now()); err == nil {
		t.Error("expected error when no window is live")
	}
}

func TestOutcome(t *testing.T) {
	cases := []struct {
		name    string
		closed  bool
		up      string
		down    string
		want    model.Direction
		pending bool
	}{
		{"up wins", true, "1", "0", model.DirectionUp, false},
		{"down wins", true, "0.02", "0.98", model.DirectionDown, false},
		{"not yet closed", false, "0.6", "0.4", model.DirectionHold, true},
		{"closed but undecided", true, "0.6", "0.4", model.DirectionHold, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("condition_ids") != "cond-1" {
					t.Errorf("condition_ids = %s", r.URL.Query().Get("condition_ids"))
				}
				fmt.Fprintf(w, `[{
					"conditionId": "cond-1",
					"clobTokenIds": "[\"a\",\"b\"]",
					"outcomePrices": "[\"%s\",\"%s\"]",
					"closed": %v
				}]`, tc.up, tc.down, tc.closed)
			}))
			defer srv.Close()

			c := New(Config{GammaAPIURL: srv.URL, CLOBAPIURL: srv.URL})
			dir, err := c.Outcome(context.Background(), &model.IntervalWindow{ID: "cond-1"})
			if tc.pending {
				if !errors.Is(err, model.ErrOracleUnavailable) {
					t.Fatalf("expected ErrOracleUnavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Outcome: %v", err)
			}
			if dir != tc.want {
				t.Errorf("direction = %s, want %s", dir, tc.want)
			}
		})
	}
}
