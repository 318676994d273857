package execution

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"polytraderv1/internal/model"
)

func testIntent() model.OrderIntent {
	return model.OrderIntent{
		WindowID:  "w1",
		Direction: model.DirectionUp,
		Token:     "tok-up",
		Size:      6000,
		Price:     0.52,
	}
}

func TestLiveGateway_SubmitSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key-1" {
			t.Errorf("missing auth header")
		}
		fmt.Fprint(w, `{"success":true,"orderID":"ord-42","avg_fill_price":0.53}`)
	}))
	defer srv.Close()

	g := NewLiveGateway(LiveConfig{BaseURL: srv.URL, APIKey: "key-1", RetryMax: 2, RetryWait: time.Millisecond})
	fill, err := g.Submit(context.Background(), testIntent())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if fill.OrderID != "ord-42" || fill.FillPrice != 0.53 {
		t.Errorf("fill = %+v", fill)
	}
}

func TestLiveGateway_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "upstream busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"success":true,"orderID":"ord-1","avg_fill_price":0.52}`)
	}))
	defer srv.Close()

	g := NewLiveGateway(LiveConfig{BaseURL: srv.URL, RetryMax: 3, RetryWait: time.Millisecond})
	if _, err := g.Submit(context.Background(), testIntent()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestLiveGateway_RejectionIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "insufficient balance", http.StatusBadRequest)
	}))
	defer srv.Close()

	g := NewLiveGateway(LiveConfig{BaseURL: srv.URL, RetryMax: 3, RetryWait: time.Millisecond})
	_, err := g.Submit(context.Background(), testIntent())

	var execErr *model.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("rejection retried: %d attempts", n)
	}
}

func TestLiveGateway_NotAcceptedSurfacesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"errorMsg":"market closed"}`)
	}))
	defer srv.Close()

	g := NewLiveGateway(LiveConfig{BaseURL: srv.URL, RetryMax: 1, RetryWait: time.Millisecond})
	_, err := g.Submit(context.Background(), testIntent())

	var execErr *model.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %v", err)
	}
}

func TestPaperGateway_FillsAtPriceWithSlippage(t *testing.T) {
	g := NewPaperGateway(100) // 1% slippage
	fill, err := g.Submit(context.Background(), testIntent())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	want := 0.52 * 1.01
	if diff := fill.FillPrice - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("fill price = %v, want %v", fill.FillPrice, want)
	}
	if len(g.Fills()) != 1 {
		t.Errorf("expected 1 recorded fill")
	}
}

func TestPaperGateway_RejectsDegeneratePrice(t *testing.T) {
	g := NewPaperGateway(0)
	intent := testIntent()
	intent.Price = 0

	_, err := g.Submit(context.Background(), intent)
	var execErr *model.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %v", err)
	}
}
