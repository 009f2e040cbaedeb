package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"ballast/internal/core"
	"ballast/internal/notifier"
)

type mockNotifier struct {
	name     string
	received []core.Event
	failWith error
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Notify(ctx context.Context, event core.Event) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.received = append(m.received, event)
	return nil
}

func tradeEvent(symbol string, tag core.Tag, notional float64) core.Event {
	return core.Event{
		Type:     core.EventTrade,
		Symbol:   symbol,
		Tag:      tag,
		Notional: notional,
		Title:    "trade",
		Time:     time.Now(),
	}
}

func newTestRouter(t *testing.T, mocks ...*mockNotifier) (*Router, *notifier.Registry) {
	t.Helper()
	registry := notifier.NewRegistry()
	for _, m := range mocks {
		if err := registry.Register(m); err != nil {
			t.Fatalf("registering %s: %v", m.name, err)
		}
	}
	return New(registry, nil), registry
}

func TestDispatch_MatchingRoute(t *testing.T) {
	mock := &mockNotifier{name: "mock"}
	r, _ := newTestRouter(t, mock)

	r.AddRoute(Route{
		Name:       "trades",
		EventTypes: []core.EventType{core.EventTrade},
		Notifiers:  []string{"mock"},
	})

	err := r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(mock.received))
	}
	if mock.received[0].Symbol != "BTCUSDT" {
		t.Errorf("unexpected symbol %q", mock.received[0].Symbol)
	}
}

func TestDispatch_FilterByEventType(t *testing.T) {
	mock := &mockNotifier{name: "mock"}
	r, _ := newTestRouter(t, mock)

	r.AddRoute(Route{
		Name:       "reports-only",
		EventTypes: []core.EventType{core.EventReport},
		Notifiers:  []string{"mock"},
	})

	r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 1000))

	if len(mock.received) != 0 {
		t.Errorf("trade event should not reach a reports-only route, got %d", len(mock.received))
	}
}

func TestDispatch_FilterByTag(t *testing.T) {
	mock := &mockNotifier{name: "mock"}
	r, _ := newTestRouter(t, mock)

	r.AddRoute(Route{
		Name:      "exits-only",
		Tags:      []core.Tag{core.TagStopLoss, core.TagCircuitBreaker},
		Notifiers: []string{"mock"},
	})

	r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 1000))
	if len(mock.received) != 0 {
		t.Error("DCA entry should not match the exits-only route")
	}

	r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagStopLoss, 1000))
	if len(mock.received) != 1 {
		t.Errorf("stop loss should match, got %d events", len(mock.received))
	}
}

func TestDispatch_MinNotional(t *testing.T) {
	mock := &mockNotifier{name: "mock"}
	r, _ := newTestRouter(t, mock)

	r.AddRoute(Route{
		Name:        "big-trades",
		MinNotional: 500,
		Notifiers:   []string{"mock"},
	})

	r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 100))
	if len(mock.received) != 0 {
		t.Error("trade below min notional should be filtered")
	}

	r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 900))
	if len(mock.received) != 1 {
		t.Errorf("trade above min notional should pass, got %d", len(mock.received))
	}
}

func TestDispatch_MinNotionalIgnoredForReports(t *testing.T) {
	mock := &mockNotifier{name: "mock"}
	r, _ := newTestRouter(t, mock)

	r.AddRoute(Route{
		Name:        "all",
		MinNotional: 10000,
		Notifiers:   []string{"mock"},
	})

	report := core.Event{Type: core.EventReport, Title: "done", Time: time.Now()}
	r.Dispatch(context.Background(), report)

	if len(mock.received) != 1 {
		t.Errorf("min notional should only gate trade events, got %d", len(mock.received))
	}
}

func TestDispatch_Cooldown(t *testing.T) {
	mock := &mockNotifier{name: "mock"}
	r, _ := newTestRouter(t, mock)

	r.AddRoute(Route{
		Name:      "cooled",
		Cooldown:  time.Hour,
		Notifiers: []string{"mock"},
	})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 100))
	r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 100))

	if len(mock.received) != 1 {
		t.Fatalf("second dispatch within cooldown should be suppressed, got %d", len(mock.received))
	}

	r.now = func() time.Time { return base.Add(2 * time.Hour) }
	r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 100))

	if len(mock.received) != 2 {
		t.Errorf("dispatch after cooldown should deliver, got %d", len(mock.received))
	}
}

func TestDispatch_ClearCooldown(t *testing.T) {
	mock := &mockNotifier{name: "mock"}
	r, _ := newTestRouter(t, mock)

	r.AddRoute(Route{Name: "cooled", Cooldown: time.Hour, Notifiers: []string{"mock"}})

	r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 100))
	r.ClearCooldown("cooled")
	r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 100))

	if len(mock.received) != 2 {
		t.Errorf("clearing the cooldown should allow redelivery, got %d", len(mock.received))
	}
}

func TestDispatch_AggregatesErrorsWithoutAborting(t *testing.T) {
	bad := &mockNotifier{name: "bad", failWith: core.WrapError(core.ErrNotifierFailed, errors.New("boom"))}
	good := &mockNotifier{name: "good"}
	r, _ := newTestRouter(t, bad, good)

	r.AddRoute(Route{
		Name:      "all",
		Notifiers: []string{"bad", "good"},
	})

	err := r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 100))

	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if !errors.Is(err, core.ErrNotifierFailed) {
		t.Errorf("expected ErrNotifierFailed in the aggregate, got %v", err)
	}
	if len(good.received) != 1 {
		t.Errorf("failure of one notifier should not block the next, got %d", len(good.received))
	}
}

func TestDispatch_UnknownNotifierName(t *testing.T) {
	good := &mockNotifier{name: "good"}
	r, _ := newTestRouter(t, good)

	r.AddRoute(Route{
		Name:      "misconfigured",
		Notifiers: []string{"ghost", "good"},
	})

	err := r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 100))

	if err == nil {
		t.Fatal("expected error for unknown notifier")
	}
	if len(good.received) != 1 {
		t.Errorf("remaining notifiers should still deliver, got %d", len(good.received))
	}
}

func TestDispatch_MultipleRoutes(t *testing.T) {
	tg := &mockNotifier{name: "telegram"}
	hook := &mockNotifier{name: "webhook"}
	r, _ := newTestRouter(t, tg, hook)

	r.AddRoute(Route{
		Name:       "trades",
		EventTypes: []core.EventType{core.EventTrade},
		Notifiers:  []string{"telegram"},
	})
	r.AddRoute(Route{
		Name:      "everything",
		Notifiers: []string{"webhook"},
	})

	r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagSwingEntry, 100))

	if len(tg.received) != 1 {
		t.Errorf("trade route should deliver to telegram, got %d", len(tg.received))
	}
	if len(hook.received) != 1 {
		t.Errorf("catch-all route should deliver to webhook, got %d", len(hook.received))
	}
}

func TestDispatch_NoRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	if err := r.Dispatch(context.Background(), tradeEvent("BTCUSDT", core.TagDCAEntry, 100)); err != nil {
		t.Errorf("dispatch with no routes should be a no-op, got %v", err)
	}
}

func TestRouteMatches_EmptyFiltersMatchEverything(t *testing.T) {
	route := Route{Name: "all"}

	events := []core.Event{
		tradeEvent("BTCUSDT", core.TagDCAEntry, 0),
		{Type: core.EventReport, Time: time.Now()},
		{Type: core.EventCriteriaFailed, Time: time.Now()},
	}

	for _, event := range events {
		if !route.Matches(event) {
			t.Errorf("empty route filters should match %s", event.Type)
		}
	}
}
