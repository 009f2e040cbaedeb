package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"ballast/internal/core"
	"ballast/internal/notifier"
)

func TestEmail_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Email)(nil)
}

func TestEmail_Name(t *testing.T) {
	e := New("smtp.example.com", 587, "", "", "from@example.com", []string{"to@example.com"})
	if e.Name() != "email" {
		t.Errorf("expected 'email', got %s", e.Name())
	}
}

func TestEmail_Notify(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	e := New("smtp.example.com", 587, "user", "secret", "bot@example.com", []string{"ops@example.com"})
	e.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotFrom = from
		gotTo = to
		gotMsg = msg
		return nil
	}

	event := core.Event{
		Type:     core.EventTrade,
		Symbol:   "BTCUSDT",
		Tag:      core.TagStopLoss,
		Notional: 0.5,
		Title:    "SELL_ALL BTCUSDT",
		Body:     "stop loss triggered at 39000.00",
		Time:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	if err := e.Notify(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("unexpected addr %q", gotAddr)
	}
	if gotFrom != "bot@example.com" {
		t.Errorf("unexpected from %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Errorf("unexpected to %v", gotTo)
	}

	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: [ballast] SELL_ALL BTCUSDT") {
		t.Error("message should carry the subject line")
	}
	if !strings.Contains(msg, "Rule: STOP_LOSS") {
		t.Error("trade events should include the rule tag")
	}
	if !strings.Contains(msg, "stop loss triggered at 39000.00") {
		t.Error("message should include the body")
	}
	if !strings.Contains(msg, "Content-Type: text/plain") {
		t.Error("message should be plain text")
	}
}

func TestEmail_Notify_SendFailure(t *testing.T) {
	e := New("smtp.example.com", 587, "", "", "a@b.c", []string{"d@e.f"})
	e.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}

	err := e.Notify(context.Background(), core.Event{Type: core.EventReport, Title: "x", Time: time.Now()})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, core.ErrNotifierFailed) {
		t.Errorf("expected ErrNotifierFailed, got %v", err)
	}
}

func TestEmail_Notify_CancelledContext(t *testing.T) {
	called := false
	e := New("smtp.example.com", 587, "", "", "a@b.c", []string{"d@e.f"})
	e.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		called = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := e.Notify(ctx, core.Event{Type: core.EventReport, Title: "x", Time: time.Now()}); err == nil {
		t.Error("expected error for cancelled context")
	}
	if called {
		t.Error("send should not run after cancellation")
	}
}

func TestFormatEvent_ReportOmitsTradeFields(t *testing.T) {
	formatted := formatEvent(core.Event{
		Type:  core.EventReport,
		Title: "Backtest BTCUSDT",
		Body:  "total_return 12.3%",
		Time:  time.Now(),
	})

	if strings.Contains(formatted, "Notional:") {
		t.Error("report events should not render notional")
	}
	if !strings.Contains(formatted, "total_return 12.3%") {
		t.Error("body missing")
	}
}
