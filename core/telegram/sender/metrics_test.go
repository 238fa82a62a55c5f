package sender

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestSendMetricsCountOutcomesAndRetries(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := NewDispatcher(Options{
		Workers:      1,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		MaxDuration:  time.Second,
		Metrics:      NewSendMetrics(reg, "test"),
	})
	t.Cleanup(d.Close)

	var calls atomic.Int32
	if err := d.Do(context.Background(), "gateway.media", "sendDocument", func() error {
		if calls.Add(1) < 2 {
			return timeoutErr{}
		}
		return nil
	}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if err := d.Do(context.Background(), "gateway.text", "sendMessage", func() error {
		return errors.New("bad request")
	}); err == nil {
		t.Fatal("Do() error = nil, want failure")
	}

	const sends, retries = "test_telegram_sends_total", "test_telegram_send_retries_total"
	if got := counterValue(t, reg, sends, map[string]string{"action": "gateway.media", "outcome": "ok"}); got != 1 {
		t.Fatalf("media ok = %v, want 1", got)
	}
	if got := counterValue(t, reg, retries, map[string]string{"action": "gateway.media"}); got != 1 {
		t.Fatalf("media retries = %v, want 1", got)
	}
	if got := counterValue(t, reg, sends, map[string]string{"action": "gateway.text", "outcome": "unknown"}); got != 1 {
		t.Fatalf("text failure = %v, want 1", got)
	}
}

func TestNewSendMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewSendMetrics(reg, "test")
	b := NewSendMetrics(reg, "test")
	if a.sends != b.sends || a.retries != b.retries {
		t.Fatal("second registration should return the existing collectors")
	}
}
