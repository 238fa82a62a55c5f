package telegram

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerLongpollDefaults(t *testing.T) {
	p, ok := BuildPoller(PollerOptions{RunMode: "longpoll"}).(*tele.LongPoller)
	if !ok {
		t.Fatalf("expected long poller")
	}
	if p.Timeout != 10*time.Second {
		t.Fatalf("timeout = %v, want 10s", p.Timeout)
	}
	if len(p.AllowedUpdates) != 2 || p.AllowedUpdates[1] != "callback_query" {
		t.Fatalf("allowed updates = %v", p.AllowedUpdates)
	}
}

func TestBuildPollerWebhook(t *testing.T) {
	p, ok := BuildPoller(PollerOptions{
		RunMode:        " Webhook ",
		Webhook:        WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://shop.example/hook"},
		AllowedUpdates: []string{"message"},
	}).(*tele.Webhook)
	if !ok {
		t.Fatalf("expected webhook poller")
	}
	if p.Listen != "0.0.0.0:8443" {
		t.Fatalf("listen = %q", p.Listen)
	}
	if p.Endpoint == nil || p.Endpoint.PublicURL != "https://shop.example/hook" {
		t.Fatalf("endpoint = %+v", p.Endpoint)
	}
	if len(p.AllowedUpdates) != 1 {
		t.Fatalf("allowed updates = %v", p.AllowedUpdates)
	}
}
