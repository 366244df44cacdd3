package audit

import (
	"context"
	"sync"
	"testing"

	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/rules"
	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/transport"
)

func TestRunAll_PreservesInputOrder(t *testing.T) {
	configs := map[string]string{
		"host-a": "Port 2222\nPasswordAuthentication no\nPermitRootLogin no\n" +
			"PermitEmptyPasswords no\nX11Forwarding no\nMaxAuthTries 4\n",
		"host-b": "",
	}

	a := New(rules.DefaultSet(), WithOpenFunc(func(ctx context.Context, d transport.Descriptor) (Session, error) {
		return &fakeSession{config: configs[d.Host]}, nil
	}))

	targets := []transport.Descriptor{
		{Host: "host-a", Credential: transport.PasswordAuth("pw")},
		{Host: "host-b", Credential: transport.PasswordAuth("pw")},
	}

	runner := &Runner{Auditor: a, Concurrency: 2}
	outcomes := runner.RunAll(context.Background(), targets)

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Host != "host-a" || outcomes[1].Host != "host-b" {
		t.Errorf("outcome order does not match input order: %s, %s", outcomes[0].Host, outcomes[1].Host)
	}
	if outcomes[0].Report.Status != rules.StatusPass {
		t.Errorf("expected host-a to pass, got %s", outcomes[0].Report.Status)
	}
	if outcomes[1].Report.Status != rules.StatusFail {
		t.Errorf("expected host-b to fail, got %s", outcomes[1].Report.Status)
	}
}

func TestRunAll_BoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	a := New(rules.DefaultSet(), WithOpenFunc(func(ctx context.Context, d transport.Descriptor) (Session, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		defer func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		}()
		return &fakeSession{config: "Port 2222\n"}, nil
	}))

	targets := make([]transport.Descriptor, 16)
	for i := range targets {
		targets[i] = transport.Descriptor{Host: "h", Credential: transport.PasswordAuth("pw")}
	}

	runner := &Runner{Auditor: a, Concurrency: 3}
	runner.RunAll(context.Background(), targets)

	if peak > 3 {
		t.Errorf("expected at most 3 concurrent opens, saw %d", peak)
	}
}

func TestRunAll_CancelledContextYieldsErrors(t *testing.T) {
	a := New(rules.DefaultSet(), WithOpenFunc(func(ctx context.Context, d transport.Descriptor) (Session, error) {
		return &fakeSession{config: ""}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &Runner{Auditor: a, Concurrency: 1, RateLimit: 1}
	outcomes := runner.RunAll(ctx, []transport.Descriptor{
		{Host: "h", Credential: transport.PasswordAuth("pw")},
	})

	if outcomes[0].Err == nil {
		t.Error("expected rate limiter wait to surface the cancelled context")
	}
}
