package goIdentity_test

import (
	"context"
	"sync"
	"testing"
	"time"

	goIdentity "github.com/Veltherin/goIdentity"
	"github.com/Veltherin/goIdentity/memstore"
)

type sentMail struct {
	To       string
	Template string
	Data     map[string]any
}

// captureNotifier records every send for later assertions.
type captureNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (c *captureNotifier) Send(_ context.Context, to, template string, data map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return context.DeadlineExceeded
	}
	c.sent = append(c.sent, sentMail{To: to, Template: template, Data: data})
	return nil
}

func (c *captureNotifier) byTemplate(template string) []sentMail {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentMail
	for _, m := range c.sent {
		if m.Template == template {
			out = append(out, m)
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testConfig keeps the Argon2 work factor at the validation floor so the
// suite stays fast, and disables verification unless a test opts back in.
func testConfig() goIdentity.Config {
	cfg := goIdentity.DefaultConfig()
	cfg.Session.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Verification.Enabled = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testEnv struct {
	engine *goIdentity.Engine
	store  *memstore.Store
	mail   *captureNotifier
	clock  *fakeClock
}

func newTestEnv(t *testing.T, mutate func(*goIdentity.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := memstore.New()
	mail := &captureNotifier{}
	clock := newFakeClock()

	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRepository(store).
		WithNotifier(mail).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, mail: mail, clock: clock}
}

func (env *testEnv) register(t *testing.T, email, password string) *goIdentity.AuthResult {
	t.Helper()

	result, err := env.engine.Register(context.Background(), goIdentity.RegisterRequest{
		Email:     email,
		Password:  password,
		FirstName: "Alice",
		LastName:  "Doe",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return result
}

func wantClientCode(t *testing.T, err error, code goIdentity.Code) {
	t.Helper()

	ce, ok := goIdentity.IsClientError(err)
	if !ok {
		t.Fatalf("want client error %s, got %v", code, err)
	}
	if ce.Code != code {
		t.Fatalf("want code %s, got %s", code, ce.Code)
	}
}
