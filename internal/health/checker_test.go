package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func failingProbe(err error) Probe {
	return func(context.Context) error { return err }
}

func TestStatus_healthyByDefault(t *testing.T) {
	c := New(Config{}, zap.NewNop())
	c.Register("postgres", failingProbe(nil))

	c.runOnce()

	if !c.Status()["postgres"] {
		t.Error("expected postgres healthy")
	}
}

func TestStatus_degradesAfterThreshold(t *testing.T) {
	c := New(Config{FailThreshold: 3}, zap.NewNop())
	c.Register("object_storage", failingProbe(errors.New("connection refused")))

	// Two failures are not enough.
	c.runOnce()
	c.runOnce()
	if !c.Status()["object_storage"] {
		t.Fatal("degraded before hitting the threshold")
	}

	c.runOnce()
	if c.Status()["object_storage"] {
		t.Error("expected degraded after 3 consecutive failures")
	}
}

func TestStatus_recoversOnFirstSuccess(t *testing.T) {
	var err error = errors.New("connection refused")
	c := New(Config{FailThreshold: 2}, zap.NewNop())
	c.Register("postgres", func(context.Context) error { return err })

	c.runOnce()
	c.runOnce()
	if c.Status()["postgres"] {
		t.Fatal("expected degraded")
	}

	err = nil
	c.runOnce()
	if !c.Status()["postgres"] {
		t.Error("expected recovery on first success")
	}
}

func TestFailureCountResetsOnSuccess(t *testing.T) {
	var err error = errors.New("timeout")
	c := New(Config{FailThreshold: 3}, zap.NewNop())
	c.Register("vision", func(context.Context) error { return err })

	c.runOnce()
	c.runOnce()
	err = nil
	c.runOnce() // resets the counter
	err = errors.New("timeout")
	c.runOnce()
	c.runOnce()

	// 2 failures after the reset must not degrade with threshold 3.
	if !c.Status()["vision"] {
		t.Error("failure count was not reset by the successful probe")
	}
}

func TestMetricsCallback(t *testing.T) {
	results := make(map[string][]bool)
	c := New(Config{}, zap.NewNop())
	c.SetMetricsRecord(func(name string, success bool) {
		results[name] = append(results[name], success)
	})
	c.Register("postgres", failingProbe(nil))
	c.Register("vision", failingProbe(errors.New("quota exceeded")))

	c.runOnce()

	if len(results["postgres"]) != 1 || !results["postgres"][0] {
		t.Errorf("postgres: %v", results["postgres"])
	}
	if len(results["vision"]) != 1 || results["vision"][0] {
		t.Errorf("vision: %v", results["vision"])
	}
}

func TestProbeTimeoutApplied(t *testing.T) {
	c := New(Config{ProbeTimeout: 20 * time.Millisecond}, zap.NewNop())
	c.Register("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})

	done := make(chan struct{})
	go func() {
		c.runOnce()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("probe did not respect the timeout")
	}
}

func TestStart_returnsWhenDoneClosed(t *testing.T) {
	c := New(Config{CheckInterval: 10 * time.Millisecond}, zap.NewNop())
	c.Register("postgres", failingProbe(nil))

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		c.Start(done)
		close(stopped)
	}()

	close(done)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after shutdown")
	}
}

func TestStart_shutdownReachesOtherListeners(t *testing.T) {
	// The loop must not consume the shutdown notification: other goroutines
	// waiting on the same channel have to observe it too.
	c := New(Config{CheckInterval: 10 * time.Millisecond}, zap.NewNop())
	c.Register("postgres", failingProbe(nil))

	done := make(chan struct{})
	go c.Start(done)

	sibling := make(chan struct{})
	go func() {
		<-done
		close(sibling)
	}()

	close(done)
	select {
	case <-sibling:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown never reached the second listener")
	}
}
