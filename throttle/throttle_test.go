package throttle_test

import (
	"testing"

	"github.com/joblet/joblet/throttle"
)

func TestAllowUnconfiguredTypeAlwaysAllowed(t *testing.T) {
	th := throttle.New(nil)

	for i := 0; i < 100; i++ {
		if !th.Allow("anything") {
			t.Fatal("unconfigured type should never be throttled")
		}
	}
}

func TestAllowRespectsBurst(t *testing.T) {
	th := throttle.New(map[string]throttle.Config{
		"send-email": {RatePerSecond: 1, Burst: 2},
	})

	if !th.Allow("send-email") {
		t.Error("first call within burst should be allowed")
	}
	if !th.Allow("send-email") {
		t.Error("second call within burst should be allowed")
	}
	if th.Allow("send-email") {
		t.Error("third call should exceed burst of 2")
	}
}

func TestSetLimitZeroDisables(t *testing.T) {
	th := throttle.New(map[string]throttle.Config{
		"t": {RatePerSecond: 1, Burst: 1},
	})

	th.Allow("t") // consume the only token

	if th.Allow("t") {
		t.Fatal("expected second call to be throttled")
	}

	th.SetLimit("t", throttle.Config{})

	if !th.Allow("t") {
		t.Error("clearing the limit should allow further dispatch")
	}
}

func TestNilThrottleAllowsEverything(t *testing.T) {
	var th *throttle.Throttle

	if !th.Allow("t") {
		t.Error("nil Throttle should behave as unthrottled")
	}
}
