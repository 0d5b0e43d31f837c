package ratelimit

import (
	"context"
	"testing"
)

func TestNoopAlwaysAllows(t *testing.T) {
	var l Limiter = Noop{}
	for i := 0; i < 10; i++ {
		ok, err := l.Allow(context.Background(), "device-1")
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatal("noop limiter must always allow")
		}
	}
}
