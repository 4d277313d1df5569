package reqctx

import (
	"context"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	if RequestID(ctx) != "" || UID(ctx) != "" {
		t.Fatalf("empty context should carry no values")
	}
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUID(ctx, "uid-1")
	if got := RequestID(ctx); got != "req-1" {
		t.Fatalf("rid=%q", got)
	}
	if got := UID(ctx); got != "uid-1" {
		t.Fatalf("uid=%q", got)
	}
}
