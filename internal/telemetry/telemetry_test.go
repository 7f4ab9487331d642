package telemetry

import (
	"context"
	"testing"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	tel, err := Setup(context.Background(), Options{ServiceName: "books-api"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if tel.Enabled() {
		t.Fatalf("expected telemetry to be disabled")
	}
	if tel.Handler != nil {
		t.Fatalf("expected no log handler")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetup_RejectsInvalidEndpoint(t *testing.T) {
	if _, err := Setup(context.Background(), Options{ServiceName: "books-api", Endpoint: "not a url"}); err == nil {
		t.Fatalf("expected error for endpoint without host")
	}
}

func TestShutdown_NilSafe(t *testing.T) {
	var tel *Telemetry
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil shutdown: %v", err)
	}
}
