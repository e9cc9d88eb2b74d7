package devauth

import (
	"context"
	"strings"
	"testing"

	"github.com/edusuite/portal/internal/ports"
)

func TestProvider_BeginAndExchange(t *testing.T) {
	prov, err := NewProvider(Config{Identifier: "dev@school.test", FirstName: "Dev", LastName: "User"})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	url, state, nonce, err := prov.Begin(context.Background(), ports.BeginInput{RedirectURL: "/"})
	if err != nil {
		t.Fatalf("Begin error: %v", err)
	}
	if !strings.HasPrefix(url, "/accounts/sso/callback?") {
		t.Fatalf("unexpected authURL: %s", url)
	}
	if state == "" || nonce == "" {
		t.Fatal("state and nonce should be generated")
	}
	id, err := prov.Exchange(context.Background(), ports.ExchangeInput{Code: "dev", State: state, Nonce: nonce})
	if err != nil {
		t.Fatalf("Exchange error: %v", err)
	}
	if id.Identifier != "dev@school.test" || id.FirstName != "Dev" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if _, err := NewProvider(Config{}); err == nil {
		t.Fatal("expected error for missing identifier")
	}
}
