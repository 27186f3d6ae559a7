package services

import (
	"errors"
	"testing"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

func newTestComposer(t *testing.T) *DeepLinkComposer {
	t.Helper()
	composer, err := NewDeepLinkComposer(DeepLinkConfig{Number: "+91 80565 11598", MailAddress: "shop@example.com"})
	if err != nil {
		t.Fatalf("NewDeepLinkComposer: %v", err)
	}
	return composer
}

func TestDeepLinkComposerContactURL(t *testing.T) {
	t.Parallel()

	composer := newTestComposer(t)

	car := domain.Display(domain.NormalizedItem{ItemFields: domain.ItemFields{ID: "1", Name: "Car", Price: 100, Discount: 10}})
	want := "https://wa.me/918056511598?text=Hello%2C%20I'm%20interested%20in%20%22Car%22.%20The%20discounted%20price%20is%20%E2%82%B990.00%20(Original%3A%20%E2%82%B9100.00).%20Is%20it%20available%3F"
	if got := composer.ContactURL(car); got != want {
		t.Fatalf("unexpected url\nwant %s\ngot  %s", want, got)
	}

	doll := domain.Display(domain.NormalizedItem{ItemFields: domain.ItemFields{ID: "2", Name: "Doll", Price: 50, Stock: 20}})
	want = "https://wa.me/918056511598?text=Hello%2C%20I'm%20interested%20in%20%22Doll%22.%20The%20price%20is%20%E2%82%B950.00.%20Is%20it%20available%3F"
	if got := composer.ContactURL(doll); got != want {
		t.Fatalf("unexpected url\nwant %s\ngot  %s", want, got)
	}
}

func TestDeepLinkComposerContactMessage(t *testing.T) {
	t.Parallel()

	composer := newTestComposer(t)
	item := domain.Display(domain.NormalizedItem{ItemFields: domain.ItemFields{Name: "Car", Price: 100, Discount: 10}})
	want := `Hello, I'm interested in "Car". The discounted price is ₹90.00 (Original: ₹100.00). Is it available?`
	if got := composer.ContactMessage(item); got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func TestEncodeURIComponent(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Order #12 & more+info": "Order%20%2312%20%26%20more%2Binfo",
		"a b/c?d=e":             "a%20b%2Fc%3Fd%3De",
		"keep-_.!~*'()":         "keep-_.!~*'()",
	}
	for in, want := range cases {
		if got := EncodeURIComponent(in); got != want {
			t.Fatalf("%q: expected %q got %q", in, want, got)
		}
	}
}

func TestDeepLinkComposerMailURL(t *testing.T) {
	t.Parallel()

	composer := newTestComposer(t)
	got, err := composer.MailURL("Bulk order", "Need 5 kites?")
	if err != nil {
		t.Fatalf("MailURL: %v", err)
	}
	want := "mailto:shop@example.com?subject=Bulk%20order&body=Need%205%20kites%3F"
	if got != want {
		t.Fatalf("expected %s got %s", want, got)
	}

	noMail, err := NewDeepLinkComposer(DeepLinkConfig{Number: "123"})
	if err != nil {
		t.Fatalf("NewDeepLinkComposer: %v", err)
	}
	if _, err := noMail.MailURL("s", "b"); !errors.Is(err, ErrDeepLinkMailMissing) {
		t.Fatalf("expected ErrDeepLinkMailMissing got %v", err)
	}
}

func TestNewDeepLinkComposerRequiresNumber(t *testing.T) {
	t.Parallel()

	if _, err := NewDeepLinkComposer(DeepLinkConfig{Number: " + "}); !errors.Is(err, ErrDeepLinkNumberMissing) {
		t.Fatalf("expected ErrDeepLinkNumberMissing got %v", err)
	}
}

func TestDeepLinkComposerCustomDestination(t *testing.T) {
	t.Parallel()

	composer, err := NewDeepLinkComposer(DeepLinkConfig{BaseURL: "https://chat.example.com/send", Number: "42", CurrencySymbol: "$"})
	if err != nil {
		t.Fatalf("NewDeepLinkComposer: %v", err)
	}
	item := domain.Display(domain.NormalizedItem{ItemFields: domain.ItemFields{Name: "Kite", Price: 5}})
	want := "https://chat.example.com/send/42?text=Hello%2C%20I'm%20interested%20in%20%22Kite%22.%20The%20price%20is%20%245.00.%20Is%20it%20available%3F"
	if got := composer.ContactURL(item); got != want {
		t.Fatalf("unexpected url\nwant %s\ngot  %s", want, got)
	}
}
