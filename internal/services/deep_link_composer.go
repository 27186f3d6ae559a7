package services

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

const (
	defaultContactBaseURL = "https://wa.me/"
	defaultCurrencySymbol = "₹"
)

var (
	// ErrDeepLinkNumberMissing indicates no messaging destination was configured.
	ErrDeepLinkNumberMissing = errors.New("deep link composer: destination number is required")
	// ErrDeepLinkMailMissing indicates mail composition was requested without an address.
	ErrDeepLinkMailMissing = errors.New("deep link composer: mail address is not configured")
)

// DeepLinkConfig describes the external contact destinations.
type DeepLinkConfig struct {
	BaseURL        string
	Number         string
	CurrencySymbol string
	MailAddress    string
}

// DeepLinkComposer builds outbound contact URLs. It performs no I/O.
type DeepLinkComposer struct {
	baseURL  string
	number   string
	currency string
	mail     string
}

// NewDeepLinkComposer validates cfg and returns a composer.
func NewDeepLinkComposer(cfg DeepLinkConfig) (*DeepLinkComposer, error) {
	number := digitsOnly(cfg.Number)
	if number == "" {
		return nil, ErrDeepLinkNumberMissing
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultContactBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	currency := cfg.CurrencySymbol
	if strings.TrimSpace(currency) == "" {
		currency = defaultCurrencySymbol
	}
	return &DeepLinkComposer{
		baseURL:  base,
		number:   number,
		currency: currency,
		mail:     strings.TrimSpace(cfg.MailAddress),
	}, nil
}

// ContactMessage renders the human readable purchase enquiry for item.
func (c *DeepLinkComposer) ContactMessage(item domain.DisplayItem) string {
	var price string
	if item.HasDiscount() {
		price = fmt.Sprintf("The discounted price is %s (Original: %s)", c.FormatAmount(item.DiscountedPrice), c.FormatAmount(item.Price))
	} else {
		price = "The price is " + c.FormatAmount(item.Price)
	}
	return fmt.Sprintf("Hello, I'm interested in \"%s\". %s. Is it available?", item.Name, price)
}

// ContactURL returns the messaging deep link carrying the enquiry for item.
func (c *DeepLinkComposer) ContactURL(item domain.DisplayItem) string {
	return c.baseURL + c.number + "?text=" + EncodeURIComponent(c.ContactMessage(item))
}

// MailURL composes a mailto link for the storefront's contact address.
func (c *DeepLinkComposer) MailURL(subject, body string) (string, error) {
	if c.mail == "" {
		return "", ErrDeepLinkMailMissing
	}
	return "mailto:" + c.mail + "?subject=" + EncodeURIComponent(subject) + "&body=" + EncodeURIComponent(body), nil
}

// FormatAmount renders value with the currency symbol and two decimals.
func (c *DeepLinkComposer) FormatAmount(value float64) string {
	return c.currency + strconv.FormatFloat(value, 'f', 2, 64)
}

// EncodeURIComponent percent-encodes value leaving only the characters
// A-Z a-z 0-9 - _ . ! ~ * ' ( ) unescaped.
func EncodeURIComponent(value string) string {
	return componentReplacer.Replace(url.QueryEscape(value))
}

var componentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
