package intake

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second

	agreedRules    = "Agreed to follow all vendor rules and park regulations"
	agreedSupplies = "Understands to bring own tables, blankets, and supplies"
)

// Client forwards submissions to the third-party form collection endpoint.
type Client struct {
	endpoint string
	client   *http.Client
}

func NewClient(endpoint string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{endpoint: endpoint, client: client}
}

// Payload builds the labeled field set. Tier and spaces go out as the option text
// the registrant saw, not the raw values.
func Payload(form domain.Form, quote domain.Quote) url.Values {
	v := url.Values{}
	v.Set("fullName", form.FullName)
	v.Set("phone", form.Phone)
	v.Set("email", form.Email)
	v.Set("address", form.Address)
	v.Set("registrationType", quote.Tier.Label())
	v.Set("numberOfSpaces", domain.SpacesLabel(quote.Spaces))
	v.Set("itemsDescription", form.ItemsDescription)
	if form.AgreeToRules {
		v.Set("agreeToRules", agreedRules)
	}
	if form.BringOwnSupplies {
		v.Set("bringOwnSupplies", agreedSupplies)
	}
	v.Set("basePrice", domain.FormatAmount(quote.UnitPrice))
	v.Set("totalAmount", domain.FormatAmount(quote.Amount))
	return v
}

func (c *Client) Submit(ctx context.Context, form domain.Form, quote domain.Quote) error {
	body := Payload(form, quote).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build intake request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post intake")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("intake endpoint returned %d", resp.StatusCode)
	}
	return nil
}
