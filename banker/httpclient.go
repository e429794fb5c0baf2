package banker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"golang.org/x/time/rate"
)

// HTTPClient is the production C6 banker client: it talks to an external
// banker service over HTTP, pacing outbound authorize calls with a token
// bucket so a burst of resolving auctions can't overwhelm the banker
// (spec §4.5 "batches authorizations").
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPClient builds a client that allows up to burst authorize calls
// immediately and refills at ratePerSecond thereafter.
func NewHTTPClient(baseURL string, ratePerSecond float64, burst int) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

type authorizeRequest struct {
	Handle   string `json:"handle"`
	Account  string `json:"account"`
	Micros   int64  `json:"amount_micros"`
	Currency string `json:"currency"`
}

type commitRequest struct {
	Handle string `json:"handle"`
	Micros int64  `json:"actual_micros"`
}

type rollbackRequest struct {
	Handle string `json:"handle"`
}

func (c *HTTPClient) Authorize(account string, amountMicros int64, currency string) (Handle, error) {
	if err := c.limiter.Wait(context.Background()); err != nil {
		return "", UnavailableError(err.Error())
	}

	id, err := uuid.NewV4()
	if err != nil {
		return "", UnavailableError(err.Error())
	}
	handle := Handle(id.String())

	body, _ := json.Marshal(authorizeRequest{Handle: string(handle), Account: account, Micros: amountMicros, Currency: currency})
	resp, err := c.httpClient.Post(c.baseURL+"/authorize", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", UnavailableError(err.Error())
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return handle, nil
	case http.StatusPaymentRequired:
		return "", InsufficientError(account)
	default:
		return "", UnavailableError(fmt.Sprintf("banker returned %d", resp.StatusCode))
	}
}

func (c *HTTPClient) Commit(handle Handle, actualMicros int64) error {
	body, _ := json.Marshal(commitRequest{Handle: string(handle), Micros: actualMicros})
	resp, err := c.httpClient.Post(c.baseURL+"/commit", "application/json", bytes.NewReader(body))
	if err != nil {
		return UnavailableError(err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return UnavailableError(fmt.Sprintf("banker returned %d", resp.StatusCode))
	}
	return nil
}

func (c *HTTPClient) Rollback(handle Handle) error {
	body, _ := json.Marshal(rollbackRequest{Handle: string(handle)})
	resp, err := c.httpClient.Post(c.baseURL+"/rollback", "application/json", bytes.NewReader(body))
	if err != nil {
		return UnavailableError(err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return UnavailableError(fmt.Sprintf("banker returned %d", resp.StatusCode))
	}
	return nil
}
