package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/token-lab/token-lab-server/pkg/metrics"
)

// Reference: https://station.jup.ag/docs/apis/price-api-v2

const (
	DefaultApiBaseUrl = "https://api.jup.ag/price/v2"

	metricsStructName = "pricing.client"
)

var (
	ErrNoPrice = errors.New("no price for mint")
)

type Client struct {
	baseUrl    string
	httpClient *http.Client
}

// NewClient returns a new client for fetching token prices
func NewClient(baseUrl string) *Client {
	return &Client{
		baseUrl:    baseUrl,
		httpClient: http.DefaultClient,
	}
}

type jsonPriceResponse struct {
	Data map[string]*jsonPriceData `json:"data"`
}

type jsonPriceData struct {
	Id    string `json:"id"`
	Price string `json:"price"`
}

// GetUsdPrice returns the current USD price for a mint
func (c *Client) GetUsdPrice(ctx context.Context, mint string) (float64, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetUsdPrice")
	defer tracer.End()

	url := fmt.Sprintf("%s?ids=%s", c.baseUrl, mint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "error creating http request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = errors.Wrap(err, "error executing http request")
		tracer.OnError(err)
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, errors.Wrap(err, "error reading response body")
	}

	if resp.StatusCode != http.StatusOK {
		err = errors.Errorf("received http status %d: %s", resp.StatusCode, string(respBody))
		tracer.OnError(err)
		return 0, err
	}

	var parsed jsonPriceResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return 0, errors.Wrap(err, "error unmarshalling json response")
	}

	data, ok := parsed.Data[mint]
	if !ok || data == nil {
		return 0, ErrNoPrice
	}

	price, err := strconv.ParseFloat(data.Price, 64)
	if err != nil {
		return 0, errors.Wrap(err, "error parsing price")
	}
	return price, nil
}
