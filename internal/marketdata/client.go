// Package marketdata fetches candle series from the Twelve Data API and
// converts them into the engine's oldest-first candle model.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpclient "github.com/quantflow/fxengine/internal/platform/http"
	"github.com/quantflow/fxengine/models"
)

// Client fetches candles over HTTP with rate limiting and retries.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpclient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new candle client.
type ClientOptions struct {
	APIKey         string
	BaseURL        string
	RequestTimeout time.Duration
	RequestsPerSec int
}

// NewClient creates a candle client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.twelvedata.com"
	}
	return &Client{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpclient.NewClient(httpclient.ClientOptions{
			Timeout:        opts.RequestTimeout,
			RequestsPerSec: opts.RequestsPerSec,
		}),
		logger: log.With().Str("component", "marketdata_client").Logger(),
	}
}

// timeSeriesResponse mirrors the provider's time_series payload.
type timeSeriesResponse struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []struct {
		Datetime string  `json:"datetime"`
		Open     float64 `json:"open,string"`
		High     float64 `json:"high,string"`
		Low      float64 `json:"low,string"`
		Close    float64 `json:"close,string"`
		Volume   int64   `json:"volume,string,omitempty"`
	} `json:"values"`
}

// interval maps engine timeframes to provider interval strings.
func interval(tf models.Timeframe) (string, error) {
	switch tf {
	case models.TimeframeM15:
		return "15min", nil
	case models.TimeframeH1:
		return "1h", nil
	case models.TimeframeH4:
		return "4h", nil
	case models.TimeframeD1:
		return "1day", nil
	}
	return "", fmt.Errorf("unsupported timeframe %q", tf)
}

// GetCandles fetches one series, oldest-first.
func (c *Client) GetCandles(ctx context.Context, symbol string, tf models.Timeframe, count int) ([]models.Candle, error) {
	iv, err := interval(tf)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf(
		"%s/time_series?symbol=%s&interval=%s&outputsize=%d&apikey=%s",
		c.baseURL, symbol, iv, count, c.apiKey,
	)

	c.logger.Debug().Str("symbol", symbol).Str("interval", iv).Int("count", count).Msg("fetching candles")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if strings.Contains(string(body), `"status":"error"`) {
		c.logger.Error().Str("response", string(body)).Msg("provider returned error payload")
		return nil, fmt.Errorf("market data API error: %s", string(body))
	}

	var data timeSeriesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	if len(data.Values) == 0 {
		return nil, fmt.Errorf("empty data returned for %s %s", symbol, iv)
	}

	candles := make([]models.Candle, 0, len(data.Values))
	for _, v := range data.Values {
		t, err := parseDatetime(v.Datetime)
		if err != nil {
			c.logger.Warn().Str("datetime", v.Datetime).Msg("skipping candle with unparseable time")
			continue
		}
		candles = append(candles, models.Candle{
			Time:   t,
			Open:   v.Open,
			High:   v.High,
			Low:    v.Low,
			Close:  v.Close,
			Volume: v.Volume,
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})

	c.logger.Debug().Int("count", len(candles)).Msg("fetched candles")
	return candles, nil
}

// GetAllTimeframes fetches every requested timeframe. A failed timeframe is
// logged and omitted; the analyzer degrades it to a neutral fallback.
func (c *Client) GetAllTimeframes(ctx context.Context, symbol string, tfs []models.Timeframe, count int) map[models.Timeframe][]models.Candle {
	out := make(map[models.Timeframe][]models.Candle, len(tfs))
	for _, tf := range tfs {
		candles, err := c.GetCandles(ctx, symbol, tf, count)
		if err != nil {
			c.logger.Error().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
				Msg("failed to fetch timeframe, continuing without it")
			out[tf] = nil
			continue
		}
		out[tf] = candles
	}
	return out
}

// parseDatetime accepts the provider's two timestamp shapes: intraday
// "2006-01-02 15:04:05" and daily "2006-01-02".
func parseDatetime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
