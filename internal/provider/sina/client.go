package sina

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// 新浪分钟K线客户端
//
// Alternate minute-bar endpoint used when eastmoney is blocked or returns
// nothing. Note the differences from the primary source: symbols carry a
// venue prefix ("sh600519"), every field is a quoted string, volume is in
// shares rather than lots, and there are no amount or average-price columns.

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(baseURL string, timeout time.Duration, requestsPerSecond int) *Client {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// KlineRow is one minute bar as sina returns it. Volume is in shares.
type KlineRow struct {
	Day    string `json:"day"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

const maxDataLen = 1970 // endpoint cap

// MinuteKline fetches up to dataLen recent 1-minute bars for a
// venue-prefixed symbol ("sh600519" / "sz000001"), oldest first.
func (c *Client) MinuteKline(ctx context.Context, prefixedSymbol string, dataLen int) ([]KlineRow, error) {
	if dataLen < 1 {
		dataLen = 1
	}
	if dataLen > maxDataLen {
		dataLen = maxDataLen
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	params := url.Values{}
	params.Set("symbol", prefixedSymbol)
	params.Set("scale", "1")
	params.Set("ma", "no")
	params.Set("datalen", strconv.Itoa(dataLen))

	fullURL := c.baseURL + "/cn/api/json_v2.php/CN_MarketDataService.getKLineData?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// sina rejects requests without a finance referer
	req.Header.Set("Referer", "https://finance.sina.com.cn")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: status=%d", resp.StatusCode)
	}

	// endpoint answers "null" for unknown symbols
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, fmt.Errorf("empty kline payload for %s", prefixedSymbol)
	}

	var rows []KlineRow
	if err := json.Unmarshal([]byte(trimmed), &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kline response for %s: %w", prefixedSymbol, err)
	}
	return rows, nil
}
