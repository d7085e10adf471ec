package eastmoney

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

// 东方财富行情客户端
//
// Three request/response capabilities: 1-minute trends history, single
// security quote, and the whole-market snapshot list. Numeric fields on the
// quote endpoints are loosely typed because eastmoney reports missing
// values as the string "-"; coercion happens in the collector adapters.

type Client struct {
	quoteBaseURL string
	histBaseURL  string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

func NewClient(quoteBaseURL, histBaseURL string, timeout time.Duration, requestsPerSecond int) *Client {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	return &Client{
		quoteBaseURL: strings.TrimSuffix(quoteBaseURL, "/"),
		histBaseURL:  strings.TrimSuffix(histBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// 发送HTTP请求
func (c *Client) sendRequest(ctx context.Context, baseURL, endpoint string, params url.Values) ([]byte, error) {
	// 速率限制
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	fullURL := baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

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
		return nil, fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, truncate(body, 200))
	}

	return body, nil
}

// TrendRow is one minute bar from the trends2 endpoint. The wire format is a
// comma-joined string: time,open,close,high,low,volume,amount,avgPrice.
// Volume is in lots (手), amount in CNY.
type TrendRow struct {
	Time     string
	Open     string
	Close    string
	High     string
	Low      string
	Volume   string
	Amount   string
	AvgPrice string
}

type trendsResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Trends []string `json:"trends"`
	} `json:"data"`
}

// MinuteTrends fetches the 1-minute trend history for one security.
// days is clamped to [1,5]; one trading day carries 240 continuous-session
// bars, so days=1 already covers the recovery window.
func (c *Client) MinuteTrends(ctx context.Context, secID string, days int) ([]TrendRow, error) {
	if days < 1 {
		days = 1
	}
	if days > 5 {
		days = 5
	}

	params := url.Values{}
	params.Set("secid", secID)
	params.Set("ndays", strconv.Itoa(days))
	params.Set("iscca", "0")
	params.Set("fields1", "f1,f2,f3,f7,f8")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f58")

	data, err := c.sendRequest(ctx, c.histBaseURL, "/api/qt/stock/trends2/get", params)
	if err != nil {
		return nil, fmt.Errorf("failed to get minute trends for %s: %w", secID, err)
	}

	var response trendsResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trends response: %w", err)
	}
	if response.Data == nil {
		return nil, fmt.Errorf("empty trends payload for %s", secID)
	}

	rows := make([]TrendRow, 0, len(response.Data.Trends))
	for _, line := range response.Data.Trends {
		fields := strings.Split(line, ",")
		if len(fields) < 8 {
			continue
		}
		rows = append(rows, TrendRow{
			Time:     fields[0],
			Open:     fields[1],
			Close:    fields[2],
			High:     fields[3],
			Low:      fields[4],
			Volume:   fields[5],
			Amount:   fields[6],
			AvgPrice: fields[7],
		})
	}
	return rows, nil
}

// QuoteFields is the single-security quote. Fields stay interface{} typed:
// eastmoney sends "-" for suspended or missing values.
type QuoteFields struct {
	Latest    interface{} `json:"f43"`
	High      interface{} `json:"f44"`
	Low       interface{} `json:"f45"`
	Open      interface{} `json:"f46"`
	Volume    interface{} `json:"f47"`  // 总手，当日累计
	Amount    interface{} `json:"f48"`  // 金额，当日累计
	PrevClose interface{} `json:"f60"`
	PctChange interface{} `json:"f170"`
}

type quoteResponse struct {
	Data *QuoteFields `json:"data"`
}

// Quote fetches the point-in-time quote for one security.
func (c *Client) Quote(ctx context.Context, secID string) (*QuoteFields, error) {
	params := url.Values{}
	params.Set("secid", secID)
	params.Set("invt", "2")
	params.Set("fltt", "2")
	params.Set("fields", "f43,f44,f45,f46,f47,f48,f60,f170")

	data, err := c.sendRequest(ctx, c.quoteBaseURL, "/api/qt/stock/get", params)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", secID, err)
	}

	var response quoteResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote response: %w", err)
	}
	if response.Data == nil {
		return nil, fmt.Errorf("empty quote payload for %s", secID)
	}
	return response.Data, nil
}

// SpotRow is one entry of the whole-market snapshot list.
type SpotRow struct {
	Code      string      `json:"f12"`
	Latest    interface{} `json:"f2"`
	PctChange interface{} `json:"f3"`
	Volume    interface{} `json:"f5"`
	Amount    interface{} `json:"f6"`
	High      interface{} `json:"f15"`
	Low       interface{} `json:"f16"`
	Open      interface{} `json:"f17"`
	PrevClose interface{} `json:"f18"`
}

type spotResponse struct {
	Data *struct {
		Total int       `json:"total"`
		Diff  []SpotRow `json:"diff"`
	} `json:"data"`
}

const spotPageSize = 1000

// 全市场A股筛选条件（沪深主板、创业板、科创板）
const spotMarketFilter = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23"

// SpotList fetches the full-market quote snapshot, paging until the
// reported total is covered.
func (c *Client) SpotList(ctx context.Context) ([]SpotRow, error) {
	var all []SpotRow
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("pn", strconv.Itoa(page))
		params.Set("pz", strconv.Itoa(spotPageSize))
		params.Set("po", "1")
		params.Set("np", "1")
		params.Set("fltt", "2")
		params.Set("invt", "2")
		params.Set("fid", "f12")
		params.Set("fs", spotMarketFilter)
		params.Set("fields", "f2,f3,f5,f6,f12,f15,f16,f17,f18")

		data, err := c.sendRequest(ctx, c.quoteBaseURL, "/api/qt/clist/get", params)
		if err != nil {
			return nil, fmt.Errorf("failed to get spot list page %d: %w", page, err)
		}

		var response spotResponse
		if err := json.Unmarshal(data, &response); err != nil {
			return nil, fmt.Errorf("failed to unmarshal spot list response: %w", err)
		}
		if response.Data == nil || len(response.Data.Diff) == 0 {
			break
		}

		all = append(all, response.Data.Diff...)
		if len(all) >= response.Data.Total || len(response.Data.Diff) < spotPageSize {
			break
		}
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("empty spot list payload")
	}
	return all, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
