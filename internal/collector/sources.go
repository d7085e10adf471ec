package collector

import (
	"context"
	"fmt"
	"strings"

	"cna-data-service/internal/provider/eastmoney"
	"cna-data-service/internal/provider/sina"
	"cna-data-service/internal/symbol"
)

// MinRecoveryBars is the lookback floor for every minute fetch. Sized to a
// full trading morning so the first successful call after an outage
// backfills the whole gap instead of just the steady-state tail.
const MinRecoveryBars = 240

// MinuteSource is one upstream minute-bar capability, already normalized to
// MinuteBar rows (oldest first).
type MinuteSource struct {
	Tag   string
	Fetch func(ctx context.Context, code string, lookback int) ([]MinuteBar, error)
}

// FetchMinuteTail walks the source chain in preference order and returns
// the tail of the first source that yields any rows. No merging across
// sources: one call, one source. When every source fails or comes back
// empty, the error concatenates all causes.
func FetchMinuteTail(ctx context.Context, sources []MinuteSource, retry RetryPolicy, code string, tailBars int) ([]MinuteBar, error) {
	lookback := tailBars
	if lookback < MinRecoveryBars {
		lookback = MinRecoveryBars
	}

	var causes []string
	for _, src := range sources {
		var rows []MinuteBar
		err := retry.Do(fmt.Sprintf("%s minute fetch %s", src.Tag, code), func() error {
			var fetchErr error
			rows, fetchErr = src.Fetch(ctx, code, lookback)
			return fetchErr
		})
		if err != nil {
			causes = append(causes, fmt.Sprintf("%s: %v", src.Tag, err))
			continue
		}
		if len(rows) == 0 {
			causes = append(causes, fmt.Sprintf("%s: no rows", src.Tag))
			continue
		}
		if len(rows) > lookback {
			rows = rows[len(rows)-lookback:]
		}
		return rows, nil
	}

	return nil, fmt.Errorf("all minute sources failed for %s: %s", code, strings.Join(causes, "; "))
}

// EastmoneyMinuteSource adapts the trends2 endpoint. Primary source.
func EastmoneyMinuteSource(client *eastmoney.Client) MinuteSource {
	return MinuteSource{
		Tag: SourceEastmoneyMinute,
		Fetch: func(ctx context.Context, code string, lookback int) ([]MinuteBar, error) {
			days := (lookback + MinRecoveryBars - 1) / MinRecoveryBars
			rows, err := client.MinuteTrends(ctx, symbol.SecID(code), days)
			if err != nil {
				return nil, err
			}
			return normalizeTrendRows(code, rows), nil
		},
	}
}

// SinaMinuteSource adapts the sina kline endpoint. Fallback source with a
// different symbol-prefixing convention and different column semantics.
func SinaMinuteSource(client *sina.Client) MinuteSource {
	return MinuteSource{
		Tag: SourceSinaMinute,
		Fetch: func(ctx context.Context, code string, lookback int) ([]MinuteBar, error) {
			rows, err := client.MinuteKline(ctx, symbol.WithVenuePrefix(code), lookback)
			if err != nil {
				return nil, err
			}
			return normalizeSinaRows(code, rows), nil
		},
	}
}

func normalizeTrendRows(code string, rows []eastmoney.TrendRow) []MinuteBar {
	normalized := symbol.ToCode(code)
	out := make([]MinuteBar, 0, len(rows))
	for _, row := range rows {
		closePrice := asFloat(row.Close, 0)
		out = append(out, MinuteBar{
			SymbolCode: normalized,
			Time:       padSeconds(row.Time),
			Open:       asFloat(row.Open, 0),
			Close:      closePrice,
			High:       asFloat(row.High, closePrice),
			Low:        asFloat(row.Low, closePrice),
			VolumeLot:  asFloat(row.Volume, 0),
			AmountCNY:  asFloat(row.Amount, 0),
			AvgPrice:   asFloat(row.AvgPrice, 0),
			Source:     SourceEastmoneyMinute,
		})
	}
	return out
}

func normalizeSinaRows(code string, rows []sina.KlineRow) []MinuteBar {
	normalized := symbol.ToCode(code)
	out := make([]MinuteBar, 0, len(rows))
	for _, row := range rows {
		closePrice := asFloat(row.Close, 0)
		out = append(out, MinuteBar{
			SymbolCode: normalized,
			Time:       padSeconds(row.Day),
			Open:       asFloat(row.Open, 0),
			Close:      closePrice,
			High:       asFloat(row.High, closePrice),
			Low:        asFloat(row.Low, closePrice),
			// sina counts shares, the raw log counts lots
			VolumeLot: asFloat(row.Volume, 0) / 100,
			AmountCNY: 0,
			AvgPrice:  0,
			Source:    SourceSinaMinute,
		})
	}
	return out
}

// padSeconds widens "2026-02-12 09:31" to the fixed 19-char layout.
func padSeconds(ts string) string {
	if len(ts) == 16 {
		return ts + ":00"
	}
	return ts
}
