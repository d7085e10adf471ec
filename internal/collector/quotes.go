package collector

import (
	"context"
	"fmt"
	"sync"

	"cna-data-service/internal/provider/eastmoney"
	"cna-data-service/internal/symbol"
)

// QuoteSources holds the two real quote capabilities. The third tier,
// synthesizing a quote from the symbol's last minute bar, needs no upstream
// call and lives in fetchQuote itself.
type QuoteSources struct {
	Direct func(ctx context.Context, code string) (QuoteSnapshot, error)
	Spot   func(ctx context.Context) (map[string]QuoteSnapshot, error)
}

// spotCache memoizes the whole-market snapshot for the duration of one
// pass. Success and failure are both cached: the market-wide fetch happens
// at most once per pass no matter how many symbols fall through to it.
// Single-flight under the mutex in case a caller parallelizes the pass.
type spotCache struct {
	mu      sync.Mutex
	fetched bool
	rows    map[string]QuoteSnapshot
	err     error
}

func (s *spotCache) get(ctx context.Context, fetch func(ctx context.Context) (map[string]QuoteSnapshot, error)) (map[string]QuoteSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fetched {
		s.fetched = true
		s.rows, s.err = fetch(ctx)
	}
	return s.rows, s.err
}

// fetchQuote resolves one symbol's quote through the fallback tiers:
//  1. direct single-symbol quote, under retry
//  2. whole-market snapshot lookup (lazy, cached for the pass)
//  3. quote synthesized from the last minute bar fetched this pass
//
// Only when all three fail does the symbol get a quote error.
func fetchQuote(ctx context.Context, sources QuoteSources, retry RetryPolicy, cache *spotCache, code string, lastBar *MinuteBar) (QuoteSnapshot, error) {
	var quote QuoteSnapshot
	directErr := retry.Do(fmt.Sprintf("direct quote %s", code), func() error {
		var err error
		quote, err = sources.Direct(ctx, code)
		return err
	})
	if directErr == nil {
		return quote, nil
	}

	var spotErr error
	if sources.Spot != nil {
		var rows map[string]QuoteSnapshot
		rows, spotErr = cache.get(ctx, sources.Spot)
		if spotErr == nil {
			if row, ok := rows[code]; ok {
				return row, nil
			}
			spotErr = fmt.Errorf("symbol %s not in spot snapshot", code)
		}
	} else {
		spotErr = fmt.Errorf("spot source not configured")
	}

	if lastBar != nil {
		// pct_change stays 0 here: without a prev-close reference the tag
		// marks the quote as pct-change-agnostic and consumers rely on it
		return QuoteSnapshot{
			SymbolCode:  code,
			Latest:      lastBar.Close,
			PctChange:   0,
			TurnoverCNY: lastBar.AmountCNY,
			VolumeLot:   lastBar.VolumeLot,
			Open:        lastBar.Open,
			High:        lastBar.High,
			Low:         lastBar.Low,
			PrevClose:   0,
			Source:      SourceMinuteBarFallback,
		}, nil
	}

	return QuoteSnapshot{}, fmt.Errorf("all quote sources failed for %s: direct: %v; spot: %v", code, directErr, spotErr)
}

// EastmoneyQuoteSources adapts the eastmoney client's two quote
// capabilities into normalized snapshots.
func EastmoneyQuoteSources(client *eastmoney.Client) QuoteSources {
	return QuoteSources{
		Direct: func(ctx context.Context, code string) (QuoteSnapshot, error) {
			fields, err := client.Quote(ctx, symbol.SecID(code))
			if err != nil {
				return QuoteSnapshot{}, err
			}
			return normalizeQuoteFields(code, fields), nil
		},
		Spot: func(ctx context.Context) (map[string]QuoteSnapshot, error) {
			rows, err := client.SpotList(ctx)
			if err != nil {
				return nil, err
			}
			out := make(map[string]QuoteSnapshot, len(rows))
			for _, row := range rows {
				code := symbol.ToCode(row.Code)
				out[code] = QuoteSnapshot{
					SymbolCode:  code,
					Latest:      asFloat(row.Latest, 0),
					PctChange:   asFloat(row.PctChange, 0),
					TurnoverCNY: asFloat(row.Amount, 0),
					VolumeLot:   asFloat(row.Volume, 0),
					Open:        asFloat(row.Open, 0),
					High:        asFloat(row.High, 0),
					Low:         asFloat(row.Low, 0),
					PrevClose:   asFloat(row.PrevClose, 0),
					Source:      SourceEastmoneySpot,
				}
			}
			return out, nil
		},
	}
}

func normalizeQuoteFields(code string, fields *eastmoney.QuoteFields) QuoteSnapshot {
	return QuoteSnapshot{
		SymbolCode:  symbol.ToCode(code),
		Latest:      asFloat(fields.Latest, 0),
		PctChange:   asFloat(fields.PctChange, 0),
		TurnoverCNY: asFloat(fields.Amount, 0),
		VolumeLot:   asFloat(fields.Volume, 0),
		Open:        asFloat(fields.Open, 0),
		High:        asFloat(fields.High, 0),
		Low:         asFloat(fields.Low, 0),
		PrevClose:   asFloat(fields.PrevClose, 0),
		Source:      SourceEastmoneyQuote,
	}
}
