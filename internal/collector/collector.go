package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"cna-data-service/internal/jsonfile"
	"cna-data-service/internal/symbol"
)

// Mirror receives live copies of collected quotes and pass summaries.
// Optional; mirror failures are logged, never fatal to the pass.
type Mirror interface {
	StoreQuote(ctx context.Context, quote QuoteSnapshot) error
	StoreSummary(ctx context.Context, summary *Summary) error
}

// Runner drives collection passes. One pass walks all requested symbols in
// order: minute fallback chain, checkpoint-gated append, quote tiers,
// synthetic bar, cumulative tracker update. Symbols fail independently; the
// pass aggregates their errors and always finishes unless persistence
// itself fails.
type Runner struct {
	MinuteSources []MinuteSource
	Quotes        QuoteSources
	Retry         RetryPolicy

	Symbols  []string
	TailBars int

	RawMinutePath  string
	RawQuotesPath  string
	CheckpointPath string

	Mirror Mirror

	// Now is the pass clock, replaceable in tests. Defaults to time.Now.
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// RunPass executes one collection pass. The returned error is non-nil only
// for persistence failures; upstream failures land in Summary.Errors.
func (r *Runner) RunPass(ctx context.Context) (*Summary, error) {
	start := r.now()
	checkpoint := LoadCheckpoint(r.CheckpointPath)

	summary := &Summary{
		SymbolsRequested: len(r.Symbols),
		Errors:           []SymbolError{},
		RawMinutePath:    r.RawMinutePath,
		RawQuotesPath:    r.RawQuotesPath,
		CheckpointPath:   r.CheckpointPath,
	}

	if err := jsonfile.EnsureParentDir(r.RawMinutePath); err != nil {
		return nil, fmt.Errorf("failed to prepare raw minute dir: %w", err)
	}
	writer, err := os.OpenFile(r.RawMinutePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw minute log: %w", err)
	}
	defer writer.Close()

	cache := &spotCache{}
	quoteRows := make([]QuoteSnapshot, 0, len(r.Symbols))

	for _, requested := range r.Symbols {
		code := symbol.ToCode(requested)
		barAppended := false
		var lastFetched *MinuteBar

		rows, err := FetchMinuteTail(ctx, r.MinuteSources, r.Retry, code, r.TailBars)
		if err != nil {
			logrus.Warnf("%s: minute collection failed: %v", code, err)
			summary.Errors = append(summary.Errors, SymbolError{SymbolCode: code, Stage: "minute", Error: err.Error()})
		} else {
			lastFetched = &rows[len(rows)-1]
			for i := range rows {
				if !checkpoint.ShouldAppend(code, rows[i].Time) {
					continue
				}
				rows[i].IngestTS = r.now().Format(TimeLayout)
				if err := appendBar(writer, rows[i]); err != nil {
					return nil, fmt.Errorf("failed to append raw bar: %w", err)
				}
				checkpoint.Advance(code, rows[i].Time)
				summary.MinuteAppended++
				barAppended = true
			}
		}

		quote, quoteErr := fetchQuote(ctx, r.Quotes, r.Retry, cache, code, lastFetched)
		if quoteErr != nil {
			logrus.Warnf("%s: quote collection failed: %v", code, quoteErr)
			summary.Errors = append(summary.Errors, SymbolError{SymbolCode: code, Stage: "quote", Error: quoteErr.Error()})
			continue
		}
		quote.IngestTS = r.now().Format(TimeLayout)
		quoteRows = append(quoteRows, quote)
		summary.QuotesCollected++

		if r.Mirror != nil {
			if err := r.Mirror.StoreQuote(ctx, quote); err != nil {
				logrus.Warnf("%s: quote mirror failed: %v", code, err)
			}
		}

		if !barAppended && quote.HasCumulative() && IsMarketOpen(r.now()) {
			stamp := MinuteStamp(r.now())
			if checkpoint.ShouldAppend(code, stamp) {
				prevVol, prevTurn, havePrev := checkpoint.Cumulative(code)
				bar := SynthesizeBar(code, quote, prevVol, prevTurn, havePrev, stamp)
				bar.IngestTS = r.now().Format(TimeLayout)
				if err := appendBar(writer, bar); err != nil {
					return nil, fmt.Errorf("failed to append synthetic bar: %w", err)
				}
				checkpoint.Advance(code, stamp)
				summary.SyntheticAppended++
				logrus.Debugf("%s: synthesized bar at %s", code, stamp)
			}
		}

		// Trackers advance on every cumulative-bearing quote, whether or
		// not a synthetic bar was written this cycle.
		if quote.HasCumulative() {
			checkpoint.SetCumulative(code, quote.VolumeLot, quote.TurnoverCNY)
		}
	}

	quotesDoc := RawQuotesDocument{
		SchemaVersion: rawQuotesSchemaVersion,
		GeneratedAt:   r.now().Format(TimeLayout),
		Rows:          quoteRows,
		Errors:        summary.Errors,
	}
	if err := jsonfile.WriteAtomic(r.RawQuotesPath, quotesDoc); err != nil {
		return nil, fmt.Errorf("failed to persist raw quotes: %w", err)
	}
	if err := checkpoint.Save(r.CheckpointPath); err != nil {
		return nil, fmt.Errorf("failed to persist checkpoint: %w", err)
	}

	if r.Mirror != nil {
		if err := r.Mirror.StoreSummary(ctx, summary); err != nil {
			logrus.Warnf("summary mirror failed: %v", err)
		}
	}

	logrus.Infof("pass completed: %d symbols, %d minute bars, %d synthetic, %d quotes, %d errors, duration %.1fs",
		summary.SymbolsRequested, summary.MinuteAppended, summary.SyntheticAppended,
		summary.QuotesCollected, len(summary.Errors), r.now().Sub(start).Seconds())
	return summary, nil
}

func appendBar(writer *os.File, bar MinuteBar) error {
	line, err := json.Marshal(bar)
	if err != nil {
		return err
	}
	_, err = writer.Write(append(line, '\n'))
	return err
}
