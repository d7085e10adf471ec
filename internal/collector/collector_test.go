package collector

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type runnerPaths struct {
	raw, quotes, checkpoint string
}

func tempPaths(t *testing.T) runnerPaths {
	t.Helper()
	dir := t.TempDir()
	return runnerPaths{
		raw:        filepath.Join(dir, "raw_minute.jsonl"),
		quotes:     filepath.Join(dir, "raw_quotes.json"),
		checkpoint: filepath.Join(dir, "checkpoint.json"),
	}
}

func readRawBars(t *testing.T, path string) []MinuteBar {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open raw log: %v", err)
	}
	defer f.Close()

	var bars []MinuteBar
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var bar MinuteBar
		if err := json.Unmarshal(scanner.Bytes(), &bar); err != nil {
			t.Fatalf("raw log line not parseable: %v", err)
		}
		bars = append(bars, bar)
	}
	return bars
}

func fixedClock(hour, min int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 2, 13, hour, min, 0, 0, shanghaiTZ)
	}
}

func TestRunPassIsIdempotent(t *testing.T) {
	paths := tempPaths(t)
	runner := &Runner{
		MinuteSources: []MinuteSource{
			fakeMinuteSource(SourceEastmoneyMinute, makeBars(SourceEastmoneyMinute, 3), nil),
		},
		Quotes: QuoteSources{
			Direct: func(ctx context.Context, code string) (QuoteSnapshot, error) {
				return QuoteSnapshot{SymbolCode: code, Latest: 102, VolumeLot: 5000, TurnoverCNY: 510000, Source: SourceEastmoneyQuote}, nil
			},
		},
		Retry:          noRetry,
		Symbols:        []string{"600519"},
		TailBars:       8,
		RawMinutePath:  paths.raw,
		RawQuotesPath:  paths.quotes,
		CheckpointPath: paths.checkpoint,
		// market closed: real bars only, no synthesis
		Now: fixedClock(16, 0),
	}

	first, err := runner.RunPass(context.Background())
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if first.MinuteAppended != 3 {
		t.Errorf("first pass appended %d bars, want 3", first.MinuteAppended)
	}
	if len(first.Errors) != 0 {
		t.Errorf("unexpected errors: %v", first.Errors)
	}

	second, err := runner.RunPass(context.Background())
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if second.MinuteAppended != 0 || second.SyntheticAppended != 0 {
		t.Errorf("second pass with unchanged upstream appended %d+%d bars, want 0",
			second.MinuteAppended, second.SyntheticAppended)
	}

	bars := readRawBars(t, paths.raw)
	if len(bars) != 3 {
		t.Fatalf("raw log holds %d bars, want 3", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !(bars[i].Time > bars[i-1].Time) {
			t.Errorf("raw log not strictly forward at line %d: %q then %q", i, bars[i-1].Time, bars[i].Time)
		}
	}

	cp := LoadCheckpoint(paths.checkpoint)
	if cp.LastTimeBySymbol["600519"] != bars[len(bars)-1].Time {
		t.Errorf("checkpoint cursor %q, want last bar time %q",
			cp.LastTimeBySymbol["600519"], bars[len(bars)-1].Time)
	}
}

func TestRunPassAppendsOnlyNewBars(t *testing.T) {
	paths := tempPaths(t)
	data := makeBars(SourceEastmoneyMinute, 3)
	runner := &Runner{
		MinuteSources: []MinuteSource{fakeMinuteSource(SourceEastmoneyMinute, data, nil)},
		Quotes: QuoteSources{
			Direct: func(ctx context.Context, code string) (QuoteSnapshot, error) {
				return QuoteSnapshot{}, errors.New("quote down")
			},
		},
		Retry:          noRetry,
		Symbols:        []string{"600519"},
		TailBars:       8,
		RawMinutePath:  paths.raw,
		RawQuotesPath:  paths.quotes,
		CheckpointPath: paths.checkpoint,
		Now:            fixedClock(16, 0),
	}

	if _, err := runner.RunPass(context.Background()); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	// upstream grows by two bars; overlap must not duplicate
	grown := append(append([]MinuteBar{}, data...), makeBars(SourceEastmoneyMinute, 5)[3:]...)
	runner.MinuteSources = []MinuteSource{fakeMinuteSource(SourceEastmoneyMinute, grown, nil)}

	second, err := runner.RunPass(context.Background())
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if second.MinuteAppended != 2 {
		t.Errorf("second pass appended %d bars, want 2", second.MinuteAppended)
	}
	if got := len(readRawBars(t, paths.raw)); got != 5 {
		t.Errorf("raw log holds %d bars, want 5", got)
	}
}

func TestRunPassAggregatesSymbolErrors(t *testing.T) {
	paths := tempPaths(t)
	runner := &Runner{
		MinuteSources: []MinuteSource{
			fakeMinuteSource(SourceEastmoneyMinute, nil, errors.New("minute down")),
		},
		Quotes: QuoteSources{
			Direct: func(ctx context.Context, code string) (QuoteSnapshot, error) {
				return QuoteSnapshot{}, errors.New("quote down")
			},
			Spot: func(ctx context.Context) (map[string]QuoteSnapshot, error) {
				return nil, errors.New("spot down")
			},
		},
		Retry:          noRetry,
		Symbols:        []string{"600519", "000001"},
		TailBars:       8,
		RawMinutePath:  paths.raw,
		RawQuotesPath:  paths.quotes,
		CheckpointPath: paths.checkpoint,
		Now:            fixedClock(10, 0),
	}

	summary, err := runner.RunPass(context.Background())
	if err != nil {
		t.Fatalf("pass should survive upstream failures, got: %v", err)
	}
	// each symbol fails both stages
	if len(summary.Errors) != 4 {
		t.Errorf("aggregated %d errors, want 4: %v", len(summary.Errors), summary.Errors)
	}
	if summary.QuotesCollected != 0 || summary.MinuteAppended != 0 {
		t.Errorf("nothing should be collected: %+v", summary)
	}

	var doc RawQuotesDocument
	raw, readErr := os.ReadFile(paths.quotes)
	if readErr != nil {
		t.Fatalf("quotes doc not written: %v", readErr)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("quotes doc not parseable: %v", err)
	}
	if doc.SchemaVersion != "collector.raw.quotes.v1" {
		t.Errorf("schema version = %q", doc.SchemaVersion)
	}
	if len(doc.Errors) != 4 {
		t.Errorf("quotes doc carries %d errors, want 4", len(doc.Errors))
	}
}

func TestRunPassSynthesizesDuringSession(t *testing.T) {
	paths := tempPaths(t)
	cumVol, cumTurn := 5000.0, 1000000.0
	runner := &Runner{
		MinuteSources: []MinuteSource{
			fakeMinuteSource(SourceEastmoneyMinute, nil, errors.New("minute down")),
		},
		Quotes: QuoteSources{
			Direct: func(ctx context.Context, code string) (QuoteSnapshot, error) {
				return QuoteSnapshot{
					SymbolCode: code, Latest: 102.5,
					VolumeLot: cumVol, TurnoverCNY: cumTurn,
					Source: SourceEastmoneyQuote,
				}, nil
			},
		},
		Retry:          noRetry,
		Symbols:        []string{"600519"},
		TailBars:       8,
		RawMinutePath:  paths.raw,
		RawQuotesPath:  paths.quotes,
		CheckpointPath: paths.checkpoint,
		Now:            fixedClock(10, 0),
	}

	first, err := runner.RunPass(context.Background())
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if first.SyntheticAppended != 1 {
		t.Fatalf("first pass synthesized %d bars, want 1", first.SyntheticAppended)
	}

	// same minute again: gate must hold even though the quote still arrives
	repeat, err := runner.RunPass(context.Background())
	if err != nil {
		t.Fatalf("repeat pass failed: %v", err)
	}
	if repeat.SyntheticAppended != 0 {
		t.Errorf("repeat pass within the same minute synthesized %d bars, want 0", repeat.SyntheticAppended)
	}

	// next minute, counters advanced
	cumVol, cumTurn = 5100, 1020000
	runner.Now = fixedClock(10, 1)
	third, err := runner.RunPass(context.Background())
	if err != nil {
		t.Fatalf("third pass failed: %v", err)
	}
	if third.SyntheticAppended != 1 {
		t.Fatalf("third pass synthesized %d bars, want 1", third.SyntheticAppended)
	}

	bars := readRawBars(t, paths.raw)
	if len(bars) != 2 {
		t.Fatalf("raw log holds %d bars, want 2", len(bars))
	}
	if bars[0].VolumeLot != 0 || bars[0].AmountCNY != 0 {
		t.Errorf("first synthetic bar must carry zero deltas: %+v", bars[0])
	}
	if bars[1].VolumeLot != 100 || bars[1].AmountCNY != 20000 {
		t.Errorf("second synthetic bar deltas = %v/%v, want 100/20000", bars[1].VolumeLot, bars[1].AmountCNY)
	}
	for _, bar := range bars {
		if bar.Source != SourceSyntheticQuoteBar {
			t.Errorf("source = %q, want %q", bar.Source, SourceSyntheticQuoteBar)
		}
		if bar.Open != bar.High || bar.High != bar.Low || bar.Low != bar.Close {
			t.Errorf("synthetic bar not flat: %+v", bar)
		}
	}
}

func TestRunPassSkipsSynthesisWhenMarketClosed(t *testing.T) {
	paths := tempPaths(t)
	runner := &Runner{
		MinuteSources: []MinuteSource{
			fakeMinuteSource(SourceEastmoneyMinute, nil, errors.New("minute down")),
		},
		Quotes: QuoteSources{
			Direct: func(ctx context.Context, code string) (QuoteSnapshot, error) {
				return QuoteSnapshot{SymbolCode: code, Latest: 102, VolumeLot: 5000, TurnoverCNY: 510000, Source: SourceEastmoneyQuote}, nil
			},
		},
		Retry:          noRetry,
		Symbols:        []string{"600519"},
		TailBars:       8,
		RawMinutePath:  paths.raw,
		RawQuotesPath:  paths.quotes,
		CheckpointPath: paths.checkpoint,
		Now:            fixedClock(16, 0),
	}

	summary, err := runner.RunPass(context.Background())
	if err != nil {
		t.Fatalf("pass failed: %v", err)
	}
	if summary.SyntheticAppended != 0 {
		t.Errorf("synthesized %d bars outside the session, want 0", summary.SyntheticAppended)
	}
	if summary.QuotesCollected != 1 {
		t.Errorf("quote should still be collected when closed, got %d", summary.QuotesCollected)
	}
}
