package collector

// Source tags identify which upstream capability produced a record. They
// travel with every raw record so downstream consumers can tell real bars,
// backfilled bars and synthetic bars apart.
const (
	SourceEastmoneyMinute   = "eastmoney.trends_min"
	SourceSinaMinute        = "sina.kline_min"
	SourceEastmoneyQuote    = "eastmoney.bid_ask"
	SourceEastmoneySpot     = "eastmoney.spot_list"
	SourceMinuteBarFallback = "minute_bar_fallback"
	SourceSyntheticQuoteBar = "quote.synthetic"
)

// Timestamp layout of every minute bar in the raw log. Fixed-width and
// zero-padded, so lexicographic comparison equals chronological comparison;
// the checkpoint gate depends on this.
const TimeLayout = "2006-01-02 15:04:05"

// MinuteBar is one normalized 1-minute bar. Volume is in lots (手),
// amount in CNY; both are per-bar, not cumulative.
type MinuteBar struct {
	SymbolCode string  `json:"symbol_code"`
	Time       string  `json:"time"`
	Open       float64 `json:"open"`
	Close      float64 `json:"close"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	VolumeLot  float64 `json:"volume_lot"`
	AmountCNY  float64 `json:"amount_cny"`
	AvgPrice   float64 `json:"avg_price"`
	Source     string  `json:"source"`
	IngestTS   string  `json:"ingest_ts,omitempty"`
}

// QuoteSnapshot is one point-in-time quote. Unlike MinuteBar, VolumeLot and
// TurnoverCNY are cumulative for the trading day; the synthetic bar
// synthesizer turns consecutive observations into per-bar deltas.
type QuoteSnapshot struct {
	SymbolCode  string  `json:"symbol_code"`
	Latest      float64 `json:"latest"`
	PctChange   float64 `json:"pct_change"`
	TurnoverCNY float64 `json:"turnover_cny"`
	VolumeLot   float64 `json:"volume_lot"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	PrevClose   float64 `json:"prev_close"`
	Source      string  `json:"source"`
	IngestTS    string  `json:"ingest_ts,omitempty"`
}

// HasCumulative reports whether the snapshot's volume/turnover fields are
// genuine day-cumulative counters. Bar-derived fallback quotes carry
// per-bar values and must not advance the cumulative trackers.
func (q QuoteSnapshot) HasCumulative() bool {
	return q.Source != SourceMinuteBarFallback
}

// SymbolError records one failed stage for one symbol. A pass aggregates
// these instead of aborting.
type SymbolError struct {
	SymbolCode string `json:"symbol_code"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

// RawQuotesDocument is the per-pass quote snapshot file, atomically
// rewritten every pass.
type RawQuotesDocument struct {
	SchemaVersion string          `json:"schema_version"`
	GeneratedAt   string          `json:"generated_at"`
	Rows          []QuoteSnapshot `json:"rows"`
	Errors        []SymbolError   `json:"errors"`
}

const rawQuotesSchemaVersion = "collector.raw.quotes.v1"

// Summary reports one collection pass.
type Summary struct {
	SymbolsRequested  int           `json:"symbols_requested"`
	MinuteAppended    int           `json:"minute_rows_appended"`
	SyntheticAppended int           `json:"synthetic_rows_appended"`
	QuotesCollected   int           `json:"quotes_collected"`
	Errors            []SymbolError `json:"errors"`
	RawMinutePath     string        `json:"raw_minute_path"`
	RawQuotesPath     string        `json:"raw_quotes_path"`
	CheckpointPath    string        `json:"checkpoint_path"`
}
