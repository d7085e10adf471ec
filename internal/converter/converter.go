package converter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cna-data-service/internal/jsonfile"
	"cna-data-service/internal/symbol"
)

// 原始分钟线 → 标准帧转换
//
// Reads the whole raw append-only log every run (conversion is not
// checkpointed), dedups by (venue symbol, minute window) keeping the last
// record seen, sorts, caps to the retention window and re-sequences.
// Raw records may carry either normalized field names or the provider's
// original Chinese column names; both are accepted.

const (
	barSchemaVersion    = "market.bar.v1"
	framesSchemaVersion = "market.frames.v1"
	market              = "CN-A"
	mode                = "real"
	providerName        = "eastmoney"
)

type Instrument struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Timezone string `json:"timezone"`
	Currency string `json:"currency"`
}

type Window struct {
	StartTsMs  int64  `json:"start_ts_ms"`
	EndTsMs    int64  `json:"end_ts_ms"`
	TradingDay string `json:"trading_day"`
}

type Session struct {
	Phase     string `json:"phase"`
	IsHalt    bool   `json:"is_halt"`
	IsPartial bool   `json:"is_partial"`
}

type Bar struct {
	Open         float64 `json:"open"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	Close        float64 `json:"close"`
	VolumeShares int64   `json:"volume_shares"`
	TurnoverCNY  float64 `json:"turnover_cny"`
	VWAP         float64 `json:"vwap"`
}

// Frame is one canonical 1-minute OHLCV record.
type Frame struct {
	SchemaVersion string     `json:"schema_version"`
	Market        string     `json:"market"`
	Mode          string     `json:"mode"`
	Provider      string     `json:"provider"`
	Feed          string     `json:"feed"`
	Seq           int        `json:"seq"`
	EventTsMs     int64      `json:"event_ts_ms"`
	IngestTsMs    int64      `json:"ingest_ts_ms"`
	Instrument    Instrument `json:"instrument"`
	Interval      string     `json:"interval"`
	Window        Window     `json:"window"`
	Session       Session    `json:"session"`
	Bar           Bar        `json:"bar"`
}

// Document is the canonical frame file, atomically rewritten per run.
type Document struct {
	SchemaVersion string  `json:"schema_version"`
	Market        string  `json:"market"`
	Mode          string  `json:"mode"`
	Provider      string  `json:"provider"`
	Frames        []Frame `json:"frames"`
}

// Summary reports one conversion run.
type Summary struct {
	RecordsRead     int    `json:"records_read"`
	CanonicalFrames int    `json:"canonical_frames"`
	OutputPath      string `json:"output_path"`
}

var shanghaiTZ = loadShanghaiTZ()

func loadShanghaiTZ() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// pick returns the first present key of row.
func pick(row map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := row[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

func asFloat(value interface{}, fallback float64) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fallback
		}
		return f
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return fallback
		}
		return f
	default:
		return fallback
	}
}

func round(value float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(value).Round(places).Float64()
	return f
}

func parseStartTsMs(ts string) (int64, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", ts, shanghaiTZ)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

func sessionPhase(ts string) string {
	if len(ts) >= 13 && ts[11:13] < "12" {
		return "continuous_am"
	}
	return "continuous_pm"
}

// MapRowToFrame converts one raw record into a canonical frame. Absent
// high/low default to max/min(open, close); absent turnover defaults to
// close*shares; VWAP falls back to close when the bar traded nothing.
func MapRowToFrame(code string, row map[string]interface{}, seq int) (Frame, error) {
	normalized := symbol.ToCode(code)
	venueSymbol := symbol.ToCanonicalSymbol(normalized)

	timeStr := asString(pick(row, "时间", "time"))
	startTsMs, err := parseStartTsMs(timeStr)
	if err != nil {
		return Frame{}, fmt.Errorf("unparseable bar time %q: %w", timeStr, err)
	}
	endTsMs := startTsMs + 60_000

	openPrice := asFloat(pick(row, "开盘", "open"), 0)
	closePrice := asFloat(pick(row, "收盘", "close"), openPrice)
	highPrice := asFloat(pick(row, "最高", "high"), maxFloat(openPrice, closePrice))
	lowPrice := asFloat(pick(row, "最低", "low"), minFloat(openPrice, closePrice))

	volumeLot := asFloat(pick(row, "成交量", "volume_lot"), 0)
	volumeShares := int64(volumeLot*100 + 0.5)
	turnoverCNY := asFloat(pick(row, "成交额", "amount_cny"), closePrice*float64(volumeShares))

	vwap := closePrice
	if volumeShares > 0 {
		vwap = turnoverCNY / float64(volumeShares)
	}

	return Frame{
		SchemaVersion: barSchemaVersion,
		Market:        market,
		Mode:          mode,
		Provider:      providerName,
		Feed:          "bars",
		Seq:           seq,
		EventTsMs:     endTsMs,
		IngestTsMs:    endTsMs + 250,
		Instrument: Instrument{
			Symbol:   venueSymbol,
			Exchange: symbol.ExchangeFromCode(normalized),
			Timezone: "Asia/Shanghai",
			Currency: "CNY",
		},
		Interval: "1m",
		Window: Window{
			StartTsMs:  startTsMs,
			EndTsMs:    endTsMs,
			TradingDay: truncateDay(timeStr),
		},
		Session: Session{
			Phase:     sessionPhase(timeStr),
			IsHalt:    false,
			IsPartial: false,
		},
		Bar: Bar{
			Open:         round(openPrice, 4),
			High:         round(highPrice, 4),
			Low:          round(lowPrice, 4),
			Close:        round(closePrice, 4),
			VolumeShares: volumeShares,
			TurnoverCNY:  round(turnoverCNY, 2),
			VWAP:         round(vwap, 4),
		},
	}, nil
}

type frameKey struct {
	symbol    string
	startTsMs int64
}

// ConvertRecords dedups, sorts, truncates to the most recent maxFrames and
// re-assigns sequence numbers 1..N. Later raw records overwrite earlier
// ones with the same (symbol, window) key, so reprocessing corrections is
// safe.
func ConvertRecords(records []map[string]interface{}, maxFrames int) []Frame {
	deduped := make(map[frameKey]Frame)

	for idx, row := range records {
		rawCode := asString(pick(row, "symbol_code", "code"))
		timeStr := asString(pick(row, "时间", "time"))
		if rawCode == "" || timeStr == "" {
			continue
		}
		frame, err := MapRowToFrame(rawCode, row, idx+1)
		if err != nil {
			logrus.Debugf("skipping raw record: %v", err)
			continue
		}
		key := frameKey{symbol: frame.Instrument.Symbol, startTsMs: frame.Window.StartTsMs}
		deduped[key] = frame
	}

	// (window, symbol) is unique after dedup, so the sort order is total
	frames := make([]Frame, 0, len(deduped))
	for _, frame := range deduped {
		frames = append(frames, frame)
	}
	sort.Slice(frames, func(i, j int) bool {
		if frames[i].Window.StartTsMs != frames[j].Window.StartTsMs {
			return frames[i].Window.StartTsMs < frames[j].Window.StartTsMs
		}
		return frames[i].Instrument.Symbol < frames[j].Instrument.Symbol
	})

	if len(frames) > maxFrames {
		frames = frames[len(frames)-maxFrames:]
	}
	for i := range frames {
		frames[i].Seq = i + 1
	}
	return frames
}

// Run reads the raw jsonl log from the start, converts and atomically
// writes the canonical frame document.
func Run(rawMinutePath, outputPath string, maxFrames int) (*Summary, error) {
	records, err := readRecords(rawMinutePath)
	if err != nil {
		return nil, err
	}

	frames := ConvertRecords(records, maxFrames)
	payload := Document{
		SchemaVersion: framesSchemaVersion,
		Market:        market,
		Mode:          mode,
		Provider:      providerName,
		Frames:        frames,
	}
	if err := jsonfile.WriteAtomic(outputPath, payload); err != nil {
		return nil, fmt.Errorf("failed to write canonical frames: %w", err)
	}

	logrus.Infof("conversion completed: %d records -> %d frames", len(records), len(frames))
	return &Summary{
		RecordsRead:     len(records),
		CanonicalFrames: len(frames),
		OutputPath:      outputPath,
	}, nil
}

func readRecords(path string) ([]map[string]interface{}, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open raw minute log: %w", err)
	}
	defer file.Close()

	var records []map[string]interface{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row map[string]interface{}
		if err := json.Unmarshal(line, &row); err != nil {
			// partial trailing line after a crash is expected, skip it
			continue
		}
		records = append(records, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read raw minute log: %w", err)
	}
	return records, nil
}

func truncateDay(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
