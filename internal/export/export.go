package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"cna-data-service/internal/converter"
)

// 标准帧平铺导出
//
// Optional flat export of canonical bars for offline analysis. The nested
// frame document stays the contract file; this is a convenience copy.

// BarRow is the flat DTO shared by the csv/parquet/json savers.
type BarRow struct {
	Symbol       string  `json:"symbol" parquet:"symbol"`
	StartTsMs    int64   `json:"start_ts_ms" parquet:"start_ts_ms"`
	Open         float64 `json:"open" parquet:"open"`
	High         float64 `json:"high" parquet:"high"`
	Low          float64 `json:"low" parquet:"low"`
	Close        float64 `json:"close" parquet:"close"`
	VolumeShares int64   `json:"volume_shares" parquet:"volume_shares"`
	TurnoverCNY  float64 `json:"turnover_cny" parquet:"turnover_cny"`
	VWAP         float64 `json:"vwap" parquet:"vwap"`
}

// FromFrames flattens canonical frames into saver rows.
func FromFrames(frames []converter.Frame) []BarRow {
	rows := make([]BarRow, 0, len(frames))
	for _, f := range frames {
		rows = append(rows, BarRow{
			Symbol:       f.Instrument.Symbol,
			StartTsMs:    f.Window.StartTsMs,
			Open:         f.Bar.Open,
			High:         f.Bar.High,
			Low:          f.Bar.Low,
			Close:        f.Bar.Close,
			VolumeShares: f.Bar.VolumeShares,
			TurnoverCNY:  f.Bar.TurnoverCNY,
			VWAP:         f.Bar.VWAP,
		})
	}
	return rows
}

// FrameSaver persists flattened bars in one format.
type FrameSaver interface {
	Save(rows []BarRow, path string) error
	Extension() string
}

// NewFrameSaver creates an implementation by format (csv, parquet, json).
// Returns nil if the format is not supported.
func NewFrameSaver(format string) FrameSaver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "parquet":
		return ParquetSaver{}
	case "json":
		return JSONSaver{}
	default:
		return nil
	}
}

type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(rows []BarRow, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"symbol", "start_ts_ms", "open", "high", "low", "close", "volume_shares", "turnover_cny", "vwap"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			r.Symbol,
			strconv.FormatInt(r.StartTsMs, 10),
			floatStr(r.Open),
			floatStr(r.High),
			floatStr(r.Low),
			floatStr(r.Close),
			strconv.FormatInt(r.VolumeShares, 10),
			floatStr(r.TurnoverCNY),
			floatStr(r.VWAP),
		}); err != nil {
			return err
		}
	}
	return nil
}

type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(rows []BarRow, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(rows []BarRow, path string) error {
	return parquet.WriteFile(path, rows)
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
