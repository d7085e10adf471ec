package collector

import (
	"time"

	"github.com/sirupsen/logrus"

	"cna-data-service/internal/jsonfile"
)

const checkpointSchemaVersion = "collector.checkpoint.v1"

// Checkpoint is the durable per-symbol cursor state. It is loaded once at
// the start of a collection pass, mutated in memory, and atomically
// rewritten once at the end; the pass is its only writer.
//
// LastTimeBySymbol gates the raw log: a bar is appended only when its
// timestamp compares strictly greater than the stored one. The comparison
// is plain string order, valid only because TimeLayout is fixed-width and
// zero-padded; ShouldAppend enforces that invariant at the boundary.
type Checkpoint struct {
	SchemaVersion        string             `json:"schema_version"`
	UpdatedAt            string             `json:"updated_at"`
	LastTimeBySymbol     map[string]string  `json:"last_time_by_symbol"`
	LastVolumeBySymbol   map[string]float64 `json:"last_volume_by_symbol"`
	LastTurnoverBySymbol map[string]float64 `json:"last_turnover_by_symbol"`
}

// NewCheckpoint returns an empty checkpoint.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		SchemaVersion:        checkpointSchemaVersion,
		LastTimeBySymbol:     make(map[string]string),
		LastVolumeBySymbol:   make(map[string]float64),
		LastTurnoverBySymbol: make(map[string]float64),
	}
}

// LoadCheckpoint reads the checkpoint document, falling back to an empty
// one when the file is missing or corrupt.
func LoadCheckpoint(path string) *Checkpoint {
	cp := NewCheckpoint()
	var loaded Checkpoint
	if !jsonfile.ReadInto(path, &loaded) {
		return cp
	}
	if loaded.LastTimeBySymbol != nil {
		cp.LastTimeBySymbol = loaded.LastTimeBySymbol
	}
	if loaded.LastVolumeBySymbol != nil {
		cp.LastVolumeBySymbol = loaded.LastVolumeBySymbol
	}
	if loaded.LastTurnoverBySymbol != nil {
		cp.LastTurnoverBySymbol = loaded.LastTurnoverBySymbol
	}
	return cp
}

// Save atomically rewrites the checkpoint document.
func (c *Checkpoint) Save(path string) error {
	c.SchemaVersion = checkpointSchemaVersion
	c.UpdatedAt = time.Now().Format(time.RFC3339)
	return jsonfile.WriteAtomic(path, c)
}

// ShouldAppend reports whether a candidate bar timestamp advances past the
// checkpoint for code. Empty or malformed timestamps never append.
func (c *Checkpoint) ShouldAppend(code, ts string) bool {
	if ts == "" {
		return false
	}
	if !validStamp(ts) {
		logrus.Warnf("%s: rejecting bar with malformed timestamp %q", code, ts)
		return false
	}
	last := c.LastTimeBySymbol[code]
	return last == "" || ts > last
}

// Advance moves the cursor for code to ts.
func (c *Checkpoint) Advance(code, ts string) {
	c.LastTimeBySymbol[code] = ts
}

// Cumulative returns the last observed day-cumulative volume/turnover for
// code. ok is false when there is no previous observation, in which case
// the synthesizer must use a zero delta rather than the full counter.
func (c *Checkpoint) Cumulative(code string) (volumeLot, turnoverCNY float64, ok bool) {
	volumeLot, haveVol := c.LastVolumeBySymbol[code]
	turnoverCNY, haveTurn := c.LastTurnoverBySymbol[code]
	return volumeLot, turnoverCNY, haveVol && haveTurn
}

// SetCumulative records the current day-cumulative counters for code.
func (c *Checkpoint) SetCumulative(code string, volumeLot, turnoverCNY float64) {
	c.LastVolumeBySymbol[code] = volumeLot
	c.LastTurnoverBySymbol[code] = turnoverCNY
}

func validStamp(ts string) bool {
	_, err := time.Parse(TimeLayout, ts)
	return err == nil
}
