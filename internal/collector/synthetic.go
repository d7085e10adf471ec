package collector

// 合成K线
//
// When a cycle lands between real bars — the quote moved but no new minute
// bar arrived — a flat bar is fabricated from the quote so downstream series
// keep advancing during the live session. Flat on purpose: a single
// point-in-time snapshot cannot honestly describe an intrabar range.

// SynthesizeBar builds a synthetic minute bar at stamp from a quote.
// Volume and turnover are deltas against the previous cumulative
// observation, clamped at zero so an upstream counter reset never produces
// a negative bar. With no previous observation the delta is zero: the
// alternative would book the whole day's volume into one bar on first run.
func SynthesizeBar(code string, quote QuoteSnapshot, prevVolumeLot, prevTurnoverCNY float64, havePrev bool, stamp string) MinuteBar {
	var volumeLot, turnoverCNY float64
	if havePrev {
		volumeLot = quote.VolumeLot - prevVolumeLot
		if volumeLot < 0 {
			volumeLot = 0
		}
		turnoverCNY = quote.TurnoverCNY - prevTurnoverCNY
		if turnoverCNY < 0 {
			turnoverCNY = 0
		}
	}

	return MinuteBar{
		SymbolCode: code,
		Time:       stamp,
		Open:       quote.Latest,
		Close:      quote.Latest,
		High:       quote.Latest,
		Low:        quote.Latest,
		VolumeLot:  volumeLot,
		AmountCNY:  turnoverCNY,
		AvgPrice:   quote.Latest,
		Source:     SourceSyntheticQuoteBar,
	}
}
