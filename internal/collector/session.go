package collector

import "time"

// A股连续竞价时段判断
//
// Synthetic bars are only fabricated while the market is actually trading;
// outside the session a missing bar means "no trade", not "gap".

var shanghaiTZ = loadShanghaiTZ()

func loadShanghaiTZ() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// IsMarketOpen reports whether now falls inside the domestic A-share
// continuous session: Mon-Fri 09:30-11:30 and 13:00-15:00, boundaries
// inclusive, Asia/Shanghai time.
func IsMarketOpen(now time.Time) bool {
	current := now.In(shanghaiTZ)
	if wd := current.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}

	minutes := current.Hour()*60 + current.Minute()
	morning := minutes >= 9*60+30 && minutes <= 11*60+30
	afternoon := minutes >= 13*60 && minutes <= 15*60
	return morning || afternoon
}

// MinuteStamp truncates now to the minute in exchange-local time and
// renders it in the raw log's fixed-width layout.
func MinuteStamp(now time.Time) string {
	return now.In(shanghaiTZ).Truncate(time.Minute).Format(TimeLayout)
}
