package collector

import (
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy bounds retries around a single upstream call: fixed sleep
// between attempts, applied per call, not per pass.
type RetryPolicy struct {
	Attempts int
	Sleep    time.Duration
}

// Do runs fn up to Attempts times, sleeping between failures. The last
// error is returned when every attempt fails.
func (p RetryPolicy) Do(label string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < attempts {
			logrus.Warnf("%s: attempt %d/%d failed: %v", label, attempt, attempts, err)
			time.Sleep(p.Sleep)
		}
	}
	return err
}
