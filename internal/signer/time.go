package signer

import "time"

const (
	amzDateFormat  = "20060102T150405Z"
	shortDateFormat = "20060102"
)

// stamps is the {timestamp, date} pair the signer derives once per call and
// reuses for both the header/query value and the credential scope — reusing
// one time.Time for both, per spec, since splitting them across a
// boundary (e.g. a clock tick at midnight) breaks the signature.
type stamps struct {
	timestamp string
	date      string
}

func newStamps(t time.Time) stamps {
	t = t.UTC()
	return stamps{
		timestamp: t.Format(amzDateFormat),
		date:      t.Format(shortDateFormat),
	}
}
