package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalendarKey(t *testing.T) {
	assert.Equal(t, "calendars/abc123.ics", CalendarKey("abc123"))
	// path separators in a token cannot escape the prefix
	assert.Equal(t, "calendars/evil.ics", CalendarKey("../../evil"))
}

func TestPresignExpireDefault(t *testing.T) {
	s := &S3{cfg: S3Config{}}
	assert.Equal(t, 15.0, s.PresignExpire().Minutes())

	s = &S3{cfg: S3Config{PresignExpireMinutes: 60}}
	assert.Equal(t, 60.0, s.PresignExpire().Minutes())
}
