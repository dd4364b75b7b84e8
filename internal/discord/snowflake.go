package discord

import (
	"strconv"
	"time"
)

// Epoch is the first millisecond of 2015, the zero point of snowflake
// timestamps.
const Epoch int64 = 1420070400000

// SnowflakeTime returns the creation time encoded in the upper 42 bits of a
// snowflake id, in UTC.
func SnowflakeTime(id uint64) time.Time {
	return time.UnixMilli(Epoch + int64(id>>22)).UTC()
}

// ParseSnowflake parses the decimal string form used on the wire.
func ParseSnowflake(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// FormatSnowflake is the inverse of ParseSnowflake.
func FormatSnowflake(id uint64) string {
	return strconv.FormatUint(id, 10)
}
