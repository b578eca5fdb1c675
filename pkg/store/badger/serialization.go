package badger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Tombstones are a fixed 8-byte big-endian timestamp.

func encodeTime(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}

func decodeTime(data []byte) (time.Time, error) {
	if len(data) != 8 {
		return time.Time{}, fmt.Errorf("invalid timestamp length: %d", len(data))
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(data))).UTC(), nil
}
