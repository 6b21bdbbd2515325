package services

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// unixEpochTicks is 1970-01-01 expressed in 100ns ticks since 0001-01-01,
// the timestamp unit the gateway's sample integrations use in track ids.
const unixEpochTicks int64 = 621355968000000000

// TrackIDGenerator issues {prefix}-{bookingID}-{ticks}. Ticks are strictly
// increasing within the process, so two attempts never share an id.
type TrackIDGenerator struct {
	prefix   string
	lastTick atomic.Int64
	now      func() time.Time
}

// NewTrackIDGenerator creates a generator for the given merchant prefix
func NewTrackIDGenerator(prefix string) *TrackIDGenerator {
	return &TrackIDGenerator{prefix: prefix, now: time.Now}
}

// Next returns a fresh track id for a booking
func (g *TrackIDGenerator) Next(bookingID int64) string {
	return fmt.Sprintf("%s-%d-%d", g.prefix, bookingID, g.nextTick())
}

func (g *TrackIDGenerator) nextTick() int64 {
	candidate := g.now().UTC().UnixNano()/100 + unixEpochTicks
	for {
		last := g.lastTick.Load()
		next := candidate
		if next <= last {
			next = last + 1
		}
		if g.lastTick.CompareAndSwap(last, next) {
			return next
		}
	}
}

// ParseTrackID extracts the booking id from a track id issued with prefix
func ParseTrackID(prefix, trackID string) (int64, bool) {
	rest, ok := strings.CutPrefix(trackID, prefix+"-")
	if !ok {
		return 0, false
	}
	idPart, ticks, ok := strings.Cut(rest, "-")
	if !ok || ticks == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	if _, err := strconv.ParseInt(ticks, 10, 64); err != nil {
		return 0, false
	}
	return id, true
}
