// Package clock provides the wall clock used to timestamp captures and
// sessions. It can be corrected against an NTP server so that records from
// several acquisition machines line up.
package clock

import (
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/rs/zerolog/log"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Local is the host clock.
type Local struct{}

func (Local) Now() time.Time { return time.Now() }

// queryFunc matches ntp.QueryWithOptions.
type queryFunc func(host string, opt ntp.QueryOptions) (*ntp.Response, error)

// NTP is the host clock corrected by the offset measured against a server.
// Until a sync succeeds it reads the same as Local.
type NTP struct {
	server  string
	timeout time.Duration
	query   queryFunc

	mu     sync.RWMutex
	offset time.Duration
	synced bool
}

// NewNTP creates an NTP-corrected clock. Call Sync to measure the offset.
func NewNTP(server string, timeout time.Duration) *NTP {
	return &NTP{server: server, timeout: timeout, query: ntp.QueryWithOptions}
}

// Sync queries the server and stores the clock offset. On failure the
// previous offset is kept and the clock falls back to local time if it was
// never synced.
func (c *NTP) Sync() error {
	resp, err := c.query(c.server, ntp.QueryOptions{Timeout: c.timeout})
	if err == nil {
		err = resp.Validate()
	}
	if err != nil {
		log.Warn().Err(err).Str("server", c.server).Msg("NTP sync failed, using local clock")
		return err
	}

	c.mu.Lock()
	c.offset = resp.ClockOffset
	c.synced = true
	c.mu.Unlock()

	log.Info().
		Str("server", c.server).
		Dur("offset", resp.ClockOffset).
		Dur("rtt", resp.RTT).
		Msg("Clock synced")
	return nil
}

// Now returns the corrected time.
func (c *NTP) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

// Synced reports whether an offset has been measured.
func (c *NTP) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}
