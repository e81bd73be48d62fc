package domain

import "time"

// ==== WebSocket Constants ====

// MaxMessageSize is the maximum allowed WebSocket frame size in bytes
const MaxMessageSize = 16 * 1024

// MaxTextLength is the default maximum number of runes in a direct message
const MaxTextLength = 2000

// eventOverhead covers the send-message envelope around the text
const eventOverhead = 512

// FrameSizeFor returns the smallest frame limit that fits a send-message
// event carrying maxText runes. JSON escaping can take up to 6 bytes per rune.
func FrameSizeFor(maxText int) int {
	return 6*maxText + eventOverhead
}

// SendBufferSize is the default per-connection outbound queue length
const SendBufferSize = 256

// ==== Session Constants ====

// TokenTTL is the default session token time-to-live
const TokenTTL = 24 * time.Hour

// ==== Rate Limit Constants ====

const (
	// DefaultRateLimitAPI is the default rate limit for API endpoints (requests/sec)
	DefaultRateLimitAPI = 10

	// DefaultRateLimitWS is the default rate limit for WebSocket connections (req/sec)
	DefaultRateLimitWS = 5
)

// ==== Timing Constants ====

const (
	// WriteWait is the time allowed to write a frame to the peer
	WriteWait = 10 * time.Second

	// PongWait is the time allowed to read the next pong from the peer
	PongWait = 60 * time.Second

	// ShutdownGracePeriod bounds how long the hub waits for pumps on shutdown
	ShutdownGracePeriod = 10 * time.Second
)
