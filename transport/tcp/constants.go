package tcp

import "time"

const (
	sendRecvBufBytes    = 32 * 1024
	keepIdleSeconds     = 5
	keepIntervalSeconds = 1
	keepCount           = 3

	helloDeadline = 5 * time.Second
	// readDeadline bounds every subsequent read once a session is
	// established; it is refreshed before every read, and its expiry ends
	// the session like any other read error (reason connection_closed).
	readDeadline = 10 * time.Second

	listenBacklog = 1
)
