package core

import "context"

// Conn is a live connection handle as seen by the core. The transport
// layer provides the implementation; the core never touches sockets.
//
// Send must respect the context deadline: a push that does not complete
// within it is treated as a dead connection by the caller.
type Conn interface {
	// ID uniquely identifies this connection among all live connections.
	ID() string

	// UserID is the authenticated identity the connection belongs to.
	UserID() string

	// Send pushes one named event with a payload over the connection's
	// ordered channel.
	Send(ctx context.Context, event string, payload any) error
}
