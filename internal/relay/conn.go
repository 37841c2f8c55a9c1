package relay

// Conn is a live bidirectional channel to one client. The transport resolves
// the authenticated identity once at connect time; UserID is 0 for anonymous
// connections. Done is closed exactly once, on transport-level disconnect.
type Conn interface {
	ID() string
	UserID() uint64
	Emit(event string, payload any)
	Done() <-chan struct{}
}
