// Package fsm factors out the control-channel state machine shared,
// unmodified in shape, by the miner and the transaction generator: a
// controller that is Paused, Running at some pacing parameter, or
// Shutdown, driven by Start/Update/Exit signals on a control channel.
package fsm

// SignalKind is the kind of control signal sent on a Controller's
// channel.
type SignalKind int

const (
	// SignalStart moves the controller to Running at the enclosed
	// pacing parameter.
	SignalStart SignalKind = iota
	// SignalUpdate changes the pacing parameter of an already-Running
	// controller; a no-op if Paused.
	SignalUpdate
	// SignalExit moves the controller to Shutdown. Terminal.
	SignalExit
)

// Signal is one message sent on a Controller's channel. Param carries
// the pacing parameter (λ for the miner, θ for the generator) for
// SignalStart and SignalUpdate; it is ignored for SignalExit.
type Signal struct {
	Kind  SignalKind
	Param uint64
}

// State is the controller's run state.
type State int

const (
	Paused State = iota
	Running
	Shutdown
)

// Controller holds the control channel and current run state for a
// miner- or generator-shaped worker loop. Not safe for concurrent use
// by more than one goroutine driving the state transitions; the control
// channel itself is the only thing other goroutines touch.
type Controller struct {
	Signals chan Signal
	state   State
	param   uint64
}

// NewController returns a Controller starting in Paused.
func NewController() *Controller {
	return &Controller{Signals: make(chan Signal, 1)}
}

// State returns the controller's current run state.
func (c *Controller) State() State { return c.state }

// Param returns the current pacing parameter.
func (c *Controller) Param() uint64 { return c.param }

// Apply updates the controller's state from a received Signal.
func (c *Controller) Apply(sig Signal) {
	switch sig.Kind {
	case SignalStart:
		c.state = Running
		c.param = sig.Param
	case SignalUpdate:
		if c.state == Running {
			c.param = sig.Param
		}
	case SignalExit:
		c.state = Shutdown
	}
}

func (s State) String() string {
	switch s {
	case Paused:
		return "paused"
	case Running:
		return "running"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
