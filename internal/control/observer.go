package control

// Observer receives state updates from the core. Calls arrive on the core's
// event loop; implementations that own UI state must hand the update over
// to their own goroutine instead of mutating it in place.
type Observer interface {
	// ConnectionChanged reports a new connection state.
	ConnectionChanged(state ConnectionState)
	// ThrottleObserved reports a decoded inbound frame. It is delivered even
	// while the user is editing; suppressing it is up to the UI.
	ThrottleObserved(observed Observed)
	// CurrentReleased tells the UI to reset its current throttle display to 0.
	CurrentReleased()
}

// Observers fans updates out to several observers in order.
type Observers []Observer

func (o Observers) ConnectionChanged(state ConnectionState) {
	for _, obs := range o {
		obs.ConnectionChanged(state)
	}
}

func (o Observers) ThrottleObserved(observed Observed) {
	for _, obs := range o {
		obs.ThrottleObserved(observed)
	}
}

func (o Observers) CurrentReleased() {
	for _, obs := range o {
		obs.CurrentReleased()
	}
}

type nopObserver struct{}

func (nopObserver) ConnectionChanged(ConnectionState) {}
func (nopObserver) ThrottleObserved(Observed)         {}
func (nopObserver) CurrentReleased()                  {}
