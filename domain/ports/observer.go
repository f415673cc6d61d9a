package ports

import "github.com/jgmdev/pragtical/go/domain/entities"

// RegistrationObserver receives one outcome per descriptor visited by the
// registry loader, in load order.
type RegistrationObserver interface {
	Observe(outcome entities.RegistrationOutcome)
}

// ObserverFunc adapts an ordinary function to RegistrationObserver.
type ObserverFunc func(outcome entities.RegistrationOutcome)

// Observe calls f(outcome).
func (f ObserverFunc) Observe(outcome entities.RegistrationOutcome) {
	f(outcome)
}
