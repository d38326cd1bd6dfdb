package health

import "context"

// pinger is satisfied by any dependency client exposing a liveness check:
// pgxpool.Pool, bus.Client, secrets.Client, and both connector HTTPClients
// all implement Ping(ctx) error.
type pinger interface {
	Ping(ctx context.Context) error
}

// probeFor builds a Probe out of any pinger, the shape shared by every
// dependency client in this module.
func probeFor(p pinger) Probe {
	return func(ctx context.Context) (Status, string) {
		if err := p.Ping(ctx); err != nil {
			return StatusUnhealthy, err.Error()
		}
		return StatusHealthy, ""
	}
}

// StoreComponent wraps the persistence store's liveness check as a required
// component: the store is never optional.
func StoreComponent(p pinger) Component {
	return Component{Name: "store", Optional: false, Probe: probeFor(p)}
}

// BusComponent wraps the message-bus connection check as a required
// component.
func BusComponent(p pinger) Component {
	return Component{Name: "bus", Optional: false, Probe: probeFor(p)}
}

// SecretStoreComponent wraps the secret-store liveness check as a required
// component: agent registration cannot proceed without it.
func SecretStoreComponent(p pinger) Component {
	return Component{Name: "secret-store", Optional: false, Probe: probeFor(p)}
}

// RegistryComponent wraps the image-registry connector as an optional
// component per §4.10: a registry outage degrades, it does not fail health.
func RegistryComponent(p pinger) Component {
	return Component{Name: "registry", Optional: true, Probe: probeFor(p)}
}

// UserServiceComponent wraps the user-service connector as an optional
// component, for the same reason as RegistryComponent.
func UserServiceComponent(p pinger) Component {
	return Component{Name: "user-service", Optional: true, Probe: probeFor(p)}
}
