package paymentgateway

import (
	"fmt"
	"sort"
)

// Registry maps provider names to gateways. It is built once at startup and read-only after.
type Registry struct {
	gateways map[string]PaymentGateway
}

func NewRegistry(gateways ...PaymentGateway) (*Registry, error) {
	r := &Registry{gateways: make(map[string]PaymentGateway, len(gateways))}
	for _, g := range gateways {
		if g == nil {
			continue
		}
		if _, dup := r.gateways[g.Name()]; dup {
			return nil, fmt.Errorf("payment provider %q registered twice", g.Name())
		}
		r.gateways[g.Name()] = g
	}
	return r, nil
}

// Get returns ErrUnknownProvider for names that were not registered.
func (r *Registry) Get(name string) (PaymentGateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return g, nil
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
