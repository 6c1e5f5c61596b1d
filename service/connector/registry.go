package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/SplitFi/go-dappconn/service/logger"
	"github.com/SplitFi/go-dappconn/service/persist"
	"golang.org/x/sync/errgroup"
)

// Registry owns the set of known connectors and the pointer to the active
// one. At most one connector is active at a time; its chain id and accounts
// are mirrored here from the updates it pushes.
type Registry struct {
	mu         sync.Mutex
	connectors map[string]Connector
	active     Connector
	chainID    persist.ChainID
	accounts   []persist.Address
	errs       []error
	loading    bool
	subs       map[int]chan struct{}
	nextSub    int
}

// State is a point-in-time snapshot of the registry
type State struct {
	Active   Connector
	ChainID  persist.ChainID
	Accounts []persist.Address
	Errors   []error
	Loading  bool
}

// ErrConnectorNotFound is an error that is returned when no connector is
// registered under a name
type ErrConnectorNotFound struct {
	Name string
}

func (e ErrConnectorNotFound) Error() string {
	return fmt.Sprintf("no connector registered under name %q", e.Name)
}

// NewRegistry creates a registry owning the given connectors
func NewRegistry(connectors ...Connector) (*Registry, error) {
	r := &Registry{
		connectors: map[string]Connector{},
		subs:       map[int]chan struct{}{},
	}
	for _, c := range connectors {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a connector to the registry and wires its update callback
func (r *Registry) Register(c Connector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.connectors[c.Name()]; ok {
		return fmt.Errorf("connector %q is already registered", c.Name())
	}
	r.connectors[c.Name()] = c
	c.OnUpdate(func(u Update) { r.applyUpdate(c, u) })
	return nil
}

// Get returns the connector registered under a name
func (r *Registry) Get(name string) (Connector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connectors[name]
	return c, ok
}

// Default returns the highest-priority registered connector
func (r *Registry) Default() (Connector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best Connector
	for _, c := range r.connectors {
		if best == nil || c.Priority() > best.Priority() {
			best = c
		}
	}
	return best, best != nil
}

// Activate activates the connector registered under a name
func (r *Registry) Activate(ctx context.Context, name string) error {
	c, ok := r.Get(name)
	if !ok {
		err := ErrConnectorNotFound{Name: name}
		r.RecordError(err)
		return err
	}
	return r.ActivateConnector(ctx, c)
}

// ActivateConnector activates a connector, deactivating the previously active
// one first. The connector does not need to be registered; ad-hoc connectors
// built around a raw provider are activated through here as well.
func (r *Registry) ActivateConnector(ctx context.Context, c Connector) error {
	r.mu.Lock()
	if _, registered := r.connectors[c.Name()]; !registered {
		c.OnUpdate(func(u Update) { r.applyUpdate(c, u) })
	}
	prev := r.active
	r.active = c
	r.chainID = 0
	r.accounts = nil
	r.loading = true
	r.mu.Unlock()
	r.notify()

	if prev != nil && prev != c {
		if err := prev.Deactivate(ctx); err != nil {
			logger.For(ctx).WithError(err).Warnf("failed to deactivate connector %s", prev.Name())
		}
	}

	if err := c.Activate(ctx); err != nil {
		r.mu.Lock()
		r.errs = append(r.errs, err)
		r.loading = false
		if r.active == c {
			r.active = nil
		}
		r.mu.Unlock()
		r.notify()
		return fmt.Errorf("failed to activate connector %s: %w", c.Name(), err)
	}

	r.mu.Lock()
	r.loading = false
	if r.active == c {
		r.chainID = c.ChainID()
		r.accounts = c.Accounts()
	}
	r.mu.Unlock()
	r.notify()
	return nil
}

// Deactivate tears down the active connection. It is a no-op when nothing is
// active.
func (r *Registry) Deactivate(ctx context.Context) error {
	r.mu.Lock()
	active := r.active
	r.active = nil
	r.chainID = 0
	r.accounts = nil
	r.mu.Unlock()
	r.notify()

	if active == nil {
		return nil
	}
	if err := active.Deactivate(ctx); err != nil {
		r.RecordError(err)
		return fmt.Errorf("failed to deactivate connector %s: %w", active.Name(), err)
	}
	return nil
}

// ConnectEagerly attempts a silent reconnection on every registered connector
// concurrently and keeps the highest-priority one that came back with a live
// provider. The others are deactivated again.
func (r *Registry) ConnectEagerly(ctx context.Context) {
	r.mu.Lock()
	connectors := make([]Connector, 0, len(r.connectors))
	for _, c := range r.connectors {
		connectors = append(connectors, c)
	}
	r.loading = true
	r.mu.Unlock()
	r.notify()

	var eligibleMu sync.Mutex
	var eligible []Connector

	var g errgroup.Group
	for _, c := range connectors {
		c := c
		g.Go(func() error {
			if err := c.ConnectEagerly(ctx); err != nil {
				logger.For(ctx).WithError(err).Debugf("eager connect failed for %s", c.Name())
				return nil
			}
			if c.Provider() == nil {
				// no prior session
				return nil
			}
			eligibleMu.Lock()
			eligible = append(eligible, c)
			eligibleMu.Unlock()
			return nil
		})
	}
	g.Wait()

	var winner Connector
	for _, c := range eligible {
		if winner == nil || c.Priority() > winner.Priority() {
			winner = c
		}
	}
	for _, c := range eligible {
		if c == winner {
			continue
		}
		if err := c.Deactivate(ctx); err != nil {
			logger.For(ctx).WithError(err).Warnf("failed to deactivate connector %s after eager connect", c.Name())
		}
	}

	r.mu.Lock()
	r.loading = false
	if winner != nil {
		r.active = winner
		r.chainID = winner.ChainID()
		r.accounts = winner.Accounts()
	}
	r.mu.Unlock()
	r.notify()
}

// RecordError appends an error to the ordered error list
func (r *Registry) RecordError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.notify()
}

// State returns a snapshot of the registry
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts := make([]persist.Address, len(r.accounts))
	copy(accounts, r.accounts)
	errs := make([]error, len(r.errs))
	copy(errs, r.errs)
	return State{
		Active:   r.active,
		ChainID:  r.chainID,
		Accounts: accounts,
		Errors:   errs,
		Loading:  r.loading,
	}
}

// Subscribe returns a channel signaled on every state change and a function
// releasing the subscription. The channel has a buffer of one; intermediate
// notifications coalesce and the latest state wins.
func (r *Registry) Subscribe() (<-chan struct{}, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan struct{}, 1)
	r.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Registry) applyUpdate(c Connector, u Update) {
	r.mu.Lock()
	if r.active != c {
		r.mu.Unlock()
		return
	}
	r.chainID = u.ChainID
	r.accounts = u.Accounts
	r.mu.Unlock()
	r.notify()
}

func (r *Registry) notify() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
