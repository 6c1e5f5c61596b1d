package connector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SplitFi/go-dappconn/service/persist"
	"github.com/SplitFi/go-dappconn/service/rpc"
	"github.com/stretchr/testify/assert"
)

type fakeProvider struct{}

func (fakeProvider) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	return nil
}

// fakeConnector drives the registry from tests. hasSession controls whether
// ConnectEagerly comes back with a live provider.
type fakeConnector struct {
	mu          sync.Mutex
	name        string
	priority    int
	chainID     persist.ChainID
	accounts    []persist.Address
	hasSession  bool
	activateErr error
	eagerErr    error

	active      bool
	deactivated int
	onUpdate    func(Update)
}

func (c *fakeConnector) Name() string  { return c.name }
func (c *fakeConnector) Priority() int { return c.priority }

func (c *fakeConnector) Provider() rpc.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil
	}
	return fakeProvider{}
}

func (c *fakeConnector) ChainID() persist.ChainID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return 0
	}
	return c.chainID
}

func (c *fakeConnector) Accounts() []persist.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil
	}
	return c.accounts
}

func (c *fakeConnector) ConnectEagerly(ctx context.Context) error {
	if c.eagerErr != nil {
		return c.eagerErr
	}
	if !c.hasSession {
		return nil
	}
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConnector) Activate(ctx context.Context) error {
	if c.activateErr != nil {
		return c.activateErr
	}
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
	c.push(Update{ChainID: c.chainID, Accounts: c.accounts})
	return nil
}

func (c *fakeConnector) Deactivate(ctx context.Context) error {
	c.mu.Lock()
	c.active = false
	c.deactivated++
	c.mu.Unlock()
	c.push(Update{})
	return nil
}

func (c *fakeConnector) OnUpdate(fn func(Update)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

func (c *fakeConnector) push(u Update) {
	c.mu.Lock()
	fn := c.onUpdate
	c.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

func TestRegistryRegister(t *testing.T) {
	a := assert.New(t)

	_, err := NewRegistry(
		&fakeConnector{name: "wallet"},
		&fakeConnector{name: "wallet"},
	)
	a.Error(err)

	r, err := NewRegistry(&fakeConnector{name: "wallet", priority: 2}, &fakeConnector{name: "readonly"})
	a.NoError(err)

	def, ok := r.Default()
	a.True(ok)
	a.Equal("wallet", def.Name())
}

func TestRegistryActivate(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	account := persist.Address("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	wallet := &fakeConnector{name: "wallet", chainID: 1, accounts: []persist.Address{account}}
	r, err := NewRegistry(wallet)
	a.NoError(err)

	t.Run("activation mirrors the connector state", func(t *testing.T) {
		a.NoError(r.Activate(ctx, "wallet"))

		state := r.State()
		a.Equal(wallet, state.Active)
		a.Equal(persist.ChainID(1), state.ChainID)
		a.Equal([]persist.Address{account}, state.Accounts)
		a.False(state.Loading)
	})

	t.Run("unknown name fails and is recorded", func(t *testing.T) {
		err := r.Activate(ctx, "nope")
		var notFound ErrConnectorNotFound
		a.ErrorAs(err, &notFound)
		a.Equal("nope", notFound.Name)

		state := r.State()
		a.NotEmpty(state.Errors)
		a.ErrorAs(state.Errors[len(state.Errors)-1], &notFound)
	})

	t.Run("activating another connector deactivates the previous one", func(t *testing.T) {
		other := &fakeConnector{name: "other", chainID: 137}
		a.NoError(r.ActivateConnector(ctx, other))

		state := r.State()
		a.Equal(other, state.Active)
		a.Equal(persist.ChainID(137), state.ChainID)
		a.Equal(1, wallet.deactivated)
	})
}

func TestRegistryActivateFailure(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	boom := errors.New("user rejected")
	wallet := &fakeConnector{name: "wallet", activateErr: boom}
	r, err := NewRegistry(wallet)
	a.NoError(err)

	err = r.Activate(ctx, "wallet")
	a.ErrorIs(err, boom)

	state := r.State()
	a.Nil(state.Active)
	a.False(state.Loading)
	a.ErrorIs(state.Errors[len(state.Errors)-1], boom)
}

func TestRegistryUpdates(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	wallet := &fakeConnector{name: "wallet", chainID: 1}
	bystander := &fakeConnector{name: "bystander", chainID: 10}
	r, err := NewRegistry(wallet, bystander)
	a.NoError(err)
	a.NoError(r.Activate(ctx, "wallet"))

	t.Run("updates from the active connector apply", func(t *testing.T) {
		wallet.push(Update{ChainID: 137, Accounts: []persist.Address{"0xabc"}})
		state := r.State()
		a.Equal(persist.ChainID(137), state.ChainID)
		a.Equal([]persist.Address{persist.Address("0xabc")}, state.Accounts)
	})

	t.Run("updates from inactive connectors are ignored", func(t *testing.T) {
		bystander.push(Update{ChainID: 10})
		a.Equal(persist.ChainID(137), r.State().ChainID)
	})

	t.Run("empty accounts signal a disconnect", func(t *testing.T) {
		wallet.push(Update{ChainID: 137})
		a.Empty(r.State().Accounts)
	})
}

func TestRegistryConnectEagerly(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	low := &fakeConnector{name: "low", priority: 1, hasSession: true, chainID: 1}
	high := &fakeConnector{name: "high", priority: 5, hasSession: true, chainID: 10}
	none := &fakeConnector{name: "none", priority: 9}
	failing := &fakeConnector{name: "failing", priority: 9, eagerErr: errors.New("no session store")}

	r, err := NewRegistry(low, high, none, failing)
	a.NoError(err)

	r.ConnectEagerly(ctx)

	state := r.State()
	a.Equal(high, state.Active)
	a.Equal(persist.ChainID(10), state.ChainID)
	a.False(state.Loading)

	// the lower-priority session that also connected was torn down again
	a.Equal(1, low.deactivated)
	a.Equal(0, none.deactivated)

	// an eager failure is not recorded as an error; it just means no session
	a.Empty(state.Errors)
}

func TestRegistryDeactivate(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	wallet := &fakeConnector{name: "wallet", chainID: 1, accounts: []persist.Address{"0xabc"}}
	r, err := NewRegistry(wallet)
	a.NoError(err)

	a.NoError(r.Deactivate(ctx)) // nothing active yet

	a.NoError(r.Activate(ctx, "wallet"))
	a.NoError(r.Deactivate(ctx))

	state := r.State()
	a.Nil(state.Active)
	a.Zero(state.ChainID)
	a.Empty(state.Accounts)
}

func TestRegistrySubscribe(t *testing.T) {
	a := assert.New(t)

	r, err := NewRegistry()
	a.NoError(err)

	notify, unsubscribe := r.Subscribe()
	r.RecordError(errors.New("one"))

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}

	// notifications coalesce; two rapid changes leave at most one pending
	r.RecordError(errors.New("two"))
	r.RecordError(errors.New("three"))
	<-notify
	select {
	case <-notify:
		t.Fatal("expected coalesced notifications")
	default:
	}

	unsubscribe()
	r.RecordError(errors.New("four"))
	select {
	case <-notify:
		t.Fatal("expected no notification after unsubscribe")
	default:
	}
}
