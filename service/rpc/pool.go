package rpc

import (
	"context"
	"sync"

	"github.com/SplitFi/go-dappconn/service/logger"
	"github.com/SplitFi/go-dappconn/service/persist"
	lru "github.com/hashicorp/golang-lru"
)

const defaultPoolSize = 8

// ReadOnlyPool lazily dials and caches read-only providers by chain id.
// Evicted providers are closed.
type ReadOnlyPool struct {
	mu    sync.Mutex
	urls  map[persist.ChainID]string
	cache *lru.Cache
}

// NewReadOnlyPool creates a pool over the configured chain id to URL mapping.
// A size of zero uses the default.
func NewReadOnlyPool(urls map[persist.ChainID]string, size int) (*ReadOnlyPool, error) {
	if size <= 0 {
		size = defaultPoolSize
	}
	cache, err := lru.NewWithEvict(size, func(key, value interface{}) {
		value.(*ReadOnly).Close()
	})
	if err != nil {
		return nil, err
	}
	return &ReadOnlyPool{urls: urls, cache: cache}, nil
}

// Get returns the read-only provider for a chain id, dialing it on first use
func (p *ReadOnlyPool) Get(ctx context.Context, chainID persist.ChainID) (*ReadOnly, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.cache.Get(chainID); ok {
		return cached.(*ReadOnly), nil
	}

	url, ok := p.urls[chainID]
	if !ok {
		return nil, persist.ErrNetworkNotFound{ChainID: chainID}
	}

	ro, err := DialReadOnly(ctx, chainID, url)
	if err != nil {
		logger.For(ctx).WithError(err).Warnf("failed to dial read-only provider for chain %d", chainID)
		return nil, err
	}
	p.cache.Add(chainID, ro)
	return ro, nil
}

// ChainIDs returns the chain ids the pool is configured for
func (p *ReadOnlyPool) ChainIDs() []persist.ChainID {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]persist.ChainID, 0, len(p.urls))
	for id := range p.urls {
		ids = append(ids, id)
	}
	return ids
}

// Close closes every dialed provider in the pool
func (p *ReadOnlyPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Purge()
}
