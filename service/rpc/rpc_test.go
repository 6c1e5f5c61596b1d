package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/SplitFi/go-dappconn/service/persist"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
)

// testNode is a minimal JSON-RPC endpoint serving eth_chainId and
// eth_accounts
type testNode struct {
	mu       sync.Mutex
	chainID  persist.ChainID
	accounts []string
	srv      *httptest.Server
}

func newTestNode(t *testing.T, chainID persist.ChainID, accounts ...string) *testNode {
	t.Helper()
	n := &testNode{chainID: chainID, accounts: accounts}
	n.srv = httptest.NewServer(http.HandlerFunc(n.handle))
	t.Cleanup(n.srv.Close)
	return n
}

func (n *testNode) URL() string { return n.srv.URL }

func (n *testNode) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	chainID := n.chainID
	accounts := n.accounts
	n.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case "eth_chainId":
		resp["result"] = hexutil.EncodeUint64(uint64(chainID))
	case "eth_accounts", "eth_requestAccounts":
		if accounts == nil {
			accounts = []string{}
		}
		resp["result"] = accounts
	default:
		resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func TestDialReadOnly(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	node := newTestNode(t, 5)

	t.Run("adopts the reported chain id", func(t *testing.T) {
		ro, err := DialReadOnly(ctx, 0, node.URL())
		a.NoError(err)
		defer ro.Close()
		a.Equal(persist.ChainID(5), ro.ChainID)
		a.NotNil(ro.Provider())
		a.NotNil(ro.Eth())
	})

	t.Run("verifies an expected chain id", func(t *testing.T) {
		ro, err := DialReadOnly(ctx, 5, node.URL())
		a.NoError(err)
		ro.Close()

		_, err = DialReadOnly(ctx, 1, node.URL())
		a.Error(err)
	})

	t.Run("fails on an unreachable endpoint", func(t *testing.T) {
		_, err := DialReadOnly(ctx, 0, "http://127.0.0.1:1")
		a.Error(err)
	})
}

func TestAccountsOverProvider(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()
	node := newTestNode(t, 1, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")

	ro, err := DialReadOnly(ctx, 1, node.URL())
	a.NoError(err)
	defer ro.Close()

	accounts, err := Accounts(ctx, ro.Provider())
	a.NoError(err)
	a.Equal([]persist.Address{"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"}, accounts)

	requested, err := RequestAccounts(ctx, ro.Provider())
	a.NoError(err)
	a.Equal(accounts, requested)
}

func TestReadOnlyPool(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	node5 := newTestNode(t, 5)
	node6 := newTestNode(t, 6)
	urls := map[persist.ChainID]string{
		5: node5.URL(),
		6: node6.URL(),
	}

	t.Run("dials once per chain", func(t *testing.T) {
		pool, err := NewReadOnlyPool(urls, 0)
		a.NoError(err)
		defer pool.Close()

		first, err := pool.Get(ctx, 5)
		a.NoError(err)
		second, err := pool.Get(ctx, 5)
		a.NoError(err)
		a.Same(first, second)
	})

	t.Run("unknown chain id fails", func(t *testing.T) {
		pool, err := NewReadOnlyPool(urls, 0)
		a.NoError(err)
		defer pool.Close()

		_, err = pool.Get(ctx, 7)
		var notFound persist.ErrNetworkNotFound
		a.ErrorAs(err, &notFound)
		a.Equal(persist.ChainID(7), notFound.ChainID)
	})

	t.Run("evicts and redials beyond capacity", func(t *testing.T) {
		pool, err := NewReadOnlyPool(urls, 1)
		a.NoError(err)
		defer pool.Close()

		first, err := pool.Get(ctx, 5)
		a.NoError(err)
		_, err = pool.Get(ctx, 6)
		a.NoError(err)

		redialed, err := pool.Get(ctx, 5)
		a.NoError(err)
		a.NotSame(first, redialed)
	})

	t.Run("reports configured chain ids", func(t *testing.T) {
		pool, err := NewReadOnlyPool(urls, 0)
		a.NoError(err)
		defer pool.Close()

		a.ElementsMatch([]persist.ChainID{5, 6}, pool.ChainIDs())
	})
}
