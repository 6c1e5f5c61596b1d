// conncheck dials every configured read-only network and reports the chain
// id each endpoint serves. It exits non-zero when any endpoint is unreachable
// or reports the wrong chain.
package main

import (
	"context"
	"os"
	"time"

	"github.com/SplitFi/go-dappconn/env"
	"github.com/SplitFi/go-dappconn/service/logger"
	"github.com/SplitFi/go-dappconn/service/persist"
	"github.com/SplitFi/go-dappconn/service/rpc"
	"github.com/SplitFi/go-dappconn/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func main() {
	setDefaults()
	env.ValidateEnv()

	ctx := logger.NewContextWithFields(context.Background(), logrus.Fields{"service": "conncheck"})

	urls, err := persist.ParseReadOnlyURLs(env.GetString("READONLY_RPC_URLS"))
	if err != nil {
		logger.For(ctx).WithError(err).Error("invalid READONLY_RPC_URLS")
		os.Exit(1)
	}
	if len(urls) == 0 {
		logger.For(ctx).Error("no read-only networks configured")
		os.Exit(1)
	}

	timeout := time.Duration(env.GetInt64("CONNCHECK_TIMEOUT_SECONDS")) * time.Second

	failed := false
	for chainID, url := range urls {
		if err := check(ctx, chainID, url, timeout); err != nil {
			logger.For(ctx).WithError(err).Errorf("chain %d: check failed", chainID)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func check(ctx context.Context, chainID persist.ChainID, url string, timeout time.Duration) error {
	defer util.Track(chainID.String(), time.Now())

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ro, err := rpc.DialReadOnly(ctx, chainID, url)
	if err != nil {
		return err
	}
	defer ro.Close()

	logger.For(ctx).Infof("chain %d: ok (%s)", ro.ChainID, ro.URL)
	return nil
}

func setDefaults() {
	viper.SetDefault("CONNCHECK_TIMEOUT_SECONDS", 10)
	env.RegisterValidation("READONLY_RPC_URLS", "required")
}
