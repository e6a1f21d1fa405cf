// Command originpoold wires the origin session pool and its manager into a
// runnable process: it loads config, sets up structured logging and
// metrics, starts a single inactivity reaper and one reactor worker per
// configured thread, and installs a SIGHUP handler that triggers a
// keep-alive purge. It does not itself terminate HTTP connections or run a
// state machine -- those are external collaborators this module only
// exposes an acquire/release/purge API to.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/mattyw/trafficserver/log"
	"github.com/mattyw/trafficserver/metric"
	"github.com/mattyw/trafficserver/netutil/reaper"
	"github.com/mattyw/trafficserver/reactor"
	"github.com/mattyw/trafficserver/sessionmanager"
	"github.com/mattyw/trafficserver/signals"
)

func main() {
	configPath := flag.String("config", "", "path to a origin pool config file (JSON, // comments allowed)")
	workers := flag.Int("workers", 4, "number of reactor worker threads to start")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := log.Default()
	if *debug {
		logger.SetLevel(log.DEBUG)
	}

	cfg := sessionmanager.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			logger.CRIT("origin pool: cannot open config", "path", *configPath, "err", err)
			os.Exit(1)
		}
		cfg, err = sessionmanager.Load(f)
		f.Close()
		if err != nil {
			logger.CRIT("origin pool: cannot parse config", "path", *configPath, "err", err)
			os.Exit(1)
		}
	}

	metrics := metric.DefaultClient
	mgr := sessionmanager.New(cfg, metrics, logger)

	signals.OnHangup(func() {
		logger.NOTICE("origin pool: SIGHUP received, purging keep-alive sessions")
		mgr.PurgeKeepalives()
	})

	rp := reaper.New(cfg.ReaperInterval())
	go rp.Run()
	defer rp.Stop()

	logger.NOTICE("origin pool: starting", "sharing_pool", cfg.SharingPool, "workers", *workers)

	done := make(chan struct{})
	for i := 0; i < *workers; i++ {
		th := reactor.New()
		ctx := reactor.WithThread(context.Background(), th)
		go runWorker(ctx, th, logger)
	}
	<-done // this demo has no accept loop wired in; workers idle until killed
}

// runWorker stands in for the reactor's real per-thread event loop; a
// production build would drive AcquireSession/ReleaseSession from here as
// requests and origin connections come and go.
func runWorker(ctx context.Context, th *reactor.Thread, logger *log.Logger) {
	if logf, ok := logger.DEBUGok(); ok {
		logf("origin pool: worker started", "thread", th.String())
	}
	<-ctx.Done()
}
