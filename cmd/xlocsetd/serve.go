package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"

	"github.com/leusonmario/xtreemfs/cmn"
	"github.com/leusonmario/xtreemfs/internal/capability"
	"github.com/leusonmario/xtreemfs/internal/coordinator"
	"github.com/leusonmario/xtreemfs/internal/metabridge"
	"github.com/leusonmario/xtreemfs/internal/osdclient"
	"github.com/leusonmario/xtreemfs/internal/xlog"
)

var serveCommand = cli.Command{
	Name:  "serve",
	Usage: "start the coordinator worker and its metrics/health endpoint",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "listen", Value: ":8080", Usage: "address for /healthz and /metrics"},
		cli.StringFlag{Name: "metadata-dir", Value: "./xlocset-meta", Usage: "directory for the metadata bridge's document store"},
	},
	Action: runServe,
}

func runServe(c *cli.Context) error {
	xlog.SetVerbose(c.GlobalBool("verbose"))

	cfg := cmn.DefaultConfig()
	if path := c.GlobalString("config"); path != "" {
		loaded, err := cmn.LoadConfig(path)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		cfg = loaded
	}
	cmn.GCO.Put(cfg)

	bridge, err := metabridge.NewBridge(c.String("metadata-dir"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer bridge.Close()

	osd := osdclient.New(osdclient.NewHTTPTransport())
	caps := capability.NewBuilder()
	mgr := coordinator.NewManager(osd, caps, bridge)

	reg := prometheus.NewRegistry()
	if err := mgr.Metrics().Register(reg); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	mgr.Start()
	defer mgr.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: c.String("listen"), Handler: mux}
	go func() {
		xlog.Infof("xlocsetd: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			xlog.Errorf("xlocsetd: http server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	xlog.Infof("xlocsetd: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
