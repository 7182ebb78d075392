package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"syncarena/config"
	"syncarena/logging"
	"syncarena/server"
	"syncarena/store"
	"syncarena/transport"
)

type ServeOptions struct {
	*RootOptions
	Listen string
	Admin  string
}

// NewServeCommand 启动服务端
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authoritative server",
		Long: `Start the authoritative server.

Example:
  syncarena serve --config server.yaml
  syncarena serve --transport quic --listen :7777 --admin :7778`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.ConfigPath, opts.apply)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address override")
	cmd.Flags().StringVar(&opts.Admin, "admin", "", "admin HTTP address override")
	return cmd
}

func (o *ServeOptions) apply(cfg *config.Config) {
	if o.Listen != "" {
		cfg.Server.Listen = o.Listen
	}
	if o.Admin != "" {
		cfg.Server.Admin = o.Admin
	}
	if o.Transport != "" {
		cfg.Server.Transport = o.Transport
	}
}

func runServer(ctx context.Context, cfg *config.Config) (err error) {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	var ids server.StaticIDStore
	if cfg.Server.StorePath != "" {
		var st *store.Storage
		st, err = store.Open(ctx, cfg.Server.StorePath)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, st.Close()) }()
		instance, ierr := st.InstanceID(ctx)
		if ierr != nil {
			return ierr
		}
		log = log.With("instance", instance.String())
		ids = st
	}

	var (
		net     transport.Server
		servers []*http.Server
	)
	switch cfg.Server.Transport {
	case config.TransportQUIC:
		q, err := transport.ListenQUIC(cfg.Server.Listen, nil, log)
		if err != nil {
			return err
		}
		log.Infow("quic listening", "addr", q.Addr())
		net = q
	default:
		ws := transport.NewWebSocketServer(log)
		mux := http.NewServeMux()
		mux.Handle("/ws", ws)
		servers = append(servers, &http.Server{Addr: cfg.Server.Listen, Handler: mux})
		net = ws
	}

	host, err := server.New(net, server.OptionsFromConfig(cfg), ids, log)
	if err != nil {
		return multierr.Append(err, net.Close())
	}
	if cfg.Server.Admin != "" {
		servers = append(servers, &http.Server{Addr: cfg.Server.Admin, Handler: host.AdminHandler()})
	}

	failed := make(chan error, len(servers))
	for _, srv := range servers {
		go serveHTTP(log, srv, failed)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case e := <-failed:
			log.Errorw("http server failed", "err", e)
			cancel()
		case <-runCtx.Done():
		}
	}()

	log.Infow("server started", "transport", cfg.Server.Transport, "listen", cfg.Server.Listen,
		"admin", cfg.Server.Admin, "tick", cfg.Server.TickInterval, "statics", len(host.World().Objects()))
	err = host.Run(runCtx)

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	for _, srv := range servers {
		err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	}
	log.Info("shutting down")
	return err
}

func serveHTTP(log *zap.SugaredLogger, srv *http.Server, failed chan<- error) {
	log.Infow("http listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		failed <- fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
}
