package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"syncarena/client"
	"syncarena/config"
	"syncarena/logging"
	"syncarena/transport"
)

type ConnectOptions struct {
	*RootOptions
	Addr string
	Say  string
}

// NewConnectCommand 启动无界面客户端
func NewConnectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConnectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect a headless client and report sync statistics",
		Long: `Connect a headless client to a running server.

The client mirrors the world, reports its movement intent every tick and
logs packet loss and ping periodically.

Example:
  syncarena connect --addr 127.0.0.1:7777
  syncarena connect --transport quic --say hello`,
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
			return runClient(ctx, cfg, opts.Say)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "server address override")
	cmd.Flags().StringVar(&opts.Say, "say", "", "text message to send after connecting")
	return cmd
}

func (o *ConnectOptions) apply(cfg *config.Config) {
	if o.Addr != "" {
		cfg.Client.Addr = o.Addr
	}
	if o.Transport != "" {
		cfg.Client.Transport = o.Transport
	}
}

func dial(ctx context.Context, cfg config.ClientConfig, log *zap.SugaredLogger) (transport.Conn, error) {
	if cfg.Transport == config.TransportQUIC {
		conn, err := transport.DialQUIC(ctx, cfg.Addr, log)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	conn, err := transport.DialWebSocket(ctx, "ws://"+cfg.Addr+"/ws", log)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func runClient(ctx context.Context, cfg *config.Config, say string) error {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	conn, err := dial(ctx, cfg.Client, log)
	if err != nil {
		return err
	}
	host, err := client.New(conn, client.OptionsFromConfig(cfg), log)
	if err != nil {
		return multierr.Append(err, conn.Close())
	}
	if say != "" {
		host.Say(say)
	}
	log.Infow("connected", "transport", cfg.Client.Transport, "addr", cfg.Client.Addr)

	err = host.Run(ctx)
	host.LogStats()
	return err
}
