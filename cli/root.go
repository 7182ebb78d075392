package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"syncarena/config"
)

// RootOptions 所有子命令共用的参数
type RootOptions struct {
	ConfigPath string
	Transport  string
}

// NewRootCommand 构造根命令及全部子命令
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "syncarena",
		Short: "syncarena - 实体状态同步演示服务",
		Long:  "服务端权威的实体状态同步：固定步长 Tick、按种类节流、校验和修复。",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Transport != "" && opts.Transport != config.TransportWebSocket && opts.Transport != config.TransportQUIC {
				return fmt.Errorf("invalid transport %q: must be %s or %s", opts.Transport, config.TransportWebSocket, config.TransportQUIC)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Transport, "transport", "", "transport override (websocket|quic)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewConnectCommand(opts))
	return cmd
}

// Execute main 入口
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig 读取配置文件，apply 在校验前应用命令行覆盖
func loadConfig(path string, apply func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
