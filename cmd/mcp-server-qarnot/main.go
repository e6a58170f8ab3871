package main

import (
	"fmt"
	"os"

	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"

	"github.com/chloepilonv/mcp-server-qarnot/callbacks"
	"github.com/chloepilonv/mcp-server-qarnot/internal/config"
	"github.com/chloepilonv/mcp-server-qarnot/mcpserver"
)

var version = "0.2.0"

var logger = xlog.NewPackageLogger("github.com/chloepilonv/mcp-server-qarnot", "cli")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server-qarnot",
		Short: "MCP server exposing Qarnot task and bucket management as tools",
		Long:  "mcp-server-qarnot serves Qarnot compute tasks and storage buckets to MCP clients over stdio.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			srv, err := mcpserver.New(cfg, version,
				mcpserver.WithCallback(callbacks.NewPackageLogger(logger)),
			)
			if err != nil {
				return err
			}
			return srv.ServeStdio()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("log", "l", "error", "Set log level. Available: debug, info, warn, error")
	cmd.PersistentFlags().String("config", "", "config file")

	cmd.PersistentPreRun = func(c *cobra.Command, args []string) {
		levelStr, _ := c.Flags().GetString("log")
		switch levelStr {
		case "debug":
			xlog.SetGlobalLogLevel(xlog.DEBUG)
		case "info":
			xlog.SetGlobalLogLevel(xlog.INFO)
		case "warn":
			xlog.SetGlobalLogLevel(xlog.WARNING)
		default:
			xlog.SetGlobalLogLevel(xlog.ERROR)
		}
	}

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mcp-server-qarnot %s\n", version)
		},
	}
}

func main() {
	// stdout carries the MCP transport, logs go to stderr.
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(xlog.ERROR)

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
