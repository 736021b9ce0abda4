package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/pior/jbod"
	"github.com/pior/jbod/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	log    hclog.Logger
	client *jbod.Client

	rootCmd = &cobra.Command{
		Use:   "jbod-cli",
		Short: "Issue block commands to a JBOD server",
		Long: `jbod-cli connects to a JBOD array server and issues block commands:
mount, unmount, seeks, raw opcodes, block reads and block writes.

Every flag can also be set with a JBOD_ environment variable,
e.g. JBOD_ADDR=10.0.0.5:3333.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("addr", "127.0.0.1:3333", "address of the JBOD server (a.b.c.d:port)")
	flags.Duration("timeout", 0, "deadline for each command, 0 waits forever")
	flags.Int("retries", 0, "retries for interrupted transfers")
	flags.String("framing", "compact", "framing of requests without a block (compact, uniform)")
	flags.Bool("debug", false, "log every exchange")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address while running")

	rootCmd.AddCommand(mountCmd, unmountCmd, seekDiskCmd, seekBlockCmd, execCmd, readCmd, writeCmd, statsCmd, shellCmd)
}

func initConfig() {
	_ = godotenv.Load(".env")

	viper.SetEnvPrefix("jbod")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupClient(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	level := hclog.Info
	if viper.GetBool("debug") {
		level = hclog.Trace
	}
	log = hclog.New(&hclog.LoggerOptions{
		Name:  "jbod-cli",
		Level: level,
	})

	framing, err := parseFraming(viper.GetString("framing"))
	if err != nil {
		return err
	}

	retry := wire.RetryPolicy{}
	if n := viper.GetInt("retries"); n > 0 {
		retry = wire.DefaultRetryPolicy
		retry.MaxRetries = n
	}

	client, err = jbod.NewClient(viper.GetString("addr"), jbod.Config{
		DialTimeout: viper.GetDuration("timeout"),
		Framing:     framing,
		Retry:       retry,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	if addr := viper.GetString("metrics-addr"); addr != "" {
		serveMetrics(addr)
	}
	return nil
}

func closeClient(*cobra.Command, []string) error {
	if client != nil {
		client.Close()
	}
	return nil
}

func parseFraming(s string) (wire.Framing, error) {
	switch s {
	case "compact":
		return wire.FramingCompact, nil
	case "uniform":
		return wire.FramingUniform, nil
	}
	return 0, fmt.Errorf("unknown framing %q", s)
}

func serveMetrics(addr string) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(jbod.NewCollector(client))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		log.Info("serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics server stopped", "error", err)
		}
	}()
}

// commandContext applies the --timeout deadline.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if timeout := viper.GetDuration("timeout"); timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

func since(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}
