package cli

import (
    "context"
    "fmt"
    "log"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-forgewatch/pkg/bootstrap"
    httpjson "github.com/amirimatin/go-forgewatch/pkg/mgmt/httpjson"
    tracing "github.com/amirimatin/go-forgewatch/pkg/observability/tracing"
)

// AddAll attaches monitor subcommands (run/status) to the provided root command.
func AddAll(root *cobra.Command) {
    root.AddCommand(NewRunCmd())
    root.AddCommand(NewStatusCmd())
}

// NewRunCmd returns the "run" command used to start a monitor.
func NewRunCmd() *cobra.Command {
    var (
        peersCSV, discoveryKind, dnsNames, filePath, fileEnv, mgmtAddr string
        dnsPort                                                        int
        discRefresh, interval, reqTimeout                              time.Duration
        nodeTLS, tlsEnable, tlsSkip, traceEnable                       bool
        tlsCA, tlsCert, tlsKey, tlsServerName                          string
    )
    cmd := &cobra.Command{
        Use:   "run",
        Short: "Run a delegate monitor",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx, cancel := signalContext()
            defer cancel()

            if traceEnable {
                shutdown, err := tracing.Setup(true)
                if err != nil {
                    log.Printf("tracing setup error: %v", err)
                } else {
                    defer func() { _ = shutdown(context.Background()) }()
                }
            }

            cfg := bootstrap.Config{
                DiscoveryKind:  discoveryKind,
                PeersCSV:       peersCSV,
                DNSNamesCSV:    dnsNames,
                DNSPort:        dnsPort,
                DiscRefresh:    discRefresh,
                FilePath:       filePath,
                FileEnv:        fileEnv,
                RequestTimeout: reqTimeout,
                NodeTLS:        nodeTLS,
                Interval:       interval,
                MgmtAddr:       mgmtAddr,
                TLSEnable:      tlsEnable,
                TLSCA:          tlsCA,
                TLSCert:        tlsCert,
                TLSKey:         tlsKey,
                TLSServerName:  tlsServerName,
                TLSSkipVerify:  tlsSkip,
                Logger:         log.Default(),
            }
            m, err := bootstrap.Run(ctx, cfg)
            if err != nil {
                return err
            }
            defer m.Close()

            fmt.Println("monitor running. Press Ctrl+C to exit.")
            <-ctx.Done()
            return nil
        },
    }
    cmd.Flags().StringVar(&peersCSV, "peers", "", "comma-separated chain node addresses (host:port) — used by discovery=static")
    cmd.Flags().StringVar(&discoveryKind, "discovery", "static", "discovery backend: static|dns|file")
    cmd.Flags().StringVar(&dnsNames, "dns-names", "", "comma-separated DNS names or SRV records (e.g., _node._tcp.example.com)")
    cmd.Flags().IntVar(&dnsPort, "dns-port", 8000, "port used for A/AAAA lookups")
    cmd.Flags().DurationVar(&discRefresh, "disc-refresh", 5*time.Second, "discovery refresh/cache duration")
    cmd.Flags().StringVar(&filePath, "file-path", "", "path or glob to a file with peers (one per line or CSV)")
    cmd.Flags().StringVar(&fileEnv, "file-env", "", "ENV var name containing CSV peers; overrides file when set")
    cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "delay between reconciliation cycles")
    cmd.Flags().DurationVar(&reqTimeout, "timeout", 3*time.Second, "peer API request timeout")
    cmd.Flags().BoolVar(&nodeTLS, "node-tls", false, "talk to chain nodes over HTTPS")
    cmd.Flags().StringVar(&mgmtAddr, "mgmt-addr", ":17980", "management address (tcp); empty disables the management API")
    cmd.Flags().BoolVar(&tlsEnable, "tls-enable", false, "enable TLS for the management API")
    cmd.Flags().StringVar(&tlsCA, "tls-ca", "", "path to CA cert (PEM)")
    cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "path to server certificate (PEM)")
    cmd.Flags().StringVar(&tlsKey, "tls-key", "", "path to server private key (PEM)")
    cmd.Flags().BoolVar(&tlsSkip, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    cmd.Flags().StringVar(&tlsServerName, "tls-server-name", "", "expected server name (for TLS validation)")
    cmd.Flags().BoolVar(&traceEnable, "trace", false, "enable OpenTelemetry stdout tracing (dev)")
    return cmd
}

// NewStatusCmd returns the "status" command.
func NewStatusCmd() *cobra.Command {
    var (
        addr    string
        timeout time.Duration
    )
    cmd := &cobra.Command{
        Use:   "status",
        Short: "Fetch monitor status as JSON",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx, cancel := context.WithTimeout(context.Background(), timeout)
            defer cancel()
            client := httpjson.NewClient(timeout)
            data, err := client.GetStatus(ctx, addr)
            if err != nil {
                return fmt.Errorf("status error: %w", err)
            }
            os.Stdout.Write(data)
            if len(data) == 0 || data[len(data)-1] != '\n' {
                os.Stdout.Write([]byte("\n"))
            }
            return nil
        },
    }
    cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:17980", "management HTTP address of a monitor (host:port)")
    cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
    return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
    ctx, cancel := context.WithCancel(context.Background())
    go func() {
        ch := make(chan os.Signal, 1)
        signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
        <-ch
        cancel()
    }()
    return ctx, cancel
}
