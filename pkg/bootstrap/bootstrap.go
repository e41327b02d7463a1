package bootstrap

import (
    "context"
    "crypto/tls"
    "errors"
    "log"
    "time"

    "github.com/amirimatin/go-forgewatch/pkg/discovery"
    dDNS "github.com/amirimatin/go-forgewatch/pkg/discovery/dns"
    dFile "github.com/amirimatin/go-forgewatch/pkg/discovery/file"
    dStatic "github.com/amirimatin/go-forgewatch/pkg/discovery/static"
    httpjson "github.com/amirimatin/go-forgewatch/pkg/mgmt/httpjson"
    "github.com/amirimatin/go-forgewatch/pkg/monitor"
    "github.com/amirimatin/go-forgewatch/pkg/peersource/httpapi"
    tlsx "github.com/amirimatin/go-forgewatch/pkg/security/tlsconfig"
)

// Config defines high-level inputs to assemble a monitor with sensible
// defaults. Applications embed the monitor by providing this structure and
// calling Build/Run.
type Config struct {
    // Peer discovery settings
    DiscoveryKind string        // "static" (default), "dns", or "file"
    PeersCSV      string        // used when DiscoveryKind=static
    DNSNamesCSV   string        // used when kind=dns
    DNSPort       int           // used when kind=dns (A/AAAA)
    DiscRefresh   time.Duration // cache/refresh duration for discovery
    FilePath      string        // used when kind=file
    FileEnv       string        // used when kind=file

    // Peer API client
    RequestTimeout time.Duration // per-request timeout (default 3s)
    NodeTLS        bool          // peers speak HTTPS

    // Reconciliation loop
    Interval time.Duration // delay between cycles (default 10s)

    // Management API (status/healthz/metrics); empty disables the server.
    MgmtAddr string

    // TLS (optional) for the management API
    TLSEnable     bool
    TLSCA         string
    TLSCert       string
    TLSKey        string
    TLSServerName string
    TLSSkipVerify bool

    // Logger (optional). If nil, log.Default() is used.
    Logger *log.Logger
}

// Build assembles a monitor.Monitor from Config without starting it.
func Build(cfg Config) (*monitor.Monitor, error) {
    if cfg.Logger == nil {
        cfg.Logger = log.Default()
    }

    // Discovery backend
    var disc discovery.Discovery
    switch cfg.DiscoveryKind {
    case "dns":
        names := dStatic.Parse(cfg.DNSNamesCSV)
        opts := dDNS.Options{Names: names, Port: cfg.DNSPort}
        if cfg.DiscRefresh > 0 {
            opts.Refresh = cfg.DiscRefresh
        }
        disc = dDNS.New(opts)
    case "file":
        opts := dFile.Options{Path: cfg.FilePath, Env: cfg.FileEnv}
        if cfg.DiscRefresh > 0 {
            opts.Refresh = cfg.DiscRefresh
        }
        disc = dFile.New(opts)
    default:
        peers := dStatic.Parse(cfg.PeersCSV)
        disc = dStatic.New(peers...)
    }

    peers := disc.Peers()
    if len(peers) == 0 {
        return nil, errors.New("bootstrap: discovery produced no peers")
    }

    // Peer API client
    src, err := httpapi.NewClient(cfg.RequestTimeout, peers...)
    if err != nil {
        return nil, err
    }

    var topts tlsx.Options
    if cfg.TLSEnable {
        topts = tlsx.Options{
            Enable:             true,
            CAFile:             cfg.TLSCA,
            CertFile:           cfg.TLSCert,
            KeyFile:            cfg.TLSKey,
            InsecureSkipVerify: cfg.TLSSkipVerify,
            ServerName:         cfg.TLSServerName,
        }
    }
    if cfg.NodeTLS {
        if cfg.TLSEnable {
            ctls, err := topts.Client()
            if err != nil {
                return nil, err
            }
            src.UseTLS(ctls)
        } else {
            // HTTPS with system roots
            src.UseTLS(&tls.Config{})
        }
    }

    // Management API
    var mgmtSrv *httpjson.Server
    if cfg.MgmtAddr != "" {
        mgmtSrv = httpjson.NewServer(cfg.MgmtAddr, cfg.Logger)
        if cfg.TLSEnable {
            stls, err := topts.Server()
            if err != nil {
                return nil, err
            }
            mgmtSrv.UseTLS(stls)
        }
    }

    opts := monitor.Options{
        Source:   src,
        Interval: cfg.Interval,
        Logger:   cfg.Logger,
    }
    if mgmtSrv != nil {
        opts.Mgmt = mgmtSrv
    }
    return monitor.New(opts)
}

// Run builds and starts the monitor, returning the instance for lifecycle
// control. The caller is responsible for calling Close() when finished.
func Run(ctx context.Context, cfg Config) (*monitor.Monitor, error) {
    m, err := Build(cfg)
    if err != nil {
        return nil, err
    }
    if err := m.Start(ctx); err != nil {
        return nil, err
    }
    return m, nil
}
