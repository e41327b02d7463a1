package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    DelegatesTracked = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "forgewatch",
        Name:      "delegates_total",
        Help:      "Current number of tracked delegates",
    })

    NetworkHeight = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "forgewatch",
        Name:      "network_height",
        Help:      "Best block height known to the monitor",
    })

    NetworkRound = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "forgewatch",
        Name:      "network_round",
        Help:      "Forging round derived from the best known height",
    })

    Cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "forgewatch",
        Name:      "cycles_total",
        Help:      "Total reconciliation cycles by result",
    }, []string{"result"})

    Events = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "forgewatch",
        Name:      "events_total",
        Help:      "Total emitted monitor events by type",
    }, []string{"type"})

    BlocksIngested = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "forgewatch",
        Name:      "blocks_ingested_total",
        Help:      "Total newly stored blocks",
    })

    BlocksMissed = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "forgewatch",
        Name:      "blocks_missed_total",
        Help:      "Total missed-block detections",
    })

    BackfillLookups = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "forgewatch",
        Name:      "backfill_lookups_total",
        Help:      "Total per-delegate last-block lookups issued by backfill",
    })

    PeerFailovers = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "forgewatch",
        Name:      "peer_failovers_total",
        Help:      "Total peer cursor advances after a failed API call",
    })
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(DelegatesTracked)
        prometheus.MustRegister(NetworkHeight)
        prometheus.MustRegister(NetworkRound)
        prometheus.MustRegister(Cycles)
        prometheus.MustRegister(Events)
        prometheus.MustRegister(BlocksIngested)
        prometheus.MustRegister(BlocksMissed)
        prometheus.MustRegister(BackfillLookups)
        prometheus.MustRegister(PeerFailovers)
    })
}
