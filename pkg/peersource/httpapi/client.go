package httpapi

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "sync"
    "time"

    "github.com/amirimatin/go-forgewatch/pkg/chain"
    "github.com/amirimatin/go-forgewatch/pkg/delegate"
    obsmetrics "github.com/amirimatin/go-forgewatch/pkg/observability/metrics"
    "github.com/amirimatin/go-forgewatch/pkg/peersource"
    "github.com/amirimatin/go-forgewatch/pkg/schedule"
)

// blockWindow is how many recent blocks one RecentBlocks call requests.
// Roughly one round, so a delegate forging anywhere in the current round is
// visible without backfill.
const blockWindow = 100

// Client implements peersource.Source against a chain node's public JSON
// API. It holds an ordered list of candidate peers and a cursor: a call
// talks to the current peer only, and a failure advances the cursor so the
// next call (typically the next cycle) hits another peer. There is no
// in-call retry; the monitor's cycle cadence is the retry policy.
type Client struct {
    httpc     *http.Client
    transport *http.Transport
    isTLS     bool

    mu     sync.Mutex
    peers  []string
    cursor int
}

// NewClient constructs a Client over the given peer addresses (host:port).
func NewClient(timeout time.Duration, peers ...string) (*Client, error) {
    if len(peers) == 0 {
        return nil, errors.New("httpapi: no peers configured")
    }
    if timeout <= 0 {
        timeout = 3 * time.Second
    }
    tr := &http.Transport{}
    return &Client{
        httpc:     &http.Client{Timeout: timeout, Transport: tr},
        transport: tr,
        peers:     append([]string(nil), peers...),
    }, nil
}

// UseTLS sets the TLS config for the underlying HTTP client and switches
// the request scheme to https.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    if c.transport != nil {
        c.transport.TLSClientConfig = cfg
    }
    c.isTLS = cfg != nil
    return c
}

// Peer returns the address the next call will use.
func (c *Client) Peer() string {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.peers[c.cursor]
}

func (c *Client) failover() {
    c.mu.Lock()
    c.cursor = (c.cursor + 1) % len(c.peers)
    c.mu.Unlock()
    obsmetrics.PeerFailovers.Inc()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
    scheme := "http"
    if c.isTLS {
        scheme = "https"
    }
    u := fmt.Sprintf("%s://%s%s", scheme, c.Peer(), path)
    if len(query) > 0 {
        u += "?" + query.Encode()
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
    if err != nil {
        return err
    }
    resp, err := c.httpc.Do(req)
    if err != nil {
        c.failover()
        return err
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        b, _ := io.ReadAll(resp.Body)
        c.failover()
        return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, string(b))
    }
    if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
        c.failover()
        return fmt.Errorf("%s: decode: %w", path, err)
    }
    return nil
}

func (c *Client) DelegateRoster(ctx context.Context) ([]delegate.Snapshot, error) {
    var body struct {
        Delegates []delegate.Snapshot `json:"delegates"`
    }
    q := url.Values{}
    q.Set("limit", fmt.Sprint(chain.RoundSize))
    q.Set("orderBy", "rank:asc")
    if err := c.get(ctx, "/api/delegates", q, &body); err != nil {
        return nil, err
    }
    return body.Delegates, nil
}

func (c *Client) ForgerSchedule(ctx context.Context) (schedule.View, error) {
    var v schedule.View
    q := url.Values{}
    q.Set("limit", fmt.Sprint(chain.RoundSize))
    if err := c.get(ctx, "/api/delegates/forgers", q, &v); err != nil {
        return schedule.View{}, err
    }
    return v, nil
}

func (c *Client) RecentBlocks(ctx context.Context) ([]chain.Block, error) {
    var body struct {
        Blocks []chain.Block `json:"blocks"`
    }
    q := url.Values{}
    q.Set("limit", fmt.Sprint(blockWindow))
    q.Set("orderBy", "height:desc")
    if err := c.get(ctx, "/api/blocks", q, &body); err != nil {
        return nil, err
    }
    return body.Blocks, nil
}

func (c *Client) LastBlockOf(ctx context.Context, publicKey string) (chain.Block, error) {
    var body struct {
        Blocks []chain.Block `json:"blocks"`
    }
    q := url.Values{}
    q.Set("generatorPublicKey", publicKey)
    q.Set("limit", "1")
    q.Set("orderBy", "height:desc")
    if err := c.get(ctx, "/api/blocks", q, &body); err != nil {
        return chain.Block{}, err
    }
    if len(body.Blocks) == 0 {
        return chain.Block{}, fmt.Errorf("no blocks recorded for %s", publicKey)
    }
    return body.Blocks[0], nil
}

var _ peersource.Source = (*Client)(nil)
