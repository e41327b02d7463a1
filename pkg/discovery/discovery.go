package discovery

// Discovery abstracts how candidate peer API addresses are provided.
// Backends include static lists, files/ENV and DNS records.
type Discovery interface {
    Peers() []string
}
