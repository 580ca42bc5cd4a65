package uri

import (
	"strings"
)

// Resolver rewrites content-addressed URIs into fetchable HTTP URLs
type Resolver interface {
	// Resolve returns the canonical HTTP URL for a token URI. ipfs:// URIs and
	// bare /ipfs/ gateway paths are rewritten onto the configured gateway;
	// regular HTTP(S) URLs pass through unchanged.
	Resolve(uri string) string
}

type resolver struct {
	ipfsGateway string
}

// NewResolver creates a resolver using the given IPFS gateway base URL
// (e.g. "https://ipfs.io/ipfs/")
func NewResolver(ipfsGateway string) Resolver {
	if !strings.HasSuffix(ipfsGateway, "/") {
		ipfsGateway += "/"
	}
	return &resolver{ipfsGateway: ipfsGateway}
}

func (r *resolver) Resolve(uri string) string {
	if cid, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return r.ipfsGateway + strings.TrimPrefix(cid, "ipfs/")
	}

	// Rewrite foreign gateway URLs onto ours so one gateway outage does not
	// pin us to it
	if _, after, ok := strings.Cut(uri, "/ipfs/"); ok && after != "" {
		return r.ipfsGateway + after
	}

	return uri
}
