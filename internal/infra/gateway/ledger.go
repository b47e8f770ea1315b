package gateway

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	doci "github.com/fronsciers/doci-gateway"
	"github.com/fronsciers/doci-gateway/client"
)

// LedgerGateway fronts the on-chain registry authority. Positive lookups are
// cached because anchors never change once written; absences are not cached
// so a just-anchored identifier becomes resolvable immediately.
type LedgerGateway struct {
	client    *client.Client
	cache     *cache.Cache
	authority string
}

func NewLedgerGateway(cl *client.Client, authority string) *LedgerGateway {
	return &LedgerGateway{
		client:    cl,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		authority: authority,
	}
}

func (g *LedgerGateway) Lookup(ctx context.Context, prefix, suffix string) (doci.Anchor, bool, error) {

	code := doci.ComposeCode(prefix, suffix)
	if cached, found := g.cache.Get(code); found {
		return cached.(doci.Anchor), true, nil
	}

	anchor, found, err := g.client.GetAnchor(ctx, g.authority, prefix, suffix)
	if err != nil {
		return doci.Anchor{}, false, err
	}
	if !found {
		return doci.Anchor{}, false, nil
	}

	g.cache.Set(code, anchor, cache.DefaultExpiration)
	return anchor, true, nil
}

func (g *LedgerGateway) Anchor(ctx context.Context, anchor doci.Anchor) (string, error) {

	txRef, err := g.client.PutAnchor(ctx, g.authority, anchor)
	if err != nil {
		return "", err
	}

	anchor.TxRef = txRef
	g.cache.Set(doci.ComposeCode(anchor.Prefix, anchor.Suffix), anchor, cache.DefaultExpiration)
	return txRef, nil
}
