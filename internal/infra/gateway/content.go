package gateway

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/sha3"

	"github.com/fronsciers/doci-gateway/client"
)

// ContentGateway stores metadata blobs in the content-addressed store.
// References are "sha3:<hex>" of the blob, computed locally and checked
// against what the store reports, so a misbehaving store cannot hand back
// tampered metadata unnoticed.
type ContentGateway struct {
	client *client.Client
	cache  *cache.Cache
	store  string
}

func NewContentGateway(cl *client.Client, store string) *ContentGateway {
	return &ContentGateway{
		client: cl,
		cache:  cache.New(10*time.Minute, 15*time.Minute),
		store:  store,
	}
}

func ContentRef(data []byte) string {
	digest := sha3.Sum256(data)
	return "sha3:" + hex.EncodeToString(digest[:])
}

func (g *ContentGateway) Put(ctx context.Context, data []byte) (string, error) {

	expected := ContentRef(data)

	ref, err := g.client.PutBlob(ctx, g.store, data)
	if err != nil {
		return "", err
	}
	if ref != expected {
		return "", fmt.Errorf("content store returned ref %s, expected %s", ref, expected)
	}

	g.cache.Set(ref, data, cache.DefaultExpiration)
	return ref, nil
}

func (g *ContentGateway) Get(ctx context.Context, ref string) ([]byte, error) {

	if cached, found := g.cache.Get(ref); found {
		return cached.([]byte), nil
	}

	data, err := g.client.GetBlob(ctx, g.store, ref)
	if err != nil {
		return nil, err
	}
	if ContentRef(data) != ref {
		return nil, fmt.Errorf("blob %s failed integrity check", ref)
	}

	g.cache.Set(ref, data, cache.DefaultExpiration)
	return data, nil
}
