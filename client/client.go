package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	doci "github.com/fronsciers/doci-gateway"
)

const (
	defaultTimeout = 3 * time.Second
	maxBlobSize    = 4 << 20
)

// Client talks to the ledger authority and the content store. Both speak
// plain JSON over HTTPS; hosts are passed per-call so one client serves
// multiple upstreams.
type Client struct {
	client    *http.Client
	cache     *cache.Cache
	userAgent string
}

func New(userAgent string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		userAgent: userAgent,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// GetAnchor asks the ledger authority for the anchor of prefix/suffix.
// A 404 is a confirmed absence, not an error.
func (c *Client) GetAnchor(ctx context.Context, authority, prefix, suffix string) (doci.Anchor, bool, error) {

	code := doci.ComposeCode(prefix, suffix)
	if cached, found := c.cache.Get("anchor:" + code); found {
		return cached.(doci.Anchor), true, nil
	}

	url := "https://" + authority + "/anchors/" + prefix + "/" + suffix
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return doci.Anchor{}, false, fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return doci.Anchor{}, false, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return doci.Anchor{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return doci.Anchor{}, false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var anchor doci.Anchor
	if err := json.NewDecoder(resp.Body).Decode(&anchor); err != nil {
		return doci.Anchor{}, false, fmt.Errorf("failed to decode response: %v", err)
	}

	c.cache.Set("anchor:"+code, anchor, cache.DefaultExpiration)
	return anchor, true, nil
}

// PutAnchor submits an anchor to the ledger authority and returns the
// transaction reference assigned to it.
func (c *Client) PutAnchor(ctx context.Context, authority string, anchor doci.Anchor) (string, error) {

	body, err := json.Marshal(anchor)
	if err != nil {
		return "", fmt.Errorf("failed to encode anchor: %v", err)
	}

	url := "https://" + authority + "/anchors"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var response struct {
		TxRef string `json:"txRef"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %v", err)
	}
	if response.TxRef == "" {
		return "", fmt.Errorf("authority returned empty txRef")
	}

	c.cache.Set("anchor:"+doci.ComposeCode(anchor.Prefix, anchor.Suffix), anchor, cache.DefaultExpiration)
	return response.TxRef, nil
}

// PutBlob uploads a metadata blob to the content store and returns the
// content address the store assigned.
func (c *Client) PutBlob(ctx context.Context, store string, data []byte) (string, error) {

	url := "https://" + store + "/blobs"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var response struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %v", err)
	}
	return response.Ref, nil
}

// GetBlob fetches a metadata blob by its content address.
func (c *Client) GetBlob(ctx context.Context, store, ref string) ([]byte, error) {

	url := "https://" + store + "/blobs/" + ref
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("blob %s not found", ref)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}
	return data, nil
}

// GetWellKnown fetches another gateway's discovery document.
func (c *Client) GetWellKnown(ctx context.Context, host string) (doci.WellKnownDoci, error) {

	if cached, found := c.cache.Get("wellknown:" + host); found {
		return cached.(doci.WellKnownDoci), nil
	}

	url := "https://" + host + "/.well-known/doci"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return doci.WellKnownDoci{}, fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return doci.WellKnownDoci{}, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return doci.WellKnownDoci{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var wkd doci.WellKnownDoci
	if err := json.NewDecoder(resp.Body).Decode(&wkd); err != nil {
		return doci.WellKnownDoci{}, fmt.Errorf("failed to decode response: %v", err)
	}

	c.cache.Set("wellknown:"+host, wkd, cache.DefaultExpiration)
	return wkd, nil
}
