// Package osdclient provides typed wrappers for invalidate, read-probe, and
// reset RPCs against a single OSD, per §4.C. Grounded on the request/timeout
// idiom of ec.RequestECMeta (a HEAD RPC against a remote target) and the
// bounded per-call deadline style used throughout transport/, adapted from
// raw net/http to an injectable Transport so the coordinator can be tested
// against a fake.
package osdclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/leusonmario/xtreemfs/cmn"
)

// InvalidateResponse is the message-level response to
// xtreemfs_xloc_set_invalidate, per §6: { isPrimary, status? }.
type InvalidateResponse struct {
	IsPrimary bool
	Status    *cmn.ReplicaStatus
}

// Transport is the wire-level surface the client façade drives. The default
// implementation speaks to a real OSD over HTTP; tests inject a fake.
type Transport interface {
	Invalidate(ctx context.Context, osdAddr string, creds *cmn.Capability, fileID string) (*InvalidateResponse, error)
	ReadProbe(ctx context.Context, osdAddr string, creds *cmn.Capability, fileID string, objNo, objVersion uint64, offset, length int64) error
	ExecuteReset(ctx context.Context, osdAddr string, creds *cmn.Capability, local *cmn.ReplicaStatus) (*cmn.AuthoritativeReplicaState, error)
}

// Client wraps a Transport with the per-call deadline and error-wrapping
// discipline every OSD call in the coordinator must have: failures are
// non-fatal per replica (§4.C/§4.E) and are returned as values, never
// panics.
type Client struct {
	Transport Transport
}

func New(t Transport) *Client {
	return &Client{Transport: t}
}

// Invalidate marks the replica on osdAddr invalid for new client I/O and
// returns its current object-version map. A transport error is wrapped and
// returned; the caller (the invalidate fan-out) treats it as "no status".
func (c *Client) Invalidate(ctx context.Context, osdAddr string, creds *cmn.Capability, fileID string) (*InvalidateResponse, error) {
	timeout := cmn.GCO.Get().OSDRpcTimeout()
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.Transport.Invalidate(cctx, osdAddr, creds, fileID)
	if err != nil {
		return nil, errors.Wrapf(err, "invalidate osd=%s file=%s", osdAddr, fileID)
	}
	return resp, nil
}

// ReadProbe triggers replication priming on a fresh replica. Reserved for
// future wiring per §4.C; the coordinator SHOULD call it for partial
// replicas under RONLY but MAY skip it, and DOES call it for coordinated
// priming (§4.E PRIME-NEW-REPLICAS).
func (c *Client) ReadProbe(ctx context.Context, osdAddr string, creds *cmn.Capability, fileID string, objNo, objVersion uint64, offset, length int64) error {
	timeout := cmn.GCO.Get().OSDRpcTimeout()
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.Transport.ReadProbe(cctx, osdAddr, creds, fileID, objNo, objVersion, offset, length); err != nil {
		return errors.Wrapf(err, "readProbe osd=%s file=%s objNo=%d", osdAddr, fileID, objNo)
	}
	return nil
}

// ExecuteReset instructs an OSD to reconcile against peers. Used by the
// on-OSD path, not by the coordinator directly (§4.C) - kept here so a
// complete façade exists for the message-level contract of §6.
func (c *Client) ExecuteReset(ctx context.Context, osdAddr string, creds *cmn.Capability, local *cmn.ReplicaStatus) (*cmn.AuthoritativeReplicaState, error) {
	timeout := cmn.GCO.Get().OSDRpcTimeout()
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state, err := c.Transport.ExecuteReset(cctx, osdAddr, creds, local)
	if err != nil {
		return nil, errors.Wrapf(err, "executeReset osd=%s", osdAddr)
	}
	return state, nil
}

// HTTPTransport is the production Transport: plain HTTP RPCs against an
// OSD's intra-cluster data-plane endpoint, in the style of
// ec.RequestECMeta's HEAD request against a remote target.
type HTTPTransport struct {
	HTTPClient *http.Client
}

func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{HTTPClient: &http.Client{}}
}

func (t *HTTPTransport) Invalidate(ctx context.Context, osdAddr string, creds *cmn.Capability, fileID string) (*InvalidateResponse, error) {
	url := fmt.Sprintf("http://%s/xtreemfs_xloc_set_invalidate?file_id=%s", osdAddr, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	attachCreds(req, creds)
	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osd %s: unexpected status %d", osdAddr, resp.StatusCode)
	}
	var out InvalidateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) ReadProbe(ctx context.Context, osdAddr string, creds *cmn.Capability, fileID string, objNo, objVersion uint64, offset, length int64) error {
	url := fmt.Sprintf("http://%s/read?file_id=%s&obj_no=%d&obj_version=%d&offset=%d&length=%d",
		osdAddr, fileID, objNo, objVersion, offset, length)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	attachCreds(req, creds)
	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("osd %s: unexpected status %d", osdAddr, resp.StatusCode)
	}
	return nil
}

func (t *HTTPTransport) ExecuteReset(ctx context.Context, osdAddr string, creds *cmn.Capability, local *cmn.ReplicaStatus) (*cmn.AuthoritativeReplicaState, error) {
	// Used by the on-OSD path only; the coordinator never calls this, so a
	// minimal stand-in keeps HTTPTransport a complete Transport.
	return nil, fmt.Errorf("executeReset: not invoked by the coordinator")
}

func attachCreds(req *http.Request, creds *cmn.Capability) {
	if creds != nil && creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
}
