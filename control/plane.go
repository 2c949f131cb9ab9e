// Package control implements the pull-based control plane: accept
// incoming Pull requests and decide whether this node serves them right
// now, and originate outgoing pulls against peers. The control reply is
// synchronous with the bulk transfer — Plane does not answer ok=true until
// the bytes have actually been sent and acked — which turns "ok=true" into
// proof of delivery for the requester.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package control

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/nwtnni/hoplite-go/cluster"
	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/cmn/nlog"
	"github.com/nwtnni/hoplite-go/transport"
)

const pullPath = "/v1/control/pull"

type (
	pullReq struct {
		ObjectID   cmn.ObjectID `json:"object_id"`
		PullerAddr cmn.Address  `json:"puller_addr"`
	}
	pullResp struct {
		OK bool `json:"ok"`
	}
)

// Plane is both the http.Handler serving incoming Pull requests and the
// client issuing outgoing ones. One Plane per node.
type Plane struct {
	store         cluster.BlobStore
	counter       *OutboundCounter
	bulkPort      int
	dialTimeout   time.Duration
	retryInterval time.Duration
	httpClient    *http.Client
}

// NewPlane builds a Plane that serves sealed blobs out of store, dialing a
// requester's bulk port (bulkPort, fixed per deployment) to push bytes, and
// sleeping retryInterval between busy-retries on the outgoing side.
func NewPlane(store cluster.BlobStore, bulkPort int, retryInterval time.Duration) *Plane {
	return &Plane{
		store:         store,
		counter:       NewOutboundCounter(),
		bulkPort:      bulkPort,
		dialTimeout:   10 * time.Second,
		retryInterval: retryInterval,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

var _ http.Handler = (*Plane)(nil)

// ServeHTTP implements the incoming half of a pull: reserve the
// outbound slot, stream the blob to the puller's bulk port, and only then
// reply ok=true. When the slot is already held, ok=false ("busy, retry") is
// returned immediately with no work scheduled; ok=false is also the reply
// when the transfer itself fails.
func (p *Plane) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req pullReq
	if err := jsoniter.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !p.counter.TryReserve(req.ObjectID) {
		nlog.Infoln("control: pull", req.ObjectID, "from", req.PullerAddr, ":", cmn.ErrBusy)
		writeResp(w, false)
		return
	}
	defer p.counter.Release(req.ObjectID)

	if err := p.serve(r.Context(), req.ObjectID, req.PullerAddr); err != nil {
		nlog.Warningln("control: serve pull", req.ObjectID, "to", req.PullerAddr, ":", err)
		writeResp(w, false)
		return
	}
	writeResp(w, true)
}

func (p *Plane) serve(ctx context.Context, id cmn.ObjectID, pullerAddr cmn.Address) error {
	handle, err := p.store.Get(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "control: get blob %s", id)
	}
	reader, err := handle.Reader()
	if err != nil {
		return errors.Wrapf(err, "control: open reader %s", id)
	}
	defer reader.Close()

	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", pullerAddr.String()+":"+strconv.Itoa(p.bulkPort))
	if err != nil {
		return errors.Wrapf(err, "control: dial bulk port of %s", pullerAddr)
	}
	defer conn.Close()

	if err := transport.SendObject(conn, id, handle.Size(), reader); err != nil {
		return errors.Wrapf(err, "control: send %s to %s", id, pullerAddr)
	}
	if nlog.FastV(4, nlog.SmoduleControl) {
		nlog.Infoln("control: served", id, "to", pullerAddr)
	}
	return nil
}

// PullObject implements the outgoing half: open a control-channel RPC to
// remoteAddr, and on ok=false sleep and retry the same remote indefinitely
// (bounded only by ctx). There is no retry cap by design — ok=false is a
// fast local rejection, not a failure.
func (p *Plane) PullObject(ctx context.Context, remoteAddr cmn.Address, controlPort int, myAddress cmn.Address, id cmn.ObjectID) error {
	base := "http://" + remoteAddr.String() + ":" + strconv.Itoa(controlPort)
	body, err := jsoniter.Marshal(pullReq{ObjectID: id, PullerAddr: myAddress})
	if err != nil {
		return errors.Wrap(err, "control: marshal pull request")
	}

	for {
		ok, err := p.tryPull(ctx, base, body)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-time.After(p.retryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Plane) tryPull(ctx context.Context, base string, body []byte) (bool, error) {
	args := cmn.ReqArgs{Method: http.MethodPost, Base: base, Path: pullPath, Body: body}
	req, err := args.Req(ctx)
	if err != nil {
		return false, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "control: pull RPC")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, errors.Errorf("control: pull RPC: status %d", resp.StatusCode)
	}
	var out pullResp
	if err := jsoniter.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, errors.Wrap(err, "control: decode pull response")
	}
	return out.OK, nil
}

// Handler returns the mux to mount at the control port.
func (p *Plane) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(pullPath, p)
	return mux
}

func writeResp(w http.ResponseWriter, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	_ = jsoniter.NewEncoder(w).Encode(pullResp{OK: ok})
}
