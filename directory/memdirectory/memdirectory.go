// Package memdirectory is an in-process directory.Backend backed by a
// map and mutexes rather than a real cluster-wide KV store, standing in
// for the cluster's global control store as an external collaborator.
// It also serves as an http.Handler implementing the same RPC surface over
// the wire, so directory.Client can address it exactly as it would a real
// networked directory — used by cmd/hoplited's -standalone mode and by the
// package test suites.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package memdirectory

import (
	"bytes"
	"net/http"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/cmn/nlog"
	"github.com/nwtnni/hoplite-go/directory"
)

type (
	writeReq struct {
		ObjectID cmn.ObjectID `json:"object_id"`
		Address  cmn.Address  `json:"address"`
	}
	lookupReq struct {
		ObjectID cmn.ObjectID `json:"object_id"`
	}
	lookupResp struct {
		Address cmn.Address `json:"address"`
	}
	subReq struct {
		Subscriber cmn.Address  `json:"subscriber"`
		ObjectID   cmn.ObjectID `json:"object_id"`
	}
	completeReq struct {
		ObjectID cmn.ObjectID `json:"object_id"`
	}
	okResp struct {
		OK bool `json:"ok"`
	}
	notifyReq struct {
		ObjectID cmn.ObjectID `json:"object_id"`
	}
)

// Backend is the in-memory directory implementation: one mutex guards the
// object_id -> address map and the per-id subscriber-address lists. The
// pending/ready split lives entirely in directory.Subscription, on the
// node; the directory itself only needs to know who to notify.
type Backend struct {
	notifyPort int
	httpClient *http.Client

	mu        sync.Mutex
	locations map[cmn.ObjectID]cmn.Address
	subs      map[cmn.ObjectID]map[cmn.Address]struct{}
}

var _ directory.Backend = (*Backend)(nil)

// New returns an empty Backend. notifyPort is the fixed, out-of-band port
// every node's notification Listener binds to.
func New(notifyPort int) *Backend {
	return &Backend{
		notifyPort: notifyPort,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		locations:  make(map[cmn.ObjectID]cmn.Address),
		subs:       make(map[cmn.ObjectID]map[cmn.Address]struct{}),
	}
}

func (b *Backend) WriteObjectLocation(id cmn.ObjectID, addr cmn.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locations[id] = addr
	return nil
}

func (b *Backend) GetObjectLocation(id cmn.ObjectID) (cmn.Address, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locations[id], nil
}

func (b *Backend) Subscribe(subscriber cmn.Address, id cmn.ObjectID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[id]
	if !ok {
		set = make(map[cmn.Address]struct{})
		b.subs[id] = set
	}
	set[subscriber] = struct{}{}
	return nil
}

func (b *Backend) Unsubscribe(subscriber cmn.Address, id cmn.ObjectID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[id]; ok {
		delete(set, subscriber)
		if len(set) == 0 {
			delete(b.subs, id)
		}
	}
	return nil
}

// ObjectComplete fans ObjectIsReady(id) out to every address currently
// subscribed to id, each delivery an independent best-effort HTTP POST to
// that node's notification-listen port.
func (b *Backend) ObjectComplete(id cmn.ObjectID) error {
	b.mu.Lock()
	addrs := make([]cmn.Address, 0, len(b.subs[id]))
	for a := range b.subs[id] {
		addrs = append(addrs, a)
	}
	b.mu.Unlock()

	for _, addr := range addrs {
		go b.notify(addr, id)
	}
	return nil
}

func (b *Backend) notify(addr cmn.Address, id cmn.ObjectID) {
	body, err := jsoniter.Marshal(notifyReq{ObjectID: id})
	if err != nil {
		nlog.Errorln("memdirectory: marshal notify:", err)
		return
	}
	url := "http://" + addr.String() + ":" + strconv.Itoa(b.notifyPort) + "/v1/notify"
	resp, err := b.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		nlog.Warningln("memdirectory: notify", addr, "failed:", err)
		return
	}
	resp.Body.Close()
}

// Handler exposes Backend over the directory RPC surface, so a
// directory.Client (or an httptest server in the test suite) can address
// it exactly as it would a real networked directory.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/directory/write", b.handleWrite)
	mux.HandleFunc("/v1/directory/lookup", b.handleLookup)
	mux.HandleFunc("/v1/directory/subscribe", b.handleSubscribe)
	mux.HandleFunc("/v1/directory/unsubscribe", b.handleUnsubscribe)
	mux.HandleFunc("/v1/directory/complete", b.handleComplete)
	return mux
}

func (b *Backend) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req writeReq
	if !decode(w, r, &req) {
		return
	}
	if err := b.WriteObjectLocation(req.ObjectID, req.Address); err != nil {
		httpErr(w, err)
		return
	}
	writeOK(w)
}

func (b *Backend) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req lookupReq
	if !decode(w, r, &req) {
		return
	}
	addr, err := b.GetObjectLocation(req.ObjectID)
	if err != nil {
		httpErr(w, err)
		return
	}
	writeJSON(w, lookupResp{Address: addr})
}

func (b *Backend) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subReq
	if !decode(w, r, &req) {
		return
	}
	if err := b.Subscribe(req.Subscriber, req.ObjectID); err != nil {
		httpErr(w, err)
		return
	}
	writeOK(w)
}

func (b *Backend) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req subReq
	if !decode(w, r, &req) {
		return
	}
	if err := b.Unsubscribe(req.Subscriber, req.ObjectID); err != nil {
		httpErr(w, err)
		return
	}
	writeOK(w)
}

func (b *Backend) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeReq
	if !decode(w, r, &req) {
		return
	}
	if err := b.ObjectComplete(req.ObjectID); err != nil {
		httpErr(w, err)
		return
	}
	writeOK(w)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := jsoniter.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, errors.Wrap(err, "memdirectory: decode request").Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, okResp{OK: true})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = jsoniter.NewEncoder(w).Encode(v)
}

func httpErr(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
