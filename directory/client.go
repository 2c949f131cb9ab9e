package directory

import (
	"context"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/nwtnni/hoplite-go/cmn"
)

const (
	pathWrite      = "/v1/directory/write"
	pathLookup     = "/v1/directory/lookup"
	pathSubscribe  = "/v1/directory/subscribe"
	pathUnsub      = "/v1/directory/unsubscribe"
	pathComplete   = "/v1/directory/complete"
	notifyPath     = "/v1/notify"
	defaultTimeout = 30 * time.Second
)

type (
	// wire bodies, jsoniter-encoded, one struct per RPC.
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

// Client is this node's handle to the cluster-wide directory: an
// *http.Client bound to the directory's base URL, this node's own address
// (used both as the wire subscriber identity and embedded in Publish
// calls), and the live-subscription registry the notification Listener
// dispatches against.
type Client struct {
	httpClient *http.Client
	baseURL    string
	myAddress  cmn.Address

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewClient builds a Client talking to a directory reachable at baseURL
// (e.g. "http://10.0.0.9:9100"), identifying itself as myAddress.
func NewClient(baseURL string, myAddress cmn.Address) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		myAddress:  myAddress,
		subs:       make(map[*Subscription]struct{}),
	}
}

// Publish records that id now lives at this node's own address. Must be
// durable at the directory before returning; fails only if the RPC fails,
// no internal retry.
func (c *Client) Publish(ctx context.Context, id cmn.ObjectID) error {
	body, err := jsoniter.Marshal(writeReq{ObjectID: id, Address: c.myAddress})
	if err != nil {
		return errors.Wrap(err, "directory: marshal publish")
	}
	var resp okResp
	if err := c.call(ctx, http.MethodPost, pathWrite, body, &resp); err != nil {
		return errors.Wrapf(err, "directory: publish %s", id)
	}
	return nil
}

// Lookup returns the currently recorded owner of id, or "" if unknown. It
// does not block waiting for the object to appear.
func (c *Client) Lookup(ctx context.Context, id cmn.ObjectID) (cmn.Address, error) {
	body, err := jsoniter.Marshal(lookupReq{ObjectID: id})
	if err != nil {
		return "", errors.Wrap(err, "directory: marshal lookup")
	}
	var resp lookupResp
	if err := c.call(ctx, http.MethodPost, pathLookup, body, &resp); err != nil {
		return "", errors.Wrapf(err, "directory: lookup %s", id)
	}
	return resp.Address, nil
}

// Subscribe registers interest in ids and returns a handle whose Wait
// yields newly-ready ids. When includeAlreadyPresent is true, the directory
// is additionally consulted immediately for each id, and any id already
// present is delivered as if a notification had just arrived.
func (c *Client) Subscribe(ctx context.Context, ids []cmn.ObjectID, includeAlreadyPresent bool) (*Subscription, error) {
	sub := newSubscription(ids)

	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	for _, id := range ids {
		body, err := jsoniter.Marshal(subReq{Subscriber: c.myAddress, ObjectID: id})
		if err != nil {
			return nil, errors.Wrap(err, "directory: marshal subscribe")
		}
		var resp okResp
		if err := c.call(ctx, http.MethodPost, pathSubscribe, body, &resp); err != nil {
			return nil, errors.Wrapf(err, "directory: subscribe %s", id)
		}
	}

	if includeAlreadyPresent {
		for _, id := range ids {
			addr, err := c.Lookup(ctx, id)
			if err != nil {
				return nil, err
			}
			if addr != "" {
				sub.deliver(id)
			}
		}
	}
	return sub, nil
}

// Unsubscribe detaches sub from the directory and frees it.
func (c *Client) Unsubscribe(ctx context.Context, sub *Subscription) error {
	c.mu.Lock()
	delete(c.subs, sub)
	c.mu.Unlock()

	for _, id := range sub.ids {
		body, err := jsoniter.Marshal(subReq{Subscriber: c.myAddress, ObjectID: id})
		if err != nil {
			return errors.Wrap(err, "directory: marshal unsubscribe")
		}
		var resp okResp
		if err := c.call(ctx, http.MethodPost, pathUnsub, body, &resp); err != nil {
			return errors.Wrapf(err, "directory: unsubscribe %s", id)
		}
	}
	return nil
}

// PublishCompletion broadcasts an "object complete" event to the
// directory, which fans it out to all subscribers of id.
func (c *Client) PublishCompletion(ctx context.Context, id cmn.ObjectID) error {
	body, err := jsoniter.Marshal(completeReq{ObjectID: id})
	if err != nil {
		return errors.Wrap(err, "directory: marshal publish-completion")
	}
	var resp okResp
	if err := c.call(ctx, http.MethodPost, pathComplete, body, &resp); err != nil {
		return errors.Wrapf(err, "directory: publish-completion %s", id)
	}
	return nil
}

// dispatch delivers an incoming ObjectIsReady(id) to every live
// subscription: each Subscription independently filters by its own
// pending set.
func (c *Client) dispatch(id cmn.ObjectID) {
	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.deliver(id)
	}
}

func (c *Client) call(ctx context.Context, method, path string, body []byte, out any) error {
	args := cmn.ReqArgs{Method: method, Base: c.baseURL, Path: path, Body: body}
	req, err := args.Req(ctx)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "directory: do request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("directory: %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := jsoniter.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "directory: decode response")
	}
	return nil
}
