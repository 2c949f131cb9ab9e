package control_test

import (
	"bytes"
	"context"
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nwtnni/hoplite-go/cluster/memblobstore"
	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/control"
	"github.com/nwtnni/hoplite-go/transport"
)

// startPuller brings up a bulk-port Receiver bound to addr (e.g.
// "127.0.0.2:19666") and returns a channel delivering sealed object ids.
// Distinct loopback addresses on the same fixed bulk port stand in for
// distinct nodes in a real deployment, where the bulk port is
// configuration shared cluster-wide and addresses are what vary.
func startPuller(t *testing.T, addr string, store *memblobstore.Store) (sealed chan cmn.ObjectID) {
	t.Helper()
	sealed = make(chan cmn.ObjectID, 16)
	recv := transport.NewReceiver(store, 4, func(id cmn.ObjectID) { sealed <- id })
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("listen %s: %v", addr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go recv.Serve(ctx, ln)
	return sealed
}

func mustPort(u *url.URL) int {
	p, _ := strconv.Atoi(u.Port())
	return p
}

func TestPullObjectSoloPutGet(t *testing.T) {
	const bulkPort = 19666

	holderStore := memblobstore.New()
	id := cmn.NewObjectID()
	payload := bytes.Repeat([]byte{'r'}, 1<<20)
	h, err := holderStore.Create(id, int64(len(payload)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h.Writer().Write(payload)
	if err := holderStore.Seal(id); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	pullerStore := memblobstore.New()
	sealed := startPuller(t, "127.0.0.2:"+strconv.Itoa(bulkPort), pullerStore)

	holderPlane := control.NewPlane(holderStore, bulkPort, time.Millisecond)
	holderSrv := httptest.NewServer(holderPlane.Handler())
	defer holderSrv.Close()
	holderURL, _ := url.Parse(holderSrv.URL)

	pullerPlane := control.NewPlane(pullerStore, bulkPort, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pullerPlane.PullObject(ctx, cmn.Address(holderURL.Hostname()), mustPort(holderURL), "127.0.0.2", id); err != nil {
		t.Fatalf("PullObject: %v", err)
	}

	select {
	case got := <-sealed:
		if got != id {
			t.Fatalf("sealed %s, want %s", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("object never sealed on puller side")
	}

	gh, err := pullerStore.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	r, _ := gh.Reader()
	defer r.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Fatal("pulled bytes differ from published payload")
	}
}

func TestConcurrentPullsOfSameObjectBothComplete(t *testing.T) {
	const bulkPort = 19667

	holderStore := memblobstore.New()
	id := cmn.NewObjectID()
	payload := bytes.Repeat([]byte{'z'}, 1<<16)
	h, _ := holderStore.Create(id, int64(len(payload)))
	h.Writer().Write(payload)
	holderStore.Seal(id)

	storeB := memblobstore.New()
	sealedB := startPuller(t, "127.0.0.3:"+strconv.Itoa(bulkPort), storeB)
	storeC := memblobstore.New()
	sealedC := startPuller(t, "127.0.0.4:"+strconv.Itoa(bulkPort), storeC)

	holderPlane := control.NewPlane(holderStore, bulkPort, time.Millisecond)
	holderSrv := httptest.NewServer(holderPlane.Handler())
	defer holderSrv.Close()
	holderURL, _ := url.Parse(holderSrv.URL)
	holderAddr := cmn.Address(holderURL.Hostname())
	holderPort := mustPort(holderURL)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		plane := control.NewPlane(storeB, bulkPort, time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := plane.PullObject(ctx, holderAddr, holderPort, "127.0.0.3", id); err != nil {
			t.Errorf("puller B: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		plane := control.NewPlane(storeC, bulkPort, time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := plane.PullObject(ctx, holderAddr, holderPort, "127.0.0.4", id); err != nil {
			t.Errorf("puller C: %v", err)
		}
	}()
	wg.Wait()

	for name, ch := range map[string]chan cmn.ObjectID{"B": sealedB, "C": sealedC} {
		select {
		case got := <-ch:
			if got != id {
				t.Fatalf("puller %s sealed %s, want %s", name, got, id)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("puller %s never received the object", name)
		}
	}
}
