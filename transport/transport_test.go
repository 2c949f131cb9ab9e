package transport_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nwtnni/hoplite-go/cluster/memblobstore"
	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/transport"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	store := memblobstore.New()
	var sealed cmn.ObjectID
	var mu sync.Mutex
	done := make(chan struct{})

	recv := transport.NewReceiver(store, 4, func(id cmn.ObjectID) {
		mu.Lock()
		sealed = id
		mu.Unlock()
		close(done)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recv.Serve(ctx, ln)

	id := cmn.NewObjectID()
	payload := bytes.Repeat([]byte{'r'}, 1<<20) // 1 MiB

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := transport.SendObject(conn, id, int64(len(payload)), bytes.NewReader(payload)); err != nil {
		t.Fatalf("SendObject: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("receiver never sealed the blob")
	}

	mu.Lock()
	got := sealed
	mu.Unlock()
	if got != id {
		t.Fatalf("sealed id = %s, want %s", got, id)
	}

	h, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	r, err := h.Reader()
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Fatal("received bytes differ from sent payload")
	}
}

func TestConcurrentSendersAllCompleteUnderSemaphore(t *testing.T) {
	store := memblobstore.New()
	var n int32
	var mu sync.Mutex
	ids := make(map[cmn.ObjectID]bool)

	recv := transport.NewReceiver(store, 2, func(id cmn.ObjectID) {
		mu.Lock()
		ids[id] = true
		n++
		mu.Unlock()
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recv.Serve(ctx, ln)

	const count = 6
	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("tcp", ln.Addr().String())
			if err != nil {
				t.Errorf("dial: %v", err)
				return
			}
			defer conn.Close()
			id := cmn.NewObjectID()
			payload := bytes.Repeat([]byte{'x'}, 1024)
			if err := transport.SendObject(conn, id, int64(len(payload)), bytes.NewReader(payload)); err != nil {
				t.Errorf("SendObject: %v", err)
			}
		}()
	}
	wg.Wait()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		got := len(ids)
		mu.Unlock()
		if got == count {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d/%d transfers completed", got, count)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSendObjectAckMismatchIsProtocolError(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		// drain the header+payload, then reply with a bad ack.
		buf := make([]byte, 20+8+4)
		io.ReadFull(server, buf)
		server.Write([]byte("NO!"))
	}()

	id := cmn.NewObjectID()
	err := transport.SendObject(client, id, 4, bytes.NewReader([]byte("data")))
	if err == nil {
		t.Fatal("expected protocol error on ack mismatch")
	}
	if !cmn.IsProtocolError(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}
