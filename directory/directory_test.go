package directory_test

import (
	"context"
	"net"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/directory"
	"github.com/nwtnni/hoplite-go/directory/memdirectory"
)

// waitDial blocks until addr accepts TCP connections or the deadline
// passes, so tests don't race the Listener goroutine's startup.
func waitDial(addr string) {
	Eventually(func() error {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
		}
		return err
	}, 2*time.Second, 10*time.Millisecond).Should(Succeed())
}

var _ = Describe("directory", func() {
	const notifyPort = 19567

	var (
		backend   *memdirectory.Backend
		dirServer *httptest.Server
		ctx       context.Context

		clientA, clientB     *directory.Client
		listenerA, listenerB *directory.Listener
	)

	BeforeEach(func() {
		ctx = context.Background()
		backend = memdirectory.New(notifyPort)
		dirServer = httptest.NewServer(backend.Handler())

		clientA = directory.NewClient(dirServer.URL, "127.0.0.1")
		listenerA = directory.NewListener("127.0.0.1:19567", clientA)
		go listenerA.ListenAndServe()
		waitDial("127.0.0.1:19567")

		clientB = directory.NewClient(dirServer.URL, "127.0.0.2")
		listenerB = directory.NewListener("127.0.0.2:19567", clientB)
		go listenerB.ListenAndServe()
		waitDial("127.0.0.2:19567")
	})

	AfterEach(func() {
		listenerA.Shutdown(ctx)
		listenerB.Shutdown(ctx)
		dirServer.Close()
	})

	It("round-trips publish and lookup", func() {
		id := cmn.NewObjectID()
		Expect(clientA.Publish(ctx, id)).To(Succeed())

		addr, err := clientB.Lookup(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(addr).To(Equal(cmn.Address("127.0.0.1")))
	})

	It("returns empty string for an unknown id", func() {
		addr, err := clientB.Lookup(ctx, cmn.NewObjectID())
		Expect(err).NotTo(HaveOccurred())
		Expect(addr).To(BeEmpty())
	})

	It("delivers subscribe-after-publish with include_already_present", func() {
		id := cmn.NewObjectID()
		Expect(clientA.Publish(ctx, id)).To(Succeed())
		Expect(clientA.PublishCompletion(ctx, id)).To(Succeed())

		sub, err := clientB.Subscribe(ctx, []cmn.ObjectID{id}, true)
		Expect(err).NotTo(HaveOccurred())

		wctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		ready, err := sub.Wait(wctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ready).To(HaveKey(id))
	})

	It("delivers subscribe-before-publish", func() {
		id := cmn.NewObjectID()
		sub, err := clientB.Subscribe(ctx, []cmn.ObjectID{id}, false)
		Expect(err).NotTo(HaveOccurred())

		Expect(clientA.Publish(ctx, id)).To(Succeed())
		Expect(clientA.PublishCompletion(ctx, id)).To(Succeed())

		wctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		ready, err := sub.Wait(wctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ready).To(HaveKey(id))
	})

	It("ignores a notification for an id not in pending", func() {
		subscribed := cmn.NewObjectID()
		unrelated := cmn.NewObjectID()

		sub, err := clientB.Subscribe(ctx, []cmn.ObjectID{subscribed}, false)
		Expect(err).NotTo(HaveOccurred())
		// a second subscription makes the directory notify B about unrelated,
		// so sub sees the notification and has to filter it out.
		_, err = clientB.Subscribe(ctx, []cmn.ObjectID{unrelated}, false)
		Expect(err).NotTo(HaveOccurred())

		Expect(clientA.Publish(ctx, unrelated)).To(Succeed())
		Expect(clientA.PublishCompletion(ctx, unrelated)).To(Succeed())

		wctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, err = sub.Wait(wctx)
		Expect(err).To(HaveOccurred()) // deadline, nothing delivered
	})

	It("Wait returns a context error when cancelled before any notification", func() {
		sub, err := clientB.Subscribe(ctx, []cmn.ObjectID{cmn.NewObjectID()}, false)
		Expect(err).NotTo(HaveOccurred())

		wctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = sub.Wait(wctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("unsubscribe stops future deliveries from reaching that subscription", func() {
		id := cmn.NewObjectID()
		sub, err := clientB.Subscribe(ctx, []cmn.ObjectID{id}, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(clientB.Unsubscribe(ctx, sub)).To(Succeed())

		Expect(clientA.Publish(ctx, id)).To(Succeed())
		Expect(clientA.PublishCompletion(ctx, id)).To(Succeed())

		wctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, err = sub.Wait(wctx)
		Expect(err).To(HaveOccurred())
	})
})
