package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cloudsub/subsync/internal/api"
	v1 "github.com/cloudsub/subsync/internal/api/v1"
	"github.com/cloudsub/subsync/internal/config"
	"github.com/cloudsub/subsync/internal/events"
	"github.com/cloudsub/subsync/internal/subscription"
	"github.com/cloudsub/subsync/internal/subscription/sqlite"
	"github.com/cloudsub/subsync/internal/sync"
)

// remoteRecorder is a stand-in for the remote mirror. It records every
// payload it receives and always answers 200.
type remoteRecorder struct {
	mu       gosync.Mutex
	payloads []sync.Payload
}

func (r *remoteRecorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var payload sync.Payload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		r.mu.Lock()
		r.payloads = append(r.payloads, payload)
		r.mu.Unlock()

		w.WriteHeader(http.StatusOK)
	})
}

func (r *remoteRecorder) received() []sync.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sync.Payload(nil), r.payloads...)
}

var _ = Describe("Subscription sync bridge", func() {
	var (
		tempDir    string
		remote     *remoteRecorder
		remoteSrv  *httptest.Server
		store      *sqlite.Store
		manager    *config.Manager
		reconciler *sync.Reconciler
		bridgeSrv  *httptest.Server
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()

		remote = &remoteRecorder{}
		remoteSrv = httptest.NewServer(remote.handler())

		cfg := *config.Default()
		cfg.Enabled = true
		cfg.RemoteURL = remoteSrv.URL
		cfg.APIKey = "integration-key"

		configStore, err := config.NewFileStore(filepath.Join(tempDir, "config.yaml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(configStore.Save(context.Background(), &cfg)).To(Succeed())

		manager, err = config.NewManager(context.Background(), configStore)
		Expect(err).NotTo(HaveOccurred())

		store, err = sqlite.Open(filepath.Join(tempDir, "subscribe.db"))
		Expect(err).NotTo(HaveOccurred())

		dispatcher := sync.NewDispatcher(manager, sync.NewHTTPClient())

		bus := events.NewBus()
		sync.NewIntake(store, dispatcher).Register(bus)

		reconciler = sync.NewReconciler(manager, store, dispatcher,
			sync.WithThrottle(0))

		bridgeSrv = httptest.NewServer(api.NewServer(
			v1.NewRoutes(manager, reconciler, bus),
			api.WithMiddlewares(api.LoggingMiddleware),
		))
	})

	AfterEach(func() {
		bridgeSrv.Close()
		reconciler.Stop()
		Expect(store.Close()).To(Succeed())
		remoteSrv.Close()
	})

	insertRecord := func(sub *subscription.Subscription) int64 {
		id, err := store.Insert(context.Background(), sub)
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	postJSON := func(path, body string) *http.Response {
		resp, err := http.Post(bridgeSrv.URL+path, "application/json",
			bytes.NewReader([]byte(body)))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("mirrors an added subscription to the remote", func() {
		id := insertRecord(&subscription.Subscription{
			Name: "Heat", Year: "1995", Type: "电影", TMDBID: 949,
		})

		resp := postJSON("/api/v1/events/subscribe-added",
			fmt.Sprintf(`{"subscribe_id": %d}`, id))
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

		payloads := remote.received()
		Expect(payloads).To(HaveLen(1))
		Expect(payloads[0].Action).To(Equal(sync.ActionAdd))
		Expect(payloads[0].APIKey).To(Equal("integration-key"))
		Expect(payloads[0].Data.Title).To(Equal("Heat"))
		Expect(payloads[0].Data.Type).To(Equal(sync.KindMovie))
		Expect(payloads[0].Data.Season).To(BeNil())
	})

	It("mirrors a deletion using the inline record", func() {
		resp := postJSON("/api/v1/events/subscribe-deleted",
			`{"subscribe_info": {"name": "The Wire", "year": "2002", "type": "电视剧", "tmdbid": 1438, "season": 1}}`)
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

		payloads := remote.received()
		Expect(payloads).To(HaveLen(1))
		Expect(payloads[0].Action).To(Equal(sync.ActionDelete))
		Expect(payloads[0].Data.Type).To(Equal(sync.KindTV))
		Expect(payloads[0].Data.Season).To(HaveValue(Equal(1)))
	})

	It("suppresses a repeated add within the dedup window", func() {
		id := insertRecord(&subscription.Subscription{
			Name: "Heat", Type: "电影", TMDBID: 949,
		})

		for range 2 {
			resp := postJSON("/api/v1/events/subscribe-added",
				fmt.Sprintf(`{"subscribe_id": %d}`, id))
			resp.Body.Close()
		}

		Expect(remote.received()).To(HaveLen(1))
	})

	It("backfills existing records and disarms the toggle", func() {
		insertRecord(&subscription.Subscription{Name: "Heat", Type: "电影", TMDBID: 949})
		insertRecord(&subscription.Subscription{Name: "The Wire", Type: "电视剧", TMDBID: 1438, Season: 1})

		cfg := manager.Snapshot()
		cfg.SyncHistory = true
		body, err := json.Marshal(cfg)
		Expect(err).NotTo(HaveOccurred())

		req, err := http.NewRequest(http.MethodPut, bridgeSrv.URL+"/api/v1/config",
			bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		Eventually(func() int {
			return len(remote.received())
		}, 5*time.Second, 10*time.Millisecond).Should(Equal(2))

		Eventually(func() string {
			return reconciler.Status().State
		}, 5*time.Second, 10*time.Millisecond).Should(Equal(sync.StateIdle))

		Expect(manager.Snapshot().SyncHistory).To(BeFalse())

		// The disarmed toggle is persisted, not just in memory.
		data, err := os.ReadFile(filepath.Join(tempDir, "config.yaml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("syncHistory: false"))
	})

	It("reports backfill progress on the status endpoint", func() {
		insertRecord(&subscription.Subscription{Name: "Heat", Type: "电影", TMDBID: 949})

		Expect(reconciler.Trigger(context.Background())).To(BeTrue())

		Eventually(func() string {
			return reconciler.Status().State
		}, 5*time.Second, 10*time.Millisecond).Should(Equal(sync.StateIdle))

		resp, err := http.Get(bridgeSrv.URL + "/api/v1/status")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		var status v1.StatusResponse
		Expect(json.NewDecoder(resp.Body).Decode(&status)).To(Succeed())
		Expect(status.Enabled).To(BeTrue())
		Expect(status.Backfill.State).To(Equal(sync.StateIdle))
		Expect(status.Backfill.RecordsDispatched).To(Equal(1))
	})
})
