package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/EdgeAdaptics/triage/internal/events"
)

type frame struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// streamClient reads SSE frames off one connection in the background.
type streamClient struct {
	frames chan frame
	cancel context.CancelFunc
}

func openStream(baseURL string) *streamClient {
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/triage/stream", nil)
	Expect(err).NotTo(HaveOccurred())

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	Expect(resp.StatusCode).To(Equal(http.StatusOK))
	Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

	c := &streamClient{frames: make(chan frame, 64), cancel: cancel}
	go func() {
		defer GinkgoRecover()
		defer resp.Body.Close()
		defer close(c.frames)

		rd := bufio.NewReader(resp.Body)
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\n")
			if line == "" {
				continue
			}
			var f frame
			Expect(strings.HasPrefix(line, "data: ")).To(BeTrue(), line)
			Expect(json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f)).To(Succeed())
			c.frames <- f
		}
	}()
	return c
}

func (c *streamClient) next() frame {
	var f frame
	Eventually(c.frames, 2*time.Second).Should(Receive(&f))
	return f
}

var _ = Describe("Event stream", func() {
	var (
		b   *board
		srv *httptest.Server
	)

	start := func(heartbeat time.Duration, seed bool, opts ...events.Option) {
		b = newBoard(heartbeat, seed, opts...)
		srv = httptest.NewServer(b.router)
		DeferCleanup(srv.Close)
	}

	post := func(body string) map[string]any {
		resp, err := http.Post(srv.URL+"/v1/triage", "application/json", bytes.NewBufferString(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var out map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		return out
	}

	connect := func() *streamClient {
		c := openStream(srv.URL)
		DeferCleanup(c.cancel)

		hello := c.next()
		Expect(hello.Type).To(Equal("issue_update"))
		Expect(hello.Payload).To(HaveKeyWithValue("connected", true))
		Expect(hello.Payload).To(HaveKeyWithValue("message", "Real-time connection established"))
		return c
	}

	It("delivers one issue_create per client", func() {
		start(time.Hour, false)
		first, second := connect(), connect()

		post(`{"action":"createIssue","title":"X","description":"Y","priority":"critical"}`)

		for _, c := range []*streamClient{first, second} {
			created := c.next()
			Expect(created.Type).To(Equal("issue_create"))
			Expect(created.Payload).To(HaveKeyWithValue("action", "create"))
			issue := created.Payload["issue"].(map[string]any)
			Expect(issue["title"]).To(Equal("X"))

			Expect(c.next().Type).To(Equal("activity_add"))
			Consistently(c.frames, 100*time.Millisecond).ShouldNot(Receive())
		}
	})

	It("sends heartbeats while idle", func() {
		start(50*time.Millisecond, false)
		c := connect()

		beat := c.next()
		Expect(beat.Type).To(Equal("issue_update"))
		Expect(beat.Payload).To(HaveKeyWithValue("heartbeat", true))
	})

	It("drops the subscription when the client disconnects", func() {
		start(time.Hour, false)
		c := connect()
		Expect(b.bus.Subscribers()).To(Equal(1))

		c.cancel()
		Eventually(b.bus.Subscribers, 2*time.Second).Should(BeZero())

		post(`{"action":"createIssue","title":"X","description":"Y"}`)
	})

	It("gives every client the same bulk update sequence", func() {
		start(time.Hour, true)
		first, second := connect(), connect()

		post(`{"action":"bulkUpdate","issueIds":["1","2","3"],"updates":{"status":"review"}}`)

		read := func(c *streamClient) []frame {
			out := make([]frame, 0, 7)
			for range 7 {
				out = append(out, c.next())
			}
			return out
		}
		a, z := read(first), read(second)

		types := make([]string, 0, len(a))
		for i, f := range a {
			types = append(types, f.Type)
			Expect(z[i].Type).To(Equal(f.Type))
			Expect(z[i].Payload).To(Equal(f.Payload))
		}
		Expect(types).To(Equal([]string{
			"activity_add", "activity_add", "activity_add",
			"issue_update", "issue_update", "issue_update",
			"bulk_update",
		}))

		var ids []any
		for _, f := range a[3:6] {
			issue := f.Payload["issue"].(map[string]any)
			Expect(issue["status"]).To(Equal("review"))
			ids = append(ids, issue["id"])
		}
		Expect(ids).To(Equal([]any{"1", "2", "3"}))
		Expect(a[6].Payload).To(HaveKeyWithValue("count", BeNumerically("==", 3)))
	})

	It("delivers every frame of a bulk update larger than the subscriber buffer", func() {
		start(time.Hour, false, events.WithBuffer(8))
		c := connect()

		const n = 60
		batch := make([]map[string]any, 0, n)
		for i := range n {
			batch = append(batch, map[string]any{"title": "imported", "description": strings.Repeat("x", i)})
		}
		raw, err := json.Marshal(map[string]any{"action": "importIssues", "issues": batch})
		Expect(err).NotTo(HaveOccurred())
		imported := post(string(raw))["issues"].([]any)
		Expect(imported).To(HaveLen(n))
		Expect(c.next().Type).To(Equal("bulk_update"))

		ids := make([]string, 0, n)
		for _, it := range imported {
			ids = append(ids, it.(map[string]any)["id"].(string))
		}
		raw, err = json.Marshal(map[string]any{
			"action": "bulkUpdate", "issueIds": ids, "updates": map[string]any{"status": "review"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(post(string(raw))["count"]).To(BeNumerically("==", n))

		counts := map[string]int{}
		var updated []any
		for range 2*n + 1 {
			f := c.next()
			counts[f.Type]++
			if f.Type == "issue_update" {
				updated = append(updated, f.Payload["issue"].(map[string]any)["id"])
			}
		}
		Expect(counts).To(Equal(map[string]int{"activity_add": n, "issue_update": n, "bulk_update": 1}))
		Expect(updated).To(HaveLen(n))
		for i, id := range updated {
			Expect(id).To(Equal(ids[i]))
		}
	})

	It("stamps stream-only frames with the bus clock", func() {
		fixed := time.Date(2024, 1, 20, 9, 30, 0, 0, time.UTC)
		start(50*time.Millisecond, false, events.WithClock(func() time.Time { return fixed }))
		c := connect()

		beat := c.next()
		Expect(beat.Payload).To(HaveKeyWithValue("heartbeat", true))
		Expect(beat.Timestamp).To(BeTemporally("==", fixed))
	})
})
