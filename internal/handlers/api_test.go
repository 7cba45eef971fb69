package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Action router", func() {
	var b *board

	BeforeEach(func() {
		b = newBoard(time.Hour, true)
	})

	post := func(body any) (*httptest.ResponseRecorder, map[string]any) {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())

		req := httptest.NewRequest(http.MethodPost, "/v1/triage", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		b.router.ServeHTTP(w, req)

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return w, resp
	}

	It("rejects unknown actions", func() {
		w, resp := post(map[string]any{"action": "dropTables"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(resp["error"]).To(Equal("Invalid action"))
	})

	It("rejects malformed bodies", func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/triage", bytes.NewBufferString(`{`))
		w := httptest.NewRecorder()
		b.router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("lists issues", func() {
		w, resp := post(map[string]any{"action": "getIssues"})
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp["issues"]).To(HaveLen(5))
	})

	It("creates an issue with a derived SLA", func() {
		w, resp := post(map[string]any{
			"action": "createIssue", "title": "X", "description": "Y", "priority": "critical",
		})
		Expect(w.Code).To(Equal(http.StatusOK))

		issue := resp["issue"].(map[string]any)
		Expect(issue["status"]).To(Equal("new"))
		Expect(issue["priority"]).To(Equal("critical"))
		Expect(issue["slaStatus"]).To(Equal("on-track"))
		Expect(issue["createdAt"]).To(MatchRegexp(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`))
	})

	It("names missing fields on create", func() {
		w, resp := post(map[string]any{"action": "createIssue", "title": "X"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(resp["error"]).To(Equal("Title and description are required"))
	})

	It("updates an issue", func() {
		w, resp := post(map[string]any{"action": "updateIssue", "issueId": "2", "status": "review", "assignee": ""})
		Expect(w.Code).To(Equal(http.StatusOK))
		issue := resp["issue"].(map[string]any)
		Expect(issue["status"]).To(Equal("review"))
		Expect(issue["assignee"]).To(Equal(""))
	})

	It("returns 400 and 404 for bad update targets", func() {
		w, _ := post(map[string]any{"action": "updateIssue"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		w, resp := post(map[string]any{"action": "updateIssue", "issueId": "nope", "status": "review"})
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(resp["error"]).To(Equal("Issue not found"))
	})

	It("deletes issues idempotently", func() {
		w, resp := post(map[string]any{"action": "deleteIssue", "issueId": "1"})
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp["success"]).To(BeTrue())

		w, _ = post(map[string]any{"action": "deleteIssue", "issueId": "1"})
		Expect(w.Code).To(Equal(http.StatusOK))

		w, _ = post(map[string]any{"action": "deleteIssue"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("bulk updates and reports a count", func() {
		w, resp := post(map[string]any{
			"action": "bulkUpdate", "issueIds": []string{"1", "2", "missing"}, "updates": map[string]any{"priority": "low"},
		})
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp["count"]).To(BeNumerically("==", 2))
		Expect(resp["issues"]).To(HaveLen(2))
	})

	It("rejects badly shaped bulk requests", func() {
		w, _ := post(map[string]any{"action": "bulkUpdate", "issueIds": []string{"1"}})
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		w, _ = post(map[string]any{"action": "bulkUpdate", "issueIds": "1", "updates": map[string]any{}})
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		w, _ = post(map[string]any{"action": "bulkDelete"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("bulk deletes without cascading", func() {
		_, _ = post(map[string]any{"action": "addComment", "issueId": "1", "content": "looking"})

		w, resp := post(map[string]any{"action": "bulkDelete", "issueIds": []string{"1", "4", "x", "y"}})
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp["success"]).To(BeTrue())
		Expect(resp["count"]).To(BeNumerically("==", 2))

		_, resp = post(map[string]any{"action": "getComments", "issueId": "1"})
		Expect(resp["comments"]).To(HaveLen(1))

		_, resp = post(map[string]any{"action": "getActivity", "issueId": "1"})
		Expect(resp["activity"]).To(HaveLen(1))
	})

	It("imports issues with defaults", func() {
		w, resp := post(map[string]any{
			"action": "importIssues",
			"issues": []map[string]any{{"title": "A", "status": "resolved"}, {"priority": "high"}},
		})
		Expect(w.Code).To(Equal(http.StatusOK))
		issues := resp["issues"].([]any)
		Expect(issues).To(HaveLen(7))

		first := issues[5].(map[string]any)
		Expect(first["status"]).To(Equal("new"))
		Expect(first["priority"]).To(Equal("medium"))
		second := issues[6].(map[string]any)
		Expect(second["title"]).To(Equal("Untitled Issue"))
		Expect(second["priority"]).To(Equal("high"))

		_, resp = post(map[string]any{"action": "getIssues"})
		Expect(resp["issues"]).To(HaveLen(7))

		w, _ = post(map[string]any{"action": "importIssues", "issues": "nope"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("searches with filters", func() {
		w, resp := post(map[string]any{
			"action": "searchIssues", "query": "memory", "filters": map[string]any{"priority": "all", "slaStatus": "breached"},
		})
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp["issues"]).To(HaveLen(1))
	})

	It("aggregates analytics", func() {
		w, resp := post(map[string]any{"action": "getAnalytics"})
		Expect(w.Code).To(Equal(http.StatusOK))
		analytics := resp["analytics"].(map[string]any)
		Expect(analytics["total"]).To(BeNumerically("==", 5))
		Expect(analytics["bySLA"]).To(HaveKeyWithValue("breached", BeNumerically("==", 1)))
	})

	It("handles comments", func() {
		w, resp := post(map[string]any{"action": "addComment", "issueId": "3", "content": "restarted pods"})
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp["comment"]).To(HaveKeyWithValue("author", "Anonymous"))

		w, _ = post(map[string]any{"action": "addComment", "issueId": "3"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		w, _ = post(map[string]any{"action": "getComments"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		w, _ = post(map[string]any{"action": "getActivity"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("lists team members with assignment counts", func() {
		w, resp := post(map[string]any{"action": "getTeamMembers"})
		Expect(w.Code).To(Equal(http.StatusOK))
		members := resp["teamMembers"].([]any)
		Expect(members).To(HaveLen(3))
		Expect(members[0]).To(HaveKeyWithValue("assignedCount", BeNumerically("==", 2)))
	})

	It("reads and updates SLA budgets", func() {
		w, resp := post(map[string]any{"action": "getSLAConfig"})
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp["budgets"]).To(HaveKeyWithValue("critical", BeNumerically("==", 2)))

		w, resp = post(map[string]any{"action": "updateSLAConfig", "priority": "critical", "hours": 3})
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp["budgets"]).To(HaveKeyWithValue("critical", BeNumerically("==", 3)))

		w, _ = post(map[string]any{"action": "updateSLAConfig", "priority": "critical", "hours": -1})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("answers CORS preflight", func() {
		req := httptest.NewRequest(http.MethodOptions, "/v1/triage", nil)
		w := httptest.NewRecorder()
		b.router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
	})

	It("reports health", func() {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		b.router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusOK))
	})
})
