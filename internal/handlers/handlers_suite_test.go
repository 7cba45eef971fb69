package handlers_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/EdgeAdaptics/triage/internal/events"
	"github.com/EdgeAdaptics/triage/internal/handlers"
	"github.com/EdgeAdaptics/triage/internal/id"
	"github.com/EdgeAdaptics/triage/internal/policy"
	"github.com/EdgeAdaptics/triage/internal/store"
	"github.com/EdgeAdaptics/triage/internal/triage"
)

func TestHandlers(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Handlers Suite")
}

type board struct {
	router chi.Router
	bus    *events.Bus
	store  *store.Memory
	svc    *triage.Service
}

func newBoard(heartbeat time.Duration, seed bool, opts ...events.Option) *board {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ids, err := id.NewGenerator(7)
	Expect(err).NotTo(HaveOccurred())
	budgets, err := policy.NewManager("")
	Expect(err).NotTo(HaveOccurred())

	b := &board{bus: events.NewBus(opts...), store: store.NewMemory()}
	if seed {
		store.Seed(b.store)
	}
	b.svc = triage.New(log, b.store, b.bus, store.NewStaticTeam(store.DemoTeam()...), budgets, ids)

	b.router = chi.NewRouter()
	handlers.New(log, b.svc, b.bus, handlers.WithHeartbeat(heartbeat)).Routes(b.router)
	return b
}
