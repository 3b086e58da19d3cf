package app

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Amogh-2404/Tez/core"
	"github.com/Amogh-2404/Tez/core/cache"
	"github.com/Amogh-2404/Tez/core/pools"
)

// DebugStats is the body of GET /debug/stats.
type DebugStats struct {
	Engine core.Stats             `json:"engine"`
	Caches map[string]cache.Stats `json:"caches"`
	Routes int                    `json:"routes"`
	GC     pools.GCStats          `json:"gc"`
}

// AdminHandler serves the operator endpoints: Prometheus metrics, a JSON
// stats snapshot and a liveness probe.
func (a *App) AdminHandler() http.Handler {
	r := chi.NewRouter()

	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	r.Get("/debug/stats", a.debugStats)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})

	return r
}

// Stats collects a DebugStats snapshot.
func (a *App) Stats() DebugStats {
	return DebugStats{
		Engine: a.engine.Stats(),
		Caches: map[string]cache.Stats{
			"route":  a.routeCache.Stats(),
			"static": a.staticCache.Stats(),
		},
		Routes: a.router.Table().Len(),
		GC:     pools.GetGCStats(),
	}
}

func (a *App) debugStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a.Stats()); err != nil {
		a.log.Debug().Err(err).Msg("Writing stats failed")
	}
}
