// Package profiling exposes pprof on a separate listener so profiling
// traffic never competes with order flow.
package profiling

import (
	"fmt"
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/shobande-femi/OrderBook/logging"
)

// Profiler runs the debug HTTP server
type Profiler struct {
	server *http.Server
}

func NewProfiler() *Profiler {
	return &Profiler{}
}

// Start serves /debug/pprof/ on the given port in the background
func (p *Profiler) Start(port int) {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	mux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/debug/pprof/block", pprof.Handler("block"))
	mux.Handle("/debug/pprof/mutex", pprof.Handler("mutex"))

	p.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	logging.GetLogger().WithField("port", port).Info("pprof server started")

	go func() {
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.GetLogger().WithError(err).Warn("pprof server error")
		}
	}()
}

// EnableContentionProfiling turns on block and mutex sampling. Both add
// overhead to every contended lock, so this is opt-in.
func (p *Profiler) EnableContentionProfiling() {
	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)
}

// Stop closes the debug listener
func (p *Profiler) Stop() error {
	if p.server != nil {
		return p.server.Close()
	}
	return nil
}
