package web

import (
	"net/http"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strconv"
	"sync"
	"time"
)

const defaultProfileDuration = 30 * time.Second

// traceProfiler serialises profiling requests, only one can run at a time.
type traceProfiler struct {
	mutex sync.Mutex
}

// profileDuration reads the optional seconds query parameter.
func profileDuration(r *http.Request) time.Duration {
	if s, err := strconv.Atoi(r.URL.Query().Get("seconds")); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	return defaultProfileDuration
}

func (tp *traceProfiler) Trace(w http.ResponseWriter, r *http.Request) {
	tp.mutex.Lock()
	defer tp.mutex.Unlock()
	if err := trace.Start(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer trace.Stop()
	sleep(r, profileDuration(r))
}

func (tp *traceProfiler) PProf(w http.ResponseWriter, r *http.Request) {
	tp.mutex.Lock()
	defer tp.mutex.Unlock()
	if err := pprof.StartCPUProfile(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer pprof.StopCPUProfile()
	sleep(r, profileDuration(r))
}

func (tp *traceProfiler) MemProf(w http.ResponseWriter, r *http.Request) {
	tp.mutex.Lock()
	defer tp.mutex.Unlock()
	runtime.GC()
	_ = pprof.Lookup("heap").WriteTo(w, 0)
}

// sleep waits for d, or until the client goes away.
func sleep(r *http.Request, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-r.Context().Done():
	case <-t.C:
	}
}
