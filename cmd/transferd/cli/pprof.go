package cli

import (
	"net/http"
	"net/http/pprof"

	"github.com/felixge/fgprof"
)

// SetupPprof mounts the stdlib pprof handlers plus fgprof under
// Flags.PprofPath. No router or basic-auth middleware guards this
// surface, so it is mounted unauthenticated behind whatever the
// operator's own reverse proxy enforces.
func SetupPprof(globalMux *http.ServeMux) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/fgprof", fgprof.Handler())

	globalMux.Handle(Flags.PprofPath, http.StripPrefix(stripTrailingSlash(Flags.PprofPath), mux))
}

func stripTrailingSlash(s string) string {
	if len(s) > 0 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}
