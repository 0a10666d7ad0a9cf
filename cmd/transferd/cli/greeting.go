package cli

import (
	"fmt"
	"net/http"
)

var greeting string

// PrepareGreeting builds the root-path welcome message.
func PrepareGreeting() {
	greeting = fmt.Sprintf(
		`transferd
=========

Resumable uploads are accepted at %s. The file/download API lives under
/api/. Storage and liveness: /api/storage, /api/health.

Version = %s
GitCommit = %s
BuildDate = %s
`, Flags.Basepath, VersionName, GitCommit, BuildDate)
}

// DisplayGreeting serves the root-path welcome message.
func DisplayGreeting(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(greeting))
}
