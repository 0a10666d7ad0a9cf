// Package handler implements the TUS 1.0.0 protocol surface: creation,
// resumable PATCH, checksum verification, termination and expiration,
// on top of pkg/records, pkg/blobstore, pkg/lock and pkg/quota. It
// skips concatenation, length-deferral, hooks, CORS and the IETF draft
// dialect, and adds quota admission and checksum verification.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/transferd/transferd/internal/uid"
	"github.com/transferd/transferd/pkg/kv"
	"github.com/transferd/transferd/pkg/lock"
	"github.com/transferd/transferd/pkg/records"
)

// SupportedExtensions is the fixed set of TUS extensions this core
// implements, echoed verbatim in the Tus-Extension header.
const SupportedExtensions = "creation,creation-with-upload,termination,checksum,expiration"

// SupportedChecksumAlgorithms is echoed via Tus-Checksum-Algorithm on
// OPTIONS responses.
const SupportedChecksumAlgorithms = "sha1,sha256,md5"

var reValidUploadID = regexp.MustCompile(`^[a-f0-9]{32}$`)

// Handler implements the TUS wire protocol described in spec.md §4.H /
// §6, dispatching to the records/blobstore/lock/quota collaborators.
type Handler struct {
	config  Config
	logger  *slog.Logger
	Metrics Metrics
}

// NewHandler validates cfg and constructs a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Handler{
		config:  cfg,
		logger:  cfg.Logger,
		Metrics: newMetrics(),
	}, nil
}

// Mux returns an http.Handler routing the five TUS methods against the
// collection and per-id resource, using Go 1.22+ ServeMux method+wildcard
// patterns instead of a third-party router (see DESIGN.md).
func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("OPTIONS "+h.config.BasePath, h.Options)
	mux.HandleFunc("POST "+h.config.BasePath, h.Post)
	mux.HandleFunc("OPTIONS "+h.config.BasePath+"{id}", h.Options)
	mux.HandleFunc("HEAD "+h.config.BasePath+"{id}", h.Head)
	mux.HandleFunc("PATCH "+h.config.BasePath+"{id}", h.Patch)
	mux.HandleFunc("DELETE "+h.config.BasePath+"{id}", h.Delete)

	return h.middleware(mux)
}

// middleware wraps every request with the shared request context and the
// mandatory Tus-Resumable version check, following the teacher's
// UnroutedHandler.Middleware.
func (h *Handler) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := h.newContext(w, r)
		r = r.WithContext(c)

		if err := c.resC.SetReadDeadline(time.Now().Add(h.config.NetworkTimeout)); err != nil {
			c.log.Warn("NetworkControlError", "error", err)
		}
		if err := c.resC.SetWriteDeadline(time.Now().Add(2 * h.config.NetworkTimeout)); err != nil {
			c.log.Warn("NetworkControlError", "error", err)
		}

		h.Metrics.incRequestsTotal(r.Method)
		c.log.Info("RequestIncoming")

		w.Header().Set("Tus-Resumable", "1.0.0")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// OPTIONS/HEAD are exempt from the version precondition: a browser or
		// monitoring probe may hit these URLs without ever having read the
		// TUS spec, per the teacher's UnroutedHandler.Middleware.
		if r.Method != http.MethodOptions && r.Method != http.MethodHead &&
			r.Header.Get("Tus-Resumable") != "1.0.0" {
			h.sendError(c, ErrUnsupportedVersion)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Options answers protocol discovery on both the collection and a
// specific upload id. It carries no response body.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	c := h.getContext(w, r)

	header := w.Header()
	header.Set("Tus-Version", "1.0.0")
	header.Set("Tus-Extension", SupportedExtensions)
	header.Set("Tus-Checksum-Algorithm", SupportedChecksumAlgorithms)
	if h.config.MaxUploadSize > 0 {
		header.Set("Tus-Max-Size", strconv.FormatInt(h.config.MaxUploadSize, 10))
	}

	h.sendResp(c, HTTPResponse{StatusCode: http.StatusNoContent})
}

// lockUpload acquires the per-upload lock within Config.AcquireLockTimeout,
// mapping lock.ErrConflict onto the conflict error kind per DESIGN.md's
// resolution of the §4.E/§7 discrepancy.
func (h *Handler) lockUpload(c *httpContext, id string) (*lock.Lock, error) {
	ctx, cancel := context.WithTimeout(c, h.config.AcquireLockTimeout)
	defer cancel()

	l, err := h.config.Locker.Lock(ctx, id)
	if err != nil {
		if errors.Is(err, lock.ErrConflict) {
			return nil, ErrLockConflict
		}
		return nil, ErrBackendTransient
	}
	return l, nil
}

// loadUpload fetches the upload record for id, translating a missing
// record to ErrNotFound and an expired one to ErrGone: if expires_at is
// in the past, the upload is deleted and 410 is returned.
func (h *Handler) loadUpload(c *httpContext, id string) (*records.UploadRecord, error) {
	rec, err := h.config.Records.GetUpload(c, id)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrBackendTransient
	}

	if rec.IsFinal {
		// Finalization moves the authoritative record to file:<id>; the
		// upload record sticks around only until its TTL lapses. PATCH on
		// a final upload treats this exactly like not-found, returning 404.
		return rec, nil
	}

	if time.Now().After(rec.ExpiresAt) {
		h.expireUpload(c, rec)
		return nil, ErrGone
	}

	return rec, nil
}

// expireUpload tears down an upload whose expires_at has lapsed: the byte
// file and both state records are removed, the same teardown the
// cleanup scheduler's sweep performs when it finds the same condition.
func (h *Handler) expireUpload(c *httpContext, rec *records.UploadRecord) {
	if err := h.config.Blobs.DeleteUpload(c, rec.FileID); err != nil {
		c.log.Warn("ExpireUploadBlobError", "error", err)
	}
	if _, err := h.config.Records.DeleteUpload(c, rec.FileID); err != nil {
		c.log.Warn("ExpireUploadRecordError", "error", err)
	}
}

// sendError writes err's pre-rendered HTTPResponse to the client.
func (h *Handler) sendError(c *httpContext, err error) {
	detailedErr, ok := err.(Error)
	if !ok {
		c.log.Error("InternalServerError", "message", err.Error())
		detailedErr = ErrInternal
	}

	if c.req.Method == http.MethodHead {
		detailedErr.HTTPResponse.Body = ""
	}

	h.sendResp(c, detailedErr.HTTPResponse)
	h.Metrics.incErrorsTotal()
}

func (h *Handler) sendResp(c *httpContext, resp HTTPResponse) {
	resp.writeTo(c.res)
	c.log.Info("ResponseOutgoing", "status", resp.StatusCode)
}

// extractID pulls the {id} wildcard populated by ServeMux and validates
// it looks like a file_id this server could have generated.
func extractID(r *http.Request) (string, error) {
	id := r.PathValue("id")
	if id == "" || !reValidUploadID.MatchString(id) {
		return "", ErrNotFound
	}
	return id, nil
}

// absFileURL builds the Location URL for a newly created upload, honoring
// X-Forwarded-* headers unconditionally since this server always sits
// behind the operator's own reverse proxy.
func (h *Handler) absFileURL(r *http.Request, id string) string {
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		proto = fwd
	}

	return proto + "://" + host + h.config.BasePath + id
}

func newFileID() string { return uid.Uid() }
