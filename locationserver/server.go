// Package locationserver exposes a repository root as a network location: a
// server implementing the wire contract location/http's Driver speaks
// against. There is no original_source counterpart (pyorderly ships only an
// HTTP client, not a server; see location/http's package doc), so this is a
// SPEC_FULL supplement, grounded on the teacher's registry/handlers app.go
// for the gorilla/mux routing idiom and on registry/handlers/catalog.go and
// httperror.go for the request/response and error-envelope shape.
package locationserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/reside-ic/outpack-go/config"
	outpackerr "github.com/reside-ic/outpack-go/errors"
	"github.com/reside-ic/outpack-go/internal/dlog"
	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/metadata"
	"github.com/reside-ic/outpack-go/root"
)

// Server wires a root's location, metadata and file endpoints behind
// http.Handler, so it can be mounted directly or wrapped (e.g. with
// gorilla/handlers.CombinedLoggingHandler) the way the teacher's cmd/registry
// wraps handlers.NewApp.
type Server struct {
	root   *root.Root
	router *mux.Router
}

// New builds a Server over r. Push endpoints (PUT /files, PUT /metadata)
// only succeed when r has a FileStore configured; an archive-only root
// serves reads fine but rejects pushes.
func New(r *root.Root) *Server {
	s := &Server{root: r, router: mux.NewRouter()}
	s.router.HandleFunc("/packets", s.listPackets).Methods(http.MethodGet)
	s.router.HandleFunc("/metadata", s.getMetadata).Methods(http.MethodGet)
	s.router.HandleFunc("/files/{hash}", s.getFile).Methods(http.MethodGet)
	s.router.HandleFunc("/files/{hash}", s.headFile).Methods(http.MethodHead)
	s.router.HandleFunc("/files/{hash}", s.putFile).Methods(http.MethodPut)
	s.router.HandleFunc("/metadata/{hash}", s.putMetadata).Methods(http.MethodPut)
	s.router.HandleFunc("/packets/missing", s.missingPackets).Methods(http.MethodPost)
	s.router.HandleFunc("/files/missing", s.missingFiles).Methods(http.MethodPost)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// WithAccessLog wraps s in an Apache-style combined access log, the way the
// teacher's cmd/registry wraps handlers.NewApp before handing it to
// http.ListenAndServe.
func (s *Server) WithAccessLog(out io.Writer) http.Handler {
	return handlers.CombinedLoggingHandler(out, s)
}

type errorEnvelope struct {
	Error struct {
		Detail string `json:"detail"`
	} `json:"error"`
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var notFound *outpackerr.NotFoundError
	switch {
	case asNotFound(err, &notFound):
		status = http.StatusNotFound
	default:
		var cfgErr *outpackerr.ConfigurationError
		if asConfig(err, &cfgErr) {
			status = http.StatusBadRequest
		}
	}
	dlog.GetLogger(ctx).WithError(err).Warn("location request failed")
	var env errorEnvelope
	env.Error.Detail = err.Error()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func asNotFound(err error, target **outpackerr.NotFoundError) bool {
	if e, ok := err.(*outpackerr.NotFoundError); ok {
		*target = e
		return true
	}
	return false
}

func asConfig(err error, target **outpackerr.ConfigurationError) bool {
	if e, ok := err.(*outpackerr.ConfigurationError); ok {
		*target = e
		return true
	}
	return false
}

// listPackets implements GET /packets: the location's full membership
// table, matching what location/path.Driver.ListPackets reads locally.
func (s *Server) listPackets(w http.ResponseWriter, r *http.Request) {
	local, err := s.root.Index.Location(config.ReservedLocal)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	out := make(map[string]metadata.PacketLocation, len(local))
	for id, loc := range local {
		out[id] = *loc
	}
	writeJSON(w, out)
}

// getMetadata implements GET /metadata?ids=a,b,c: the canonical metadata
// string for each requested id, matching location/path.Driver.Metadata's
// all-or-nothing semantics.
func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		writeJSON(w, map[string]string{})
		return
	}
	ids := strings.Split(raw, ",")

	out := make(map[string]string, len(ids))
	for _, id := range ids {
		m, err := s.root.Index.Metadata(id)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		canon, err := m.Canonical()
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		out[id] = string(canon)
	}
	writeJSON(w, out)
}

// getFile implements GET /files/{hash}: the raw blob content, located the
// same way a FindFileByHash caller would (FileStore first, archive scan
// otherwise).
func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	h := hash.Hash(mux.Vars(r)["hash"])
	src, err := s.root.FindFileByHash(h, nil)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	f, err := os.Open(src)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, f)
}

// headFile implements HEAD /files/{hash}: reports whether the blob exists
// without transferring its content, the way a registry's blob HEAD check
// lets a client avoid a full GET just to test presence.
func (s *Server) headFile(w http.ResponseWriter, r *http.Request) {
	h := hash.Hash(mux.Vars(r)["hash"])
	if _, err := s.root.FindFileByHash(h, nil); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// missingPackets implements POST /packets/missing: the subset of the
// requested ids this location does not hold, used by the push side to
// narrow its candidate set.
func (s *Server) missingPackets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ids []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, outpackerr.NewConfigurationError("invalid request body: %s", err))
		return
	}
	local, err := s.root.Index.Location(config.ReservedLocal)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	var missing []string
	for _, id := range req.Ids {
		if _, ok := local[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	writeJSON(w, map[string][]string{"missing": missing})
}

// missingFiles implements POST /files/missing: the subset of the requested
// hashes this location does not have a blob for.
func (s *Server) missingFiles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hashes []string `json:"hashes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, outpackerr.NewConfigurationError("invalid request body: %s", err))
		return
	}
	var missing []string
	for _, raw := range req.Hashes {
		h := hash.Hash(raw)
		if s.root.Files == nil || !s.root.Files.Exists(h) {
			missing = append(missing, raw)
		}
	}
	sort.Strings(missing)
	writeJSON(w, map[string][]string{"missing": missing})
}

// putFile implements PUT /files/{hash}: the request body is the blob
// content for the hash named in the URL. Requires a FileStore-backed root;
// an archive-only server has no content-addressed slot to push into.
func (s *Server) putFile(w http.ResponseWriter, r *http.Request) {
	if s.root.Files == nil {
		writeError(r.Context(), w, outpackerr.NewConfigurationError("this location does not accept pushed files"))
		return
	}
	want := hash.Hash(mux.Vars(r)["hash"])

	tmp, err := os.CreateTemp("", "outpack-push-*")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	_, copyErr := io.Copy(tmp, r.Body)
	tmp.Close()
	if copyErr != nil {
		writeError(r.Context(), w, copyErr)
		return
	}

	got, err := s.root.Files.Put(tmpName)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if got != want {
		writeError(r.Context(), w, &hash.MismatchError{What: "pushed file", Expected: want, Actual: got})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// putMetadata implements PUT /metadata/{hash}: the request body is a
// packet's canonical metadata bytes, whose hash must match the URL. The
// packet id is recovered from the body itself, then recorded as known to
// the local location.
func (s *Server) putMetadata(w http.ResponseWriter, r *http.Request) {
	if s.root.Files == nil {
		writeError(r.Context(), w, outpackerr.NewConfigurationError("this location does not accept pushed metadata"))
		return
	}
	want := hash.Hash(mux.Vars(r)["hash"])
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	m, err := metadata.Parse(data)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if err := hash.ValidateBytes(data, want, "pushed metadata"); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if err := s.root.Index.WriteMetadata(m.Id, data); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if err := s.root.MarkKnown(config.ReservedLocal, m.Id, want, time.Now()); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
