package remote

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	storagedriver "github.com/spkfs/spfs/pkg/storage/driver"
)

// Server exposes a local StorageDriver's operations over HTTP, grounded
// on the registry HTTP API's dispatcher-per-route pattern but narrowed to
// StorageDriver's eight methods instead of the full registry object
// model: every RPC is addressed by the same slash path its StorageDriver
// sibling would use.
type Server struct {
	driver storagedriver.StorageDriver
}

// NewHandler wraps d in a gorilla/mux router, logged with
// handlers.CombinedLoggingHandler the same way the registry's own HTTP
// app does.
func NewHandler(d storagedriver.StorageDriver) http.Handler {
	s := &Server{driver: d}

	r := mux.NewRouter()
	r.HandleFunc("/content", s.handleContent)
	r.HandleFunc("/reader", s.handleReader)
	r.HandleFunc("/writer", s.handleWriter)
	r.HandleFunc("/stat", s.handleStat)
	r.HandleFunc("/list", s.handleList)
	r.HandleFunc("/move", s.handleMove)
	r.HandleFunc("/delete", s.handleDelete)
	r.HandleFunc("/walk", s.handleWalk)

	return handlers.CombinedLoggingHandler(logrus.StandardLogger().WriterLevel(logrus.InfoLevel), r)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := r.URL.Query().Get("path")

	switch r.Method {
	case http.MethodGet:
		content, err := s.driver.GetContent(ctx, path)
		if err != nil {
			writeErr(w, path, err)
			return
		}
		w.Write(content)
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.driver.PutContent(ctx, path, body); err != nil {
			writeErr(w, path, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleReader(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := r.URL.Query().Get("path")
	offset := parseInt64(r.URL.Query().Get("offset"))

	rc, err := s.driver.Reader(ctx, path, offset)
	if err != nil {
		writeErr(w, path, err)
		return
	}
	defer rc.Close()
	io.Copy(w, rc)
}

func (s *Server) handleWriter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := r.URL.Query().Get("path")
	append := r.URL.Query().Get("append") == "true"

	fw, err := s.driver.Writer(ctx, path, append)
	if err != nil {
		writeErr(w, path, err)
		return
	}
	if _, err := io.Copy(fw, r.Body); err != nil {
		fw.Cancel(ctx)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if err := fw.Commit(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := r.URL.Query().Get("path")

	info, err := s.driver.Stat(ctx, path)
	if err != nil {
		writeErr(w, path, err)
		return
	}
	writeJSON(w, statInfo{PathValue: info.Path(), SizeValue: info.Size(), IsDirValue: info.IsDir()})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := r.URL.Query().Get("path")

	entries, err := s.driver.List(ctx, path)
	if err != nil {
		writeErr(w, path, err)
		return
	}
	writeJSON(w, entries)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	src := r.URL.Query().Get("src")
	dst := r.URL.Query().Get("dst")

	if err := s.driver.Move(ctx, src, dst); err != nil {
		writeErr(w, src, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := r.URL.Query().Get("path")

	if err := s.driver.Delete(ctx, path); err != nil {
		writeErr(w, path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWalk serves a full recursive descendant listing in one call, so
// the client-side driver's Walk needs a single /walk request instead of
// repeated /list calls; the client has no /list-based Walk of its own.
func (s *Server) handleWalk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := r.URL.Query().Get("path")

	var out []statInfo
	err := s.driver.Walk(ctx, path, func(info storagedriver.FileInfo) error {
		out = append(out, statInfo{PathValue: info.Path(), SizeValue: info.Size(), IsDirValue: info.IsDir()})
		return nil
	})
	if err != nil {
		writeErr(w, path, err)
		return
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, path string, err error) {
	switch e := err.(type) {
	case storagedriver.PathNotFoundError:
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, errorResponse{Code: errCodeNotFound, Path: e.Path})
	case storagedriver.InvalidOffsetError:
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		writeJSON(w, errorResponse{Code: errCodeInvalidOffset, Path: e.Path, Offset: e.Offset})
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parseInt64(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
