// Package host is a reference console session host. It speaks the host side
// of the viewer protocol: it accepts event batches, answers update polls with
// refresh scripts and serves the tile images those scripts point at. The
// screen is a generated test pattern that mouse clicks paint markers onto.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	"github.com/helixml/consoleviewer/api/pkg/protocol"
)

const APIPrefix = "/console"

// SessionEndedPage is served to update polls of unknown or ended sessions.
const SessionEndedPage = "<html><head><title>Console</title></head><body>The console session has ended.</body></html>"

type Options struct {
	Width      int
	Height     int
	TileWidth  int
	TileHeight int
	// LongPoll is how long an update request waits for the screen to change.
	LongPoll   time.Duration
	SessionTTL time.Duration
	Clock      func() time.Time
}

// SessionInfo is returned when a session is created or listed.
type SessionInfo struct {
	ID         string    `json:"id"`
	Created    time.Time `json:"created"`
	EventURL   string    `json:"event_url"`
	UpdateURL  string    `json:"update_url"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	TileWidth  int       `json:"tile_width"`
	TileHeight int       `json:"tile_height"`
	Batches    int       `json:"batches"`
	Ended      bool      `json:"ended"`
}

type Server struct {
	opts     Options
	sessions *xsync.MapOf[string, *Session]
}

func NewServer(opts Options) (*Server, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid screen size %dx%d", opts.Width, opts.Height)
	}
	if opts.TileWidth <= 0 {
		opts.TileWidth = 64
	}
	if opts.TileHeight <= 0 {
		opts.TileHeight = 64
	}
	if opts.LongPoll <= 0 {
		opts.LongPoll = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Server{
		opts:     opts,
		sessions: xsync.NewMapOf[string, *Session](),
	}, nil
}

// CreateSession starts a new session.
func (s *Server) CreateSession() *Session {
	sess := newSession(uuid.New().String(), s.opts.Width, s.opts.Height, s.opts.TileWidth, s.opts.TileHeight, s.opts.Clock())
	s.sessions.Store(sess.ID, sess)
	log.Info().Str("session_id", sess.ID).Msg("console session created")
	return sess
}

// Session returns a session by ID.
func (s *Server) Session(id string) (*Session, bool) {
	return s.sessions.Load(id)
}

// EndSession ends a session. Its next update poll is answered with the
// session ended page.
func (s *Server) EndSession(id string) bool {
	sess, ok := s.sessions.Load(id)
	if !ok {
		return false
	}
	sess.End()
	log.Info().Str("session_id", id).Msg("console session ended")
	return true
}

// Reap removes ended sessions and sessions idle for longer than the TTL.
func (s *Server) Reap() int {
	now := s.opts.Clock()
	removed := 0
	s.sessions.Range(func(id string, sess *Session) bool {
		expired := s.opts.SessionTTL > 0 && now.Sub(sess.idleSince()) > s.opts.SessionTTL
		if sess.Ended() || expired {
			s.sessions.Delete(id)
			removed++
		}
		return true
	})
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("reaped console sessions")
	}
	return removed
}

// Router returns the HTTP routes of the host.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLoggingMiddleware)

	subRouter := router.PathPrefix(APIPrefix).Subrouter()
	subRouter.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	subRouter.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost)
	subRouter.HandleFunc("/sessions", s.listSessions).Methods(http.MethodGet)
	subRouter.HandleFunc("/sessions/{id}", s.deleteSession).Methods(http.MethodDelete)
	subRouter.HandleFunc("/sessions/{id}/ajax", s.events).Methods(http.MethodPost)
	subRouter.HandleFunc("/sessions/{id}/update", s.update).Methods(http.MethodGet)
	subRouter.HandleFunc("/sessions/{id}/image", s.image).Methods(http.MethodGet)

	return router
}

// ListenAndServe serves the host until ctx is cancelled, reaping stale
// sessions in the background.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute * 5,
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("failed to shut down console host")
				}
				return
			case <-ticker.C:
				s.Reap()
			}
		}
	}()

	log.Info().Str("address", addr).Msg("console host listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) info(r *http.Request, sess *Session) SessionInfo {
	base := baseURL(r) + APIPrefix + "/sessions/" + sess.ID
	return SessionInfo{
		ID:         sess.ID,
		Created:    sess.Created,
		EventURL:   base + "/ajax",
		UpdateURL:  base + "/update",
		Width:      s.opts.Width,
		Height:     s.opts.Height,
		TileWidth:  s.opts.TileWidth,
		TileHeight: s.opts.TileHeight,
		Batches:    sess.Batches(),
		Ended:      sess.Ended(),
	}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	_, err := w.Write([]byte("ok"))
	if err != nil {
		log.Error().Err(err).Msg("error writing healthz response")
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.CreateSession()
	writeJSON(w, http.StatusCreated, s.info(r, sess))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	infos := []SessionInfo{}
	s.sessions.Range(func(_ string, sess *Session) bool {
		infos = append(infos, s.info(r, sess))
		return true
	})
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.EndSession(mux.Vars(r)["id"]) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Load(mux.Vars(r)["id"])
	if !ok || sess.Ended() {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	if r.URL.Query().Get("event") != strconv.Itoa(int(protocol.EventBag)) {
		http.Error(w, "unsupported event submission", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := protocol.DecodeBatch(r.PostForm.Get("data"))
	if err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("rejected event batch")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess.Apply(events, s.opts.Clock())
	log.Trace().Str("session_id", sess.ID).Int("events", len(events)).Msg("event batch received")
	w.WriteHeader(http.StatusOK)
}

// update long-polls for a screen change and answers with a script for the
// viewer to run.
func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	sess, ok := s.sessions.Load(mux.Vars(r)["id"])
	if !ok {
		writeEndedPage(w)
		return
	}

	timeout := time.NewTimer(s.opts.LongPoll)
	defer timeout.Stop()

	for {
		if sess.Ended() {
			writeEndedPage(w)
			return
		}

		frame, changed, err := sess.nextFrame(s.opts.Clock())
		if err != nil {
			log.Error().Err(err).Str("session_id", sess.ID).Msg("failed to build frame")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if changed {
			writeScript(w, refreshScript(baseURL(r)+APIPrefix+"/sessions/"+sess.ID+"/image", frame))
			return
		}

		select {
		case <-sess.changed:
		case <-timeout.C:
			writeScript(w, "ajaxViewer.setDirty(true);")
			return
		case <-r.Context().Done():
			return
		}
	}
}

func refreshScript(imageURL string, f Frame) string {
	u, _ := json.Marshal(imageURL + "?key=" + strconv.Itoa(f.Key))

	var sb strings.Builder
	sb.WriteString("ajaxViewer.refresh(")
	sb.Write(u)
	sb.WriteString(", [")
	for i, t := range f.Tiles {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "[%d,%d]", t.Row, t.Col)
	}
	sb.WriteString("], ")
	sb.WriteString(strconv.FormatBool(f.FullImage))
	sb.WriteString(");")
	return sb.String()
}

func (s *Server) image(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Load(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	key, err := strconv.Atoi(r.URL.Query().Get("key"))
	if err != nil {
		http.Error(w, "invalid frame key", http.StatusBadRequest)
		return
	}
	frame, ok := sess.frame(key)
	if !ok {
		http.Error(w, "frame not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame.PNG)))
	if _, err := w.Write(frame.PNG); err != nil {
		log.Error().Err(err).Msg("error writing frame image")
	}
}

func writeScript(w http.ResponseWriter, script string) {
	w.Header().Set("Content-Type", "text/javascript")
	if _, err := w.Write([]byte(script)); err != nil {
		log.Error().Err(err).Msg("error writing update script")
	}
}

func writeEndedPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := w.Write([]byte(SessionEndedPage)); err != nil {
		log.Error().Err(err).Msg("error writing session ended page")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error encoding response")
	}
}

func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Trace().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("console host request")
	})
}
