package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/ignacio82/ahorcado/internal/state"
	"github.com/ignacio82/ahorcado/internal/words"
)

// Room listing statuses.
const (
	RoomStatusOpen    = "open"
	RoomStatusPlaying = "playing"
)

// RoomEntry is one advertised room in the matchmaking directory.
type RoomEntry struct {
	RoomID         string         `json:"roomId"`
	HostAddress    string         `json:"hostAddress"`
	GameType       string         `json:"gameType"`
	Status         string         `json:"status"`
	MaxPlayers     int            `json:"maxPlayers"`
	CurrentPlayers int            `json:"currentPlayers"`
	Settings       state.Settings `json:"settings"`
	ExpiresAt      time.Time      `json:"expiresAt"`
}

// RoomUpdate carries the mutable listing fields; nil means unchanged.
// Any update also refreshes the entry's TTL, which is how hosts keep their
// listing alive.
type RoomUpdate struct {
	Status         *string `json:"status,omitempty"`
	CurrentPlayers *int    `json:"currentPlayers,omitempty"`
}

// RoomStore keeps the directory listings in memory with a TTL. Entries of
// silent hosts expire on their own; nothing here survives a restart, which
// is fine for a discovery service.
type RoomStore struct {
	log zerolog.Logger
	ttl time.Duration

	mu    sync.RWMutex
	rooms map[string]RoomEntry
}

func NewRoomStore(ttl time.Duration, log zerolog.Logger) *RoomStore {
	return &RoomStore{
		log:   log.With().Str("component", "directory").Logger(),
		ttl:   ttl,
		rooms: make(map[string]RoomEntry),
	}
}

// Insert adds or replaces a listing and stamps its expiry.
func (rs *RoomStore) Insert(e RoomEntry) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	e.ExpiresAt = time.Now().Add(rs.ttl)
	rs.rooms[e.RoomID] = e
	rs.log.Info().Str("room", e.RoomID).Str("status", e.Status).Msg("sala publicada")
}

// Update patches a listing and refreshes its TTL.
func (rs *RoomStore) Update(roomID string, upd RoomUpdate) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	e, ok := rs.rooms[roomID]
	if !ok {
		return false
	}
	if upd.Status != nil {
		e.Status = *upd.Status
	}
	if upd.CurrentPlayers != nil {
		e.CurrentPlayers = *upd.CurrentPlayers
	}
	e.ExpiresAt = time.Now().Add(rs.ttl)
	rs.rooms[roomID] = e
	return true
}

func (rs *RoomStore) Delete(roomID string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.rooms[roomID]; ok {
		delete(rs.rooms, roomID)
		rs.log.Info().Str("room", roomID).Msg("sala eliminada")
	}
}

// ListOpen returns the open, unexpired rooms with free seats matching the
// filter. Zero values in the filter mean "any".
func (rs *RoomStore) ListOpen(gameType string, maxPlayers int, difficulty words.Difficulty) []RoomEntry {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	now := time.Now()
	out := []RoomEntry{}
	for _, e := range rs.rooms {
		if e.Status != RoomStatusOpen || now.After(e.ExpiresAt) {
			continue
		}
		if e.CurrentPlayers >= e.MaxPlayers {
			continue
		}
		if gameType != "" && e.GameType != gameType {
			continue
		}
		if maxPlayers > 0 && e.MaxPlayers != maxPlayers {
			continue
		}
		if difficulty != "" && e.Settings.Difficulty != difficulty {
			continue
		}
		out = append(out, e)
	}
	return out
}

// DeleteExpired drops every listing past its TTL and returns the count.
func (rs *RoomStore) DeleteExpired() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	now := time.Now()
	n := 0
	for id, e := range rs.rooms {
		if now.After(e.ExpiresAt) {
			delete(rs.rooms, id)
			n++
		}
	}
	if n > 0 {
		rs.log.Info().Int("count", n).Msg("salas expiradas eliminadas")
	}
	return n
}

// Sweep runs DeleteExpired periodically until ctx is cancelled.
func (rs *RoomStore) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rs.DeleteExpired()
		case <-ctx.Done():
			return
		}
	}
}

// --- REST surface ---

func (rs *RoomStore) registerRoutes(mux *httprouter.Router) {
	mux.GET("/rooms", rs.handleList)
	mux.POST("/rooms", rs.handleInsert)
	mux.PATCH("/rooms/:id", rs.handleUpdate)
	mux.DELETE("/rooms/:id", rs.handleDelete)
	// httprouter cannot mix a static segment with :id, so the expiry sweep
	// lives on its own path.
	mux.DELETE("/expired", rs.handleDeleteExpired)
}

func (rs *RoomStore) handleList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	maxPlayers, _ := strconv.Atoi(q.Get("maxPlayers"))
	entries := rs.ListOpen(q.Get("gameType"), maxPlayers, words.Difficulty(q.Get("difficulty")))
	writeJSON(w, http.StatusOK, entries)
}

func (rs *RoomStore) handleInsert(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var e RoomEntry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, "cuerpo inválido", http.StatusBadRequest)
		return
	}
	if e.RoomID == "" || e.HostAddress == "" {
		http.Error(w, "roomId y hostAddress son obligatorios", http.StatusBadRequest)
		return
	}
	rs.Insert(e)
	writeJSON(w, http.StatusCreated, e)
}

func (rs *RoomStore) handleUpdate(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var upd RoomUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "cuerpo inválido", http.StatusBadRequest)
		return
	}
	if !rs.Update(p.ByName("id"), upd) {
		http.Error(w, "sala no encontrada", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rs *RoomStore) handleDelete(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	rs.Delete(p.ByName("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (rs *RoomStore) handleDeleteExpired(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]int{"deleted": rs.DeleteExpired()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
