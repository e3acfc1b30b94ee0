// Package directory is the thin client for the external matchmaking
// directory: it advertises and discovers open rooms and keeps a host's
// listing alive with periodic TTL refreshes.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ignacio82/ahorcado/internal/relay"
	"github.com/ignacio82/ahorcado/internal/words"
)

// RefreshInterval is how often a host re-stamps its listing; the directory
// expires entries after five minutes of silence.
const RefreshInterval = 30 * time.Second

// Filter narrows a room search. Zero values mean "any".
type Filter struct {
	MaxPlayers int
	Difficulty words.Difficulty
}

// Client talks to the directory's REST contract.
type Client struct {
	base string
	http *http.Client
	log  zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log.With().Str("component", "directory").Logger(),
	}
}

// ListOpenRooms queries the open rooms of a game type matching the filter.
func (c *Client) ListOpenRooms(ctx context.Context, gameType string, f Filter) ([]relay.RoomEntry, error) {
	q := url.Values{}
	q.Set("gameType", gameType)
	if f.MaxPlayers > 0 {
		q.Set("maxPlayers", strconv.Itoa(f.MaxPlayers))
	}
	if f.Difficulty != "" {
		q.Set("difficulty", string(f.Difficulty))
	}
	var rooms []relay.RoomEntry
	if err := c.do(ctx, http.MethodGet, "/rooms?"+q.Encode(), nil, &rooms); err != nil {
		return nil, fmt.Errorf("buscando salas: %w", err)
	}
	return rooms, nil
}

// InsertRoom advertises a room.
func (c *Client) InsertRoom(ctx context.Context, entry relay.RoomEntry) error {
	if err := c.do(ctx, http.MethodPost, "/rooms", entry, nil); err != nil {
		return fmt.Errorf("publicando sala %s: %w", entry.RoomID, err)
	}
	return nil
}

// UpdateRoom patches a listing; any update refreshes its TTL.
func (c *Client) UpdateRoom(ctx context.Context, roomID string, upd relay.RoomUpdate) error {
	if err := c.do(ctx, http.MethodPatch, "/rooms/"+url.PathEscape(roomID), upd, nil); err != nil {
		return fmt.Errorf("actualizando sala %s: %w", roomID, err)
	}
	return nil
}

// DeleteRoom removes a listing. Best-effort on teardown paths.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	if err := c.do(ctx, http.MethodDelete, "/rooms/"+url.PathEscape(roomID), nil, nil); err != nil {
		return fmt.Errorf("eliminando sala %s: %w", roomID, err)
	}
	return nil
}

// DeleteExpired asks the directory to drop stale listings.
func (c *Client) DeleteExpired(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/expired", nil, nil); err != nil {
		return fmt.Errorf("limpiando salas expiradas: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("directorio respondió %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
