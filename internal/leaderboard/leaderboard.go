// Package leaderboard persists finished-game results in a local sqlite file
// and serves the all-time ranking.
package leaderboard

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/ignacio82/ahorcado/internal/rules"
)

// Row is one ranked player in the all-time table.
type Row struct {
	Name        string `json:"name"`
	Wins        int    `json:"wins"`
	BestScore   int    `json:"bestScore"`
	TotalScore  int    `json:"totalScore"`
	GamesPlayed int    `json:"gamesPlayed"`
}

// Store keeps per-player aggregates keyed by display name.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates or opens the sqlite database at path and runs the migrations.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creando el directorio de la base: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("abriendo la base %s: %w", path, err)
	}

	l := log.With().Str("component", "leaderboard").Logger()
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		l.Warn().Err(err).Msg("no se pudo activar WAL")
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		l.Warn().Err(err).Msg("no se pudo fijar busy_timeout")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS jugadores (
		nombre TEXT PRIMARY KEY,
		victorias INTEGER DEFAULT 0,
		mejor_puntaje INTEGER DEFAULT 0,
		puntaje_total INTEGER DEFAULT 0,
		partidas INTEGER DEFAULT 0
	);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creando las tablas: %w", err)
	}

	l.Info().Str("ruta", path).Msg("base de puntajes lista")
	return &Store{db: db, log: l}, nil
}

// RecordResult upserts every player's aggregates for one finished game.
// Winning a tied game still counts as a win for everyone in winners.
func (s *Store) RecordResult(scores []rules.PlayerScore, winners []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("abriendo la transacción: %w", err)
	}
	defer tx.Rollback()

	won := make(map[string]bool, len(winners))
	for _, w := range winners {
		won[w] = true
	}

	for _, sc := range scores {
		win := 0
		if won[sc.Name] {
			win = 1
		}
		_, err := tx.Exec(`INSERT INTO jugadores (nombre, victorias, mejor_puntaje, puntaje_total, partidas)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT(nombre) DO UPDATE SET
				victorias = victorias + excluded.victorias,
				mejor_puntaje = MAX(mejor_puntaje, excluded.mejor_puntaje),
				puntaje_total = puntaje_total + excluded.puntaje_total,
				partidas = partidas + 1`,
			sc.Name, win, sc.Score, sc.Score)
		if err != nil {
			return fmt.Errorf("guardando el resultado de %s: %w", sc.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("confirmando la transacción: %w", err)
	}
	s.log.Debug().Int("jugadores", len(scores)).Int("ganadores", len(winners)).Msg("resultado guardado")
	return nil
}

// Top returns the n best players ordered by wins, then total score.
func (s *Store) Top(n int) ([]Row, error) {
	rows, err := s.db.Query(`SELECT nombre, victorias, mejor_puntaje, puntaje_total, partidas
		FROM jugadores
		ORDER BY victorias DESC, puntaje_total DESC, nombre ASC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("consultando el ranking: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Name, &r.Wins, &r.BestScore, &r.TotalScore, &r.GamesPlayed); err != nil {
			return nil, fmt.Errorf("leyendo el ranking: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
