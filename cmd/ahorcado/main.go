// Command ahorcado is the terminal peer: it hosts or joins a networked game
// through the relay, or runs a local pass-and-play round.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ignacio82/ahorcado/internal/directory"
	"github.com/ignacio82/ahorcado/internal/leaderboard"
	"github.com/ignacio82/ahorcado/internal/rules"
	"github.com/ignacio82/ahorcado/internal/session"
	"github.com/ignacio82/ahorcado/internal/state"
	"github.com/ignacio82/ahorcado/internal/transport"
	"github.com/ignacio82/ahorcado/internal/words"
)

type config struct {
	relayURL   string
	name       string
	icon       string
	color      string
	difficulty string
	dbPath     string
	verbose    bool
}

func (c *config) parseDifficulty() (words.Difficulty, error) {
	d := words.Difficulty(c.difficulty)
	if !d.Valid() {
		return "", fmt.Errorf("dificultad inválida: %q (easy, medium o hard)", c.difficulty)
	}
	return d, nil
}

func (c *config) logger() zerolog.Logger {
	level := zerolog.WarnLevel
	if c.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func newCmd(cfg *config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("AHORCADO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "ahorcado",
		Short:         "El juego del ahorcado, local o multijugador entre pares.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.relayURL, "relay", "ws://localhost:8080/ws", "URL del relay (env: AHORCADO_RELAY)")
	fs.StringVarP(&cfg.name, "name", "n", "Jugador", "nombre a mostrar (env: AHORCADO_NAME)")
	fs.StringVar(&cfg.icon, "icon", "🎩", "ícono del perfil (env: AHORCADO_ICON)")
	fs.StringVar(&cfg.color, "color", "#1abc9c", "color del perfil (env: AHORCADO_COLOR)")
	fs.StringVarP(&cfg.difficulty, "difficulty", "d", "easy", "dificultad de la palabra (env: AHORCADO_DIFFICULTY)")
	fs.StringVar(&cfg.dbPath, "db", "./ahorcado.db", "archivo sqlite de puntajes (env: AHORCADO_DB)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "logs de depuración (env: AHORCADO_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(
		newHostCmd(cfg),
		newJoinCmd(cfg),
		newSeekCmd(cfg),
		newLocalCmd(cfg),
		newTopCmd(cfg),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func newHostCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Crea una sala y espera jugadores.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := cfg.parseDifficulty()
			if err != nil {
				return err
			}
			return runNetworked(cmd.Context(), cfg, func(ctx context.Context, coord *session.Coordinator) error {
				return coord.HostRoom(ctx, profileFrom(cfg), state.Settings{Difficulty: d})
			})
		},
	}
}

func newJoinCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "join <sala>",
		Short: "Se une a la sala indicada.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNetworked(cmd.Context(), cfg, func(ctx context.Context, coord *session.Coordinator) error {
				return coord.JoinRoom(ctx, args[0], profileFrom(cfg))
			})
		},
	}
}

func newSeekCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "seek",
		Short: "Busca una sala abierta y se une, o crea una nueva.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := cfg.parseDifficulty()
			if err != nil {
				return err
			}
			return runNetworked(cmd.Context(), cfg, func(ctx context.Context, coord *session.Coordinator) error {
				return coord.SeekMatch(ctx, profileFrom(cfg), state.Settings{Difficulty: d})
			})
		},
	}
}

func newLocalCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "local [nombre...]",
		Short: "Ronda local en este dispositivo, pasando el turno de mano en mano.",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := cfg.parseDifficulty()
			if err != nil {
				return err
			}
			return runLocal(cmd.Context(), cfg, args, d)
		},
	}
}

func newTopCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "top",
		Short: "Muestra el ranking histórico.",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			lb, err := leaderboard.Open(cfg.dbPath, cfg.logger())
			if err != nil {
				return err
			}
			defer lb.Close()
			rows, err := lb.Top(10)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("Todavía no hay partidas guardadas.")
				return nil
			}
			fmt.Println("  Jugador          Victorias  Mejor  Total  Partidas")
			for i, r := range rows {
				fmt.Printf("%2d. %-15s %9d %6d %6d %9d\n", i+1, r.Name, r.Wins, r.BestScore, r.TotalScore, r.GamesPlayed)
			}
			return nil
		},
	}
}

func profileFrom(cfg *config) session.Profile {
	return session.Profile{Name: cfg.name, Icon: cfg.icon, Color: cfg.color}
}

func runNetworked(ctx context.Context, cfg *config, start func(context.Context, *session.Coordinator) error) error {
	log := cfg.logger()

	store := state.NewStore()
	engine := rules.NewEngine(store, words.Embedded{})
	tr := transport.NewWSTransport(cfg.relayURL, log)
	dir := directory.NewClient(directoryBaseURL(cfg.relayURL), log)

	ui := newTermUI()
	coord := session.New(store, engine, tr, dir, ui, log)
	defer coord.Close()
	ui.bind(coord)

	if lb, err := leaderboard.Open(cfg.dbPath, log); err != nil {
		log.Warn().Err(err).Msg("sin base de puntajes")
	} else {
		defer lb.Close()
		coord.SetResultRecorder(lb)
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := start(startCtx, coord); err != nil {
		return err
	}
	return ui.inputLoop(ctx)
}

func runLocal(ctx context.Context, cfg *config, names []string, d words.Difficulty) error {
	log := cfg.logger()

	store := state.NewStore()
	engine := rules.NewEngine(store, words.Embedded{})
	net := transport.NewNetwork()

	ui := newTermUI()
	coord := session.New(store, engine, net.NewTransport(), nil, ui, log)
	defer coord.Close()
	ui.bind(coord)

	if lb, err := leaderboard.Open(cfg.dbPath, log); err != nil {
		log.Warn().Err(err).Msg("sin base de puntajes")
	} else {
		defer lb.Close()
		coord.SetResultRecorder(lb)
	}

	if err := coord.StartLocalGame(names, d); err != nil {
		return err
	}
	return ui.inputLoop(ctx)
}

// directoryBaseURL derives the REST base from the relay websocket URL:
// ws://host:port/ws serves its directory at http://host:port.
func directoryBaseURL(relayURL string) string {
	base := strings.TrimSuffix(relayURL, "/ws")
	base = strings.Replace(base, "wss://", "https://", 1)
	base = strings.Replace(base, "ws://", "http://", 1)
	return base
}

func main() {
	cfg := &config{}
	if err := newCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
