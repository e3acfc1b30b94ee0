// Command server runs the rendezvous daemon: the websocket relay that
// forwards envelopes between peers plus the room directory REST API.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const releaseVersion = "1.0.0"

type config struct {
	bind          string
	port          int
	roomTTL       time.Duration
	sweepInterval time.Duration
	verbose       bool
}

func (c *config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("puerto inválido (debe estar entre 1 y 65535): %d", c.port)
	}
	if c.roomTTL <= 0 {
		return fmt.Errorf("room-ttl debe ser positivo: %s", c.roomTTL)
	}
	return nil
}

func newCmd(cfg *config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("AHORCADO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Relay y directorio de salas para el ahorcado multijugador.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "dirección de escucha (env: AHORCADO_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "puerto de escucha (env: AHORCADO_PORT)")
	fs.DurationVar(&cfg.roomTTL, "room-ttl", 5*time.Minute, "vida de una sala sin refrescos (env: AHORCADO_ROOM_TTL)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", time.Minute, "frecuencia de limpieza de salas vencidas (env: AHORCADO_SWEEP_INTERVAL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "logs de depuración (env: AHORCADO_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("ahorcado-server v{{.Version}}\n")

	return cmd
}

func main() {
	cfg := &config{}
	if err := newCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
