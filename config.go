package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	buzzTimeout    time.Duration
	port           int
	prefix         string
	profile        bool
	roundLength    time.Duration
	sessionTimeout time.Duration
	songs          string
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.roundLength <= 0 {
		return fmt.Errorf("invalid round length (must be positive): %s", c.roundLength)
	}
	if c.buzzTimeout <= 0 {
		return fmt.Errorf("invalid buzz timeout (must be positive): %s", c.buzzTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TUNEQUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "tunequiz",
		Short:         "A multiplayer music-guessing game: stream a song, buzz in, name that tune.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TUNEQUIZ_BIND)")
	fs.DurationVar(&cfg.buzzTimeout, "buzz-timeout", 30*time.Second, "time before an unanswered buzz is released (env: TUNEQUIZ_BUZZ_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 3000, "port to listen on (env: TUNEQUIZ_PORT or PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TUNEQUIZ_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TUNEQUIZ_PROFILE)")
	fs.DurationVar(&cfg.roundLength, "round-length", 30*time.Second, "play window announced with each round (env: TUNEQUIZ_ROUND_LENGTH)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before an idle game session is ended (env: TUNEQUIZ_SESSION_TIMEOUT)")
	fs.StringVarP(&cfg.songs, "songs", "s", "./songs", "directory containing song files (env: TUNEQUIZ_SONGS)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TUNEQUIZ_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TUNEQUIZ_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TUNEQUIZ_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TUNEQUIZ_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	// The original deployment configured its listen port via a bare PORT
	// variable, so honor that too.
	_ = v.BindEnv("port", "TUNEQUIZ_PORT", "PORT")
	if f := fs.Lookup("port"); f != nil && !f.Changed && v.IsSet("port") {
		_ = fs.Set("port", fmt.Sprintf("%v", v.Get("port")))
	}

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("tunequiz v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
