package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/barekit/rihlat/internal/app"
	"github.com/barekit/rihlat/pkg/config"
	"github.com/barekit/rihlat/pkg/errs"
	"github.com/barekit/rihlat/pkg/logging"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cli is the state shared by every subcommand.
type cli struct {
	envFile string
	asJSON  bool
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: config.Default()}

	root := &cobra.Command{
		Use:           "rihlat",
		Short:         "Public-transit assistant for the UAE",
		Long:          `Rihlat answers transit questions by querying GTFS databases, geocoding places and planning transit routes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd.Flags())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.envFile, "env-file", ".env", "Path to a .env file")
	pf.BoolVar(&c.asJSON, "json", false, "Print results as JSON")
	c.cfg.BindFlags(pf)

	root.AddCommand(
		c.askCmd(),
		c.sqlCmd(),
		c.schemaCmd(),
		c.geocodeCmd(),
		c.routeCmd(),
		c.transcribeCmd(),
		c.speakCmd(),
		c.serveCmd(),
	)
	return root
}

// load builds the configuration from the env file and environment, then re-applies
// the flags the user actually set so they win.
func (c *cli) load(flags *pflag.FlagSet) error {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return errs.Wrap(errs.KindConfiguration, "config", err)
	}

	overrides := pflag.NewFlagSet("overrides", pflag.ContinueOnError)
	cfg.BindFlags(overrides)
	var setErr error
	flags.Visit(func(f *pflag.Flag) {
		if overrides.Lookup(f.Name) == nil || setErr != nil {
			return
		}
		setErr = overrides.Set(f.Name, f.Value.String())
	})
	if setErr != nil {
		return errs.Wrap(errs.KindConfiguration, "config", setErr)
	}
	if err := cfg.Validate(); err != nil {
		return errs.Wrap(errs.KindConfiguration, "config", err)
	}

	logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	c.cfg = cfg
	return nil
}

// withApp builds the components, runs fn and releases them.
func (c *cli) withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.New(ctx, c.cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// spin runs fn behind a spinner unless output is JSON.
func (c *cli) spin(text string, fn func() error) error {
	if c.asJSON {
		return fn()
	}
	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start(text)
	err := fn()
	if err != nil {
		spinner.Fail(text)
	} else {
		_ = spinner.Stop()
	}
	return err
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type errorEnvelope struct {
	Error *errs.Error `json:"error"`
}

// renderError prints err with its kind as a JSON envelope.
func renderError(w io.Writer, err error) {
	e := errs.As(err, errs.KindParse)
	b, merr := json.Marshal(errorEnvelope{Error: e})
	if merr != nil {
		fmt.Fprintln(w, err)
		return
	}
	fmt.Fprintln(w, string(b))
}
