package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/reipc/config"
	"github.com/vinayprograms/reipc/logging"
	"github.com/vinayprograms/reipc/provider"
	"github.com/vinayprograms/reipc/shutdown"
)

const (
	dialTimeout     = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// errReported marks an error already written to stdout as JSON.
var errReported = errors.New("error reported")

type commandContext struct {
	flags *globalFlags
	cfg   *config.Config
	log   *logging.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// load resolves the config file, applies flag overrides and builds the logger.
func (c *commandContext) load(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if path := strings.TrimSpace(c.flags.config); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, _, err = config.Find()
	}
	if err != nil {
		return err
	}

	if c.flags.socket != "" {
		cfg.Socket = c.flags.socket
	}
	if c.flags.codec != "" {
		cfg.Codec = c.flags.codec
	}
	if c.flags.logLevel != "" {
		cfg.LogLevel = c.flags.logLevel
	}
	if cmd.Flags().Changed("timeout") {
		cfg.DefaultTimeout = c.flags.timeout.String()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Socket == "" {
		return fmt.Errorf("no socket configured: pass --socket, set %s or add socket to the config file", config.SocketEnv)
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	log := logging.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetLevel(level)

	c.cfg = cfg
	c.log = log
	return nil
}

func (c *commandContext) dial(ctx context.Context) (*provider.Provider, error) {
	cdc, err := c.cfg.CodecImpl()
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	return provider.Dial(dialCtx, c.cfg.Socket,
		provider.WithCodec(cdc),
		provider.WithDefaultTimeout(c.cfg.Timeout()),
		provider.WithReadBufferSize(c.cfg.ReadBufferSize),
		provider.WithLogger(c.log),
	)
}

// withProvider dials, runs fn and closes the connection through a shutdown
// coordinator, which also handles SIGINT and SIGTERM. fn may register more
// handlers; its ctx is cancelled when shutdown begins.
func (c *commandContext) withProvider(cmd *cobra.Command, fn func(ctx context.Context, p *provider.Provider, coord *shutdown.Coordinator) error) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	p, err := c.dial(ctx)
	if err != nil {
		return err
	}

	coord := shutdown.NewCoordinator(shutdownTimeout, c.log)
	coord.RegisterFunc("calls", shutdown.PhaseWork, func(context.Context) error {
		cancel()
		return nil
	})
	coord.Register("provider", shutdown.PhaseConnection, shutdown.Closer(p.Close))
	stop := coord.HandleSignals()
	defer stop()

	err = fn(ctx, p, coord)
	if serr := coord.ShutdownWithTimeout(0); serr != nil && err == nil {
		err = serr
	}

	select {
	case <-coord.Signaled():
		return context.Canceled
	default:
	}
	return err
}

// jsonOutput reports whether results should be printed as JSON.
func (c *commandContext) jsonOutput(cmd *cobra.Command) bool {
	return c.flags.json || !isTerminal(cmd.OutOrStdout())
}
