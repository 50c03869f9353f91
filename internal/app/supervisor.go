package app

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/justestif/go-emotion-music/internal/logging"
)

// eventHook logs supervisor events through zerolog.
func eventHook(e suture.Event) {
	ev := logging.Warn()
	if e.Type() == suture.EventTypeResume {
		ev = logging.Info()
	}
	ev.Fields(e.Map()).Msg(e.String())
}

// initializer runs App.Initialize under the supervisor. It is restarted on
// failure, e.g. while the streaming service is unreachable, and removed once
// it succeeds.
type initializer struct {
	app *App
}

func (s initializer) Serve(ctx context.Context) error {
	if err := s.app.Initialize(ctx); err != nil {
		return err
	}
	return suture.ErrDoNotRestart
}

func (s initializer) String() string {
	return "initializer"
}

// Run serves the HTTP API and initializes the components in the background.
// It blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	root := suture.New("emotion-music", suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          timeout,
	})
	root.Add(a.Server())
	root.Add(initializer{app: a})

	logging.Info().Str("addr", a.cfg.Server.Addr).Msg("Starting emotion music service")
	err := root.Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
