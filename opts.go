package fit

import (
	"errors"

	"github.com/horockey/fit/internal/gateway/remote_fitables"
	"github.com/horockey/fit/internal/repository/local_fitables"
	"github.com/horockey/go-toolbox/options"
	"github.com/rs/zerolog"
)

// Sets custom logger.
// Default is stdout console logger at the configured level.
func WithLogger(l zerolog.Logger) options.Option[createWorkerParams] {
	return func(target *createWorkerParams) error {
		target.logger = l
		return nil
	}
}

// Sets custom clock used for token expiry and listener liveness.
// Default is system time.
func WithClock(c Clock) options.Option[createWorkerParams] {
	return func(target *createWorkerParams) error {
		if c == nil {
			return errors.New("got nil clock")
		}
		target.clock = c
		return nil
	}
}

// Sets user-defined implementation of local fitables repository.
// Default is inmemory repo.
func WithLocalRepo(repo local_fitables.Repository) options.Option[createWorkerParams] {
	return func(target *createWorkerParams) error {
		if repo == nil {
			return errors.New("got nil local repo")
		}
		target.local = repo
		return nil
	}
}

// Sets user-defined implementations of remote fitables gateway and
// corresponding controller.
// Default are HTTP.
//
//	WARNING! Apply this opt only if you know what you are doing.
func WithGatewayAndController(
	gw remote_fitables.Gateway,
	ctrl Controller,
) options.Option[createWorkerParams] {
	return func(target *createWorkerParams) error {
		if gw == nil {
			return errors.New("got nil remote gateway")
		}
		if ctrl == nil {
			return errors.New("got nil controller")
		}

		target.gateway = gw
		target.controller = ctrl
		return nil
	}
}
