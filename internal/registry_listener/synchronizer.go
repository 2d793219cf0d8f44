package registry_listener

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/horockey/fit/internal/model"
)

// Synchronizer keeps the cache in line with the registry.
// Start blocks until ctx is done.
type Synchronizer interface {
	Start(ctx context.Context) error
	// OnSubscribed refreshes newly added dependencies out of band.
	OnSubscribed(ctx context.Context, fitables []model.Fitable) error
}

var _ Synchronizer = &AddressSynchronizerComposite{}

// AddressSynchronizerComposite drives several synchronizers as one.
type AddressSynchronizerComposite struct {
	synchronizers []Synchronizer
}

func NewComposite(synchronizers ...Synchronizer) *AddressSynchronizerComposite {
	return &AddressSynchronizerComposite{synchronizers: synchronizers}
}

func (sc *AddressSynchronizerComposite) Start(ctx context.Context) error {
	errs := make([]error, len(sc.synchronizers))

	wg := sync.WaitGroup{}
	for idx, s := range sc.synchronizers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[idx] = s.Start(ctx)
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (sc *AddressSynchronizerComposite) OnSubscribed(ctx context.Context, fitables []model.Fitable) error {
	errs := []error{}
	for idx, s := range sc.synchronizers {
		if err := s.OnSubscribed(ctx, fitables); err != nil {
			errs = append(errs, fmt.Errorf("synchronizer %d: %w", idx, err))
		}
	}
	return errors.Join(errs...)
}
