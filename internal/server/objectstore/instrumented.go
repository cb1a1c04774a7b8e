package objectstore

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/common"
)

// Observer receives the latency and outcome of each store call.
type Observer interface {
	ObserveStore(store, op string, d time.Duration, err error)
}

type instrumented struct {
	next Store
	obs  Observer
}

// Instrument wraps s so every call is reported to obs. A missing key on
// Get is not counted as an error.
func Instrument(s Store, obs Observer) Store {
	return &instrumented{next: s, obs: obs}
}

func (i *instrumented) Put(ctx context.Context, key string, body []byte, contentType string) error {
	start := time.Now()
	err := i.next.Put(ctx, key, body, contentType)
	i.obs.ObserveStore("object", "put", time.Since(start), err)
	return err
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	b, err := i.next.Get(ctx, key)
	observed := err
	if errors.Is(err, common.ErrNotFound) {
		observed = nil
	}
	i.obs.ObserveStore("object", "get", time.Since(start), observed)
	return b, err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.next.Delete(ctx, key)
	i.obs.ObserveStore("object", "delete", time.Since(start), err)
	return err
}
