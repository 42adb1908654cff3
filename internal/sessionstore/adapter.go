package sessionstore

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/internal/persist"
	"pkt.systems/tabkeeper/schema"
)

// UpdateFunc mutates the collection and reports whether it changed.
type UpdateFunc func(c *Collection) (changed bool, err error)

// Observer is notified after every durable write.
type Observer interface {
	StoreWrite(err error)
}

type request struct {
	ctx    context.Context
	fn     UpdateFunc
	result chan error
}

// Adapter is the single writer of the session collection. Every Update runs
// on one consumer goroutine: load, mutate, and write back happen without
// interleaving with any other Update.
type Adapter struct {
	store persist.Store
	log   pslog.Logger
	obs   Observer

	reqs      chan request
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewAdapter starts the consumer goroutine. Call Close to stop it.
func NewAdapter(store persist.Store, logger pslog.Logger, obs Observer) *Adapter {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	a := &Adapter{
		store: store,
		log:   logger,
		obs:   obs,
		reqs:  make(chan request),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Adapter) loop() {
	defer close(a.done)
	for {
		select {
		case req := <-a.reqs:
			req.result <- a.apply(req.ctx, req.fn)
		case <-a.quit:
			return
		}
	}
}

func (a *Adapter) apply(ctx context.Context, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sessions, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	c := NewCollection(sessions)
	changed, err := fn(c)
	if err != nil || !changed {
		return err
	}
	err = a.store.Save(ctx, c.sessions)
	if a.obs != nil {
		a.obs.StoreWrite(err)
	}
	if err != nil {
		a.log.Warn("sessionstore write failed", "err", err)
		return err
	}
	a.log.Trace("sessionstore write ok", "sessions", c.Len())
	return nil
}

// Update queues fn behind every earlier Update and waits for it. Once fn has
// started it runs to completion even if ctx is cancelled.
func (a *Adapter) Update(ctx context.Context, fn UpdateFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req := request{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case a.reqs <- req:
	case <-a.quit:
		return schema.ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.result
}

// View returns a snapshot of the collection without writing.
func (a *Adapter) View(ctx context.Context) (*Collection, error) {
	var snapshot *Collection
	err := a.Update(ctx, func(c *Collection) (bool, error) {
		snapshot = NewCollection(c.sessions)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Close stops the consumer. Pending callers receive ErrStoreClosed.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() { close(a.quit) })
	<-a.done
	return nil
}
