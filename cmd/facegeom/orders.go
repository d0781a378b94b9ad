package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/dudu/facegeom/internal/artifact"
	"github.com/dudu/facegeom/internal/oval"
	"github.com/dudu/facegeom/internal/store"
)

// orderTTL bounds how long a resolved traversal order stays cached.
const orderTTL = time.Hour

// orderStore is the part of the database the order lookup needs.
type orderStore interface {
	LoadOrder(ctx context.Context, fingerprint string) ([]oval.Edge, error)
	SaveOrder(ctx context.Context, order []oval.Edge) (string, error)
}

// orderSource is where resolveOrder found the traversal order.
type orderSource string

const (
	fromArtifact orderSource = "artifact"
	fromCache    orderSource = "cache"
	fromDatabase orderSource = "database"
	fromComputed orderSource = "computed"
)

// orders returns the order cache shared by every subcommand, creating it on
// first use.
func (a *app) orders(ctx context.Context) (*oval.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	cache, err := oval.NewCache(ctx, orderTTL)
	if err != nil {
		return nil, err
	}
	a.cache = cache
	return cache, nil
}

// orderDB returns the database as an orderStore, or nil when none is configured.
func (a *app) orderDB(ctx context.Context) (orderStore, error) {
	db, err := a.store(ctx)
	if err != nil || db == nil {
		return nil, err
	}
	return db, nil
}

// faceOvalOrder resolves the traversal order of the face-oval topology.
// An order stored in dir wins; otherwise the cache is consulted, then the
// database, and only then is the order computed. Whatever is found from
// outside the cache is put into it.
func (a *app) faceOvalOrder(ctx context.Context, dir string) ([]oval.Edge, error) {
	cache, err := a.orders(ctx)
	if err != nil {
		return nil, err
	}
	db, err := a.orderDB(ctx)
	if err != nil {
		return nil, err
	}

	order, src, err := resolveOrder(ctx, cache, db, dir, oval.FaceOval)
	if err != nil {
		return nil, err
	}
	a.log.Debug().
		Str("source", string(src)).
		Str("fingerprint", oval.Fingerprint(order)[:12]).
		Msg("face oval order resolved")
	return order, nil
}

func resolveOrder(ctx context.Context, cache *oval.Cache, db orderStore, dir string, edges []oval.Edge) ([]oval.Edge, orderSource, error) {
	if dir != "" {
		order, err := artifact.LoadOrder(dir)
		switch {
		case err == nil:
			if _, err := cache.Put(order); err != nil {
				return nil, "", err
			}
			return order, fromArtifact, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, "", err
		}
	}

	fp := oval.Fingerprint(edges)
	order, ok, err := cache.Lookup(fp)
	if err != nil {
		return nil, "", err
	}
	if ok {
		return order, fromCache, nil
	}

	if db != nil {
		order, err := db.LoadOrder(ctx, fp)
		switch {
		case err == nil:
			if _, err := cache.Put(order); err != nil {
				return nil, "", err
			}
			return order, fromDatabase, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, "", fmt.Errorf("failed to load order: %w", err)
		}
	}

	if order, err = cache.Order(edges); err != nil {
		return nil, "", err
	}
	return order, fromComputed, nil
}
