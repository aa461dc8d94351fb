// Package repoctx bundles the handles one repository operation needs —
// repository database, checkout database, blob store, crosslinker, logger,
// config — so callers thread one value explicitly instead of reaching for
// package-level globals (§9's decision to keep state caller-owned).
package repoctx

import (
	"github.com/sirupsen/logrus"

	"github.com/rcowham/corevcs/blobstore"
	"github.com/rcowham/corevcs/catalog"
	"github.com/rcowham/corevcs/config"
	"github.com/rcowham/corevcs/crosslink"
)

// Context is the open handle set for one repository plus (optionally) one
// checkout, passed explicitly into checkin/backoffice/crosslink operations.
type Context struct {
	Repo     *catalog.RepoDB
	Checkout *catalog.CheckoutDB // nil outside a working checkout
	Store    *blobstore.Store
	Linker   *crosslink.Linker
	Logger   *logrus.Logger
	Config   *config.Config
}

// OpenRepository opens the repository database at repoPath plus its blob
// store and crosslinker, without a checkout attached.
func OpenRepository(repoPath string, cfg *config.Config, logger *logrus.Logger) (*Context, error) {
	repo, err := catalog.OpenRepository(repoPath, logger)
	if err != nil {
		return nil, err
	}
	store, err := blobstore.NewStore(repo, cfg.HashPolicy, logger, 4)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return &Context{
		Repo:   repo,
		Store:  store,
		Linker: crosslink.NewLinker(repo, logger),
		Logger: logger,
		Config: cfg,
	}, nil
}

// AttachCheckout opens the checkout database at checkoutPath and binds it
// to this Context.
func (c *Context) AttachCheckout(checkoutPath string) error {
	checkout, err := catalog.OpenCheckout(checkoutPath, c.Logger)
	if err != nil {
		return err
	}
	c.Checkout = checkout
	return nil
}

// Close releases every handle this Context owns. Safe to call once.
func (c *Context) Close() error {
	c.Store.Close()
	if c.Checkout != nil {
		if err := c.Checkout.Close(); err != nil {
			return err
		}
	}
	return c.Repo.Close()
}
