// Package app wires the stores, the access evaluator and the domain services
// shared by the API server, the worker and the CLI.
package app

import (
	"github.com/nikhilbhutani/rentalcore/internal/audit"
	"github.com/nikhilbhutani/rentalcore/internal/auth"
	"github.com/nikhilbhutani/rentalcore/internal/cache"
	"github.com/nikhilbhutani/rentalcore/internal/config"
	"github.com/nikhilbhutani/rentalcore/internal/contract"
	"github.com/nikhilbhutani/rentalcore/internal/handover"
	"github.com/nikhilbhutani/rentalcore/internal/invoice"
	"github.com/nikhilbhutani/rentalcore/internal/metering"
	"github.com/nikhilbhutani/rentalcore/internal/notify"
	"github.com/nikhilbhutani/rentalcore/internal/organization"
	"github.com/nikhilbhutani/rentalcore/internal/pricing"
	"github.com/nikhilbhutani/rentalcore/internal/property"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
	"github.com/nikhilbhutani/rentalcore/internal/storage"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/ticket"
	"github.com/nikhilbhutani/rentalcore/internal/uploads"
)

// Deps are the infrastructure handles. Cache and Queue may be nil: grants
// are then read from the store on every request and notifications dropped.
type Deps struct {
	Store store.Store
	Cache *cache.Cache
	Queue notify.Enqueuer
	Files storage.Storage
}

type Services struct {
	Store  store.Store
	Eval   *rbac.Evaluator
	Loader *rbac.Loader
	Syncer *rbac.Syncer
	Tokens *auth.Tokens

	Audit         *audit.Service
	Auth          *auth.Service
	Organizations *organization.Service
	Properties    *property.Service
	Contracts     *contract.Service
	Pricing       *pricing.Service
	Metering      *metering.Service
	Invoices      *invoice.Service
	Tickets       *ticket.Service
	Handovers     *handover.Service
	Uploads       *uploads.Service
}

func New(cfg *config.Config, d Deps) *Services {
	st := d.Store

	var grants *rbac.GrantCache
	if d.Cache != nil {
		grants = rbac.NewGrantCache(d.Cache, cfg.RBAC.GrantCacheTTL)
	}
	var pub *notify.Publisher
	if d.Queue != nil {
		pub = notify.NewPublisher(d.Queue)
	}
	files := d.Files
	if files == nil {
		files = storage.NewLocalStorage(cfg.Uploads.Dir)
	}

	eval := rbac.NewEvaluator(st.Contracts())
	au := audit.NewService(st)
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	pr := pricing.NewService(st, eval, au)
	mt := metering.NewService(st, eval, au, pub)

	return &Services{
		Store:  st,
		Eval:   eval,
		Loader: rbac.NewLoader(st.Permissions(), grants),
		Syncer: rbac.NewSyncer(st, rbac.Declarations, grants),
		Tokens: tokens,

		Audit:         au,
		Auth:          auth.NewService(st.Users(), tokens),
		Organizations: organization.NewService(st, eval, au),
		Properties:    property.NewService(st, eval, au),
		Contracts:     contract.NewService(st, eval, au, pub),
		Pricing:       pr,
		Metering:      mt,
		Invoices:      invoice.NewService(st, eval, au, pr, mt, pub),
		Tickets:       ticket.NewService(st, eval, au, pub),
		Handovers:     handover.NewService(st, eval, au, pub),
		Uploads:       uploads.NewService(st, files, eval, cfg.Uploads.TTL),
	}
}
