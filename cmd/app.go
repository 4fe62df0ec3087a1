package cmd

import (
	"context"
	"fmt"

	"github.com/example/visaslot/internal/application/booking"
	"github.com/example/visaslot/internal/application/payment"
	"github.com/example/visaslot/internal/application/slots"
	"github.com/example/visaslot/internal/config"
	"github.com/example/visaslot/internal/db"
	"github.com/example/visaslot/internal/infrastructure/crypto"
	"github.com/example/visaslot/internal/infrastructure/events"
	"github.com/example/visaslot/internal/infrastructure/razorpay"
	"github.com/example/visaslot/internal/infrastructure/visaapi"
	xlog "github.com/example/visaslot/internal/log"
	"github.com/example/visaslot/internal/migrate"
	"github.com/example/visaslot/internal/profile"
	"github.com/example/visaslot/internal/reconcile"
	"github.com/example/visaslot/internal/web"
)

// app is the explicit object graph of the server process.
type app struct {
	board    *web.Board
	poller   *slots.Poller
	bookings *booking.Orchestrator
	profiles *profile.FileStore
	http     *web.Server

	closers []func()
}

func newApp(ctx context.Context, cfg config.Config, migrateUp bool) (*app, error) {
	a := &app{}

	api := visaapi.New(cfg.APIBase, cfg.SlotFetchTimeout).WithLogger(xlog.WithComponent("visaapi"))
	a.poller = slots.NewPoller(slots.NewSource(api, xlog.WithComponent("slots")), cfg.PollInterval, xlog.WithComponent("poller"))
	a.board = web.NewBoard(cfg.Countries)

	checkout := razorpay.NewCheckout(
		razorpay.NewClient(cfg.RazorpayAPIBase, cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		cfg.RazorpayKeySecret,
		xlog.WithComponent("razorpay"),
	)
	gateway := payment.NewGateway(checkout, payment.Merchant{
		Key:            cfg.RazorpayKeyID,
		Name:           cfg.MerchantName,
		Image:          cfg.MerchantImage,
		ThemeColor:     cfg.ThemeColor,
		PrefillName:    cfg.PrefillName,
		PrefillContact: cfg.PrefillContact,
	}, cfg.PaymentTimeout, xlog.WithComponent("payment"))

	var aead *crypto.AEAD
	if cfg.ProfileKey != nil {
		var err error
		if aead, err = crypto.New(cfg.ProfileKey); err != nil {
			return nil, fmt.Errorf("profile key: %w", err)
		}
	}
	a.profiles = profile.NewFileStore(cfg.ProfilePath, aead, xlog.WithComponent("profile"))

	toasts := web.NewToasts()
	sinks := booking.Sinks{toasts, booking.LogSink{Log: xlog.WithComponent("notify")}}
	deps := booking.Deps{
		Payments: gateway,
		Reserver: api,
		History:  a.profiles,
		Log:      xlog.WithComponent("booking"),
	}

	if cfg.DatabaseURL != "" {
		repo, err := a.openLedger(ctx, cfg.DatabaseURL, migrateUp)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Ledger = repo
		checkout.SetLedger(repo)
		deps.History = booking.Histories{a.profiles, repo}
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := events.NewPublisher(events.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, xlog.WithComponent("events"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		sinks = append(sinks, pub)
	}
	deps.Sink = sinks

	a.bookings = booking.New(deps, booking.Config{
		AmountMinor:        cfg.PaymentAmountMinor,
		Currency:           cfg.PaymentCurrency,
		ReservationTimeout: cfg.ReservationTimeout,
		Retention:          cfg.BookingRetention,
	})

	a.http = &web.Server{
		Board:     a.board,
		Toasts:    toasts,
		Controls:  web.NewControls(),
		Bookings:  a.bookings,
		Checkouts: checkout,
		Profiles:  a.profiles,
		Tokens:    web.NewTokens(cfg.CookieHashKey, cfg.CookieBlockKey, cfg.PaymentTimeout+cfg.BookingRetention),
		Log:       xlog.WithComponent("http"),
		Ctx:       ctx,
	}
	return a, nil
}

func (a *app) openLedger(ctx context.Context, url string, migrateUp bool) (*reconcile.Repo, error) {
	d, err := openDB(ctx, url, migrateUp)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, d.Close)
	return reconcile.NewRepo(d), nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openDB(ctx context.Context, url string, migrateUp bool) (*db.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	d, err := db.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	log := xlog.WithComponent("migrate")
	if migrateUp {
		if _, err := migrate.Up(ctx, d, log); err != nil {
			d.Close()
			return nil, err
		}
		return d, nil
	}
	pending, err := migrate.Pending(ctx, d)
	if err != nil {
		d.Close()
		return nil, err
	}
	if len(pending) > 0 {
		log.Warn().Strs("pending", pending).Msg("schema is behind; rerun with --migrate")
	}
	return d, nil
}
