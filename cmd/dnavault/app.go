package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtroode/dnavault-client/internal/api/http/client"
	"github.com/dtroode/dnavault-client/internal/api/http/middleware"
	"github.com/dtroode/dnavault-client/internal/api/http/transport"
	"github.com/dtroode/dnavault-client/internal/config"
	"github.com/dtroode/dnavault-client/internal/events"
	"github.com/dtroode/dnavault-client/internal/logger"
	"github.com/dtroode/dnavault-client/internal/metrics"
	"github.com/dtroode/dnavault-client/internal/model"
	"github.com/dtroode/dnavault-client/internal/notify"
	"github.com/dtroode/dnavault-client/internal/service"
	storage "github.com/dtroode/dnavault-client/internal/storage/minio"
	"github.com/dtroode/dnavault-client/internal/token"
	"github.com/dtroode/dnavault-client/internal/validation"
)

// app wires the services for one command invocation.
type app struct {
	cfg    *config.Config
	logger *logger.Logger

	api        *client.Client
	store      model.CredentialStore
	session    *service.Session
	files      *service.Files
	submission *service.Submission
	sink       *notify.Sink

	uploads  *events.Registry[model.FileUploaded]
	registry *prometheus.Registry

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *logger.Logger, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		uploads:  events.NewRegistry[model.FileUploaded](),
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
	}

	stores, err := openCredentialStores(ctx, cfg.Credential)
	if err != nil {
		return nil, err
	}
	store := stores.token
	a.store = store
	a.closers = append(a.closers, stores.close)

	jar, err := client.NewJar(ctx, cfg.API.URL, stores.cookies, logger.Component("cookies"))
	if err != nil {
		a.close()
		return nil, err
	}

	clientMetrics, err := metrics.NewClient(a.registry)
	if err != nil {
		a.close()
		return nil, err
	}

	base, err := transport.New(cfg.API.CAFile, cfg.API.CertFile, cfg.API.KeyFile).Transport()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to build transport: %w", err)
	}

	rt := middleware.Chain(base,
		middleware.RequestID,
		middleware.NewLogging(logger.Component("http")).Wrap,
		middleware.NewAuthenticate(store, logger.Component("http")).Wrap,
		middleware.Instrument(clientMetrics),
	)

	a.api, err = client.New(cfg.API.URL, cfg.API.Timeout, rt, client.WithJar(jar))
	if err != nil {
		a.close()
		return nil, err
	}

	a.session = service.NewSession(a.api, store, token.NewInspector(),
		events.NewRegistry[model.SessionResult](), logger.Component("session"),
		service.WithSessionCookies(jar))
	a.files = a.newFiles()

	a.sink = notify.NewSink(notify.NewTerminalPresenter(stderr), logger.Component("notify"))
	a.closers = append(a.closers, func() error {
		a.sink.Close()
		return nil
	})

	validator := validation.New(validation.UsernameBounds, validation.Bounds{
		Min: cfg.Validation.PasswordMin,
		Max: validation.PasswordBounds.Max,
	})
	a.submission = service.NewSubmission(a.session, validator, a.sink, logger.Component("submission"))

	a.subscribe()

	return a, nil
}

func (a *app) newFiles(opts ...service.FilesOption) *service.Files {
	opts = append([]service.FilesOption{service.WithThumbnailToken(a.cfg.API.ThumbnailToken)}, opts...)
	return service.NewFiles(a.api, a.store, a.uploads, a.logger.Component("files"), opts...)
}

// subscribe attaches the terminal reactions to service events.
func (a *app) subscribe() {
	a.session.OnUserLogin(func(_ context.Context, result model.SessionResult) {
		a.logger.Debug("user login answered",
			"success", result.Success,
			"token", result.HasToken())
	})

	a.submission.OnLoginSuccess(func(_ context.Context, result model.SessionResult) {
		fmt.Fprintln(a.stdout, messageOr(result.Message, "Logged in."))
	})

	a.submission.OnRegisterSuccess(func(_ context.Context, result model.SessionResult) {
		fmt.Fprintln(a.stdout, messageOr(result.Message, "Registered."), "Run 'dnavault login' to sign in.")
	})

	a.files.OnFileUploaded(func(_ context.Context, e model.FileUploaded) {
		fmt.Fprintf(a.stdout, "uploaded %s\n", e.FileName)
	})
}

// exportFiles returns a file service bound to the export bucket.
func (a *app) exportFiles(ctx context.Context) (*service.Files, error) {
	st, err := a.exportStorage(ctx)
	if err != nil {
		return nil, err
	}
	return a.newFiles(service.WithExportStorage(st)), nil
}

// exportStorage connects to the export bucket.
func (a *app) exportStorage(ctx context.Context) (model.Storage, error) {
	st, err := storage.Open(ctx, storage.Options{
		Endpoint:  a.cfg.Storage.Endpoint,
		AccessKey: a.cfg.Storage.AccessKey,
		SecretKey: a.cfg.Storage.SecretKey,
		Bucket:    a.cfg.Storage.Bucket,
		UseSSL:    a.cfg.Storage.UseSSL,
		Prefix:    a.cfg.Storage.Prefix,
	}, a.logger.Component("export"))
	if err != nil {
		return nil, fmt.Errorf("failed to open export storage: %w", err)
	}
	return st, nil
}

// close releases resources in reverse order and writes the metrics textfile.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	if path := a.cfg.Metrics.TextfilePath; path != "" {
		if err := metrics.WriteTextfile(path, a.registry); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func messageOr(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
