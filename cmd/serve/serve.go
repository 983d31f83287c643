// Package serve runs the trapwatch service: the HTTP API, the metrics
// endpoint and the optional visit digest.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trapwatch/trapwatch/internal/api"
	"github.com/trapwatch/trapwatch/internal/buildinfo"
	"github.com/trapwatch/trapwatch/internal/conf"
	"github.com/trapwatch/trapwatch/internal/datastore"
	"github.com/trapwatch/trapwatch/internal/digest"
	"github.com/trapwatch/trapwatch/internal/logger"
	"github.com/trapwatch/trapwatch/internal/mqtt"
	"github.com/trapwatch/trapwatch/internal/notification"
	"github.com/trapwatch/trapwatch/internal/observability"
	"github.com/trapwatch/trapwatch/internal/taxonomy"
	"github.com/trapwatch/trapwatch/internal/telemetry"
	"github.com/trapwatch/trapwatch/internal/visits"
)

// Command creates the serve command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the visits API",
		Long:  "Serve the visits and taxonomy API, Prometheus metrics and, when enabled, the scheduled visit digest.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				settings.WebServer.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings, info)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "HTTP listen address, overrides webserver.listen")
	return cmd
}

// Run wires every component from settings and blocks until ctx is done.
func Run(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) error {
	log := logger.Global().Module("main")
	log.Info("starting trapwatch",
		logger.String("version", info.GetVersion()),
		logger.String("instance_id", info.GetInstanceID()),
		logger.String("name", settings.Main.Name))

	if _, err := telemetry.Init(settings.Sentry, info.GetVersion(), log); err != nil {
		return err
	}
	defer telemetry.Flush()

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	store, err := datastore.Open(datastore.ConfigFromSettings(settings.Database), nil,
		datastore.WithQueryRecorder(m.Datastore))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close datastore", logger.Error(err))
		}
	}()

	finder, _, err := taxonomy.NewFinder(taxonomy.ConfigFromSettings(settings.Taxonomy), nil)
	if err != nil {
		return err
	}
	if err := m.RegisterTaxonomyCache(finder); err != nil {
		return err
	}

	visitsCfg := visits.ConfigFromSettings(settings.Visits)
	if err := visitsCfg.Validate(); err != nil {
		return err
	}
	svc := visits.NewService(store, visits.NewEngine(visitsCfg, finder), visits.WithMetrics(m.Visits))
	m.LogSummary()

	d, closeSinks, err := newDigest(settings, svc, m)
	if err != nil {
		return err
	}
	defer closeSinks()

	var server *api.Server
	if settings.WebServer.Enabled {
		server, err = api.New(api.ConfigFromSettings(settings), svc,
			api.WithTaxonomy(finder),
			api.WithHealthChecker(store),
			api.WithMetrics(m),
			api.WithVersion(info.GetVersion()))
		if err != nil {
			return err
		}
		if err := server.Start(); err != nil {
			return err
		}
	}

	if d != nil {
		if err := d.Start(ctx); err != nil {
			return err
		}
	}

	if server == nil && d == nil {
		return fmt.Errorf("nothing to run: enable webserver or digest")
	}

	<-ctx.Done()
	log.Info("shutting down")

	if d != nil {
		d.Stop()
	}
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(settings))
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func shutdownTimeout(settings *conf.Settings) time.Duration {
	if settings.WebServer.ShutdownTimeout > 0 {
		return settings.WebServer.ShutdownTimeout
	}
	return api.DefaultShutdownTimeout
}

// newDigest builds the digest and its sinks when enabled. The returned
// close function releases the sinks.
func newDigest(settings *conf.Settings, svc digest.VisitSource, m *observability.Metrics) (*digest.Digest, func(), error) {
	noop := func() {}
	if !settings.Digest.Enabled {
		return nil, noop, nil
	}

	opts := []digest.Option{digest.WithMetrics(m.Digest)}
	closers := []func(){}

	if settings.MQTT.Enabled {
		mqttCfg := mqtt.ConfigFromSettings(settings.MQTT)
		client, err := mqtt.NewClient(mqttCfg, nil)
		if err != nil {
			return nil, noop, err
		}
		publisher := mqtt.NewVisitPublisher(client, mqttCfg.Topic)
		closers = append(closers, publisher.Close)
		opts = append(opts, digest.WithPublisher(publisher))
	}

	if settings.Notification.Enabled {
		notifier, err := notification.New(notification.ConfigFromSettings(settings.Notification), nil)
		if err != nil {
			return nil, noop, err
		}
		opts = append(opts, digest.WithAlerter(notifier))
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	d, err := digest.New(digest.ConfigFromSettings(settings.Digest), svc, opts...)
	if err != nil {
		closeAll()
		return nil, noop, err
	}
	return d, closeAll, nil
}
