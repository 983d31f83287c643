// Package digest periodically generates visits for a set of stations and
// announces the ones it has not seen before over MQTT and species alerts.
package digest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"

	"github.com/trapwatch/trapwatch/internal/conf"
	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/logger"
	"github.com/trapwatch/trapwatch/internal/visits"
)

// Delivery sink names.
const (
	SinkMQTT         = "mqtt"
	SinkNotification = "notification"
)

// VisitSource generates visits, normally a *visits.Service.
type VisitSource interface {
	Visits(ctx context.Context, criteria visits.Criteria) (visits.Result, error)
}

// Publisher announces a visit, normally an *mqtt.VisitPublisher.
type Publisher interface {
	PublishVisit(ctx context.Context, v visits.Visit) error
}

// Alerter sends species alerts, normally a *notification.Notifier.
type Alerter interface {
	NotifyVisit(ctx context.Context, v visits.Visit) (bool, error)
}

// Recorder receives digest statistics.
type Recorder interface {
	RecordRun(status string, duration time.Duration, newVisits int)
	RecordDelivery(sink string, err error)
}

// Config configures a Digest.
type Config struct {
	Schedule string
	GroupID  int64
	Stations []int64
	Lookback time.Duration
}

// ConfigFromSettings builds a Config from the digest settings section.
func ConfigFromSettings(s conf.DigestSettings) Config {
	return Config{
		Schedule: s.Schedule,
		GroupID:  s.Group,
		Stations: slices.Clone(s.Stations),
		Lookback: s.Lookback,
	}
}

// Report summarizes one run.
type Report struct {
	Generated  int
	Incomplete int
	New        int
	Published  int
	Alerts     int
	Failed     int
}

// Digest is the scheduled visit announcer.
type Digest struct {
	cfg      Config
	schedule cron.Schedule
	source   VisitSource

	publisher Publisher
	alerter   Alerter
	metrics   Recorder
	log       logger.Logger

	seen *cache.Cache

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running sync.Mutex
}

// Option configures a Digest.
type Option func(*Digest)

// WithPublisher sets the MQTT sink.
func WithPublisher(p Publisher) Option {
	return func(d *Digest) {
		d.publisher = p
	}
}

// WithAlerter sets the species alert sink.
func WithAlerter(a Alerter) Option {
	return func(d *Digest) {
		d.alerter = a
	}
}

// WithMetrics sets the statistics sink.
func WithMetrics(r Recorder) Option {
	return func(d *Digest) {
		d.metrics = r
	}
}

// WithLogger sets the digest logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Digest) {
		if l != nil {
			d.log = l
		}
	}
}

// New validates cfg and builds a Digest reading from source.
func New(cfg Config, source VisitSource, opts ...Option) (*Digest, error) {
	schedule, err := conf.ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, digestError(err, "schedule", cfg.Schedule)
	}
	if len(cfg.Stations) == 0 {
		return nil, digestError(errors.NewStd("at least one station is required"), "stations", cfg.Stations)
	}
	if cfg.Lookback <= 0 {
		return nil, digestError(errors.NewStd("lookback must be positive"), "lookback", cfg.Lookback)
	}

	d := &Digest{
		cfg:      cfg,
		schedule: schedule,
		source:   source,
		log:      logger.Global().Module("digest"),
		// a visit can be regenerated for up to one lookback after it was announced
		seen: cache.New(2*cfg.Lookback, cfg.Lookback),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func digestError(err error, key string, value any) error {
	return errors.New(err).
		Component("digest").
		Category(errors.CategoryConfiguration).
		Context(key, value).
		Build()
}

// Next returns the first scheduled run after t.
func (d *Digest) Next(t time.Time) time.Time {
	return d.schedule.Next(t)
}

// RunOnce generates visits over [now-lookback, now) and announces the new,
// complete ones oldest first. A visit that fails to publish is retried on the
// next run.
func (d *Digest) RunOnce(ctx context.Context, now time.Time) (Report, error) {
	d.running.Lock()
	defer d.running.Unlock()

	start := time.Now()
	var report Report

	result, err := d.source.Visits(ctx, visits.Criteria{
		Stations:    d.cfg.Stations,
		GroupID:     d.cfg.GroupID,
		SearchFrom:  now.Add(-d.cfg.Lookback),
		SearchUntil: now,
		Now:         now,
	})
	if err != nil {
		d.recordRun("error", start, 0)
		return report, errors.New(err).
			Component("digest").
			Category(errors.CategoryScheduler).
			Context("operation", "generate_visits").
			Build()
	}
	report.Generated = len(result.Visits)

	for i := len(result.Visits) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			d.recordRun("canceled", start, report.New)
			return report, err
		}

		v := result.Visits[i]
		if v.Incomplete {
			report.Incomplete++
			continue
		}
		// one cluster can yield a visit per species
		key := v.Key() + "/" + v.Classification
		if _, ok := d.seen.Get(key); ok {
			continue
		}
		report.New++

		if !d.announce(ctx, v, &report) {
			report.Failed++
			continue
		}
		d.seen.SetDefault(key, now)
	}

	d.recordRun("success", start, report.New)
	d.log.Info("digest run complete",
		logger.Int("generated", report.Generated),
		logger.Int("new", report.New),
		logger.Int("published", report.Published),
		logger.Int("alerts", report.Alerts),
		logger.Int("incomplete", report.Incomplete),
		logger.Int("failed", report.Failed),
		logger.Duration("elapsed", time.Since(start)))
	return report, nil
}

// announce publishes v and sends its alert. It returns false when the
// visit should be retried.
func (d *Digest) announce(ctx context.Context, v visits.Visit, report *Report) bool {
	if d.publisher != nil {
		err := d.publisher.PublishVisit(ctx, v)
		d.recordDelivery(SinkMQTT, err)
		if err != nil {
			d.log.Warn("failed to publish visit",
				logger.String("visit", v.Key()),
				logger.Error(err))
			return false
		}
		report.Published++
	}

	if d.alerter != nil {
		sent, err := d.alerter.NotifyVisit(ctx, v)
		if err != nil {
			// the visit is already published, so no retry
			d.recordDelivery(SinkNotification, err)
			d.log.Warn("failed to send visit alert",
				logger.String("visit", v.Key()),
				logger.Error(err))
		} else if sent {
			d.recordDelivery(SinkNotification, nil)
			report.Alerts++
		}
	}
	return true
}

func (d *Digest) recordRun(status string, start time.Time, newVisits int) {
	if d.metrics != nil {
		d.metrics.RecordRun(status, time.Since(start), newVisits)
	}
}

func (d *Digest) recordDelivery(sink string, err error) {
	if d.metrics != nil {
		d.metrics.RecordDelivery(sink, err)
	}
}

// Start runs the digest on its schedule until ctx is canceled or Stop is
// called.
func (d *Digest) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return errors.Newf("digest already running").
			Component("digest").
			Category(errors.CategoryScheduler).
			Build()
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.loop(ctx, d.done)

	d.log.Info("digest scheduled",
		logger.String("schedule", d.cfg.Schedule),
		logger.Int("stations", len(d.cfg.Stations)),
		logger.Duration("lookback", d.cfg.Lookback))
	return nil
}

func (d *Digest) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		now := time.Now()
		next := d.schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))
		d.log.Debug("next digest run", logger.Time("at", next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case tick := <-timer.C:
			if _, err := d.RunOnce(ctx, tick.UTC()); err != nil && ctx.Err() == nil {
				d.log.Error("digest run failed", logger.Error(err))
			}
		}
	}
}

// Stop cancels the schedule and waits for an in-flight run to finish.
func (d *Digest) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	d.log.Info("digest stopped")
}
