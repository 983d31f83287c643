// Package notification sends species alerts for visits through shoutrrr URLs.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	stdlog "log"
	"strings"
	"text/template"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/trapwatch/trapwatch/internal/conf"
	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/logger"
	"github.com/trapwatch/trapwatch/internal/visits"
)

// DefaultTitle is used when no title template is configured.
const DefaultTitle = "trapwatch: {{.Classification}} at {{.Station}}"

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 30 * time.Second

// Sender delivers a message to every configured service. It is satisfied by
// shoutrrr's router.ServiceRouter.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Config configures a Notifier.
type Config struct {
	URLs    []string
	Species []string
	Title   string
	Timeout time.Duration
}

// ConfigFromSettings builds a Config from the notification settings section.
func ConfigFromSettings(s conf.NotificationSettings) Config {
	return Config{
		URLs:    s.URLs,
		Species: s.Species,
		Title:   s.Title,
		Timeout: DefaultTimeout,
	}
}

// TemplateData is the data available to the title template.
type TemplateData struct {
	Classification   string
	ClassificationAI string
	FromUserTag      bool
	Station          string
	StationID        int64
	Group            string
	TimeStart        time.Time
	TimeEnd          time.Time
	Recordings       int
}

// Notifier alerts on visits whose classification is a watched species.
type Notifier struct {
	sender  Sender
	species map[string]struct{}
	title   *template.Template
	log     logger.Logger
}

// New builds a Notifier with a shoutrrr sender for cfg.URLs.
func New(cfg Config, log logger.Logger) (*Notifier, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender, err := shoutrrr.CreateSender(cfg.URLs...)
	if err != nil {
		// service URLs carry tokens
		return nil, errors.Newf("create notification sender: %s", errors.ScrubMessage(err.Error())).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Timeout > 0 {
		sender.Timeout = cfg.Timeout
	}
	sender.SetLogger(stdlog.New(io.Discard, "", 0))
	return NewWithSender(cfg, sender, log)
}

// NewWithSender builds a Notifier around an existing Sender.
func NewWithSender(cfg Config, sender Sender, log logger.Logger) (*Notifier, error) {
	title := cfg.Title
	if title == "" {
		title = DefaultTitle
	}
	tmpl, err := template.New("title").Parse(title)
	if err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("title", title).
			Build()
	}
	if log == nil {
		log = logger.Global().Module("notification")
	}

	species := make(map[string]struct{}, len(cfg.Species))
	for _, s := range cfg.Species {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			species[s] = struct{}{}
		}
	}

	return &Notifier{
		sender:  sender,
		species: species,
		title:   tmpl,
		log:     log,
	}, nil
}

// Watches reports whether label is a watched species.
func (n *Notifier) Watches(label string) bool {
	_, ok := n.species[strings.ToLower(label)]
	return ok
}

// ShouldAlert reports whether v is a visit of a watched species.
func (n *Notifier) ShouldAlert(v visits.Visit) bool {
	return n.Watches(v.Classification)
}

// NotifyVisit sends an alert for v if its classification is watched. It
// returns true when an alert was sent.
func (n *Notifier) NotifyVisit(ctx context.Context, v visits.Visit) (bool, error) {
	if !n.ShouldAlert(v) {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	data := templateData(v)
	var title bytes.Buffer
	if err := n.title.Execute(&title, data); err != nil {
		return false, fmt.Errorf("render alert title: %w", err)
	}

	params := stypes.Params{}
	params.SetTitle(title.String())
	if errs := n.sender.Send(Message(data), &params); len(errs) > 0 {
		var sendErrs []error
		for _, err := range errs {
			if err != nil {
				sendErrs = append(sendErrs, errors.NewStd(errors.ScrubMessage(err.Error())))
			}
		}
		if len(sendErrs) > 0 {
			return false, errors.New(errors.Join(sendErrs...)).
				Component("notification").
				Category(errors.CategoryNotification).
				Context("station_id", v.StationID).
				Build()
		}
	}

	n.log.Info("visit alert sent",
		logger.String("classification", v.Classification),
		logger.Int64("station_id", v.StationID),
		logger.Time("time_start", v.TimeStart))
	return true, nil
}

func templateData(v visits.Visit) TemplateData {
	station := v.StationName
	if station == "" {
		station = fmt.Sprintf("station %d", v.StationID)
	}
	return TemplateData{
		Classification:   v.Classification,
		ClassificationAI: v.ClassificationAI,
		FromUserTag:      v.ClassFromUserTag,
		Station:          station,
		StationID:        v.StationID,
		Group:            v.GroupName,
		TimeStart:        v.TimeStart,
		TimeEnd:          v.TimeEnd,
		Recordings:       len(v.Recordings),
	}
}

// Message renders the alert body.
func Message(d TemplateData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s seen at %s", d.Classification, d.Station)
	if d.Group != "" {
		fmt.Fprintf(&sb, " (%s)", d.Group)
	}
	fmt.Fprintf(&sb, " from %s to %s UTC, %d recording(s).",
		d.TimeStart.UTC().Format("2006-01-02 15:04:05"),
		d.TimeEnd.UTC().Format("15:04:05"),
		d.Recordings)
	if d.FromUserTag {
		sb.WriteString(" Confirmed by a human tag.")
	} else if d.ClassificationAI != "" {
		fmt.Fprintf(&sb, " AI classification: %s.", d.ClassificationAI)
	}
	return sb.String()
}
