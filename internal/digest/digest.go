// Package digest pushes periodic weather summaries to farmers who shared
// their coordinates. It is an optional background loop beside the dialogue.
package digest

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/agrobot/core/logger"
	"github.com/m3rciful/agrobot/internal/domain"
	"github.com/m3rciful/agrobot/internal/i18n"
	"log/slog"
)

// Config tunes the digest loop.
type Config struct {
	Enabled           bool `yaml:"enabled" envconfig:"DIGEST_ENABLED"`
	FirstDelaySeconds int  `yaml:"first_delay_seconds" envconfig:"DIGEST_FIRST_DELAY_SECONDS"`
	IntervalMinutes   int  `yaml:"interval_minutes" envconfig:"DIGEST_INTERVAL_MINUTES"`
	// Limit caps how many profiles one run pushes to.
	Limit int `yaml:"limit" envconfig:"DIGEST_LIMIT"`
}

// Normalize fills defaults in place.
func (c *Config) Normalize() {
	if c.FirstDelaySeconds <= 0 {
		c.FirstDelaySeconds = 120
	}
	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = 24 * 60
	}
	if c.Limit <= 0 {
		c.Limit = 500
	}
}

func (c Config) firstDelay() time.Duration {
	return time.Duration(c.FirstDelaySeconds) * time.Second
}

func (c Config) interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// ProfileLister yields digest recipients.
type ProfileLister interface {
	ListWithCoords(ctx context.Context, limit int) ([]domain.Farmer, error)
}

// Forecaster fetches the weather for one recipient.
type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64, lang domain.Language) (*domain.WeatherSnapshot, error)
}

// SendFunc delivers one digest message to a chat.
type SendFunc func(chatID int64, text string) error

// Digest is the scheduler.
type Digest struct {
	cfg      Config
	profiles ProfileLister
	weather  Forecaster
	msgs     *i18n.Catalog
	send     SendFunc
}

// New builds the scheduler.
func New(cfg Config, profiles ProfileLister, weather Forecaster, msgs *i18n.Catalog, send SendFunc) *Digest {
	cfg.Normalize()
	return &Digest{cfg: cfg, profiles: profiles, weather: weather, msgs: msgs, send: send}
}

// Run blocks until ctx is done: one pass after FirstDelay, then one per
// Interval. Call in a goroutine.
func (d *Digest) Run(ctx context.Context) {
	if !d.cfg.Enabled {
		logger.DIGEST.Info("digest disabled", slog.String("event", "config"))
		return
	}
	logger.DIGEST.Info("digest scheduled",
		slog.String("event", "config"),
		slog.Duration("first_delay", d.cfg.firstDelay()),
		slog.Duration("interval", d.cfg.interval()),
	)

	select {
	case <-ctx.Done():
		return
	case <-time.After(d.cfg.firstDelay()):
	}
	d.runOnce(ctx)

	ticker := time.NewTicker(d.cfg.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

// runOnce pushes one digest to every eligible farmer. Per-chat failures are
// logged and skipped; the pass always completes.
func (d *Digest) runOnce(ctx context.Context) {
	start := time.Now()
	// One trace id per pass.
	ctx = logger.WithTrace(ctx, "digest-"+strconv.FormatInt(start.UnixMilli(), 10), "")

	farmers, err := d.profiles.ListWithCoords(ctx, d.cfg.Limit)
	if err != nil {
		logger.DIGEST.LogAttrs(ctx, slog.LevelError, "recipient listing failed",
			slog.String("event", "run"),
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}

	sent, failed := 0, 0
	for _, f := range farmers {
		if ctx.Err() != nil {
			return
		}
		if err := d.pushOne(ctx, f); err != nil {
			failed++
			logger.DIGEST.LogAttrs(ctx, slog.LevelWarn, "push failed",
				slog.String("event", "push"),
				slog.String("status", "fail"),
				slog.String("chat_id", f.ChatID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			continue
		}
		sent++
	}

	logger.DIGEST.LogAttrs(ctx, slog.LevelInfo, "digest run summary",
		slog.String("event", "summary"),
		slog.Int("recipients", len(farmers)),
		slog.Int("sent", sent),
		slog.Int("failed", failed),
		slog.Duration("duration", logger.Took(start)),
	)
}

func (d *Digest) pushOne(ctx context.Context, f domain.Farmer) error {
	chatID, err := strconv.ParseInt(f.ChatID, 10, 64)
	if err != nil {
		return err
	}
	snap, err := d.weather.Forecast(ctx, *f.Lat, *f.Lon, f.Lang())
	if err != nil {
		return err
	}
	return d.send(chatID, d.renderDigest(f.Lang(), snap))
}

// renderDigest is plain text: header, summary, the next days, alerts.
func (d *Digest) renderDigest(lang domain.Language, snap *domain.WeatherSnapshot) string {
	lines := []string{d.msgs.T(lang, "digest_header"), snap.Summary}
	for _, day := range snap.Daily {
		if day.Date == "" {
			continue
		}
		lines = append(lines, day.Date+": "+day.Main+", "+
			strconv.FormatFloat(day.TempMin, 'f', 0, 64)+"–"+
			strconv.FormatFloat(day.TempMax, 'f', 0, 64)+"°")
	}
	for _, a := range snap.Alerts {
		lines = append(lines, d.msgs.T(lang, "digest_alert", a))
	}
	return strings.Join(lines, "\n")
}
