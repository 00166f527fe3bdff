// Package publish bridges build events onto NATS subjects so external
// consumers (dashboards, reload sinks) can react without linking into the
// process. Publishing is optional; the automator runs fine without it.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tripjs/trip/internal/events"
	"github.com/tripjs/trip/internal/logfields"
)

const (
	SubjectBuildStarting = "trip.build.starting"
	SubjectBuildComplete = "trip.build.complete"
	SubjectBuildFailed   = "trip.build.failed"
)

// Publisher forwards build events from the in-process bus to NATS.
type Publisher struct {
	conn *nats.Conn
	bus  *events.Bus
}

// New connects to the NATS server at url.
func New(url string, bus *events.Bus) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	slog.Info("Build event publisher connected", slog.String("url", url))
	return &Publisher{conn: conn, bus: bus}, nil
}

type startingPayload struct {
	Files    int       `json:"files"`
	Triggers []string  `json:"triggers,omitempty"`
	At       time.Time `json:"at"`
}

type completePayload struct {
	BuildID    uint64    `json:"build_id"`
	DurationMS int64     `json:"duration_ms"`
	Changes    int       `json:"changes"`
	OutputSize int64     `json:"output_size"`
	At         time.Time `json:"at"`
}

type failedPayload struct {
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

// Run subscribes to build events and forwards them until ctx is canceled.
// Publish failures are logged, never propagated; a flaky broker must not
// interfere with builds.
func (p *Publisher) Run(ctx context.Context) {
	starting, unsubStarting := events.Subscribe[events.BuildStarting](p.bus, 16)
	defer unsubStarting()
	complete, unsubComplete := events.Subscribe[events.BuildComplete](p.bus, 16)
	defer unsubComplete()
	failed, unsubFailed := events.Subscribe[events.BuildFailed](p.bus, 16)
	defer unsubFailed()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-starting:
			if !ok {
				return
			}
			var triggers []string
			for path := range evt.Triggers {
				triggers = append(triggers, path)
			}
			p.publish(SubjectBuildStarting, startingPayload{
				Files:    evt.Input.Len(),
				Triggers: triggers,
				At:       time.Now(),
			})
		case evt, ok := <-complete:
			if !ok {
				return
			}
			p.publish(SubjectBuildComplete, completePayload{
				BuildID:    evt.Result.ID,
				DurationMS: evt.Result.Duration.Milliseconds(),
				Changes:    len(evt.Result.Changes),
				OutputSize: evt.Result.DestSize,
				At:         time.Now(),
			})
		case evt, ok := <-failed:
			if !ok {
				return
			}
			p.publish(SubjectBuildFailed, failedPayload{
				Error: evt.Err.Error(),
				At:    time.Now(),
			})
		}
	}
}

func (p *Publisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("Marshal build event", logfields.Error(err))
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		slog.Warn("Publish build event", slog.String("subject", subject), logfields.Error(err))
	}
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
