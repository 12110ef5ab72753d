package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"channel-gateway/domain"
	"channel-gateway/observability"

	"github.com/shirou/gopsutil/process"
)

// StatsChannel is the channel operators subscribe to for live gateway
// telemetry. It is private: a session token is required to join.
const StatsChannel = domain.ChannelName("private-gateway-stats")

// StatsDispatcher is the slice of the dispatcher the telemetry worker
// needs.
type StatsDispatcher interface {
	Dispatch(ctx context.Context, evt domain.Event) error
}

// TelemetryWorker samples the gateway's own process every interval,
// merges the numbers into the monitoring manager and broadcasts a
// snapshot on the stats channel.
type TelemetryWorker struct {
	log        *slog.Logger
	monitoring *observability.Monitoring
	dispatcher StatsDispatcher
	interval   time.Duration
}

func NewTelemetryWorker(log *slog.Logger, monitoring *observability.Monitoring, dispatcher StatsDispatcher, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{
		log:        log,
		monitoring: monitoring,
		dispatcher: dispatcher,
		interval:   interval,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting telemetry worker", "interval", w.interval)

	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry worker")
			return nil
		case <-ticker.C:
			w.sample(ctx, self)
		}
	}
}

func (w *TelemetryWorker) sample(ctx context.Context, self *process.Process) {
	var rssMb uint64
	var cpu float64

	if mem, err := self.MemoryInfo(); err == nil {
		rssMb = mem.RSS / 1024 / 1024
	} else {
		w.log.Debug("Error while reading process memory", "error", err)
	}
	if percent, err := self.CPUPercent(); err == nil {
		cpu = percent
	} else {
		w.log.Debug("Error while reading process cpu", "error", err)
	}
	w.monitoring.SetProcessStats(rssMb, cpu)

	payload, err := json.Marshal(w.monitoring.Snapshot())
	if err != nil {
		w.log.Error("Stats snapshot marshal failed", "error", err)
		return
	}

	// Nobody subscribed is the normal case; dispatch stays cheap then.
	if err := w.dispatcher.Dispatch(ctx, domain.Event{
		Channel: StatsChannel,
		Name:    "gateway:stats",
		Payload: payload,
	}); err != nil {
		w.log.Warn("Stats broadcast failed", "error", err)
	}
}
