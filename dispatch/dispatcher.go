package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"channel-gateway/contract"
	"channel-gateway/domain"
	"channel-gateway/errors"
	"channel-gateway/observability"

	"github.com/go-playground/validator/v10"
)

// Dispatcher fans application events out to the sockets currently
// subscribed to a channel.
//
// Delivery is best effort, at most once per currently-connected
// subscriber: the subscriber set is snapshotted at call time, sockets
// that join afterwards do not receive the event, and per-socket delivery
// failures are swallowed at the transport layer. There is no replay
// buffer and no retry. Do not treat this as guaranteed delivery.
type Dispatcher struct {
	log        *slog.Logger
	registry   contract.Registry
	publisher  contract.Publisher
	monitoring *observability.Monitoring
	validate   *validator.Validate
}

// NewDispatcher wires the dispatcher to its transport capability.
// publisher may be nil when the gateway runs as a single node.
func NewDispatcher(log *slog.Logger, registry contract.Registry, publisher contract.Publisher, monitoring *observability.Monitoring) *Dispatcher {
	return &Dispatcher{
		log:        log,
		registry:   registry,
		publisher:  publisher,
		monitoring: monitoring,
		validate:   validator.New(),
	}
}

// SetPublisher attaches the cross-node publisher after construction.
// The bridge and the dispatcher reference each other, so one of them is
// wired late; this happens during startup, before serving.
func (d *Dispatcher) SetPublisher(publisher contract.Publisher) {
	d.publisher = publisher
}

// Dispatch delivers the event to every current local subscriber and
// forwards it to other gateway nodes when a publisher is configured.
func (d *Dispatcher) Dispatch(ctx context.Context, evt domain.Event) error {
	if err := d.deliver(evt); err != nil {
		return err
	}
	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, evt); err != nil {
			// Cross-node fan-out is as best-effort as local delivery.
			d.log.Warn("Cross-node publish failed", "channel", evt.Channel, "error", err)
		}
	}
	return nil
}

// DispatchLocal delivers without re-publishing. The cross-node bridge
// uses it to replay remote events, otherwise they would loop forever.
func (d *Dispatcher) DispatchLocal(_ context.Context, evt domain.Event) error {
	return d.deliver(evt)
}

func (d *Dispatcher) deliver(evt domain.Event) error {
	if err := d.checkFields(evt); err != nil {
		return err
	}
	if d.registry == nil {
		d.log.Error("Dispatch without a transport registry", "channel", evt.Channel)
		return errors.ErrTransportUnavailable
	}

	frame := domain.Frame{
		Event:   evt.Name,
		Channel: evt.Channel.String(),
		Data:    evt.Payload,
	}

	subscribers := d.registry.CurrentSubscribers(evt.Channel)
	for _, socket := range subscribers {
		if err := d.registry.Emit(socket, frame); err != nil {
			// Partial delivery failure is not surfaced to the caller.
			d.log.Debug("Emit failed", "socket", socket, "channel", evt.Channel, "error", err)
			continue
		}
		d.monitoring.IncrFramesDelivered()
	}
	d.monitoring.IncrEventsDispatched()
	d.log.Debug("Event dispatched", "channel", evt.Channel, "event", evt.Name, "subscribers", len(subscribers))
	return nil
}

// wireNames maps struct fields to the names callers sent on the wire,
// in declaration order, so the error blames the FIRST missing field.
var wireNames = map[string]string{
	"Channel": "channel",
	"Name":    "event",
	"Payload": "payload",
}

func (d *Dispatcher) checkFields(evt domain.Event) error {
	// json.RawMessage("null") passes the required tag but carries nothing.
	if string(evt.Payload) == "null" {
		evt.Payload = nil
	}
	err := d.validate.Struct(evt)
	if err == nil {
		return nil
	}
	// Validation runs in struct declaration order, so the first entry is
	// the first offending field.
	var fieldErrors validator.ValidationErrors
	if stderrors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		return errors.MissingFieldError{Field: wireNames[fieldErrors[0].StructField()]}
	}
	return fmt.Errorf("invalid event: %w", err)
}
