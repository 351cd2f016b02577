package events

import "github.com/slotwise/courtkeeper/internal/logger"

// Broadcaster is the fan-out sink the booking service and reconciler
// signal after a successful state transition. Fire is fire-and-forget:
// delivery failures are logged by the Publisher and never surfaced to
// the caller. facilityID narrows delivery to observers watching one
// facility; an empty facilityID (the reconciler's case, since one cycle
// can touch many facilities) reaches every observer. This narrowing is a
// transport-layer optimization only — the event itself stays a single
// coarse signal and observers still refetch authoritative state.
type Broadcaster interface {
	Fire(facilityID string)
}

// StateChangedPayload is the optional narrowing hint carried by
// StateChangedEvent.
type StateChangedPayload struct {
	FacilityID string `json:"facilityId,omitempty"`
}

// NATSBroadcaster publishes StateChangedEvent on NATS (or no-ops via the
// null publisher); the realtime hub, running in every instance, holds its
// own NATS subscription and forwards the signal on to connected
// observers.
type NATSBroadcaster struct {
	publisher *Publisher
	logger    *logger.Logger
}

func NewNATSBroadcaster(publisher *Publisher, logger *logger.Logger) *NATSBroadcaster {
	return &NATSBroadcaster{publisher: publisher, logger: logger}
}

func (b *NATSBroadcaster) Fire(facilityID string) {
	if err := b.publisher.Publish(StateChangedEvent, StateChangedPayload{FacilityID: facilityID}); err != nil {
		b.logger.Error("failed to fire state_changed", "error", err)
	}
}
