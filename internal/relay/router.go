package relay

import (
	"encoding/json"
	"fmt"

	"roomrelay/internal/metrics"
	"roomrelay/internal/presence"

	"go.uber.org/zap"
)

// Router forwards opaque signaling payloads between connections, independent
// of rooms.
type Router struct {
	index *presence.Index
	peers *directory
}

func newRouter(ix *presence.Index, peers *directory) *Router {
	return &Router{index: ix, peers: peers}
}

// Relay delivers payload to every live connection of targetIdentity except the
// source itself and returns how many received it. With no live target
// connection it fails with ErrTargetUnavailable.
func (r *Router) Relay(source presence.ConnID, sourceIdentity, targetIdentity string, payload json.RawMessage) (int, error) {
	targets := r.index.ConnectionsFor(targetIdentity)

	frame, err := Encode(EventSignal, SignalBody{
		SourceConnectionID: source,
		SourceIdentity:     sourceIdentity,
		Payload:            payload,
	})
	if err != nil {
		return 0, err
	}

	if len(targets) == 1 && targets[0] == source {
		return 0, fmt.Errorf("%w: cannot signal own connection", ErrInvalidRequest)
	}

	delivered := 0
	for _, id := range targets {
		if id == source {
			continue
		}
		if r.send(source, id, frame) {
			delivered++
		}
	}
	if delivered == 0 {
		metrics.Signals.WithLabelValues("unavailable").Inc()
		return 0, fmt.Errorf("%w: %s", ErrTargetUnavailable, targetIdentity)
	}
	metrics.Signals.WithLabelValues("relayed").Inc()
	return delivered, nil
}

// RelayTo delivers payload to exactly one registered connection.
func (r *Router) RelayTo(source presence.ConnID, sourceIdentity string, target presence.ConnID, payload json.RawMessage) error {
	if target == source {
		return fmt.Errorf("%w: cannot signal own connection", ErrInvalidRequest)
	}
	if _, ok := r.index.IdentityOf(target); !ok {
		metrics.Signals.WithLabelValues("unavailable").Inc()
		return fmt.Errorf("%w: %s", ErrTargetUnavailable, target)
	}

	frame, err := Encode(EventSignal, SignalBody{
		SourceConnectionID: source,
		SourceIdentity:     sourceIdentity,
		Payload:            payload,
	})
	if err != nil {
		return err
	}
	if !r.send(source, target, frame) {
		metrics.Signals.WithLabelValues("unavailable").Inc()
		return fmt.Errorf("%w: %s", ErrTargetUnavailable, target)
	}
	metrics.Signals.WithLabelValues("relayed").Inc()
	return nil
}

func (r *Router) send(source, target presence.ConnID, frame []byte) bool {
	if err := r.peers.deliver(target, frame); err != nil {
		metrics.DeliveryFailures.Inc()
		zap.L().Warn("relay.signal_delivery_failed",
			zap.String("source", string(source)),
			zap.String("target", string(target)),
			zap.Error(err),
		)
		return false
	}
	return true
}
