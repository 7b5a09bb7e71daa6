package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/domain/service"
)

const pushTimeout = 10 * time.Second

// Emitter writes an event to one live connection.
type Emitter interface {
	Emit(connID string, payload entity.NotificationPayload) error
}

// DeliveryRouter is the single place that decides between live emit and
// buffering for a target user.
type DeliveryRouter struct {
	presence *PresenceRegistry
	buffer   *NotificationBuffer
	emitter  Emitter
	push     service.PushSink
	logger   *zap.Logger

	// handoff orders the offline decision in Deliver against Attach, so an
	// event is either buffered before the drain or emitted after it.
	handoff sync.Mutex
	// beforeBuffer runs between the live snapshot and the offline check.
	beforeBuffer func()
}

func NewDeliveryRouter(presence *PresenceRegistry, buffer *NotificationBuffer, logger *zap.Logger) *DeliveryRouter {
	return &DeliveryRouter{
		presence: presence,
		buffer:   buffer,
		logger:   logger.Named("delivery"),
	}
}

// SetEmitter attaches the transport. The gateway both consumes the router and
// implements Emitter, so it is wired after construction.
func (r *DeliveryRouter) SetEmitter(emitter Emitter) {
	r.emitter = emitter
}

// SetPushSink enables mobile push for buffered message events.
func (r *DeliveryRouter) SetPushSink(push service.PushSink) {
	r.push = push
}

// Deliver emits payload to every connection of userID, or buffers it when the
// user has none.
func (r *DeliveryRouter) Deliver(userID string, payload entity.NotificationPayload) {
	for {
		if r.emitLive(userID, payload) {
			return
		}
		if hook := r.beforeBuffer; hook != nil {
			hook()
		}
		if r.bufferIfOffline(userID, payload) {
			break
		}
		// The user connected after the snapshot; their backlog is already drained.
	}

	r.logger.Debug("buffered event for offline user",
		zap.String("user_id", userID),
		zap.String("type", string(payload.Type)),
	)

	if r.push != nil && payload.Type == entity.EventMessage {
		go r.notifyPush(userID, payload)
	}
}

func (r *DeliveryRouter) bufferIfOffline(userID string, payload entity.NotificationPayload) bool {
	r.handoff.Lock()
	defer r.handoff.Unlock()

	if r.emitter != nil && r.presence.IsOnline(userID) {
		return false
	}
	r.buffer.Enqueue(userID, payload)
	return true
}

// Attach marks connID online for userID and passes the user's backlog to
// flush, oldest first. flush returns how many events it took; the rest stay
// buffered. Deliver cannot buffer for userID while Attach runs.
func (r *DeliveryRouter) Attach(userID, connID string, flush func([]entity.NotificationPayload) int) int {
	r.handoff.Lock()
	defer r.handoff.Unlock()

	r.presence.Register(userID, connID)

	pending := r.buffer.Drain(userID)
	taken := flush(pending)
	for _, rest := range pending[taken:] {
		r.buffer.Enqueue(userID, rest)
	}
	return taken
}

// DeliverIfOnline emits without ever buffering. It reports whether the user
// had at least one connection.
func (r *DeliveryRouter) DeliverIfOnline(userID string, payload entity.NotificationPayload) bool {
	return r.emitLive(userID, payload)
}

func (r *DeliveryRouter) emitLive(userID string, payload entity.NotificationPayload) bool {
	connIDs := r.presence.ConnectionsOf(userID)
	if len(connIDs) == 0 || r.emitter == nil {
		return false
	}

	for _, connID := range connIDs {
		if err := r.emitter.Emit(connID, payload); err != nil {
			// A stale handle is cleaned up by the transport's disconnect path.
			r.logger.Warn("emit failed",
				zap.String("user_id", userID),
				zap.String("conn_id", connID),
				zap.String("type", string(payload.Type)),
				zap.Error(err),
			)
		}
	}
	return true
}

func (r *DeliveryRouter) notifyPush(userID string, payload entity.NotificationPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := r.push.Notify(ctx, userID, payload); err != nil {
		r.logger.Warn("push notify failed", zap.String("user_id", userID), zap.Error(err))
	}
}
