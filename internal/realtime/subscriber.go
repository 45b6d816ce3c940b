package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/PickFolio/pickfolio-go/internal/domain"
	"github.com/PickFolio/pickfolio-go/internal/leaderboard"
	"github.com/PickFolio/pickfolio-go/internal/session"
)

// State is the subscriber's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

const dialTimeout = 10 * time.Second

// Subscriber maintains the realtime subscription for one contest. A
// subscriber is bound to its contest for life: switching contests means
// cancelling this one's context and creating a new one. It
// authenticates the connection with the current access token, feeds every
// score event through the reconciler, and emits ordered snapshots on a
// channel. Transport failures never escape: the subscriber backs off and
// redials until its context is cancelled.
type Subscriber struct {
	wsURL     string
	contestID string
	store     session.Store
	rec       *leaderboard.Reconciler
	backoff   time.Duration
	dialer    *websocket.Dialer
	logger    *zap.Logger

	state     atomic.Int32
	snapshots chan []domain.LeaderboardEntry
}

func NewSubscriber(wsURL, contestID string, store session.Store, rec *leaderboard.Reconciler, backoff time.Duration, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		wsURL:     wsURL,
		contestID: contestID,
		store:     store,
		rec:       rec,
		backoff:   backoff,
		dialer:    &websocket.Dialer{HandshakeTimeout: dialTimeout},
		logger:    logger.Named("realtime").With(zap.String("contest_id", contestID)),
		snapshots: make(chan []domain.LeaderboardEntry, 1),
	}
}

// Snapshots emits the latest ordered leaderboard after each applied event.
// A slow reader only ever sees the most recent snapshot; intermediate ones
// are dropped. The channel closes when Run returns.
func (s *Subscriber) Snapshots() <-chan []domain.LeaderboardEntry {
	return s.snapshots
}

func (s *Subscriber) State() State {
	return State(s.state.Load())
}

func (s *Subscriber) setState(st State) {
	s.state.Store(int32(st))
}

// Run maintains the subscription until ctx is cancelled. It must run on
// its own goroutine and is the only place the transport is touched;
// cancelling ctx deterministically closes the connection.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.snapshots)
	defer s.setState(StateDisconnected)

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			s.setState(StateReconnecting)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.backoff):
			}
		}

		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("connection lost, will reconnect", zap.Error(err))
	}
}

// connectAndRead runs one connection lifetime: dial, STOMP handshake,
// subscribe, then pump messages. It returns nil only when ctx is done.
func (s *Subscriber) connectAndRead(ctx context.Context) error {
	pair, ok := s.store.Get()
	if !ok {
		return fmt.Errorf("no session, cannot open realtime connection")
	}
	s.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := s.dialer.DialContext(dialCtx, s.wsURL+"/websocket", nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	// Unblocks the read loop when the owning context goes away.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	connect := newFrame(cmdConnect,
		[2]string{"accept-version", "1.2"},
		[2]string{"heart-beat", "0,0"},
		[2]string{"Authorization", "Bearer " + pair.AccessToken},
	)
	if err := conn.WriteMessage(websocket.TextMessage, connect.marshal()); err != nil {
		return fmt.Errorf("connect frame failed: %w", err)
	}
	if err := s.awaitConnected(conn); err != nil {
		return err
	}

	subscribe := newFrame(cmdSubscribe,
		[2]string{"id", "sub-0"},
		[2]string{"destination", "/topic/contest/" + s.contestID},
	)
	if err := conn.WriteMessage(websocket.TextMessage, subscribe.marshal()); err != nil {
		return fmt.Errorf("subscribe frame failed: %w", err)
	}

	s.setState(StateConnected)
	s.logger.Info("subscribed to contest topic")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				s.disconnect(conn)
				return nil
			}
			return err
		}
		s.handleFrame(data)
	}
}

func (s *Subscriber) awaitConnected(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("handshake read failed: %w", err)
		}
		f, err := parseFrame(data)
		if err != nil {
			return fmt.Errorf("handshake parse failed: %w", err)
		}
		if f == nil {
			continue
		}
		switch f.command {
		case cmdConnected:
			return nil
		case cmdError:
			return fmt.Errorf("broker rejected connection: %s", f.header("message"))
		default:
			return fmt.Errorf("unexpected handshake frame %q", f.command)
		}
	}
}

// handleFrame applies one inbound frame. Malformed frames and malformed
// event bodies are dropped and logged; one bad message must not end the
// stream for everyone else.
func (s *Subscriber) handleFrame(data []byte) {
	f, err := parseFrame(data)
	if err != nil {
		s.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}
	if f == nil || f.command != cmdMessage {
		return
	}

	var event domain.ScoreUpdateEvent
	if err := json.Unmarshal(f.body, &event); err != nil || event.ParticipantID == "" {
		s.logger.Warn("dropping malformed score update", zap.ByteString("body", f.body))
		return
	}

	s.publish(s.rec.Apply(event))
}

// publish replaces any unconsumed snapshot with the newest one.
func (s *Subscriber) publish(snapshot []domain.LeaderboardEntry) {
	for {
		select {
		case s.snapshots <- snapshot:
			return
		default:
			select {
			case <-s.snapshots:
			default:
			}
		}
	}
}

func (s *Subscriber) disconnect(conn *websocket.Conn) {
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, newFrame(cmdDisconnect).marshal())
}
