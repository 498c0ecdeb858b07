// Package worker runs one connection's handshake and play loop: a
// synchronous read, engine step, write cycle coupling the framing codec,
// session store, and match engine. One goroutine per connection; a
// worker's death means its goroutine returning, and resumption relies on
// the session store surviving it.
package worker

import (
	"context"
	"io"
	"math/rand"
	"time"

	"github.com/marmos91/cardserver/internal/engine"
	"github.com/marmos91/cardserver/internal/frame"
	"github.com/marmos91/cardserver/internal/logger"
	"github.com/marmos91/cardserver/internal/session"
)

// Conn is the minimal transport surface the worker needs: a
// io.Reader/io.Writer pair plus enough identity for logging. Satisfied
// by *transport.Conn.
type Conn interface {
	io.Reader
	io.Writer
	RemoteIP() string
	Close() error
}

// Worker drives a single connection's handshake and play phases.
type Worker struct {
	conn    Conn
	store   *session.Store
	onFrame func() // invoked once per successfully decoded inbound frame
	rng     *rand.Rand

	sessionID uint64
	match     *engine.Match
	hand      *engine.Hand
}

// New creates a worker for an accepted, already-TLS-handshaken
// connection. onFrame, if non-nil, is invoked once per decoded inbound
// frame (the acceptor wires this to the packet counter).
func New(conn Conn, store *session.Store, onFrame func()) *Worker {
	return &Worker{
		conn:    conn,
		store:   store,
		onFrame: onFrame,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run executes the handshake phase followed by the play phase, returning
// when the connection ends (client disconnect, read timeout, or ctx
// cancellation between frames). Framing and transport errors are fatal
// to the connection only; the session, if any, survives in the store.
func (w *Worker) Run(ctx context.Context) {
	lc := logger.NewLogContext(w.conn.RemoteIP())

	if err := w.handshake(ctx, lc); err != nil {
		logger.ErrorCtx(logger.WithContext(ctx, lc), "handshake phase ended", logger.Err(err))
		return
	}

	lc = lc.WithSession(w.sessionID)
	if err := w.playLoop(ctx, lc); err != nil {
		logger.InfoCtx(logger.WithContext(ctx, lc), "connection closed", logger.Err(err))
	}
}

// handshake reads frames until LOGIN_REQ or RESUME_REQ succeeds. PING is
// answered inline; everything else is discarded.
func (w *Worker) handshake(ctx context.Context, lc *logger.LogContext) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, err := frame.Decode(w.conn)
		if err != nil {
			return err
		}
		if w.onFrame != nil {
			w.onFrame()
		}

		switch f.Opcode {
		case frame.OpLoginReq:
			return w.handleLogin()
		case frame.OpResumeReq:
			ok, err := w.handleResume(f.Payload)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
			// miss: remain in the handshake phase awaiting another attempt
		case frame.OpPing:
			if err := w.send(frame.OpPong, nil); err != nil {
				return err
			}
		default:
			// not a handshake opcode; discarded
		}
	}
}

func (w *Worker) handleLogin() error {
	m, hand := engine.NewMatch(w.rng)
	id, err := w.store.Allocate()
	if err != nil {
		w.send(frame.OpError, frame.EncodeError(engine.CodeStoreFull, "session store full"))
		return err
	}

	w.sessionID = id
	w.match = m
	w.hand = hand
	if err := w.snapshot(); err != nil {
		return err
	}

	if err := w.send(frame.OpLoginResp, frame.EncodeLoginResp(true)); err != nil {
		return err
	}
	if err := w.send(frame.OpResumeResp, frame.EncodeResumeResp(true, id)); err != nil {
		return err
	}
	return w.sendStateAndHand()
}

func (w *Worker) handleResume(payload []byte) (bool, error) {
	if err := frame.ValidatePayloadSize(frame.OpResumeReq, payload); err != nil {
		w.send(frame.OpError, frame.EncodeError(engine.CodeBadPayload, "bad payload"))
		return false, nil
	}
	id, err := frame.DecodeResumeReq(payload)
	if err != nil {
		return false, err
	}

	stateBytes, handBytes, err := w.store.Load(id)
	if err != nil {
		return false, w.send(frame.OpResumeResp, frame.EncodeResumeResp(false, 0))
	}

	stateRec, err := frame.DecodeStateRecord(stateBytes)
	if err != nil {
		return false, err
	}
	handRec, err := frame.DecodeHandRecord(handBytes)
	if err != nil {
		return false, err
	}

	m := engine.MatchFromStateRecord(stateRec)
	h := engine.HandFromRecord(handRec)
	w.sessionID = id
	w.match = &m
	w.hand = &h

	if err := w.send(frame.OpResumeResp, frame.EncodeResumeResp(true, id)); err != nil {
		return false, err
	}
	if err := w.sendStateAndHand(); err != nil {
		return false, err
	}
	return true, nil
}

// playLoop is the per-connection request/reply cycle.
func (w *Worker) playLoop(ctx context.Context, lc *logger.LogContext) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, err := frame.Decode(w.conn)
		if err != nil {
			return err
		}
		if w.onFrame != nil {
			w.onFrame()
		}
		w.store.Touch(w.sessionID)

		if w.match.GameOver {
			if err := w.sendStateAndHand(); err != nil {
				return err
			}
			continue
		}

		switch f.Opcode {
		case frame.OpPing:
			if err := w.send(frame.OpPong, nil); err != nil {
				return err
			}
		case frame.OpPlayCard:
			if err := w.dispatchPlayCard(f.Payload); err != nil {
				return err
			}
		case frame.OpEndTurn:
			if err := w.dispatchEndTurn(); err != nil {
				return err
			}
		case frame.OpLoginReq, frame.OpResumeReq:
			// silently ignored inside the play phase
		default:
			if err := w.send(frame.OpError, frame.EncodeError(engine.CodeUnknownOpcode, "unknown opcode")); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) dispatchPlayCard(payload []byte) error {
	if err := frame.ValidatePayloadSize(frame.OpPlayCard, payload); err != nil {
		if err := w.send(frame.OpError, frame.EncodeError(engine.CodeBadPayload, "bad payload")); err != nil {
			return err
		}
		return w.sendStateAndHand()
	}
	slot, err := frame.DecodePlayCard(payload)
	if err != nil {
		return err
	}

	if verr := w.match.PlayCard(w.hand, slot); verr != nil {
		if err := w.replyValidationError(verr); err != nil {
			return err
		}
	}

	if err := w.snapshot(); err != nil {
		return err
	}
	return w.sendStateAndHand()
}

func (w *Worker) dispatchEndTurn() error {
	if verr := w.match.EndTurn(w.hand, w.rng); verr != nil {
		if err := w.replyValidationError(verr); err != nil {
			return err
		}
	}

	if err := w.snapshot(); err != nil {
		return err
	}
	return w.sendStateAndHand()
}

func (w *Worker) replyValidationError(err error) error {
	verr, ok := err.(*engine.ValidationError)
	if !ok {
		return err
	}
	return w.send(frame.OpError, frame.EncodeError(verr.Code, verr.Msg))
}

func (w *Worker) snapshot() error {
	stateBytes := w.match.ToStateRecord().Encode()
	handBytes := w.hand.ToHandRecord().Encode()
	return w.store.Save(w.sessionID, stateBytes, handBytes)
}

// sendStateAndHand sends STATE then HAND as an ordered pair. Every reply
// to a state-touching request uses this, so clients can rely on the order.
func (w *Worker) sendStateAndHand() error {
	if err := w.send(frame.OpState, w.match.ToStateRecord().Encode()); err != nil {
		return err
	}
	return w.send(frame.OpHand, w.hand.ToHandRecord().Encode())
}

func (w *Worker) send(op frame.Opcode, payload []byte) error {
	buf, err := frame.Encode(op, payload)
	if err != nil {
		return err
	}
	_, err = w.conn.Write(buf)
	return err
}
