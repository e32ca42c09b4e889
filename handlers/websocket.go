package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"task-server/apperr"
	"task-server/auth"
	"task-server/entities"
	"task-server/metrics"
	"task-server/repositories"
	"task-server/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const surface = "ws"

type createPayload struct {
	Title   string  `json:"title"`
	DueDate *string `json:"dueDate"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// WSHandler groups dependencies for persistent session flows
type WSHandler struct {
	broadcaster *ws.Broadcaster
	repo        repositories.TaskRepository
	authn       *auth.Authenticator
	cookieName  string
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

func NewWSHandler(b *ws.Broadcaster, repo repositories.TaskRepository, authn *auth.Authenticator, cookieName string, checkOrigin func(r *http.Request) bool, log zerolog.Logger) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &WSHandler{
		broadcaster: b,
		repo:        repo,
		authn:       authn,
		cookieName:  cookieName,
		log:         log,
		upgrader:    websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

// HandleSession authenticates the handshake, upgrades and serves one session.
// GET /ws?token=<jwt>  (or Authorization: Bearer, or the session cookie)
func (h *WSHandler) HandleSession(c *gin.Context) {
	p, err := h.authn.Authenticate(auth.HandshakeCarrier{Request: c.Request, CookieName: h.cookieName})
	if err != nil {
		kind := apperr.KindOf(err)
		h.log.Debug().Str("code", kind.Code()).Msg("session handshake rejected")
		c.AbortWithStatusJSON(kind.HTTPStatus(), gin.H{"error": apperr.PublicMessage(err), "code": kind.Code()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s := ws.NewSession(p, conn)
	h.broadcaster.Register(s)
	metrics.SessionOpened()
	log := h.log.With().Str("user_id", p.UserID).Logger()
	log.Info().Msg("session opened")

	go s.WritePump()

	// initial list goes out before any reply
	h.republish(s, log)

	inbound := make(chan ws.Envelope, 16)
	go h.dispatch(s, inbound, log)

	defer func() {
		h.broadcaster.Unregister(s)
		close(inbound)
		metrics.SessionClosed()
		log.Info().Msg("session closed")
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Msg("client closed session")
			} else {
				select {
				case <-s.Done():
				default:
					log.Debug().Err(err).Msg("session read error")
				}
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var env ws.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			log.Warn().Msg("malformed session frame")
			continue
		}
		select {
		case inbound <- env:
		case <-s.Done():
			return
		}
	}
}

// dispatch handles inbound events one at a time so replies keep their order.
// Frames still queued when the session closes are dropped, not applied.
func (h *WSHandler) dispatch(s *ws.Session, inbound <-chan ws.Envelope, log zerolog.Logger) {
	for {
		select {
		case <-s.Done():
			return
		case env, ok := <-inbound:
			if !ok {
				return
			}
			select {
			case <-s.Done():
				log.Debug().Str("event", env.Event).Msg("dropping frame for closed session")
				return
			default:
			}
			h.handle(s, env, log)
		}
	}
}

func (h *WSHandler) handle(s *ws.Session, env ws.Envelope, log zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event", env.Event).Msg("session handler panic")
			h.emitError(s, apperr.New(apperr.InternalFault, "internal error"), log)
		}
	}()

	p := s.Principal
	switch env.Event {
	case ws.EventCreate:
		var in createPayload
		if err := json.Unmarshal(env.Data, &in); err != nil {
			h.emitError(s, apperr.New(apperr.InvalidInput, "invalid payload"), log)
			return
		}
		task, err := h.repo.Create(p, entities.TaskInput{Title: in.Title, DueDate: in.DueDate})
		metrics.RecordTaskOp(surface, "create", opCode(err))
		if err != nil {
			h.emitError(s, err, log)
			return
		}
		s.Emit(ws.EventCreated, task)
		h.republish(s, log)
	case ws.EventToggle:
		id, ok := decodeID(env.Data)
		if !ok {
			h.emitError(s, apperr.New(apperr.InvalidInput, "task id is required"), log)
			return
		}
		task, err := h.repo.Toggle(p, id)
		metrics.RecordTaskOp(surface, "toggle", opCode(err))
		if err != nil {
			h.emitError(s, err, log)
			return
		}
		s.Emit(ws.EventToggled, task)
		h.republish(s, log)
	case ws.EventDelete:
		id, ok := decodeID(env.Data)
		if !ok {
			h.emitError(s, apperr.New(apperr.InvalidInput, "task id is required"), log)
			return
		}
		err := h.repo.Delete(p, id)
		metrics.RecordTaskOp(surface, "delete", opCode(err))
		if err != nil {
			h.emitError(s, err, log)
			return
		}
		s.Emit(ws.EventDeleted, id)
		h.republish(s, log)
	case ws.EventList:
		h.republish(s, log)
	default:
		log.Warn().Str("event", env.Event).Msg("unknown session event")
	}
}

func (h *WSHandler) republish(s *ws.Session, log zerolog.Logger) {
	tasks, err := h.repo.List(s.Principal)
	metrics.RecordTaskOp(surface, "list", opCode(err))
	if err != nil {
		h.emitError(s, err, log)
		return
	}
	h.broadcaster.Republish(s, tasks)
}

func (h *WSHandler) emitError(s *ws.Session, err error, log zerolog.Logger) {
	kind := apperr.KindOf(err)
	if kind == apperr.InternalFault {
		log.Error().Err(err).Msg("internal fault")
	}
	s.Emit(ws.EventError, errorPayload{Message: apperr.PublicMessage(err), Code: kind.Code()})
}

// decodeID accepts either a bare JSON string or {"id": "..."}.
func decodeID(raw json.RawMessage) (string, bool) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		id = strings.TrimSpace(id)
		return id, id != ""
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		obj.ID = strings.TrimSpace(obj.ID)
		return obj.ID, obj.ID != ""
	}
	return "", false
}

func opCode(err error) string {
	if err != nil {
		return apperr.KindOf(err).Code()
	}
	return "OK"
}

