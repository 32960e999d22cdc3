package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"qbank-import-service/internal/app"
	"qbank-import-service/internal/config"
	"qbank-import-service/internal/domain"
)

// WSHandler streams per-record import progress over a websocket.
type WSHandler struct {
	importer   *app.Importer
	errorLimit int
	upgrader   websocket.Upgrader
}

func NewWSHandler(importer *app.Importer, errorLimit int) *WSHandler {
	return &WSHandler{
		importer:   importer,
		errorLimit: errorLimit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type importPayload struct {
	Secret  string          `json:"secret"`
	Records json.RawMessage `json:"records"`
}

type recordPayload struct {
	Index      int                 `json:"index"`
	Status     domain.RecordStatus `json:"status"`
	QuestionID int64               `json:"questionId,omitempty"`
	Message    string              `json:"message,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and runs one import per inbound "import" message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 64)
	writerDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Warn("ws write error")
				return
			}
		}
	}()

	emit := func(typ string, payload any) bool {
		select {
		case send <- outboundMessage[any]{Type: typ, Payload: payload}:
			return true
		case <-writerDone:
			return false
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if inbound.Type != "import" {
			if !emit("error", errorPayload{Message: "unsupported message type"}) {
				break
			}
			continue
		}

		var payload importPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			if !emit("error", errorPayload{Message: "invalid import payload"}) {
				break
			}
			continue
		}
		records, err := ParseRecords(payload.Records)
		if err != nil {
			if !emit("error", errorPayload{Message: err.Error()}) {
				break
			}
			continue
		}

		// The batch still completes if the client goes away; only the progress stops.
		connected := true
		summary, err := h.importer.ImportStream(r.Context(), payload.Secret, records, func(o domain.RecordOutcome) {
			if !connected {
				return
			}
			msg := recordPayload{Index: o.Index, Status: o.Status, QuestionID: o.QuestionID}
			if o.Err != nil {
				msg.Message = o.Err.Error()
			}
			connected = emit("record", msg)
		})
		if !connected {
			break
		}
		var sent bool
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			sent = emit("error", errorPayload{Message: "unauthorized"})
		case err != nil:
			sent = emit("error", errorPayload{Message: "internal server error"})
		default:
			sent = emit("summary", newImportResponse(summary, h.errorLimit))
		}
		if !sent {
			break
		}
	}

	close(send)
	<-writerDone
}
