package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/korzhev/Cascade/internal/mq"
)

// webhookResponse — ответ на принятый webhook.
type webhookResponse struct {
	Topic           string      `json:"topic"`
	ExternalEventID string      `json:"external_event_id"`
	FlowsMatched    int         `json:"flows_matched"`
	FlowIDs         []uuid.UUID `json:"flow_ids,omitempty"`
}

// ReceiveWebhook обрабатывает POST /webhooks/{topic...}.
//
// Принимает событие магазина ("orders/create" и т.п.), находит
// активные flows с подходящим триггером и публикует по событию на
// flow в events.inbound. Ключ идемпотентности берётся из заголовка
// X-Event-ID; без заголовка генерируется новый — тогда повторная
// доставка того же webhook породит отдельные executions.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	topic := r.PathValue("topic")
	if topic == "" {
		BadRequest(w, "topic is required")
		return
	}

	var payload map[string]any
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			BadRequest(w, "invalid json body")
			return
		}
	}

	externalEventID := r.Header.Get("X-Event-ID")
	if externalEventID == "" {
		externalEventID = uuid.New().String()
	}

	flows, err := h.flows.ListActiveByTopic(r.Context(), topic)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	resp := webhookResponse{
		Topic:           topic,
		ExternalEventID: externalEventID,
	}
	for _, flow := range flows {
		err := h.publisher.PublishEventInbound(r.Context(), mq.EventInboundPayload{
			FlowID:          flow.ID,
			Topic:           topic,
			ExternalEventID: externalEventID,
			Payload:         payload,
		})
		if err != nil {
			InternalError(w, h.logger, err)
			return
		}
		resp.FlowIDs = append(resp.FlowIDs, flow.ID)
	}
	resp.FlowsMatched = len(resp.FlowIDs)

	h.logger.Info("webhook accepted",
		"topic", topic,
		"external_event_id", externalEventID,
		"flows_matched", resp.FlowsMatched,
	)
	Accepted(w, resp)
}
