package web

import (
	"github.com/dukex/dripflow/pkg/eventbus"
	"github.com/dukex/dripflow/pkg/events"
	"github.com/dukex/dripflow/pkg/models"
	"github.com/gofiber/fiber/v3"
)

// TrackClick records the click carried by a signed token and redirects to the original link.
func (h *APIHandlers) TrackClick(c fiber.Ctx) error {
	claims, err := h.signer.VerifyClick(c.Params("token"))
	if err != nil {
		h.logger.Warn("Rejected click token", "error", err)

		return notFound(c, "unknown link")
	}

	click := &models.Click{
		LeadID:    claims.LeadID,
		EmailID:   claims.EmailID,
		URL:       claims.URL,
		ClickedAt: h.clock.Now().UTC(),
	}

	err = h.persistence.TrackingRepository().RecordClick(c.Context(), click)
	if err != nil {
		h.logger.Error("Failed to record click", "lead_id", claims.LeadID, "email_id", claims.EmailID, "error", err)
	} else {
		h.publish(c, claims.LeadID, events.LinkClicked{
			BaseEvent: events.NewBaseEvent(events.LinkClickedEvent, ""),
			LeadID:    claims.LeadID,
			EmailID:   claims.EmailID,
			URL:       claims.URL,
		})
	}

	return c.Redirect().Status(fiber.StatusFound).To(claims.URL)
}

func (h *APIHandlers) Unsubscribe(c fiber.Ctx) error {
	claims, err := h.signer.VerifyUnsubscribe(c.Query("token"))
	if err != nil {
		return badRequest(c, "invalid unsubscribe token")
	}

	err = h.persistence.LeadRepository().MarkUnsubscribed(c.Context(), claims.LeadID)
	if err != nil {
		return handleServiceError(c, err)
	}

	h.logger.Info("Lead unsubscribed", "lead_id", claims.LeadID)

	h.publish(c, claims.LeadID, events.LeadUnsubscribed{
		BaseEvent: events.NewBaseEvent(events.LeadUnsubscribedEvent, ""),
		LeadID:    claims.LeadID,
	})

	return c.SendString("You have been unsubscribed.")
}

func (h *APIHandlers) RecordReply(c fiber.Ctx) error {
	var req ReplyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	_, err := h.persistence.LeadRepository().GetByID(c.Context(), req.LeadID)
	if err != nil {
		return handleServiceError(c, err)
	}

	reply := &models.Reply{
		LeadID:     req.LeadID,
		EmailID:    req.EmailID,
		MessageID:  req.MessageID,
		Snippet:    req.Snippet,
		ReceivedAt: h.clock.Now().UTC(),
	}

	if req.ReceivedAt != nil {
		reply.ReceivedAt = req.ReceivedAt.UTC()
	}

	err = h.persistence.TrackingRepository().RecordReply(c.Context(), reply)
	if err != nil {
		return internalError(c, err)
	}

	h.publish(c, req.LeadID, events.ReplyReceived{
		BaseEvent: events.NewBaseEvent(events.ReplyReceivedEvent, ""),
		LeadID:    req.LeadID,
		EmailID:   req.EmailID,
	})

	return c.Status(fiber.StatusCreated).JSON(reply)
}

func (h *APIHandlers) publish(c fiber.Ctx, key string, event eventbus.Event) {
	if h.publisher == nil {
		return
	}

	err := h.publisher.Publish(c.Context(), key, event)
	if err != nil {
		h.logger.Error("Failed to publish event", "event_type", event.GetType(), "lead_id", key, "error", err)
	}
}
