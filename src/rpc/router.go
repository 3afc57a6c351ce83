package rpc

import (
	"github.com/sirupsen/logrus"

	"github.com/cormoran/zmk-module-settings-rpc/src/node"
	"github.com/cormoran/zmk-module-settings-rpc/src/settings"
)

// Router decodes control-surface calls, dispatches them to the node, and
// encodes responses. Every failure path degrades to a well-formed response;
// nothing here can fail a call at the transport level.
type Router struct {
	node   *node.Node
	logger *logrus.Entry
}

// NewRouter ...
func NewRouter(n *node.Node, logger *logrus.Entry) *Router {
	return &Router{
		node:   n,
		logger: logger,
	}
}

// HandleCall processes one binary request and always returns a response
// payload.
func (r *Router) HandleCall(payload []byte) []byte {
	if len(payload) < 1 {
		return r.errorResponse("empty request")
	}

	kind, body := payload[0], payload[1:]

	switch kind {
	case KindGetActivitySettings:
		return r.handleGet(body)
	case KindSetActivitySettings:
		return r.handleSet(body)
	case KindGetAllActivitySettings:
		return r.handleGetAll(body)
	case KindRefreshAllActivitySettings:
		return r.handleRefreshAll(body)
	default:
		r.logger.WithField("kind", kind).Warn("Unsupported settings request kind")
		return r.errorResponse("unsupported request kind")
	}
}

func (r *Router) handleGet(body []byte) []byte {
	var req GetActivitySettingsRequest
	if err := decodeBody(body, &req); err != nil {
		r.logger.WithField("error", err).Warn("Failed to decode settings request")
		return r.errorResponse("failed to decode request")
	}

	current := r.node.GetSettings()

	r.logger.WithFields(logrus.Fields{
		"idle_ms":  current.IdleMs,
		"sleep_ms": current.SleepMs,
	}).Debug("Get activity settings")

	return r.respond(KindGetActivitySettings, &GetActivitySettingsResponse{
		IdleMs:  current.IdleMs,
		SleepMs: current.SleepMs,
	})
}

func (r *Router) handleSet(body []byte) []byte {
	var req SetActivitySettingsRequest
	if err := decodeBody(body, &req); err != nil {
		r.logger.WithField("error", err).Warn("Failed to decode settings request")
		return r.errorResponse("failed to decode request")
	}

	err := r.node.SetSettings(settings.ActivitySettings{
		IdleMs:  req.IdleMs,
		SleepMs: req.SleepMs,
	})
	if err != nil {
		// A rejected value is a normal outcome, not a call failure.
		r.logger.WithFields(logrus.Fields{
			"idle_ms":  req.IdleMs,
			"sleep_ms": req.SleepMs,
			"error":    err,
		}).Warn("Rejected activity settings")
		return r.respond(KindSetActivitySettings, &SetActivitySettingsResponse{Success: false})
	}

	return r.respond(KindSetActivitySettings, &SetActivitySettingsResponse{Success: true})
}

func (r *Router) handleGetAll(body []byte) []byte {
	var req GetAllActivitySettingsRequest
	if err := decodeBody(body, &req); err != nil {
		r.logger.WithField("error", err).Warn("Failed to decode settings request")
		return r.errorResponse("failed to decode request")
	}

	result, err := r.node.CollectAll()
	if err != nil {
		return r.errorResponse(err.Error())
	}

	resp := &GetAllActivitySettingsResponse{
		Entries: []SettingsEntry{},
		InSync:  result.InSync,
	}
	for _, e := range result.Entries {
		resp.Entries = append(resp.Entries, SettingsEntry{
			IdleMs:  e.Settings.IdleMs,
			SleepMs: e.Settings.SleepMs,
			Source:  uint8(e.Source),
		})
	}

	return r.respond(KindGetAllActivitySettings, resp)
}

func (r *Router) handleRefreshAll(body []byte) []byte {
	var req RefreshAllActivitySettingsRequest
	if err := decodeBody(body, &req); err != nil {
		r.logger.WithField("error", err).Warn("Failed to decode settings request")
		return r.errorResponse("failed to decode request")
	}

	session, err := r.node.RefreshAll()
	if err != nil {
		return r.errorResponse(err.Error())
	}

	return r.respond(KindRefreshAllActivitySettings, &RefreshAllActivitySettingsResponse{
		RequestSent: true,
		Session:     session,
	})
}

func (r *Router) respond(kind uint8, body interface{}) []byte {
	payload, err := encodePayload(kind, body)
	if err != nil {
		r.logger.WithField("error", err).Error("Failed to encode response")
		return r.errorResponse("failed to encode response")
	}
	return payload
}

func (r *Router) errorResponse(message string) []byte {
	payload, err := encodePayload(KindError, &ErrorResponse{Message: message})
	if err != nil {
		// Nothing left to encode with; a bare error kind is still a
		// well-formed response.
		return []byte{KindError}
	}
	return payload
}
