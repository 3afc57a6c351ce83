package service

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cormoran/zmk-module-settings-rpc/src/node"
	"github.com/cormoran/zmk-module-settings-rpc/src/rpc"
	"github.com/cormoran/zmk-module-settings-rpc/src/settings"
	"github.com/cormoran/zmk-module-settings-rpc/src/telemetry"
)

// Service exposes the node over HTTP: a JSON API for diagnostics and the
// binary control-surface call endpoint for UI clients.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	router      *rpc.Router
	mux         *http.ServeMux
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, router *rpc.Router, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		router:      router,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the service mux.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	s.mux.HandleFunc("/settings", s.makeHandler(s.Settings))
	s.mux.HandleFunc("/settings/all", s.makeHandler(s.GetAllSettings))
	s.mux.HandleFunc("/settings/refresh", s.makeHandler(s.RefreshSettings))
	s.mux.HandleFunc("/notifications", s.makeHandler(s.GetNotifications))
	s.mux.HandleFunc("/call", s.makeHandler(s.Call))
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.Handle("/metrics", telemetry.MetricsHandler())
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Mux returns the service mux, so the API can also be mounted into another
// server in the same process.
func (s *Service) Mux() *http.ServeMux {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	err := http.ListenAndServe(s.bindAddress, s.mux)
	if err != nil {
		s.logger.Error(err)
	}
}

// Settings reads or writes the local settings store.
func (s *Service) Settings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		current := s.node.GetSettings()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]uint32{
			"idle_ms":  current.IdleMs,
			"sleep_ms": current.SleepMs,
		})

	case http.MethodPost:
		var req struct {
			IdleMs  uint32 `json:"idle_ms"`
			SleepMs uint32 `json:"sleep_ms"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		err := s.node.SetSettings(settings.ActivitySettings{
			IdleMs:  req.IdleMs,
			SleepMs: req.SleepMs,
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"success": err == nil})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// GetAllSettings runs a blocking collection round and returns the entries
// with the consistency verdict.
func (s *Service) GetAllSettings(w http.ResponseWriter, r *http.Request) {
	result, err := s.node.CollectAll()
	if err != nil {
		s.logger.WithError(err).Error("Collecting settings")

		status := http.StatusInternalServerError
		if err == node.ErrCollectBusy {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// RefreshSettings triggers the fan-out protocol and returns immediately.
func (s *Service) RefreshSettings(w http.ResponseWriter, r *http.Request) {
	session, err := s.node.RefreshAll()
	if err != nil {
		s.logger.WithError(err).Error("Refreshing settings")

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"request_sent": true,
		"session":      session,
	})
}

// GetNotifications drains and returns the buffered settings notifications.
func (s *Service) GetNotifications(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.Notifier().Drain())
}

// Call is the binary control-surface endpoint: the request body is a raw
// call payload, the response body a raw response payload.
func (s *Service) Call(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(s.router.HandleCall(payload))
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.Peers().Peers)
}
