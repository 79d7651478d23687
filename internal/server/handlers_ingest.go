package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/serveur-am2025/localisation-server/internal/logging"
	"github.com/serveur-am2025/localisation-server/internal/metrics"
	"github.com/serveur-am2025/localisation-server/internal/protocol"
)

// handleLampUpdate receives one lamp payload over HTTP, normalizes it with
// the wire defaults, and publishes it through the same router entry point
// the websocket path uses.
func (s *Server) handleLampUpdate(c echo.Context) error {
	var body map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil || body == nil {
		metrics.IngestRequestsTotal.WithLabelValues("lampadaire_update", "invalid").Inc()
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "JSON invalide"})
	}

	lampID := protocol.AsString(body["id"])
	if lampID == "" {
		metrics.IngestRequestsTotal.WithLabelValues("lampadaire_update", "invalid").Inc()
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "ID lampadaire requis"})
	}

	lamp := protocol.NormalizeLamp(body, s.clock.Now())
	msg, err := buildFrame(map[string]any{"type": protocol.TypeStateUpdate, "lampadaire": lamp})
	if err != nil {
		metrics.IngestRequestsTotal.WithLabelValues("lampadaire_update", "error").Inc()
		return err
	}
	s.router.Publish(msg)

	logging.WithLamp(lampID).Info("Lampadaire mis à jour")
	metrics.IngestRequestsTotal.WithLabelValues("lampadaire_update", "ok").Inc()
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Lampadaire mis à jour"})
}

// handleAlert receives one alert over HTTP and fans it out to consumers.
func (s *Server) handleAlert(c echo.Context) error {
	var body map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil || body == nil {
		metrics.IngestRequestsTotal.WithLabelValues("alert", "invalid").Inc()
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "JSON invalide"})
	}

	alert := protocol.NormalizeAlert(body, s.clock.Now())
	msg, err := buildFrame(map[string]any{"type": protocol.TypeAlert, "alert": alert})
	if err != nil {
		metrics.IngestRequestsTotal.WithLabelValues("alert", "error").Inc()
		return err
	}
	s.router.Publish(msg)

	slog.Warn("Nouvelle alerte",
		"alert_type", protocol.AsString(body["type"]),
		"lampadaire_id", protocol.AsString(body["lampadaire_id"]),
	)
	metrics.IngestRequestsTotal.WithLabelValues("alert", "ok").Inc()
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Alerte reçue"})
}

// handleLampList serves the last-known snapshot of every producer.
func (s *Server) handleLampList(c echo.Context) error {
	snapshot := s.store.Snapshot()
	return c.JSON(http.StatusOK, map[string]any{
		"lampadaires": snapshot,
		"count":       len(snapshot),
	})
}

func buildFrame(fields map[string]any) (*protocol.Message, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return protocol.Decode(data)
}
