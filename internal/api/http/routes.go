package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"pws-historial/internal/collector"
	"pws-historial/internal/common"
	"pws-historial/internal/config"
	"pws-historial/internal/store"
	"pws-historial/internal/wunderground"
)

var validate = validator.New()

// Fetcher is the slice of the upstream client the façade needs.
type Fetcher interface {
	DailyHistory(ctx context.Context, stationID, dateYYYYMMDD string) (*wunderground.HistoryResponse, error)
}

// Collector triggers one on-demand collection run.
type Collector interface {
	Run(ctx context.Context) (collector.Result, error)
}

// User-facing messages carry over from the original deployment; the stored
// lookup's "No encontrado" body is contractual for existing clients.
const (
	msgMissingStation = "Falta stationId (y no hay valor por defecto)"
	msgMissingDate    = "Falta date en formato YYYYMMDD"
	msgMissingAPIKey  = "Falta WU_API_KEY/CLAVE DE API WU en variables"
	msgUpstreamError  = "Error al consultar Weather.com"
	msgMissingLookup  = "Faltan stationId y/o date"
	msgNotFound       = "No encontrado"
	msgReadError      = "Error leyendo DB"
)

// NoCache disables client caching for the API and history routes so proxies
// never serve a stale observation document.
func NoCache() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := c.Path()
		if strings.HasPrefix(p, "/api") || p == "/history" {
			c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate, proxy-revalidate")
			c.Set("Pragma", "no-cache")
			c.Set("Expires", "0")
		}
		return c.Next()
	}
}

type historyQuery struct {
	StationID string `validate:"required"`
	Date      string `validate:"required,len=8"`
}

type lookupQuery struct {
	StationID string `validate:"required"`
	Date      string `validate:"required"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, cfg *config.Config, fetcher Fetcher, st store.Store, coll Collector) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	// Alias kept for the front-end: same query string, canonical route.
	app.Get("/history", func(c *fiber.Ctx) error {
		qs := string(c.Request().URI().QueryString())
		return c.Redirect("/api/wu/history?"+qs, fiber.StatusFound)
	})

	app.Get("/api/wu/history", func(c *fiber.Ctx) error {
		stationID := strings.TrimSpace(c.Query("stationId"))
		if stationID == "" {
			stationID = cfg.DefaultStation
		}
		q := historyQuery{
			StationID: stationID,
			Date:      strings.TrimSpace(c.Query("date")),
		}
		if err := validate.Struct(q); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": historyValidationMessage(err)})
		}
		if cfg.APIKey == "" {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgMissingAPIKey})
		}

		resp, err := fetcher.DailyHistory(c.UserContext(), q.StationID, q.Date)
		if err != nil {
			slog.Error("weather.com fetch failed", "stationId", q.StationID, "date", q.Date, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   msgUpstreamError,
				"details": err.Error(),
			})
		}

		// Unparseable body: forward upstream status and bytes verbatim and
		// skip storage entirely.
		if resp.Payload == nil {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(resp.StatusCode).Send(resp.Raw)
		}

		// Best-effort persistence. A write failure is logged and swallowed;
		// the client response reflects the upstream outcome, never storage.
		// Background context: a client disconnect must not cancel a write
		// already issued.
		if obsDateISO, convErr := common.CompactToISO(q.Date); convErr == nil {
			if _, err := st.UpsertObservation(context.Background(), q.StationID, obsDateISO, resp.Payload); err != nil {
				slog.Error("guardando en DB", "stationId", q.StationID, "obsDate", obsDateISO, "error", err)
			} else {
				slog.Info("guardado en DB", "stationId", q.StationID, "obsDate", obsDateISO)
			}
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(resp.StatusCode).Send(resp.Payload)
	})

	app.Get("/api/db/daily", func(c *fiber.Ctx) error {
		stationID := strings.TrimSpace(c.Query("stationId"))
		if stationID == "" {
			stationID = cfg.DefaultStation
		}
		q := lookupQuery{
			StationID: stationID,
			Date:      strings.TrimSpace(c.Query("date")),
		}
		if err := validate.Struct(q); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgMissingLookup})
		}

		obsDateISO, err := common.NormalizeISO(q.Date)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgMissingDate})
		}

		payload, err := st.GetObservation(c.UserContext(), q.StationID, obsDateISO)
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msgNotFound})
		}
		if err != nil {
			slog.Error("lectura de DB fallida", "stationId", q.StationID, "obsDate", obsDateISO, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   msgReadError,
				"details": err.Error(),
			})
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(payload)
	})

	app.Get("/cron/daily", func(c *fiber.Ctx) error {
		res, err := coll.Run(c.UserContext())
		if err != nil {
			slog.Error("daily collection failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"ok":    false,
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"ok": true, "result": res})
	})
}

// historyValidationMessage maps a validator error to the message of the first
// field that failed, station first.
func historyValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "StationID" {
				return msgMissingStation
			}
		}
	}
	return msgMissingDate
}
