package instrument

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"

	"adminkit/internal/filter"
	"adminkit/internal/store"
)

// EventHandler exposes the audit trail to admins.
type EventHandler struct {
	store *store.Store
	loc   *time.Location
}

func NewEventHandler(s *store.Store, loc *time.Location) *EventHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &EventHandler{store: s, loc: loc}
}

// RegisterEventRoutes mounts the event endpoints under r, normally the
// authenticated admin group.
func RegisterEventRoutes(r fiber.Router, h *EventHandler) {
	events := r.Group("/events")
	events.Get("/", h.List)
	events.Get("/stats", h.GetStats)
}

func (h *EventHandler) eventList() *filter.List {
	q := filter.NewQuery("_role_events")
	q.Columns = []string{"id", "action", "subject", "status", "duration_ms", "user_id", "metadata", "created_at"}

	l := filter.NewList(q, h.loc)
	l.AddTextFilter("action")
	l.AddTextFilter("status")
	l.AddTextFilter("user_id", filter.WithLabel("User"))
	l.AddStartsWithFilter("subject", filter.WithLabel("Migration"))
	l.AddDateRangeFilter("created_at", filter.WithLabel("Recorded"), filter.DateTimeValues())
	return l
}

// List handles GET /api/_admin/events with filter[name]=raw parameters.
func (h *EventHandler) List(c *fiber.Ctx) error {
	ctx := c.UserContext()

	l := h.eventList()
	l.Apply(filter.ValuesFromQuery(c.Queries()))

	page := max(c.QueryInt("page", 1), 1)
	perPage := c.QueryInt("per_page", 50)
	if perPage < 1 {
		perPage = 50
	}
	if perPage > 100 {
		perPage = 100
	}

	dir := "DESC"
	if c.Query("sort", "-created_at") == "created_at" {
		dir = "ASC"
	}
	q := l.Query().OrderBy("created_at", dir)

	cr := q.BuildCount(h.store.Dialect)
	countRow, err := store.QueryRow(ctx, h.store.DB, cr.SQL, cr.Params...)
	if err != nil {
		return fmt.Errorf("count events: %w", err)
	}

	qr := q.Page(page, perPage).Build(h.store.Dialect)
	rows, err := store.QueryRows(ctx, h.store.DB, qr.SQL, qr.Params...)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	return c.JSON(fiber.Map{
		"data": rows,
		"meta": fiber.Map{
			"page":     page,
			"per_page": perPage,
			"total":    cast.ToInt(countRow["count"]),
		},
	})
}

// GetStats handles GET /api/_admin/events/stats: counts and mean duration per
// action and status.
func (h *EventHandler) GetStats(c *fiber.Ctx) error {
	rows, err := store.QueryRows(c.UserContext(), h.store.DB,
		`SELECT action, status, COUNT(*) AS count, AVG(duration_ms) AS avg_ms
		 FROM _role_events GROUP BY action, status ORDER BY action, status`)
	if err != nil {
		return fmt.Errorf("event stats: %w", err)
	}

	stats := make([]fiber.Map, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, fiber.Map{
			"action": row["action"],
			"status": row["status"],
			"count":  cast.ToInt(row["count"]),
			"avg_ms": cast.ToFloat64(row["avg_ms"]),
		})
	}
	return c.JSON(fiber.Map{"data": stats})
}
