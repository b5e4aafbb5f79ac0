package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"adminkit/internal/filter"
	"adminkit/internal/migration"
	"adminkit/internal/permission"
	"adminkit/internal/store"
)

const (
	defaultPerPage = 25
	maxPerPage     = 100
)

type Handler struct {
	store  *store.Store
	perms  *permission.SQLStore
	runner *migration.Runner
	loc    *time.Location

	// Serializes runner calls from concurrent requests.
	migrateMu sync.Mutex
}

func NewHandler(s *store.Store, perms *permission.SQLStore, runner *migration.Runner, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{store: s, perms: perms, runner: runner, loc: loc}
}

// RegisterAdminRoutes mounts the admin API under /api/_admin and returns the
// group so other admin endpoints can share its middleware.
func RegisterAdminRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) fiber.Router {
	admin := app.Group("/api/_admin", middleware...)

	admin.Get("/roles", h.ListRoles)
	admin.Get("/roles/:name", h.GetRole)
	admin.Get("/permissions", h.ListPermissions)

	admin.Get("/filters/:kind", h.ListFilters)
	admin.Get("/filters/:kind/:name/options", h.FilterOptions)

	admin.Get("/migrations", h.MigrationStatus)
	admin.Post("/migrations/up", h.MigrateUp)
	admin.Post("/migrations/down", h.MigrateDown)

	return admin
}

// --- Role / Permission Endpoints ---

func (h *Handler) ListRoles(c *fiber.Ctx) error {
	return h.list(c, permission.KindRole)
}

func (h *Handler) ListPermissions(c *fiber.Ctx) error {
	return h.list(c, permission.KindPermission)
}

func (h *Handler) GetRole(c *fiber.Ctx) error {
	name := c.Params("name")
	roles, err := h.perms.FindByNames(c.Context(), permission.KindRole, permission.Name(name))
	if err != nil {
		return fmt.Errorf("get role %s: %w", name, err)
	}
	if len(roles) == 0 {
		return NotFoundError("role", name)
	}

	perms, err := h.perms.PermissionNames(c.Context(), roles[0].ID)
	if err != nil {
		return fmt.Errorf("role %s permissions: %w", name, err)
	}
	if perms == nil {
		perms = []string{}
	}

	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":          roles[0].ID,
		"name":        roles[0].Name,
		"permissions": perms,
	}})
}

func (h *Handler) list(c *fiber.Ctx, kind permission.Kind) error {
	l := h.entityList(kind)
	l.Apply(filter.ValuesFromQuery(c.Queries()))

	page, perPage := pagination(c)
	q := l.Query().OrderBy("name", "ASC")

	cr := q.BuildCount(h.store.Dialect)
	countRow, err := store.QueryRow(c.Context(), h.store.DB, cr.SQL, cr.Params...)
	if err != nil {
		return fmt.Errorf("count %s: %w", kind.Table(), err)
	}

	qr := q.Page(page, perPage).Build(h.store.Dialect)
	rows, err := store.QueryRows(c.Context(), h.store.DB, qr.SQL, qr.Params...)
	if err != nil {
		return fmt.Errorf("list %s: %w", kind.Table(), err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	return c.JSON(fiber.Map{
		"data": rows,
		"meta": fiber.Map{
			"page":     page,
			"per_page": perPage,
			"total":    countRow["count"],
		},
	})
}

// entityList is the filter set shared by the role and permission lists.
func (h *Handler) entityList(kind permission.Kind) *filter.List {
	q := filter.NewQuery(kind.Table())
	q.Columns = []string{"id", "name", "created_at", "updated_at"}

	names := func(ctx context.Context) (map[string]string, error) {
		entities, err := h.perms.List(ctx, kind)
		if err != nil {
			return nil, err
		}
		opts := make(map[string]string, len(entities))
		for _, e := range entities {
			opts[e.Name] = e.Name
		}
		return opts, nil
	}

	l := filter.NewList(q, h.loc)
	l.AddStartsWithFilter("name")
	l.AddNamesFilter("exclude", names, filter.WithColumn("name"), filter.Exclude())
	l.AddTextFilter("id", filter.WithLabel("ID"))
	l.AddDateRangeFilter("created_at", filter.WithLabel("Created"), filter.DateTimeValues())
	l.AddDateRangeFilter("updated_at", filter.WithLabel("Updated"), filter.DateTimeValues())
	return l
}

// --- Filter Endpoints ---

func (h *Handler) ListFilters(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.entityList(kind).Descriptors()})
}

func (h *Handler) FilterOptions(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	name := c.Params("name")
	opts, err := h.entityList(kind).Options(c.Context(), name)
	if errors.Is(err, filter.ErrUnknownFilter) {
		return NotFoundError("filter", name)
	}
	if err != nil {
		return fmt.Errorf("filter %s options: %w", name, err)
	}
	if opts == nil {
		opts = map[string]string{}
	}
	return c.JSON(fiber.Map{"data": opts})
}

// --- Migration Endpoints ---

func (h *Handler) MigrationStatus(c *fiber.Ctx) error {
	h.migrateMu.Lock()
	defer h.migrateMu.Unlock()

	st, err := h.runner.Status(c.UserContext())
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return c.JSON(fiber.Map{"data": st})
}

func (h *Handler) MigrateUp(c *fiber.Ctx) error {
	h.migrateMu.Lock()
	defer h.migrateMu.Unlock()

	applied, err := h.runner.Up(c.UserContext())
	if err != nil {
		return migrationError(err)
	}
	if applied == nil {
		applied = []string{}
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"applied": applied}})
}

func (h *Handler) MigrateDown(c *fiber.Ctx) error {
	steps := c.QueryInt("steps", 1)

	h.migrateMu.Lock()
	defer h.migrateMu.Unlock()

	reverted, err := h.runner.Down(c.UserContext(), steps)
	if err != nil {
		return migrationError(err)
	}
	if reverted == nil {
		reverted = []string{}
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"reverted": reverted}})
}

func migrationError(err error) error {
	switch {
	case errors.Is(err, migration.ErrUnknownMigration):
		return NewAppError("CONFLICT", 409, err.Error())
	case errors.Is(err, permission.ErrPermissionNotFound):
		return NewAppError("VALIDATION_FAILED", 422, err.Error())
	case errors.Is(err, store.ErrUniqueViolation):
		return NewAppError("CONFLICT", 409, err.Error())
	}
	return err
}

// --- Helpers ---

func kindParam(c *fiber.Ctx) (permission.Kind, error) {
	switch c.Params("kind") {
	case "roles":
		return permission.KindRole, nil
	case "permissions":
		return permission.KindPermission, nil
	}
	return "", NewAppError("UNKNOWN_ENTITY", 404, fmt.Sprintf("Unknown entity: %s", c.Params("kind")))
}

func pagination(c *fiber.Ctx) (int, int) {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	perPage := c.QueryInt("per_page", defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}
