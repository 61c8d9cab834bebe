package walk

import (
	"errors"

	"spotwalk/internal/shared/geo"
	"spotwalk/internal/spot"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/presets", func(c *fiber.Ctx) error {
		return c.JSON(svc.Rules().Presets())
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req StartRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		snap, err := svc.Start(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(snap)
	})

	r.Get("/current", func(c *fiber.Ctx) error {
		snap, err := svc.Current()
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Get("/current/hint", func(c *fiber.Ctx) error {
		hint, err := svc.Hint()
		if err != nil {
			return httpError(err)
		}
		return c.JSON(hint)
	})

	r.Post("/current/spots/:id/replace", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.ReplaceSpot(c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/current/finish", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.Finish(c.Context())
		if err != nil && !errors.Is(err, ErrPersistence) {
			return httpError(err)
		}
		body := fiber.Map{"session": snap, "persisted": err == nil}
		if err != nil {
			body["error"] = err.Error()
		}
		return c.JSON(body)
	})

	r.Post("/current/quit", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.Quit()
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, geo.ErrInvalidCoordinate):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, spot.ErrDomain):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrLocationUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrSpotNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrSessionActive), errors.Is(err, ErrNotActive),
		errors.Is(err, ErrSpotVisited), errors.Is(err, ErrNotTimed), errors.Is(err, ErrNotConfiguring):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
