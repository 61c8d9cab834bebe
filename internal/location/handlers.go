package location

import (
	"spotwalk/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, feed *Feed, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req geo.Coordinate
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		fix, err := feed.Publish(req)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Status(fiber.StatusAccepted).JSON(fix)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		fix, ok := feed.Last()
		if !ok {
			return fiber.NewError(fiber.StatusServiceUnavailable, ErrUnavailable.Error())
		}
		return c.JSON(fix)
	})
}
