package live

import (
	"context"
	"errors"
	"time"

	"github.com/Sabathrodriguez/trunV3/internal/shared/geo"
	"github.com/Sabathrodriguez/trunV3/internal/shared/ratelimit"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type startRequest struct {
	Coordinates []geo.Point `json:"coordinates" validate:"dive"`
}

type locationRequest struct {
	Lat           float64 `json:"lat" validate:"min=-90,max=90"`
	Lon           float64 `json:"lon" validate:"min=-180,max=180"`
	DistanceMiles float64 `json:"distance_miles" validate:"gte=0"`
	Pace          string  `json:"pace"`
}

// RegisterRoutes wires the live-session surface. Sessions run longer than
// any one request, so channel work uses a background context rather than the
// request's. The rank func orders snapshots for display; nil leaves them in
// join order.
func RegisterRoutes(r fiber.Router, reg *Registry, limiter *ratelimit.PerKey, rank func([]Participant) []Participant, authMiddleware fiber.Handler) {
	r.Post("/:routeKey/session", authMiddleware, func(c *fiber.Ctx) error {
		var req startRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		userID, _ := c.Locals("user_id").(string)
		routeKey := c.Params("routeKey")

		err := reg.Session(userID).Start(context.Background(), routeKey, req.Coordinates)
		if errors.Is(err, ErrNoIdentity) {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"route_key": routeKey})
	})

	r.Post("/:routeKey/location", authMiddleware, func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		userID, _ := c.Locals("user_id").(string)
		if !limiter.Allow(userID, time.Now()) {
			return fiber.NewError(fiber.StatusTooManyRequests, "publishing too fast")
		}

		session := reg.Session(userID)
		routeKey, active := session.Active()
		if !active || routeKey != c.Params("routeKey") {
			return fiber.NewError(fiber.StatusConflict, "no active session for route")
		}

		session.Publish(context.Background(), Fix{
			Lat:           req.Lat,
			Lon:           req.Lon,
			DistanceMiles: req.DistanceMiles,
			Pace:          req.Pace,
		})
		return c.SendStatus(fiber.StatusAccepted)
	})

	r.Delete("/:routeKey/session", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		reg.Session(userID).Stop(context.Background())
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:routeKey/participants", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		session := reg.Session(userID)

		routeKey, active := session.Active()
		if !active || routeKey != c.Params("routeKey") {
			return fiber.NewError(fiber.StatusConflict, "no active session for route")
		}

		parts := session.Participants()
		if rank != nil {
			parts = rank(parts)
		}
		return c.JSON(parts)
	})
}
