package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Get("/ws/:routeKey", websocket.New(func(c *websocket.Conn) {
		routeKey := c.Params("routeKey")
		viewer := hub.Register(routeKey)
		defer hub.Unregister(viewer)

		done := make(chan struct{})
		go func() {
			for msg := range viewer.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		<-done
	}))
}
