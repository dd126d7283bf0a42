package routes

import (
	"github.com/julienschmidt/httprouter"

	"reservio/middleware"
	"reservio/occupancy"
	"reservio/ratelim"
	"reservio/reservations"
	"reservio/rooms"
)

func AddRoomRoutes(router *httprouter.Router, api *rooms.API) {
	router.GET("/api/rooms", api.List)
	router.GET("/api/rooms/:id", api.Get)
	router.GET("/api/rooms/:id/occupancy", api.Occupancy)
	router.POST("/api/rooms", middleware.Authenticate(api.Create))
	router.PUT("/api/rooms/:id", middleware.Authenticate(api.Update))
	router.DELETE("/api/rooms/:id", middleware.Authenticate(api.Delete))
}

func AddReservationRoutes(router *httprouter.Router, api *reservations.API, rl *ratelim.RateLimiter) {
	router.GET("/api/reservations", middleware.OptionalAuth(api.List))
	router.GET("/api/reservations/:id", middleware.OptionalAuth(api.Get))
	router.GET("/api/reservations/:id/pass", middleware.Authenticate(api.PrintPass))
	router.POST("/api/reservations", middleware.Authenticate(rl.Limit(api.Create)))
	router.PUT("/api/reservations/:id", middleware.Authenticate(rl.Limit(api.Update)))
	router.DELETE("/api/reservations/:id", middleware.Authenticate(api.Cancel))
	router.POST("/api/reservations/:id/checkin", middleware.Authenticate(api.CheckIn))
	router.POST("/api/reservations/:id/purge", middleware.Authenticate(api.Delete))
}

func AddOccupancyRoutes(router *httprouter.Router, b *occupancy.Broadcaster) {
	// auth happens inside the socket protocol, not at upgrade time
	router.GET("/ws/occupancy", occupancy.Handler(b))
}
