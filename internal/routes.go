package internal

import (
	"bakso/internal/controllers"
	"bakso/internal/providers"
	"bakso/internal/structures"
	"net/http"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/session", http.HandlerFunc(apiController.Login))
	routers.Post("/location", http.HandlerFunc(apiController.Geolocation))
	routers.Get("/nearby", http.HandlerFunc(apiController.Nearby))
	routers.Get("/notifications", http.HandlerFunc(apiController.Notifications))
	routers.Post("/notifications/read", http.HandlerFunc(apiController.MarkAsRead))
	routers.Post("/ping", http.HandlerFunc(apiController.Ping))
	routers.Post("/ping/cancel", http.HandlerFunc(apiController.CancelPing))
	routers.Post("/peer-location", http.HandlerFunc(apiController.PeerLocation))
	routers.Get("/eta", http.HandlerFunc(apiController.Eta))
	routers.Post("/exit", http.HandlerFunc(apiController.Exit))
	return routers
}
