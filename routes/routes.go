package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/Dosada05/escalation-league/handlers"
	"github.com/Dosada05/escalation-league/middleware"
	"github.com/Dosada05/escalation-league/models"
)

// Deps собирает хендлеры и middleware, нужные для построения роутера.
type Deps struct {
	Auth      *middleware.Auth
	Pods      *handlers.PodHandler
	Pairing   *handlers.PairingHandler
	WebSocket *handlers.WebSocketHandler

	// RequestsPerMinute ограничивает частоту запросов с одного IP.
	RequestsPerMinute int
	AllowedOrigins    []string
}

func SetupRoutes(deps Deps) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	perMinute := deps.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 100
	}
	router.Use(httprate.LimitByIP(perMinute, time.Minute))

	// Все маршруты подов требуют аутентификации.
	router.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.Route("/leagues/{leagueID}", func(r chi.Router) {
			r.Get("/pods", deps.Pods.ListPods)
			r.Post("/pods", deps.Pods.CreatePod)
			r.Post("/pods/suggest", deps.Pairing.SuggestPods)
			r.Get("/matchups", deps.Pairing.LeagueMatchupMatrix)
			r.Get("/players/{playerID}/matchups", deps.Pairing.OpponentMatchups)
		})

		r.Route("/pods/{podID}", func(r chi.Router) {
			r.Get("/", deps.Pods.GetPod)
			r.Post("/join", deps.Pods.JoinPod)
			r.Post("/activate", deps.Pods.ActivatePod)
			r.Post("/result", deps.Pods.DeclareResult)
			r.Post("/confirm", deps.Pods.ConfirmResult)
		})

		r.Get("/ws/leagues/{leagueID}", deps.WebSocket.ServeWs)

		// Админские операции поверх машины состояний.
		r.Route("/admin/pods/{podID}", func(r chi.Router) {
			r.Use(middleware.Authorize(models.RoleAdmin))

			r.Post("/complete", deps.Pods.AdminOverrideComplete)
			r.Patch("/", deps.Pods.AdminEditPod)
			r.Delete("/", deps.Pods.AdminDeletePod)
			r.Delete("/players/{playerID}", deps.Pods.AdminRemoveParticipant)
		})
	})

	return router
}
