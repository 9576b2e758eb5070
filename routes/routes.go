package routes

import (
	"github.com/Dosada05/bracket-engine/handlers"
	"github.com/Dosada05/bracket-engine/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes wires every endpoint. Reads are public; anything that mutates
// tournament state beyond a participant's own actions is organizer only.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	resultHandler *handlers.ResultHandler,
	profileHandler *handlers.GameProfileHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	organizerOnly := func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))
		r.Use(middleware.Authorize(middleware.RoleOrganizer))
	}

	router.Route("/game-profiles", func(r chi.Router) {
		r.Get("/{profileID}", profileHandler.GetHandler)

		r.Group(func(r chi.Router) {
			organizerOnly(r)
			r.Post("/", profileHandler.CreateHandler)
		})
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.ListHandler)
		r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)
		r.Get("/{tournamentID}/bracket", tournamentHandler.GetBracketHandler)
		r.Get("/{tournamentID}/matches", matchHandler.ListHandler)
		r.Get("/{tournamentID}/result", resultHandler.GetHandler)

		r.Group(func(r chi.Router) {
			organizerOnly(r)
			r.Post("/", tournamentHandler.CreateHandler)
			r.Post("/{tournamentID}/lock", tournamentHandler.LockHandler)
			r.Delete("/{tournamentID}", tournamentHandler.CancelHandler)
			r.Put("/{tournamentID}/result", resultHandler.OverrideHandler)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.GetHandler)

		// Participant actions carry the participant id in the body; the
		// engine trusts the registration collaborator for identity.
		r.Post("/{matchID}/check-in", matchHandler.CheckInHandler)
		r.Post("/{matchID}/result", matchHandler.SubmitResultHandler)
		r.Post("/{matchID}/dispute", matchHandler.RaiseDisputeHandler)

		r.Group(func(r chi.Router) {
			organizerOnly(r)
			r.Post("/{matchID}/start", matchHandler.StartHandler)
			r.Post("/{matchID}/forfeit", matchHandler.ForfeitHandler)
			r.Delete("/{matchID}", matchHandler.CancelHandler)
		})
	})

	router.Group(func(r chi.Router) {
		organizerOnly(r)
		r.Post("/disputes/{disputeID}/resolve", matchHandler.ResolveDisputeHandler)
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.SubscribeHandler)
}
