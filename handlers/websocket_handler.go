package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/escalation-league/middleware"
	"github.com/Dosada05/escalation-league/realtime"
	"github.com/Dosada05/escalation-league/repositories"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: ограничить Origin списком доверенных доменов из конфигурации.
		return true
	},
}

type WebSocketHandler struct {
	hub        *realtime.Hub
	leagueRepo repositories.LeagueRepository
	logger     *slog.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, leagueRepo repositories.LeagueRepository, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, leagueRepo: leagueRepo, logger: logger}
}

// ServeWs подписывает клиента на комнату лиги: /ws/leagues/{leagueID}.
// Подписка разрешена только активным участникам лиги.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	member, err := h.leagueRepo.IsMember(r.Context(), userID, leagueID)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if !member {
		forbiddenResponse(w, r, "user is not an active member of this league")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP-ошибку клиенту.
		h.logger.Warn("failed to upgrade websocket connection",
			slog.Int("league_id", leagueID), slog.Any("error", err))
		return
	}

	h.hub.NewClient(conn, leagueID)
	h.logger.Info("websocket client connected",
		slog.Int("league_id", leagueID), slog.Int("user_id", userID))
}
