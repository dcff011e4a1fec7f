package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/rajivgeraev/sendix-api/internal/utils"
)

// NewUpgrader создает upgrader с проверкой Origin по списку разрешённых
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[strings.TrimRight(origin, "/")]
		},
	}
}

// Handler аутентифицирует соединение по токену из query (?token=) или заголовка
// Authorization и подключает клиента к менеджеру
func Handler(m *Manager, jwtService *utils.JWTService, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		claims, err := jwtService.ParseToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade уже ответил клиенту
			return
		}

		NewClient(claims.UserID, conn, m).Start()
	}
}
