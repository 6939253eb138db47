/*
Package handler provides the HTTP handler for WebSocket connection upgrading.

This file contains HandleWebSocket, which rate limits the handshake, authenticates
the caller, upgrades the HTTP connection to WebSocket, and starts the client
lifecycle: presence registration and the read/write pumps.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"marketchat/internal/app/realtime"
	"marketchat/internal/app/user"
	"marketchat/internal/pkg/auth/jwt"
	"marketchat/internal/pkg/errs"
	"marketchat/internal/pkg/limiter"
	"marketchat/internal/pkg/logx"
	"marketchat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc that processes WebSocket connection requests.
// Browsers cannot set headers on a WebSocket handshake, so the identity token is
// accepted via the "token" query parameter as well as the Authorization header.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			if authHeader := r.Header.Get("Authorization"); len(authHeader) > 7 && authHeader[:7] == "Bearer " {
				tokenString = authHeader[7:]
			}
		}

		if tokenString == "" {
			logx.Warn("WebSocket request rejected: Missing identity token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		payload, err := jwt.ParseToken(tokenString, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket request rejected: Invalid identity token", "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		currentUser := user.User{
			ID:       payload.ID,
			Nickname: payload.Nickname,
			Role:     payload.Role,
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := realtime.NewClient(deps.Hub, conn, currentUser)

		go client.WritePump()

		deps.Hub.Register(client)

		logx.Info("WebSocket connection established and client registered", "client_id", currentUser.ID)

		client.ReadPump()
	}
}
