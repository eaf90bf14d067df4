package echoportal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/notification"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type notificationHandlers struct {
	center *notification.Center
	logger core.Logger
}

func registerNotificationRoutes(g *echo.Group, deps ServerDeps) {
	h := notificationHandlers{center: deps.Notifications, logger: deps.Logger}
	g.GET("", h.toastDrain)
	g.GET("/history", h.toastHistory)
	g.GET("/ws", h.toastStream)
}

// toastDrain returns the toasts the user has not seen yet.
func (h *notificationHandlers) toastDrain(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, h.center.Drain(usr.Key()))
}

func (h *notificationHandlers) toastHistory(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))

	toasts, err := h.center.History(ctx.Request().Context(), usr.Key(), limit)
	if err != nil {
		return errors.Wrap(err, "querying toast history")
	}
	return ctx.JSON(http.StatusOK, toasts)
}

// toastStream pushes the user's toasts as they are shown, until the socket is closed.
func (h *notificationHandlers) toastStream(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		h.logger.Warn("upgrading connection to websocket failed", err)
		return nil // the upgrader already answered
	}
	defer conn.Close()

	toasts, unsubscribe := h.center.Subscribe(usr.Key())
	defer unsubscribe()

	// flush what was queued before the socket opened
	for _, t := range h.center.Drain(usr.Key()) {
		if err = writeToast(conn, t); err != nil {
			return nil
		}
	}

	done := make(chan struct{})
	go readPump(conn, done, h.logger)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return nil
		case t, ok := <-toasts:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(wsWriteWait))
				return nil
			}
			if err = writeToast(conn, t); err != nil {
				return nil
			}
		case <-ticker.C:
			if err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return nil
			}
		}
	}
}

// readPump discards incoming messages, keeping the connection alive until the client leaves.
func readPump(conn *websocket.Conn, done chan<- struct{}, logger core.Logger) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("unexpected websocket close", err)
			}
			return
		}
	}
}

func writeToast(conn *websocket.Conn, t notification.Toast) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(t)
}
