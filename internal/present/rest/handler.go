package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	doci "github.com/fronsciers/doci-gateway"
	"github.com/fronsciers/doci-gateway/internal/domain"
	"github.com/fronsciers/doci-gateway/internal/present/rest/presenter"
	"github.com/fronsciers/doci-gateway/internal/service"
	"github.com/fronsciers/doci-gateway/internal/usecase"
	"github.com/fronsciers/doci-gateway/internal/utils"
)

type Handler struct {
	config     domain.Config
	identifier *usecase.IdentifierUsecase
	escrow     *usecase.EscrowUsecase
	signal     *service.SignalService
}

func NewHandler(
	config domain.Config,
	identifier *usecase.IdentifierUsecase,
	escrow *usecase.EscrowUsecase,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		config:     config,
		identifier: identifier,
		escrow:     escrow,
		signal:     signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/doci", h.handleWellKnown)
	e.GET("/resolve/:prefix/:suffix", h.handleResolve)
	e.POST("/identifiers", h.handleRegister)
	e.PATCH("/identifiers/:prefix/:suffix", h.handleUpdate)
	e.POST("/identifiers/:prefix/:suffix/revoke", h.handleRevoke)
	e.GET("/identifiers/:prefix/:suffix/events", h.handleEvents)
	e.POST("/escrows", h.handleEscrowCreate)
	e.GET("/escrows/:id", h.handleEscrowGet)
	e.POST("/escrows/:id/fund", h.handleEscrowFund)
	e.POST("/escrows/:id/approve", h.handleEscrowApprove)
	e.POST("/escrows/:id/release", h.handleEscrowRelease)
	e.POST("/escrows/:id/refund", h.handleEscrowRefund)
	e.GET("/realtime", h.handleRealtime)
}

// requesterAccount is empty for anonymous requests.
func requesterAccount(c echo.Context) string {
	if account, ok := c.Request().Context().Value(domain.RequesterAccountCtxKey).(string); ok {
		return account
	}
	return ""
}

type wellKnownResponse struct {
	Version          string                                `json:"version"`
	Domain           string                                `json:"domain"`
	GatewayAccount   string                                `json:"gatewayAccount"`
	ResearcherPrefix string                                `json:"researcherPrefix"`
	Endpoints        utils.OrderedKVMap[doci.DociEndpoint] `json:"endpoints"`
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := wellKnownResponse{
		Version:          "1.0",
		Domain:           h.config.FQDN,
		GatewayAccount:   h.config.GatewayAccount,
		ResearcherPrefix: h.config.ResearcherPrefix,
		Endpoints: utils.OrderedKVMap[doci.DociEndpoint]{
			"org.fronsciers.doci.resolve": {
				Order: 0,
				Value: doci.DociEndpoint{Template: "/resolve/{prefix}/{suffix}", Method: "GET"},
			},
			"org.fronsciers.doci.register": {
				Order: 1,
				Value: doci.DociEndpoint{Template: "/identifiers", Method: "POST"},
			},
			"org.fronsciers.doci.update": {
				Order: 2,
				Value: doci.DociEndpoint{Template: "/identifiers/{prefix}/{suffix}", Method: "PATCH"},
			},
			"org.fronsciers.doci.revoke": {
				Order: 3,
				Value: doci.DociEndpoint{Template: "/identifiers/{prefix}/{suffix}/revoke", Method: "POST"},
			},
			"org.fronsciers.doci.events": {
				Order: 4,
				Value: doci.DociEndpoint{Template: "/identifiers/{prefix}/{suffix}/events", Method: "GET", Query: &[]string{"limit"}},
			},
			"org.fronsciers.doci.escrow": {
				Order: 5,
				Value: doci.DociEndpoint{Template: "/escrows", Method: "POST"},
			},
			"org.fronsciers.doci.realtime": {
				Order: 6,
				Value: doci.DociEndpoint{Template: "/realtime", Method: "GET"},
			},
		},
	}
	return presenter.OK(c, wellknown)
}

type resolveResponse struct {
	Exists bool              `json:"exists"`
	Kind   domain.Kind       `json:"kind"`
	Data   domain.Identifier `json:"data"`
}

func (h *Handler) handleResolve(c echo.Context) error {
	ctx := c.Request().Context()

	resolution, err := h.identifier.Resolve(ctx, c.Param("prefix"), c.Param("suffix"), c.RealIP())
	if err != nil {
		return presenter.ResolveError(c, err)
	}

	return presenter.OK(c, resolveResponse{
		Exists: true,
		Kind:   resolution.Kind,
		Data:   resolution.Record,
	})
}

type registerRequest struct {
	Kind            string         `json:"kind"`
	NamespacePrefix string         `json:"namespacePrefix"`
	Suffix          string         `json:"suffix"`
	Metadata        map[string]any `json:"metadata"`
	Anchor          bool           `json:"anchor"`
}

func (h *Handler) handleRegister(c echo.Context) error {
	ctx := c.Request().Context()

	requester := requesterAccount(c)
	if h.config.Registration == "close" && requester != h.config.GatewayAccount {
		return presenter.Unauthorized(c, "registration is closed on this gateway")
	}

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "invalid request body")
	}

	created, err := h.identifier.Register(ctx, usecase.RegisterInput{
		Kind:   req.Kind,
		Prefix: req.NamespacePrefix,
		Suffix: req.Suffix,
		Owner:  requester,
		Meta:   req.Metadata,
		Anchor: req.Anchor,
	})
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.Created(c, created)
}

func (h *Handler) handleUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	var patch map[string]any
	if err := c.Bind(&patch); err != nil {
		return presenter.BadRequestMessage(c, "invalid request body")
	}

	updated, err := h.identifier.Update(ctx, c.Param("prefix"), c.Param("suffix"), requesterAccount(c), patch)
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.OK(c, updated)
}

func (h *Handler) handleRevoke(c echo.Context) error {
	ctx := c.Request().Context()

	err := h.identifier.Revoke(ctx, c.Param("prefix"), c.Param("suffix"), requesterAccount(c))
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleEvents(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 10
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limitInt, err := strconv.Atoi(limitStr)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid limit parameter")
		}
		limit = limitInt
	}
	if limit > 100 {
		limit = 100
	}

	events, count, err := h.identifier.Events(ctx, c.Param("prefix"), c.Param("suffix"), limit)
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.OK(c, echo.Map{
		"count":  count,
		"events": events,
	})
}

type escrowCreateRequest struct {
	ManuscriptRef     string `json:"manuscriptRef"`
	Amount            int64  `json:"amount"`
	RequiredApprovals int    `json:"requiredApprovals"`
}

func (h *Handler) handleEscrowCreate(c echo.Context) error {
	ctx := c.Request().Context()

	var req escrowCreateRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "invalid request body")
	}

	account, err := h.escrow.Initialize(ctx, requesterAccount(c), req.ManuscriptRef, req.Amount, req.RequiredApprovals)
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.Created(c, account)
}

func (h *Handler) handleEscrowGet(c echo.Context) error {
	ctx := c.Request().Context()

	account, err := h.escrow.Get(ctx, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.OK(c, account)
}

type escrowFundRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) handleEscrowFund(c echo.Context) error {
	ctx := c.Request().Context()

	if requesterAccount(c) == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	var req escrowFundRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "invalid request body")
	}

	account, err := h.escrow.Fund(ctx, c.Param("id"), req.Amount)
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.OK(c, account)
}

func (h *Handler) handleEscrowApprove(c echo.Context) error {
	ctx := c.Request().Context()

	account, err := h.escrow.Approve(ctx, c.Param("id"), requesterAccount(c))
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.OK(c, account)
}

func (h *Handler) handleEscrowRelease(c echo.Context) error {
	ctx := c.Request().Context()

	if requesterAccount(c) == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	account, err := h.escrow.Release(ctx, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.OK(c, account)
}

func (h *Handler) handleEscrowRefund(c echo.Context) error {
	ctx := c.Request().Context()

	if requesterAccount(c) == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	account, err := h.escrow.Refund(ctx, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.OK(c, account)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type     string   `json:"type"`
	Prefixes []string `json:"prefixes"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan doci.Event)

	go h.signal.Realtime(ctx, input, output)

	go func() {
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				cancel()
				break
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Prefixes:
					slog.DebugContext(
						ctx, fmt.Sprintf("Socket subscribe: %s", req.Prefixes),
						slog.String("module", "socket"),
					)
				case <-ctx.Done():
					return
				}
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
