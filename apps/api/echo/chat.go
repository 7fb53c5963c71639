package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core/chat"
	"github.com/trezcool/hackcamp/core/user"
)

type chatApi struct {
	svc      chat.ServiceInterface
	usrSvc   user.ServiceInterface
	hub      *chat.Hub
	validate *validator.Validate
}

func registerChatAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc chat.ServiceInterface,
	usrSvc user.ServiceInterface,
	hub *chat.Hub,
	validate *validator.Validate,
) {
	api := chatApi{
		svc:      svc,
		usrSvc:   usrSvc,
		hub:      hub,
		validate: validate,
	}

	cg := g.Group("/chat")
	cg.GET("/ws", api.serveWS, auth.queryMiddleware())

	ag := cg.Group("/channels", jwt)
	ag.GET("", api.listChannels)
	ag.POST("", api.createChannel, adminMiddleware())
	ag.GET("/:id", api.retrieveChannel)
	ag.PUT("/:id", api.updateChannel, adminMiddleware())
	ag.DELETE("/:id", api.destroyChannel, adminMiddleware())
	ag.GET("/:id/messages", api.messages)
	ag.POST("/:id/messages", api.postMessage)
	ag.DELETE("/:id/messages/:mid", api.destroyMessage)
	ag.POST("/:id/read", api.markRead)
}

func (api *chatApi) listChannels(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	channels, err := api.svc.ListChannels(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing channels")
	}
	if channels == nil {
		channels = []chat.ChannelSummary{}
	}
	return ctx.JSON(http.StatusOK, channels)
}

func (api *chatApi) createChannel(ctx echo.Context) error {
	var data chat.NewChannel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChannel")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	creator, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ch, err := api.svc.CreateChannel(ctx.Request().Context(), data, creator)
	if err != nil {
		return errors.Wrap(err, "creating channel")
	}
	return ctx.JSON(http.StatusCreated, ch)
}

func (api *chatApi) retrieveChannel(ctx echo.Context) error {
	ch, err := api.svc.GetChannel(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding channel")
	}
	return ctx.JSON(http.StatusOK, ch)
}

func (api *chatApi) updateChannel(ctx echo.Context) error {
	ch, err := api.svc.GetChannel(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding channel")
	}

	var data chat.NewChannel
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChannel")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if ch, err = api.svc.UpdateChannel(ctx.Request().Context(), ch, data); err != nil {
		return errors.Wrap(err, "updating channel")
	}
	return ctx.JSON(http.StatusOK, ch)
}

func (api *chatApi) destroyChannel(ctx echo.Context) error {
	if err := api.svc.DeleteChannel(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting channel")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *chatApi) messages(ctx echo.Context) error {
	var query chat.MessageQuery
	err := echo.QueryParamsBinder(ctx).
		Time("before", &query.Before, "2006-01-02T15:04:05Z07:00").
		Int("limit", &query.Limit).
		BindError()
	if err != nil {
		return errors.Wrap(err, "binding to MessageQuery")
	}

	msgs, err := api.svc.Messages(ctx.Request().Context(), ctx.Param("id"), query)
	if err != nil {
		return errors.Wrap(err, "querying messages")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *chatApi) postMessage(ctx echo.Context) error {
	var data chat.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	author, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	msg, err := api.svc.PostMessage(ctx.Request().Context(), ctx.Param("id"), author, data)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *chatApi) destroyMessage(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteMessage(ctx.Request().Context(), ctx.Param("id"), ctx.Param("mid"), actor); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *chatApi) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.MarkRead(ctx.Request().Context(), ctx.Param("id"), usr); err != nil {
		return errors.Wrap(err, "marking channel read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *chatApi) serveWS(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.hub.Serve(ctx.Response(), ctx.Request(), claims.Subject); err != nil {
		// the upgrader already replied
		ctx.Logger().Warn(err)
	}
	return nil
}
