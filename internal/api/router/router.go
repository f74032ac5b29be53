package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/exitpal/exitpal/internal/api/handlers/message"
	"github.com/exitpal/exitpal/internal/api/handlers/telephony"
	"github.com/exitpal/exitpal/internal/api/handlers/webhook"
	"github.com/exitpal/exitpal/internal/middlewares"
)

func New(
	messages *message.Handler,
	tel *telephony.Handler,
	hooks *webhook.Handler,
) *ginext.Engine {
	e := ginext.New()
	e.Use(middlewares.CORSMiddleware())
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	api := e.Group("/api")
	{
		api.POST("/schedule", messages.Schedule)
		api.GET("/messages", messages.List)
		api.GET("/messages/:id/status", messages.GetStatus)
		api.DELETE("/messages/:id", messages.Cancel)
		api.GET("/messages/ws", messages.Stream)
		api.GET("/usage", messages.Usage)

		api.POST("/send-sms", tel.SendSMS)
		api.POST("/send-voice", tel.SendVoice)
		api.GET("/twiml", tel.TwiML)
		api.GET("/ncco", tel.NCCO)

		api.POST("/webhook/sms", hooks.SMS)
		api.POST("/webhook/voice", hooks.Voice)
	}

	return e
}
