package web

import (
	_ "embed"

	"github.com/gofiber/fiber/v2"
)

//go:embed index.html
var index []byte

type WebHandler struct{}

func New() *WebHandler {
	return &WebHandler{}
}

func (h *WebHandler) Start(srv fiber.Router) {
	srv.Get("/", h.Index)
}

func (h *WebHandler) Index(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return ctx.Send(index)
}
