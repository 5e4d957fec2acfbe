package http

import (
	"github.com/streamgate/streamgate/internal/gateway"
	"github.com/streamgate/streamgate/internal/http/handlers"
)

// RegisterRoutes mounts every API operation and streaming route.
func (s *Server) RegisterRoutes(gw *gateway.Gateway, version string) {
	handlers.NewStreamHandler(gw).Register(s.api)
	handlers.NewSubtitleHandler(gw.Registry).Register(s.api)
	handlers.NewSystemHandler(gw, version).Register(s.api)

	handlers.NewSeekHandler(gw.Registry).Register(s.router)
	handlers.NewFileHandler(gw.Registry).Register(s.router)
}
