package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"rpg-lite/apps/server/internal/engine"
)

// Server exposes the moderation surface of the engine as MCP tools.
type Server struct {
	engine *engine.Engine
	mcp    *sdk.Server
}

func NewServer(eng *engine.Engine, version string) *Server {
	s := &Server{
		engine: eng,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "rpg-lite",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
