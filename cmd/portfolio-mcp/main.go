// Command portfolio-mcp serves the portfolio assistant over MCP on stdio.
package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"portfolio/internal/chat"
	"portfolio/internal/config"
	"portfolio/internal/llm"
	"portfolio/internal/logging"
	"portfolio/internal/profile"
	"portfolio/internal/prompt"
	"portfolio/internal/sessions"
	"portfolio/internal/storage"
	"portfolio/internal/suggest"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.New()
	// stdout carries the protocol; logging.Init writes to stderr
	logging.Init(cfg.LogLevel, "json")

	p := profile.Default()
	builder, err := prompt.NewBuilder(p, prompt.ReadTemplate(cfg.SystemPromptPath))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build system prompt")
	}
	completer, err := llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider), llm.ModelFor(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create llm client")
	}

	rec, err := storage.Open(cfg.StorageBackend, cfg.LogFilePath, cfg.SQLitePath)
	if err != nil {
		log.Warn().Err(err).Msg("interaction recording disabled")
		rec = storage.Nop{}
	}
	defer func() {
		if err := storage.Close(rec); err != nil {
			log.Warn().Err(err).Msg("failed to close interaction recorder")
		}
	}()
	mgr := sessions.NewManager(func() *chat.Widget {
		return chat.New(completer, builder.SystemInstruction(), builder.Greeting())
	}, rec)
	defer mgr.Close()

	tools := NewPortfolioTools(p, mgr.GetOrCreate("mcp", sessions.ChannelMCP), suggest.NewBoard(completer, p))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "portfolio-assistant",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_profile",
		Description: fmt.Sprintf("Returns %s's full resume as JSON", p.Name),
	}, tools.GetProfile)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_assistant",
		Description: fmt.Sprintf("Asks the portfolio assistant a question about %s", p.Name),
	}, tools.Ask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "suggest_feature",
		Description: "Suggests one v2.0 feature for a portfolio project by index",
	}, tools.SuggestFeature)

	log.Info().Int("tools", 3).Msg("starting portfolio MCP server on stdio")
	if err := server.Run(context.Background(), mcp.NewStdioTransport()); err != nil {
		log.Error().Err(err).Msg("mcp server failed")
	}
}
