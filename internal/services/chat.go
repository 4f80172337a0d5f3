package services

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/teamz-workspace/apiserver/config"
)

const chatSystemPrompt = "You are the Teamz Workspace assistant. Answer questions " +
	"about the member's teams, projects and events concisely. Use the provided " +
	"workspace context when it is relevant; say so when it is not sufficient."

// ChatCompleter is the slice of the OpenAI client the relay needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatService relays a member's message plus free-text workspace context to
// the LLM completion endpoint. The API key never leaves the server.
type ChatService struct {
	client ChatCompleter
	model  string
}

func NewChatService(cfg config.OpenAIConfig) *ChatService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &ChatService{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// NewChatServiceWithClient wires an explicit completer, used by tests.
func NewChatServiceWithClient(client ChatCompleter, model string) *ChatService {
	return &ChatService{client: client, model: model}
}

// Reply forwards the message and returns the assistant's text response.
func (s *ChatService) Reply(ctx context.Context, message, workspaceContext string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", errors.New("message is required")
	}

	system := chatSystemPrompt
	if strings.TrimSpace(workspaceContext) != "" {
		system += "\n\nWorkspace context:\n" + workspaceContext
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
