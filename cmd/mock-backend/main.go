// Command mock-backend runs a deterministic OpenAI-compatible Chat
// Completions server for local development and integration testing.
// Point the openai backend at it with backends.openai.base_url.
//
// The reply is chosen from keywords in the last user message: a task
// naming a language gets a program in that language, a task asking for a
// failure gets a program that raises, and anything else gets Python.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// reply is a canned answer selected by keyword.
type reply struct {
	keywords []string
	content  string
}

// replies are checked in order; the first keyword match wins.
var replies = []reply{
	{
		keywords: []string{"fail", "error", "crash"},
		content:  "# Python\nraise RuntimeError(\"requested failure\")\n",
	},
	{
		keywords: []string{"javascript", "node"},
		content:  "// JavaScript\nconsole.log(\"hello from mock\");\n",
	},
	{
		keywords: []string{"golang", " go "},
		content:  "// Go\npackage main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hello from mock\")\n}\n",
	},
	{
		keywords: []string{"html", "web page"},
		content:  "<!-- HTML -->\n<html><body><h1>hello from mock</h1></body></html>\n",
	},
}

const (
	defaultReply = "# Python\nprint(\"hello from mock\")\n"
	summaryReply = "A short summary."
)

// replyFor picks the canned reply for a prompt.
func replyFor(prompt string) string {
	lower := " " + strings.ToLower(prompt) + " "
	for _, r := range replies {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.content
			}
		}
	}
	return defaultReply
}

// taskOf strips the generation instructions surrounding the task text.
func taskOf(prompt string) string {
	if _, after, ok := strings.Cut(prompt, "task:\n\n"); ok {
		prompt = after
	}
	if before, _, ok := strings.Cut(prompt, "\n\nOnly include"); ok {
		prompt = before
	}
	return prompt
}

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Stream {
		writeError(w, http.StatusBadRequest, "streaming is not supported")
		return
	}

	var prompt string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == openai.ChatMessageRoleUser {
			prompt = req.Messages[i].Content
			break
		}
	}
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "no user message")
		return
	}

	var content string
	if strings.HasPrefix(prompt, "Summarize") {
		content = summaryReply
	} else {
		content = replyFor(taskOf(prompt))
	}

	model := req.Model
	if model == "" {
		model = "mock-model"
	}
	resp := openai.ChatCompletionResponse{
		ID:      fmt.Sprintf("chatcmpl-mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionChoice{{
			Index: 0,
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{
			PromptTokens:     len(strings.Fields(prompt)),
			CompletionTokens: len(strings.Fields(content)),
			TotalTokens:      len(strings.Fields(prompt)) + len(strings.Fields(content)),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func handleModels(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openai.ModelsList{
		Models: []openai.Model{{ID: "mock-model", Object: "model", OwnedBy: "codesmith"}},
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"message": message, "type": "invalid_request_error"},
	})
}
