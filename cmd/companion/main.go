package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/companion/internal/agent"
	"github.com/pavelanni/companion/internal/handler"
	"github.com/pavelanni/companion/internal/llm"
	"github.com/pavelanni/companion/internal/model"
	"github.com/pavelanni/companion/internal/quiz"
	"github.com/pavelanni/companion/internal/rag"
	"github.com/pavelanni/companion/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "companion",
		Short: "AI study companion backend with memory-backed tutoring and adaptive quizzes",
	}

	serve := serveCmd()
	root.AddCommand(serve, indexCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `companion --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "companion.db", "SQLite database path")
	f.String("index-path", "companion_index", "Vector index storage directory")
	f.String("seed", "", "Path to seed students JSON (loaded when the database is empty)")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty = OpenAI)")
	f.String("llm-key", "", "API key for LLM (or set COMPANION_LLM_KEY)")
	f.String("chat-model", "gpt-4o", "Model for conversational responses")
	f.String("quiz-model", "gpt-4o-mini", "Model for quiz generation")
	f.String("embedding-model", "text-embedding-3-small", "Model for embeddings")
	f.StringSlice("allowed-origins", []string{"http://localhost:5173", "http://localhost:3000"}, "CORS allowed origins")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed session transcripts into the vector index",
		RunE:  runIndex,
	}
	f := cmd.Flags()
	f.String("index-path", "companion_index", "Vector index storage directory")
	f.StringP("transcripts", "t", "data/transcripts", "Directory of transcript JSON files")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty = OpenAI)")
	f.String("llm-key", "", "API key for LLM (or set COMPANION_LLM_KEY)")
	f.String("embedding-model", "text-embedding-3-small", "Model for embeddings")
	f.Bool("force", false, "Re-index even when the collection is already populated")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("COMPANION")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("companion")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/companion")
	v.AddConfigPath("/etc/companion")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if seedPath := v.GetString("seed"); seedPath != "" {
		if err := seedStudents(db, seedPath); err != nil {
			return fmt.Errorf("seed students: %w", err)
		}
	}

	chatClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("chat-model"),
		v.GetString("embedding-model"),
	)
	quizClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("quiz-model"),
		v.GetString("embedding-model"),
	)
	if err := chatClient.Ping(context.Background()); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK",
		"url", v.GetString("llm-url"),
		"chat_model", v.GetString("chat-model"),
		"quiz_model", v.GetString("quiz-model"),
	)

	embed := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
		return chatClient.Embed(ctx, text)
	})
	index, err := rag.NewIndex(v.GetString("index-path"), embed)
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	slog.Info("vector index ready", "path", v.GetString("index-path"), "transcripts", index.Count())

	th := model.DefaultThresholds()
	chatAgent := agent.New(db, index, chatClient, th)
	quizService := quiz.New(db, index, quizClient, th)

	h := handler.New(db, chatAgent, quizService)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   v.GetStringSlice("allowed-origins"),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler)
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server", "addr", addr)
	return http.ListenAndServe(addr, r)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	client := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		"",
		v.GetString("embedding-model"),
	)
	embed := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
		return client.Embed(ctx, text)
	})

	index, err := rag.NewIndex(v.GetString("index-path"), embed)
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}

	if index.Count() > 0 && !v.GetBool("force") {
		slog.Info("index already populated, skipping", "transcripts", index.Count())
		return nil
	}

	dir := v.GetString("transcripts")
	transcripts, err := rag.LoadTranscripts(dir)
	if err != nil {
		return fmt.Errorf("load transcripts: %w", err)
	}
	if len(transcripts) == 0 {
		return fmt.Errorf("no transcript JSON files in %s", dir)
	}
	slog.Info("loaded transcripts", "dir", dir, "count", len(transcripts))

	if err := index.Add(context.Background(), transcripts); err != nil {
		return fmt.Errorf("index transcripts: %w", err)
	}
	slog.Info("indexed transcripts", "total", index.Count())
	return nil
}

// seedStudents loads demo students and goals from a JSON file when the
// database has no students yet. The seed runs at most once per database,
// tracked via a metadata marker.
func seedStudents(db *store.Store, path string) error {
	if seededAt, err := db.GetMetadata("seeded_at"); err != nil {
		return err
	} else if seededAt != "" {
		slog.Debug("database already seeded, skipping", "seeded_at", seededAt)
		return nil
	}
	count, err := db.StudentCount()
	if err != nil {
		return err
	}
	if count > 0 {
		slog.Debug("database already has students, skipping seed", "count", count)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var imports []model.StudentImport
	if err := json.Unmarshal(data, &imports); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, imp := range imports {
		studentID, err := db.InsertStudent(model.Student{
			StudentID:       imp.StudentID,
			Name:            imp.Name,
			Grade:           imp.Grade,
			EngagementLevel: imp.EngagementLevel,
			LearningPace:    imp.LearningPace,
			AvgQuizScore:    imp.AvgQuizScore,
		})
		if err != nil {
			return fmt.Errorf("insert student %s: %w", imp.StudentID, err)
		}
		for _, g := range imp.Goals {
			if _, err := db.InsertGoal(model.Goal{
				StudentID:       studentID,
				Subject:         g.Subject,
				Description:     g.Description,
				ProgressPercent: g.ProgressPercent,
				Status:          model.GoalActive,
			}); err != nil {
				return fmt.Errorf("insert goal for %s: %w", imp.StudentID, err)
			}
		}
	}
	if err := db.SetMetadata("seeded_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record seed marker: %w", err)
	}
	slog.Info("seeded students", "count", len(imports), "path", path)
	return nil
}
