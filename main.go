package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	backendx "github.com/alfredlabs/alfred/agent/backend"
	capabilityx "github.com/alfredlabs/alfred/agent/capability"
	classifierx "github.com/alfredlabs/alfred/agent/classifier"
	contractx "github.com/alfredlabs/alfred/agent/contract"
	controllerx "github.com/alfredlabs/alfred/agent/controller"
	extractorx "github.com/alfredlabs/alfred/agent/extractor"
	llmx "github.com/alfredlabs/alfred/agent/llm"
	promptx "github.com/alfredlabs/alfred/agent/prompt"
	statex "github.com/alfredlabs/alfred/agent/state"
	configx "github.com/alfredlabs/alfred/pkg/config"
	_ "github.com/alfredlabs/alfred/pkg/logger/autoload"
	openrouterx "github.com/alfredlabs/alfred/pkg/openrouter"
	qstashx "github.com/alfredlabs/alfred/pkg/qstash"
)

const greeting = "Hello! I'm Alfred, your Bengaluru restaurant assistant. " +
	"I can help you find restaurants and make reservations. What are you looking for today?"

type AppConfig struct {
	DatabaseDSN     string `envconfig:"DATABASE_DSN" split_words:"true"`
	NotifyURL       string `envconfig:"NOTIFY_URL" split_words:"true"`
	MaxPartySize    int    `envconfig:"MAX_PARTY_SIZE" split_words:"true" default:"12"`
	UseUpstashState bool   `envconfig:"USE_UPSTASH_STATE" split_words:"true"`
}

func main() {
	ctx := context.Background()
	appCfg := configx.MustNew[AppConfig]("ALFRED")

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}
	if openrouterx.NewClient(llmCfg.OpenRouterFor(llmx.RoleResponder)) == nil {
		log.Fatal().Msg("failed to initialize openrouter client")
	}

	ctrl, err := buildController(ctx, appCfg, llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build controller")
	}

	if err := runChat(ctx, ctrl); err != nil {
		log.Fatal().Err(err).Msg("chat loop failed")
	}
}

func buildController(ctx context.Context, appCfg *AppConfig, llmCfg *llmx.Config) (*controllerx.Controller, error) {
	prompts := promptx.LoadPromptSet()

	classifierCfg := llmCfg.OpenRouterFor(llmx.RoleClassifier)
	classifierModel, err := classifierCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create classifier model: %w", err)
	}
	cls, err := classifierx.New(ctx, classifierModel, prompts.Classifier)
	if err != nil {
		return nil, fmt.Errorf("create classifier: %w", err)
	}

	extractorCfg := llmCfg.OpenRouterFor(llmx.RoleExtractor)
	extractorModel, err := extractorCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create extractor model: %w", err)
	}
	ext, err := extractorx.New(ctx, extractorModel, prompts.Extractor)
	if err != nil {
		return nil, fmt.Errorf("create extractor: %w", err)
	}

	responderCfg := llmCfg.OpenRouterFor(llmx.RoleResponder)
	responderModel, err := responderCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create responder model: %w", err)
	}

	index, book, err := buildBackend(appCfg)
	if err != nil {
		return nil, err
	}

	search, err := capabilityx.NewSearch(ctx, responderModel, prompts.Search, index)
	if err != nil {
		return nil, fmt.Errorf("create search capability: %w", err)
	}
	inquiry, err := capabilityx.NewInquiry(ctx, responderModel, prompts.Inquiry)
	if err != nil {
		return nil, fmt.Errorf("create inquiry capability: %w", err)
	}

	var reservationOpts []capabilityx.ReservationOption
	if dest := strings.TrimSpace(appCfg.NotifyURL); dest != "" {
		qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
		notifier, err := backendx.NewQStashNotifier(qstashx.MustNew(*qstashCfg), dest)
		if err != nil {
			return nil, fmt.Errorf("create reservation notifier: %w", err)
		}
		reservationOpts = append(reservationOpts, capabilityx.WithNotifier(notifier))
	}
	reservation, err := capabilityx.NewReservation(ext, book, appCfg.MaxPartySize, reservationOpts...)
	if err != nil {
		return nil, fmt.Errorf("create reservation capability: %w", err)
	}

	registry, err := capabilityx.NewRegistry(inquiry)
	if err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}
	if err := registry.Register(contractx.IntentRecommendRestaurant, search); err != nil {
		return nil, fmt.Errorf("register search: %w", err)
	}
	if err := registry.Register(contractx.IntentMakeReservation, reservation); err != nil {
		return nil, fmt.Errorf("register reservation: %w", err)
	}

	store, err := buildStore(appCfg)
	if err != nil {
		return nil, err
	}

	return controllerx.New(store, cls, registry, controllerx.DefaultConfig())
}

func buildStore(appCfg *AppConfig) (statex.Store, error) {
	if !appCfg.UseUpstashState {
		return statex.NewMemoryStore(), nil
	}
	redisCfg := configx.MustNew[statex.UpstashRedisConfig]("REDIS")
	store, err := statex.NewUpstashRedisStore(*redisCfg)
	if err != nil {
		return nil, fmt.Errorf("create upstash state store: %w", err)
	}
	return store, nil
}

func buildBackend(appCfg *AppConfig) (backendx.RestaurantIndex, backendx.ReservationBook, error) {
	if dsn := strings.TrimSpace(appCfg.DatabaseDSN); dsn != "" {
		db, err := backendx.NewDB(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect restaurant database: %w", err)
		}
		return backendx.NewPGIndex(db), backendx.NewPGBook(db), nil
	}

	restaurants := seedRestaurants()
	index := backendx.NewMemoryIndex(restaurants)
	byID := make(map[int64]int, len(restaurants))
	for _, r := range restaurants {
		byID[r.ID] = r.Capacity
	}
	book := backendx.NewMemoryBook(backendx.WithCapacityLookup(func(id int64) (int, bool) {
		capacity, ok := byID[id]
		return capacity, ok
	}))
	return index, book, nil
}

func seedRestaurants() []backendx.Restaurant {
	return []backendx.Restaurant{
		{ID: 1, Name: "Spice Garden", Cuisine: "South Indian", Location: "Indiranagar", PriceRange: "₹1000-1500", Rating: 4.6, Seating: []string{"Indoor", "Garden"}, Capacity: 80},
		{ID: 2, Name: "Bengaluru Bytes", Cuisine: "Fusion", Location: "Koramangala", PriceRange: "₹1500-2000", Rating: 4.3, Seating: []string{"Indoor", "Rooftop"}, Capacity: 60},
		{ID: 3, Name: "Silicon Spices", Cuisine: "North Indian", Location: "Whitefield", PriceRange: "₹2000-2500", Rating: 4.1, Seating: []string{"Indoor", "Private cabins"}, Capacity: 120},
		{ID: 4, Name: "Garden City Grill", Cuisine: "Continental", Location: "MG Road", PriceRange: "₹2500-3000", Rating: 4.8, Seating: []string{"Outdoor", "Terrace"}, Capacity: 90},
		{ID: 5, Name: "Cubbon Cuisine", Cuisine: "Chettinad", Location: "Church Street", PriceRange: "₹1000-1500", Rating: 4.4, Seating: []string{"Indoor", "Window seating"}, Capacity: 50},
		{ID: 6, Name: "Namma Kitchen", Cuisine: "South Indian", Location: "Jayanagar", PriceRange: "₹500-1000", Rating: 4.7, Seating: []string{"Indoor", "Community tables"}, Capacity: 100},
		{ID: 7, Name: "Brigade Bistro", Cuisine: "Italian", Location: "Brigade Road", PriceRange: "₹3000-4000", Rating: 4.2, Seating: []string{"Indoor", "Bar seating", "Booth seating"}, Capacity: 70},
		{ID: 8, Name: "Monsoon Masala", Cuisine: "Mughlai", Location: "Lavelle Road", PriceRange: "₹2000-2500", Rating: 4.5, Seating: []string{"Indoor", "Private cabins"}, Capacity: 110},
		{ID: 9, Name: "Windmill Wok", Cuisine: "Chinese", Location: "HSR Layout", PriceRange: "₹1500-2000", Rating: 3.9, Seating: []string{"Indoor", "Outdoor"}, Capacity: 65},
		{ID: 10, Name: "Mango Mantra", Cuisine: "Thai", Location: "Malleshwaram", PriceRange: "₹1000-1500", Rating: 4.0, Seating: []string{"Indoor", "Garden", "Terrace"}, Capacity: 55},
		{ID: 11, Name: "Royal Repast", Cuisine: "Punjabi", Location: "UB City", PriceRange: "₹4000-5000", Rating: 4.9, Seating: []string{"Indoor", "Private cabins", "Rooftop"}, Capacity: 140},
		{ID: 12, Name: "Coffee Connect", Cuisine: "Continental", Location: "JP Nagar", PriceRange: "₹500-1000", Rating: 3.8, Seating: []string{"Indoor", "Window seating"}, Capacity: 40},
	}
}

func runChat(ctx context.Context, ctrl *controllerx.Controller) error {
	sessionID, err := ctrl.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	log.Info().Str("session_id", sessionID).Msg("session started")

	fmt.Println("Alfred:", greeting)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			// EOF or read error; drop the session either way.
			_ = ctrl.EndSession(ctx, sessionID)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reply, err := ctrl.ProcessTurn(ctx, sessionID, line)
		if errors.Is(err, contractx.ErrSessionTerminated) {
			fmt.Println("Alfred: This conversation has ended. Come back anytime!")
			return nil
		}
		if err != nil {
			return fmt.Errorf("process turn: %w", err)
		}
		fmt.Println("Alfred:", reply)
	}
}
