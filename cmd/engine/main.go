package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantflow/fxengine/config"
	"github.com/quantflow/fxengine/internal/marketdata"
	"github.com/quantflow/fxengine/internal/pipeline"
	"github.com/quantflow/fxengine/internal/risk"
	"github.com/quantflow/fxengine/internal/storage"
	"github.com/quantflow/fxengine/models"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	equity := flag.Float64("equity", 10000, "account equity for position sizing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	client := marketdata.NewClient(marketdata.ClientOptions{
		APIKey:         cfg.DataAPIKey,
		BaseURL:        cfg.DataBaseURL,
		RequestTimeout: cfg.RequestTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
	})

	riskEngine := risk.NewEngine(cfg, risk.NewLedger())
	p := pipeline.New(cfg, client, riskEngine)

	var journal *storage.DB
	if cfg.PostgresDSN != "" {
		journal, err = storage.New(cfg.PostgresDSN)
		if err != nil {
			log.Error().Err(err).Msg("trade journal unavailable, continuing without persistence")
			journal = nil
		}
	}

	pair := models.PairInfo{Symbol: cfg.Pair}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := p.Evaluate(ctx, pair, pipeline.Snapshots{Equity: *equity})
	if err != nil {
		log.Fatal().Err(err).Msg("evaluation failed")
	}

	if journal != nil {
		rec := storage.TradeRecord{
			ID:             uuid.NewString(),
			Pair:           result.Pair,
			Direction:      result.Signal.Direction,
			State:          string(result.Decision.State),
			Score:          result.Decision.Score,
			WinProbability: result.Filter.WinProbability,
			Entry:          result.Signal.Entry,
			StopLoss:       result.Signal.StopLoss,
			TakeProfit:     result.Signal.TakeProfit,
			CreatedAt:      time.Now().UTC(),
		}
		if result.Risk != nil {
			rec.PositionSize = result.Risk.PositionSize
			rec.RiskFraction = result.Risk.RiskFraction
		}
		if err := journal.SaveTrade(rec); err != nil {
			log.Error().Err(err).Msg("failed to persist evaluation")
		}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode result")
	}
	fmt.Println(string(out))
}
