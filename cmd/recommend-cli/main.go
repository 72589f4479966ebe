package main

import (
	"context"
	"flag"
	"os"

	"github.com/fusionguard/recommender/internal/console"
	"github.com/fusionguard/recommender/internal/logging"
	"github.com/fusionguard/recommender/internal/recommend"
)

func main() {
	knowledgePath := flag.String("knowledge", "configs/dev/knowledge.yaml", "path to knowledge file")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logging.Init(logging.Config{Level: *logLevel, Format: "console"})

	holder := recommend.NewHolder(recommend.FileSource{Path: *knowledgePath}, recommend.DefaultThresholds())
	if err := holder.Reload(context.Background()); err != nil {
		logging.Fatal().Err(err).Msg("load knowledge")
	}

	if err := console.New(holder, os.Stdin, os.Stdout).Run(); err != nil {
		logging.Fatal().Err(err).Msg("read input")
	}
}
