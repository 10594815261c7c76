package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"winepress/internal/cfg"
	"winepress/internal/metrics"
	"winepress/internal/wordcount"

	"github.com/grailbio/bigslice/exec"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	var (
		input  = flag.String("input", c.WordcountInput, "text file to count")
		output = flag.String("output", c.WordcountOutput, "output directory for shard files")
		shards = flag.Int("shards", c.Shards, "number of shards")
		topN   = flag.Int("top", c.TopN, "number of top tokens to print")
	)
	flag.Parse()

	m := metrics.New()
	sess := exec.Start(exec.Local)

	start := time.Now()
	if err := wordcount.Run(context.Background(), sess, *input, *shards, *output); err != nil {
		m.ErrorsTotal.Inc()
		log.Fatal().Err(err).Msg("word count failed")
	}
	m.WordcountRuns.Inc()
	m.WordcountDuration.Observe(time.Since(start).Seconds())

	counts, err := wordcount.ReadCounts(*output)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read results")
	}

	total := 0
	for _, count := range counts {
		total += count.N
	}
	log.Info().Int("tokens", total).Int("distinct", len(counts)).
		Dur("elapsed", time.Since(start)).Msg("word count complete")

	for _, count := range wordcount.Top(counts, *topN) {
		fmt.Printf("%-24s %d\n", count.Word, count.N)
	}
}
