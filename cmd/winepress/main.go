package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"winepress/internal/cfg"
	"winepress/internal/classify"
	"winepress/internal/dashboard"
	"winepress/internal/dataset"
	"winepress/internal/features"
	"winepress/internal/metrics"
	"winepress/internal/report"
	"winepress/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
	}()

	m := metrics.New()
	if c.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", c.MetricsPort)
			log.Info().Str("addr", addr).Msg("metrics endpoint up")
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	var dash *dashboard.Dashboard
	if c.DashboardPort > 0 {
		dash = dashboard.New(c.DashboardPort)
		if err := dash.Start(); err != nil {
			log.Fatal().Err(err).Msg("dashboard start failed")
		}
		defer dash.Stop()
	}

	if err := runExperiment(ctx, c, m, dash); err != nil {
		m.ErrorsTotal.Inc()
		log.Fatal().Err(err).Msg("experiment failed")
	}
}

// publish sends a progress snapshot when the dashboard is enabled.
func publish(dash *dashboard.Dashboard, status dashboard.RunStatus) {
	if dash != nil {
		dash.Publish(status)
	}
}

func runExperiment(ctx context.Context, c cfg.Settings, m *metrics.Metrics, dash *dashboard.Dashboard) error {
	started := time.Now()
	publish(dash, dashboard.RunStatus{Stage: "fetch", StartedAt: started})

	fetcher := dataset.NewFetcher(c.FetchTimeout, c.FetchRetries)
	if _, err := os.Stat(c.DatasetPath); os.IsNotExist(err) && c.DatasetURL != "" {
		m.DatasetFetches.Inc()
	}
	if err := fetcher.EnsureLocal(c.DatasetPath, c.DatasetURL); err != nil {
		return err
	}

	publish(dash, dashboard.RunStatus{Stage: "load", Progress: 0.1})
	table, err := dataset.Load(c.DatasetPath, c.Delimiter)
	if err != nil {
		return err
	}
	m.RowsLoaded.Add(float64(table.Rows()))

	if err := table.RenameLabel(c.LabelColumn); err != nil {
		return err
	}

	audit := table.Audit()
	m.AuditNullCells.Set(float64(audit.TotalNulls))
	log.Info().Int("rows", audit.Rows).Int("nulls", audit.TotalNulls).
		Int("duplicates", audit.DuplicateRows).Strs("classes", audit.Classes).
		Msg("dataset audited")
	if audit.TotalNulls > 0 {
		return fmt.Errorf("dataset %s has %d null cells; clean it before training", c.DatasetPath, audit.TotalNulls)
	}

	table, removed, err := table.Deduplicate()
	if err != nil {
		return err
	}
	m.RowsDropped.Add(float64(removed))
	publish(dash, dashboard.RunStatus{Stage: "aggregate", Progress: 0.2, Rows: table.Rows()})

	featureCols := c.FeatureColumns
	if len(featureCols) == 0 {
		featureCols = dataset.FeatureColumns
	}

	classMeans, err := table.ClassMeans(featureCols...)
	if err != nil {
		return err
	}
	fmt.Println("Per-class feature means:")
	fmt.Println(classMeans)
	fmt.Println("Column statistics:")
	fmt.Println(table.Describe())

	for _, class := range audit.Classes {
		value, err := strconv.Atoi(class[strings.LastIndexByte(class, '-')+1:])
		if err != nil {
			return fmt.Errorf("unexpected class name %q: %w", class, err)
		}
		sub, err := table.FilterClass(value)
		if err != nil {
			return err
		}
		log.Info().Str("class", class).Int("rows", sub.Rows()).Msg("class subset")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	publish(dash, dashboard.RunStatus{Stage: "assemble", Progress: 0.3, Rows: table.Rows()})
	matrix, err := table.Matrix(featureCols...)
	if err != nil {
		return err
	}
	set, err := features.Assemble(matrix, table.Labels(), featureCols, m)
	if err != nil {
		return err
	}

	train, test, err := classify.Split(set, c.TestFraction, c.Seed)
	if err != nil {
		return err
	}
	log.Info().Int("train", len(train.X)).Int("test", len(test.X)).
		Float64("testFraction", c.TestFraction).Int64("seed", c.Seed).Msg("dataset split")

	// Fit the scaler on the training rows only so held-out statistics never
	// leak into the model.
	scaler := &features.StandardScaler{}
	if train.X, err = scaler.FitTransform(train.X); err != nil {
		return err
	}
	if test.X, err = scaler.Transform(test.X); err != nil {
		return err
	}

	trainInst, err := classify.Instances(train)
	if err != nil {
		return err
	}
	testInst, err := classify.Instances(test)
	if err != nil {
		return err
	}

	publish(dash, dashboard.RunStatus{Stage: "grid-search", Progress: 0.4, Rows: table.Rows()})
	best, cvResults, err := classify.GridSearch(trainInst, c.TreeCounts, c.FeatureCounts, c.Folds, m)
	if err != nil {
		return err
	}
	publish(dash, dashboard.RunStatus{
		Stage: "train", Detail: best.String(), Progress: 0.7,
		BestScore: cvResults[0].Mean, Rows: table.Rows(),
	})

	if err := ctx.Err(); err != nil {
		return err
	}

	forest := classify.NewForest(best, m)
	var predictor classify.Predictor = forest
	if err := forest.Fit(trainInst); err != nil {
		log.Warn().Err(err).Str("params", best.String()).
			Msg("forest training failed, using majority-class fallback")
		fallback, fbErr := classify.NewMajorityFallback(train.Labels)
		if fbErr != nil {
			return fbErr
		}
		predictor = fallback
	}

	publish(dash, dashboard.RunStatus{
		Stage: "evaluate", Detail: best.String(), Progress: 0.85,
		BestScore: cvResults[0].Mean, Rows: table.Rows(),
	})
	preds, err := predictor.PredictClasses(testInst)
	if err != nil {
		return err
	}
	eval, err := classify.EvaluateClasses(preds, test.Labels)
	if err != nil {
		return err
	}
	m.TestAccuracy.Set(eval.Accuracy)
	log.Info().Float64("accuracy", eval.Accuracy).Str("params", best.String()).
		Msg("held-out evaluation complete")

	rec := storage.RunRecord{
		StartedAt:    started,
		Duration:     time.Since(started),
		DatasetPath:  c.DatasetPath,
		Rows:         table.Rows(),
		RemovedRows:  removed,
		Classes:      audit.Classes,
		BestParams:   best,
		CVResults:    cvResults,
		TestAccuracy: eval.Accuracy,
		Evaluation:   eval,
	}

	if c.DataPath != "" {
		store, err := storage.New(c.DataPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveRun(rec); err != nil {
			return err
		}
		if latest, err := store.LatestRun(); err == nil && latest != nil {
			recent, rErr := store.GetRuns(latest.StartedAt.AddDate(0, 0, -30), latest.StartedAt)
			if rErr != nil {
				return rErr
			}
			ev := log.Info().Int("recentRuns", len(recent)).Time("latestRun", latest.StartedAt)
			if bestRun, bErr := store.BestRun(); bErr == nil && bestRun != nil {
				ev = ev.Float64("bestAccuracy", bestRun.TestAccuracy).Time("bestRun", bestRun.StartedAt)
			}
			ev.Msg("run history")
		}
	}

	if c.ReportPath != "" {
		r := report.NewReporter(rec, &classMeans, c.ReportPath)
		if err := r.GenerateReport(); err != nil {
			return err
		}
	}

	publish(dash, dashboard.RunStatus{
		Stage: "done", Detail: best.String(), Progress: 1,
		BestScore: cvResults[0].Mean, Rows: table.Rows(),
	})
	log.Info().Dur("elapsed", rec.Duration).Msg("experiment complete")
	return nil
}
