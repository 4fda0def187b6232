package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Noofbiz/trajviz/datasets"
	"github.com/Noofbiz/trajviz/monte"
	"github.com/Noofbiz/trajviz/predict"
	"github.com/Noofbiz/trajviz/render"
	"github.com/Noofbiz/trajviz/viz"
)

func main() {
	dbPath := flag.String("db", "output/scenes.db", "path to the SQLite scene database")
	importAnnotations := flag.String("import-annotations", "", "glob pattern of annotation CSV files to import before rendering")
	importMaps := flag.String("import-maps", "", "glob pattern of map polygon CSV files to import with -import-annotations")
	configPath := flag.String("config", "", "path to JSON visualizer configuration (optional)")
	checkpoint := flag.String("checkpoint", "", "path to an MLP checkpoint; if empty a freshly initialised MLP is used")
	modelKind := flag.String("model", "mlp", "prediction model: 'mlp' or 'monte'")
	monteConfig := flag.String("monte-config", "", "path to JSON monte tunables (optional)")
	mlpModes := flag.Int("mlp-modes", 15, "number of modes of a freshly initialised MLP")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed for model initialisation and sampling")
	example := flag.Int("example", -1, "example to render (-1 = all)")
	outDir := flag.String("out", ".", "output directory; animations go to <out>/results/gifs")
	horizon := flag.Int("tf", 0, "number of future frames to draw (overrides JSON if > 0)")
	modes := flag.Int("modes", 0, "number of predicted modes to draw (overrides JSON if > 0)")
	counterfactual := flag.Bool("counterfactual", false, "add a stationary vehicle on the target's future")
	noPreds := flag.Bool("no-preds", false, "draw ground truth only")
	noReport := flag.Bool("no-report", false, "skip the HTML probability report")
	cacheTTL := flag.Duration("cache-ttl", 5*time.Minute, "TTL for dataset lookup cache entries (e.g., 5m)")
	cacheMaxEntries := flag.Int("cache-max", 2000, "maximum number of entries in the dataset lookup cache")
	printEffectiveConfig := flag.Bool("print-effective-config", false, "print the effective (JSON+CLI merged) configuration and exit")

	flag.Parse()

	cfg := viz.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = viz.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config %s: %v", *configPath, err)
		}
	}
	// CLI flags override JSON values.
	if *horizon > 0 {
		cfg.HorizonFrames = *horizon
	}
	if *modes > 0 {
		cfg.NumModes = *modes
	}
	if *counterfactual {
		cfg.Counterfactual = true
	}
	if *noPreds {
		cfg.ShowPredictions = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if *printEffectiveConfig {
		fmt.Printf("Effective visualizer configuration:\n")
		fmt.Printf("  history_seconds: %g\n", cfg.HistorySeconds)
		fmt.Printf("  horizon_frames: %d (%gs)\n", cfg.HorizonFrames, cfg.FutureSeconds())
		fmt.Printf("  num_modes: %d\n", cfg.NumModes)
		fmt.Printf("  show_predictions: %v\n", cfg.ShowPredictions)
		fmt.Printf("  counterfactual: %v (index %d)\n", cfg.Counterfactual, cfg.CounterfactualIndex)
		fmt.Printf("  split: %s\n", cfg.Split)
		fmt.Printf("  instance_picks: %v\n", cfg.InstancePicks)
		fmt.Printf("  reference: %+v\n", cfg.Reference)
		fmt.Printf("  layers: %v\n", cfg.Layers)
		fmt.Printf("  patch_margin: %g, min_diff_patch: %g\n", cfg.PatchMargin, cfg.MinDiffPatch)
		fmt.Printf("  fps: %g, frame: %gin at %d dpi\n", cfg.FPS, cfg.FrameInches, cfg.DPI)
		fmt.Printf("Model settings:\n")
		fmt.Printf("  model: %s\n", *modelKind)
		fmt.Printf("  checkpoint: %s\n", *checkpoint)
		os.Exit(0)
	}

	opts := datasets.DefaultOptions()
	opts.Split = cfg.Split
	opts.HistorySeconds = cfg.HistorySeconds
	opts.FutureSeconds = cfg.FutureSeconds()
	opts.CacheTTL = *cacheTTL
	opts.CacheMaxEntries = *cacheMaxEntries

	db, err := datasets.Open(*dbPath, opts)
	if err != nil {
		log.Fatalf("failed to open scene database: %v", err)
	}
	defer db.Close()

	if *importAnnotations != "" {
		if _, err := db.Import(*importAnnotations, *importMaps); err != nil {
			log.Fatalf("import failed: %v", err)
		}
	}
	log.Printf("Scene database %s: split %q has %d examples", *dbPath, opts.Split, db.Len())

	var model predict.Model
	switch *modelKind {
	case "mlp":
		if *checkpoint != "" {
			m, err := predict.LoadCheckpoint(*checkpoint)
			if err != nil {
				log.Fatalf("failed to load checkpoint %s: %v", *checkpoint, err)
			}
			if m.Config.HistoryLen != db.HistoryLen() || m.Config.VehicleSlots != opts.MaxVehicles {
				log.Fatalf("checkpoint expects history %d and %d vehicle slots, dataset has %d and %d",
					m.Config.HistoryLen, m.Config.VehicleSlots, db.HistoryLen(), opts.MaxVehicles)
			}
			model = m
		} else {
			m, err := predict.NewMLP(predict.Config{
				HiddenSizes:  []int{64, 32},
				HistoryLen:   db.HistoryLen(),
				VehicleSlots: opts.MaxVehicles,
				Modes:        *mlpModes,
				Horizon:      cfg.HorizonFrames,
				Seed:         *seed,
			})
			if err != nil {
				log.Fatalf("failed to create model: %v", err)
			}
			log.Printf("No checkpoint given, using an untrained MLP with %d modes", *mlpModes)
			model = m
		}
	case "monte":
		m, err := monte.NewMonte(db, 8)
		if err != nil {
			log.Fatalf("failed to create monte model: %v", err)
		}
		m.Seed(*seed)
		m.Horizon = cfg.HorizonFrames
		m.ConfigureDatasetCache(*cacheTTL, *cacheMaxEntries)
		if *monteConfig != "" {
			if err := m.LoadConfig(*monteConfig); err != nil {
				log.Fatalf("failed to load monte config %s: %v", *monteConfig, err)
			}
		}
		model = m
	default:
		log.Fatalf("unknown model %q (want mlp or monte)", *modelKind)
	}

	renderer := render.NewRenderer(db, cfg.RenderOptions())
	v := viz.NewVisualizer(viz.NewComposer(db, model, renderer, cfg), db)
	v.WriteReport = !*noReport

	if *example >= 0 {
		path, err := v.Run(*example, *outDir)
		if err != nil {
			log.Fatalf("example %d: %v", *example, err)
		}
		log.Printf("Wrote %s", path)
		return
	}
	paths, err := v.RunAll(*outDir)
	log.Printf("Wrote %d animations", len(paths))
	if err != nil {
		log.Fatalf("some examples failed: %v", err)
	}
}
