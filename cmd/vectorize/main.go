package main

import (
	"context"
	"flag"
	"strconv"
	"time"

	"github.com/dustin/coursemate-backend/config"
	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/internal/repository"
	"github.com/dustin/coursemate-backend/internal/vectorizer"
	"github.com/dustin/coursemate-backend/internal/vectors"
	"github.com/dustin/coursemate-backend/pkg/database"
	"github.com/dustin/coursemate-backend/pkg/logger"
)

// vectorize builds the item vector file served by the API from a catalog
// file, and can copy the validated catalog into the database.
func main() {
	cfg := config.Load()

	input := flag.String("input", cfg.Catalog.DataFile, "catalog file (.parquet, .csv, .jsonl)")
	output := flag.String("output", cfg.Catalog.VectorFile, "vector file to write (.npy)")
	vocabOut := flag.String("vocab", "", "optional vocabulary JSON to write")
	dtypeFlag := flag.String("dtype", "f4", "element type: f2, f4 or f8")
	syncDB := flag.Bool("sync-db", false, "upsert the validated catalog into the database table")
	flag.Parse()

	appLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := appLogger.WithComponent("vectorize")

	if *input == "" {
		*input = "data/catalog.parquet" // default
	}
	if *output == "" {
		*output = "data/vectors.npy" // default
	}

	dtype, err := vectors.ParseDType(*dtypeFlag)
	if err != nil {
		log.Fatal("Invalid dtype: " + err.Error())
	}
	opts, err := vectorizer.NewOptions(&cfg.Vectorizer)
	if err != nil {
		log.Fatal("Invalid vectorizer settings: " + err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	source, err := catalog.NewFileSource(*input)
	if err != nil {
		log.Fatal("Failed to open catalog: " + err.Error())
	}
	raw, err := source.Load(ctx)
	if err != nil {
		log.Fatal("Failed to load catalog: " + err.Error())
	}
	store, report := catalog.Build(raw)
	log.Info("Catalog " + source.Name() + ": " + strconv.Itoa(report.Kept) + " of " + strconv.Itoa(report.SourceRows) + " rows kept")

	start := time.Now()
	m, vocab, err := vectorizer.BuildMatrix(store, opts)
	if err != nil {
		log.Fatal("Failed to build vectors: " + err.Error())
	}
	log.Info("Built " + strconv.Itoa(m.Rows()) + " x " + strconv.Itoa(m.Dim()) + " matrix in " + time.Since(start).String())

	if err := vectors.SaveNPY(*output, m, dtype); err != nil {
		log.Fatal("Failed to write vectors: " + err.Error())
	}
	log.Info("Vectors written to " + *output)

	if *vocabOut != "" {
		if err := vectorizer.SaveVocabulary(*vocabOut, vocab); err != nil {
			log.Fatal("Failed to write vocabulary: " + err.Error())
		}
		log.Info("Vocabulary written to " + *vocabOut)
	}

	if *syncDB {
		db, err := database.NewConnection(&cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database: " + err.Error())
		}
		if err := repository.EnsureSchema(db, cfg.Database.Table); err != nil {
			log.Fatal("Failed to migrate catalog table: " + err.Error())
		}
		items := make([]catalog.Item, store.Len())
		for i := range items {
			items[i] = *store.Item(i)
		}
		if err := repository.SaveCatalog(ctx, db, cfg.Database.Table, items); err != nil {
			log.Fatal("Failed to sync catalog: " + err.Error())
		}
		log.Info("Synced " + strconv.Itoa(len(items)) + " items to the database")
	}
}
