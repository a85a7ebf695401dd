package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/clearcite/integrity-engine/internal/analysis/ingest"
	"github.com/clearcite/integrity-engine/internal/analysis/similarity"
	"github.com/clearcite/integrity-engine/internal/config"
	"github.com/clearcite/integrity-engine/internal/data/db"
	"github.com/clearcite/integrity-engine/internal/data/repos"
	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

// corpusctl seeds the reference corpus and the recommendation library from a
// YAML file. Fingerprints are computed here, out-of-band; the engine only
// ever reads corpus rows.

type seedSource struct {
	SourceID    string     `yaml:"source_id"`
	SourceType  string     `yaml:"source_type"`
	Title       string     `yaml:"title"`
	URL         string     `yaml:"url"`
	TopicTags   []string   `yaml:"topic_tags"`
	PublishedAt *time.Time `yaml:"published_at"`
	Text        string     `yaml:"text"`
}

type seedWork struct {
	SourceID    string     `yaml:"source_id"`
	SourceType  string     `yaml:"source_type"`
	Title       string     `yaml:"title"`
	URL         string     `yaml:"url"`
	TopicTags   []string   `yaml:"topic_tags"`
	PublishedAt *time.Time `yaml:"published_at"`
}

type seedFile struct {
	Sources []seedSource `yaml:"sources"`
	Library []seedWork   `yaml:"library"`
}

func main() {
	seedPath := flag.String("seed", "corpus.yaml", "path to the corpus seed file")
	flag.Parse()

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("Config load failed", "error", err)
	}

	gdb, err := db.Open(cfg.DB, log)
	if err != nil {
		log.Fatal("Database init failed", "error", err)
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		log.Fatal("Auto migration failed", "error", err)
	}

	raw, err := os.ReadFile(*seedPath)
	if err != nil {
		log.Fatal("Seed file read failed", "path", *seedPath, "error", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		log.Fatal("Seed file parse failed", "path", *seedPath, "error", err)
	}

	ctx := context.Background()
	corpusRepo := repos.NewCorpusRepo(gdb, log)
	libraryRepo := repos.NewLibraryRepo(gdb, log)

	for _, src := range seed.Sources {
		entry, err := buildEntry(src, cfg.Analysis.ShingleSize)
		if err != nil {
			log.Warn("Skipping source", "source_id", src.SourceID, "error", err)
			continue
		}
		if err := corpusRepo.UpsertEntry(ctx, nil, entry); err != nil {
			log.Fatal("Corpus upsert failed", "source_id", src.SourceID, "error", err)
		}
		log.Info("Corpus entry seeded", "source_id", src.SourceID, "tokens", entry.TokenCount)
	}

	for _, w := range seed.Library {
		work, err := buildWork(w)
		if err != nil {
			log.Warn("Skipping library work", "source_id", w.SourceID, "error", err)
			continue
		}
		if err := libraryRepo.UpsertWork(ctx, nil, work); err != nil {
			log.Fatal("Library upsert failed", "source_id", w.SourceID, "error", err)
		}
		log.Info("Library work seeded", "source_id", w.SourceID)
	}

	log.Info("Seed complete", "sources", len(seed.Sources), "library", len(seed.Library))
}

func buildEntry(src seedSource, shingleSize int) (*domain.CorpusEntry, error) {
	if src.SourceID == "" || src.Title == "" {
		return nil, fmt.Errorf("source_id and title are required")
	}
	sourceType, err := parseSourceType(src.SourceType)
	if err != nil {
		return nil, err
	}

	norm := ingest.Normalize(src.Text)
	if len(norm.Tokens) < shingleSize {
		return nil, fmt.Errorf("text too short to fingerprint (%d tokens)", len(norm.Tokens))
	}
	fps := similarity.Fingerprints(norm, shingleSize)

	fpJSON, err := json.Marshal(fps)
	if err != nil {
		return nil, err
	}
	tagJSON, err := json.Marshal(src.TopicTags)
	if err != nil {
		return nil, err
	}

	return &domain.CorpusEntry{
		SourceID:     src.SourceID,
		SourceType:   sourceType,
		Title:        src.Title,
		URL:          src.URL,
		TopicTags:    datatypes.JSON(tagJSON),
		Fingerprints: datatypes.JSON(fpJSON),
		TokenCount:   len(norm.Tokens),
		PublishedAt:  src.PublishedAt,
	}, nil
}

func buildWork(w seedWork) (*domain.ReferenceWork, error) {
	if w.SourceID == "" || w.Title == "" {
		return nil, fmt.Errorf("source_id and title are required")
	}
	sourceType, err := parseSourceType(w.SourceType)
	if err != nil {
		return nil, err
	}
	tagJSON, err := json.Marshal(w.TopicTags)
	if err != nil {
		return nil, err
	}

	return &domain.ReferenceWork{
		SourceID:    w.SourceID,
		SourceType:  sourceType,
		Title:       w.Title,
		URL:         w.URL,
		TopicTags:   datatypes.JSON(tagJSON),
		PublishedAt: w.PublishedAt,
	}, nil
}

func parseSourceType(s string) (domain.CorpusSourceType, error) {
	switch domain.CorpusSourceType(s) {
	case domain.SourceWeb, domain.SourceJournal, domain.SourcePriorSubmission:
		return domain.CorpusSourceType(s), nil
	default:
		return "", fmt.Errorf("unknown source_type %q", s)
	}
}
