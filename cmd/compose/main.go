// Command compose renders a meme template locally, exports a preview image
// and optionally saves it through the backend, falling back to the offline
// queue when the backend is unreachable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"memeforge/internal/assets"
	"memeforge/internal/canvas"
	"memeforge/internal/client"
	"memeforge/internal/config"
	"memeforge/internal/editor"
	"memeforge/internal/export"
	"memeforge/internal/imagecache"
	"memeforge/internal/log"
	"memeforge/internal/offline"
	"memeforge/internal/pipeline"
)

func main() {
	var (
		templateKey = flag.String("template", "yes_pop", "template key to compose")
		caption     = flag.String("caption", "", "caption text to add on top")
		prop        = flag.String("prop", "", "prop asset to add on top")
		out         = flag.String("out", "meme", "output file path, extension added by format")
		userID      = flag.Int64("user", 0, "telegram user id, required with -save")
		save        = flag.Bool("save", false, "save the meme through the backend")
		flush       = flag.Bool("flush", false, "flush the offline queue and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := log.New(cfg.Environment, "compose")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	apiClient := client.New(cfg.Save.Endpoint, logger)
	queue := offline.New(cfg.OfflineQueue, apiClient, logger)

	if *flush {
		queue.Process(ctx)
		fmt.Printf("queue flushed, %d item(s) remaining\n", queue.Len())
		return
	}

	resolver := assets.NewResolver(cfg.Assets.BaseURL)
	loader := imagecache.NewURLLoader(10 * time.Second)
	cache := imagecache.New(loader, cfg.Canvas.CacheMaxEntries, cfg.Canvas.CacheMaxBytes)
	engine := canvas.NewEngine(cfg.Canvas, logger, cache, resolver)
	exporter := export.New(cfg.Export, logger)
	saver := pipeline.NewSaver(cfg.Save, exporter, apiClient, queue, logger)

	session := editor.NewSession(*userID, engine, saver, logger)
	defer session.Close()

	session.ApplyTemplate(ctx, *templateKey)
	if *caption != "" {
		if _, err := session.AddText(ctx, *caption); err != nil {
			logger.Fatal().Err(err).Msg("add caption failed")
		}
	}
	if *prop != "" {
		if _, err := session.AddProp(ctx, *prop); err != nil {
			logger.Fatal().Err(err).Msg("add prop failed")
		}
	}

	result, err := exporter.Export(ctx, engine)
	if err != nil {
		logger.Fatal().Err(err).Msg("export failed")
	}

	path := *out + extension(result.MIME)
	if err := os.WriteFile(path, result.Data, 0o644); err != nil {
		logger.Fatal().Err(err).Msg("write output failed")
	}
	fmt.Printf("wrote %s (%d bytes, %dx%d)\n", path, len(result.Data), result.Width, result.Height)

	if !*save {
		return
	}
	if *userID <= 0 {
		logger.Fatal().Msg("-save requires -user")
	}

	outcome, err := session.Save(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("save failed")
	}
	switch outcome.Status {
	case pipeline.StatusQueued:
		fmt.Printf("backend unreachable, save queued (key %s)\n", outcome.IdempotencyKey)
	default:
		fmt.Printf("saved meme %s (short id %s)\n", outcome.MemeID, outcome.IDShort)
		if outcome.URL != "" {
			fmt.Println(outcome.URL)
		}
	}
}

func extension(mime string) string {
	switch mime {
	case "image/webp":
		return ".webp"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".png"
	}
}
