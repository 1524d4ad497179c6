// Command docbuilder drives the incremental site engine (internal/sitegen)
// from the filesystem: source tree in, rendered site out.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/discover"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/engine"
)

var cli struct {
	Verbose bool `short:"v" help:"Enable verbose logging"`

	Build struct {
		Source            string `arg:"" help:"Source content directory" default:"."`
		Output            string `short:"o" help:"Output directory for the rendered site" default:"./public"`
		Store             string `short:"s" help:"Fingerprint store path" default:"site.db"`
		TemplateExtension string `help:"File extension that marks a template-page" default:".html"`
		Layout            string `help:"Item-key of the layout template content-page bodies are wrapped in"`
		Clean             bool   `help:"Wipe the output tree and fingerprint store before building"`
	} `cmd:"" help:"Build the site once"`
}

func main() {
	ctx := kong.Parse(&cli)

	logLevel := slog.LevelInfo
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx.FatalIfErrorf(runBuild())
}

func runBuild() error {
	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := engine.Options{
		FS:         os.DirFS(cli.Build.Source),
		Root:       cli.Build.Source,
		OutputPath: cli.Build.Output,
		StorePath:  cli.Build.Store,
		Classifier: discover.Classifier{
			TemplateExtension: cli.Build.TemplateExtension,
		},
		LayoutTemplate:   cli.Build.Layout,
		Clean:            cli.Build.Clean,
		TemplateRenderer: htmlTemplateRenderer{},
		BodyRenderer:     newGoldmarkBody(),
		Collectors:       []engine.GlobalCollector{engine.TagsCollector},
	}

	result, err := engine.Run(runCtx, opts, slog.Default())
	if err != nil {
		return err
	}

	slog.Info("build complete",
		"rendered", result.RenderCount,
		"written", result.WriteCount,
		"deleted", len(result.Deleted),
		"failed", len(result.Failures))
	for _, f := range result.Failures {
		slog.Error("item failed", "item", f.ItemKey, "error", f.Err)
	}
	if !result.OK() {
		os.Exit(1)
	}
	return nil
}
