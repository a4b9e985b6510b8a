package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/unitypkg/unitypkg/unpack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// set by -ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var CLI struct {
	Version bool `help:"Print version information and exit." short:"v"`
	Debug   bool `help:"Whether to enable debug logging." env:"UNITYPKG_DEBUG"`

	Input                   string   `help:"Path to .unitypackage or an extracted package directory." short:"i" env:"UNITYPKG_INPUT"`
	Output                  string   `help:"Output directory." short:"o" env:"UNITYPKG_OUTPUT"`
	FBXToGLTF               string   `help:"Path to FBX2glTF executable." name:"fbx-to-gltf" env:"UNITYPKG_FBX_TO_GLTF"`
	GetMaterialsFromPrefabs bool     `help:"Bind textures of prefab materials to converted models." env:"UNITYPKG_GET_MATERIALS_FROM_PREFABS"`
	IgnoreExtensions        []string `help:"Extensions (without dot) to skip." env:"UNITYPKG_IGNORE_EXTENSIONS"`
	CopyMetaFiles           bool     `help:"Copy .meta files next to the assets." env:"UNITYPKG_COPY_META_FILES"`
	Workers                 int      `help:"Number of parallel workers (0: number of CPUs)." default:"0" env:"UNITYPKG_WORKERS"`
	KeepTemp                bool     `help:"Keep the extracted package directory." env:"UNITYPKG_KEEP_TEMP"`
}

func writeError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func run(ctx context.Context) error {
	if CLI.Input == "" || CLI.Output == "" {
		return fmt.Errorf("--input and --output are required")
	}

	u := unpack.NewUnpacker(&unpack.Options{
		Input:                   CLI.Input,
		Output:                  CLI.Output,
		FBXToGLTF:               CLI.FBXToGLTF,
		GetMaterialsFromPrefabs: CLI.GetMaterialsFromPrefabs,
		IgnoreExtensions:        CLI.IgnoreExtensions,
		CopyMetaFiles:           CLI.CopyMetaFiles,
		Workers:                 CLI.Workers,
		KeepTemp:                CLI.KeepTemp,
	})
	if err := u.Prepare(); err != nil {
		return err
	}

	start := time.Now()
	report, err := u.Run(ctx)
	if err != nil {
		return err
	}
	for _, err := range report.Errors {
		log.Warn().Err(err).Msg("failed")
	}
	log.Info().
		Int("catalogued", report.Catalogued).
		Int("placed", report.Placed).
		Int("converted", report.Converted).
		Int("matches", report.Matches).
		Int("rebound", report.Rebound).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed()).
		Dur("elapsed", time.Since(start)).
		Msg("done")
	return nil
}

func main() {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(consoleWriter)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	kong.Parse(&CLI,
		kong.Name("unitypkg"),
		kong.Description("extract a .unitypackage and bind prefab textures to converted models"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	if CLI.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Warn().Msg("debug logging enabled")
	}

	if CLI.Version {
		fmt.Printf("unitypkg %s (commit %s)\n", Version, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx); err != nil {
		stop()
		writeError(err)
	}
}
