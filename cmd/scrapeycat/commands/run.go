package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkforsb/scrapeycat/internal/effects"
	"github.com/mkforsb/scrapeycat/internal/engine"
	"github.com/mkforsb/scrapeycat/internal/httpfetch"
	"github.com/mkforsb/scrapeycat/internal/loader"
	"github.com/mkforsb/scrapeycat/internal/logger"
)

var runCmd = &cobra.Command{
	Use:                "run <script-name> [--positional VAL]... [--KEY=VAL]...",
	Short:              "Execute a script once and dispatch its effects",
	DisableFlagParsing: true,
	RunE:               runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(_ *cobra.Command, rawArgs []string) error {
	logger.Init(logger.Options{})

	if len(rawArgs) == 0 {
		return newUsageError("run: missing <script-name>")
	}
	name := rawArgs[0]

	positional, keyword, err := parseRunArgs(rawArgs[1:])
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ld := loader.New(defaultScriptDirs(), defaultScriptNames())
	ex := engine.New(
		engine.WithFetcher(httpfetch.NewColly(httpfetch.DefaultConfig())),
		engine.WithLoader(ld),
	)

	source, _, err := ld.Load(name)
	if err != nil {
		return err
	}

	st, err := ex.Run(ctx, source, positional, keyword, 0)
	if err != nil {
		return err
	}

	dispatch := effects.NewDispatcher(os.Stdout)
	for _, e := range st.Effects {
		if err := dispatch.Dispatch(ctx, e); err != nil {
			logger.Error("run: effect dispatch failed", "effect", e.Name, "error", err)
		}
	}
	return nil
}

// parseRunArgs implements "run <script-name> [--positional VAL]*
// [--KEY=VAL]*": "--positional VAL" appends VAL as a positional script
// argument, and any other "--KEY=VAL" becomes a keyword script argument
// named KEY. Cobra's own flag parsing is disabled for this command since
// keyword flag names are script-defined, not known in advance.
func parseRunArgs(args []string) (positional []string, keyword map[string]string, err error) {
	keyword = make(map[string]string)
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "--") {
			return nil, nil, newUsageError("run: unexpected argument %q", a)
		}
		a = strings.TrimPrefix(a, "--")

		if a == "positional" {
			if i+1 >= len(args) {
				return nil, nil, newUsageError("run: --positional requires a value")
			}
			i++
			positional = append(positional, args[i])
			continue
		}

		key, value, ok := strings.Cut(a, "=")
		if !ok {
			return nil, nil, newUsageError("run: expected --KEY=VAL, got %q", args[i])
		}
		keyword[key] = value
	}
	return positional, keyword, nil
}

// defaultScriptDirs returns the one-shot run command's script search
// path: the current directory, used when no daemon config supplies
// script_dirs (one-shot run has no config file).
func defaultScriptDirs() []string {
	return []string{"."}
}

// defaultScriptNames returns the filename templates tried when
// resolving a bare script name.
func defaultScriptNames() []string {
	return []string{"${NAME}.scrape", "${NAME}.lua"}
}
