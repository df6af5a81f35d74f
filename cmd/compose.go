package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/talkmate-aac/talkmate/internal/catalog"
	"github.com/talkmate-aac/talkmate/internal/models"
	"github.com/talkmate-aac/talkmate/internal/outcome"
	"github.com/talkmate-aac/talkmate/internal/telemetry"
)

func newComposeCmd() *cobra.Command {
	var speak bool
	var language string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "compose <image>...",
		Short: "Compose a sentence from pictures in order",
		Long: `Composes one sentence from the given pictures, in the order given.

Each argument is a catalog picture id, a remote image URL, a data URI or a
local image file.`,
		Example: `  # Compose from catalog pictures
  talkmate compose eat apple

  # Compose from local files and read the sentence aloud
  talkmate compose ./me.png ./park.jpg --speak --lang en-GB`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()

			entries, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			pictures := catalog.New(entries)

			selected := make([]models.PictureEntry, 0, len(args))
			for _, arg := range args {
				entry, err := pictureFromArg(pictures, arg)
				if err != nil {
					return err
				}
				selected = append(selected, entry)
			}

			var metrics *telemetry.Metrics
			stack, err := newGenerationStack(cfg, metrics, logger)
			if err != nil {
				return err
			}

			result := stack.composer.Compose(ctx, selected)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			}
			if !result.OK() {
				return errors.New(result.Error.Message)
			}
			if !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), result.Value)
			}

			if speak {
				narrator, stop, err := startNarration(ctx, cfg.Narration, metrics, logger)
				if err != nil {
					return err
				}
				defer stop()
				if language == "" {
					language = cfg.Narration.DefaultLanguage
				}
				narrator.Speak(ctx, result.Value, language)
				waitForSpeech(ctx.Done(), narrator.Speaking)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&speak, "speak", false, "Read the sentence aloud")
	cmd.Flags().StringVar(&language, "lang", "", "Narration language tag (defaults to narration.default_language)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

// pictureFromArg resolves a catalog id, URL, data URI or local file
func pictureFromArg(pictures *catalog.Catalog, arg string) (models.PictureEntry, error) {
	if entry, ok := pictures.Get(arg); ok {
		return entry, nil
	}
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") || strings.HasPrefix(arg, "data:") {
		return models.PictureEntry{ID: arg, Description: arg, ImageSource: arg}, nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return models.PictureEntry{}, fmt.Errorf("%s is not a catalog picture, URL or readable file: %w", arg, err)
	}
	entry, err := catalog.NewUpload(filepath.Base(arg), http.DetectContentType(data), data, time.Now())
	if err != nil {
		var validation *outcome.ValidationError
		if errors.As(err, &validation) {
			return models.PictureEntry{}, fmt.Errorf("%s: %s", arg, validation.Message)
		}
		return models.PictureEntry{}, err
	}
	return entry, nil
}

// waitForSpeech blocks until nothing is being spoken or done closes
func waitForSpeech(done <-chan struct{}, speaking func() (string, bool)) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, ok := speaking(); !ok {
			return
		}
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}
