package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/justestif/go-emotion-music/internal/app"
	"github.com/justestif/go-emotion-music/internal/clustering"
	"github.com/justestif/go-emotion-music/internal/config"
	"github.com/justestif/go-emotion-music/internal/emotion"
	"github.com/justestif/go-emotion-music/internal/logging"
	"github.com/justestif/go-emotion-music/internal/playback"
	"github.com/justestif/go-emotion-music/internal/vibes"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "emotion-music",
		Short:         "Detect facial emotions and play music that fits them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newDetectCmd(),
		newVibesCmd(),
		newAuthorizeCmd(),
		newSearchCmd(),
		newRecommendCmd(),
		newTrendCmd(),
	)
	return root
}

// setup loads the configuration, initializes logging and wires the app.
func setup(ctx context.Context, opts ...app.Option) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		File: logging.FileConfig{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		},
	})

	return app.New(ctx, cfg, opts...)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(cmd.Context())
		},
	}
}

func newDetectCmd() *cobra.Command {
	var image string

	cmd := &cobra.Command{
		Use:   "detect --image <path>",
		Short: "Detect the emotion in an image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Detector.Initialize(cmd.Context()); err != nil {
				return err
			}
			result, err := a.Detector.DetectFile(cmd.Context(), image)
			if err != nil {
				return err
			}

			m := vibes.Lookup(result.Emotion())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%.0f%% confidence, %s mode)\n",
				m.Icon, result.Emotion().Label(), result.Confidence()*100, a.Detector.Mode())
			fmt.Fprintf(out, "Vibe: %s\n", m.Vibe)
			return nil
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "path to a PNG, JPEG or WebP image")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newVibesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vibes [emotion]",
		Short: "Show the vibe mapping for one or all emotions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				e, err := emotion.Parse(args[0])
				if err != nil {
					return err
				}
				printVibe(out, e, vibes.Lookup(e), true)
				return nil
			}
			all := vibes.All()
			for _, e := range emotion.All() {
				printVibe(out, e, all[e], false)
			}
			return nil
		},
	}
}

func printVibe(w io.Writer, e emotion.Type, m vibes.Mapping, songs bool) {
	fmt.Fprintf(w, "%s %-10s %-22s search: %q\n", m.Icon, e.Label(), m.Vibe, m.SearchQuery)
	if !songs {
		return
	}
	for _, s := range m.FallbackSongs {
		fmt.Fprintf(w, "  %s %s - %s\n", s.Icon, s.Title, s.Artist)
	}
}

func newAuthorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Authorize playback with the streaming service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			a, err := setup(cmd.Context(), app.WithAuthURLHandler(func(url string) {
				fmt.Fprintf(out, "Open this URL to authorize:\n\n  %s\n\n", url)
			}))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Playback.Initialize(cmd.Context()); err != nil {
				return err
			}
			if a.Playback.State().IsAuthorized() {
				fmt.Fprintln(out, "Already authorized.")
				return nil
			}
			if err := a.Playback.Authorize(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, "Authorized.")
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search catalog playlists",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Playback.Initialize(cmd.Context()); err != nil {
				return err
			}
			playlists, err := a.Playback.SearchPlaylists(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			printPlaylists(cmd.OutOrStdout(), playlists)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of playlists (default from config)")
	return cmd
}

func printPlaylists(w io.Writer, playlists []playback.Playlist) {
	if len(playlists) == 0 {
		fmt.Fprintln(w, "No playlists found.")
		return
	}
	for i, p := range playlists {
		fmt.Fprintf(w, "%d. %s (%s)\n", i+1, p.Name, p.ID)
		if p.CuratorName != "" {
			fmt.Fprintf(w, "   by %s\n", p.CuratorName)
		}
	}
}

func newRecommendCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "recommend <emotion>",
		Short: "Recommend playlists or songs for an emotion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := emotion.Parse(args[0])
			if err != nil {
				return err
			}

			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Playback.Initialize(cmd.Context()); err != nil {
				logging.Warn().Err(err).Msg("Catalog search unavailable")
			}
			rec := a.Recommender.Recommend(cmd.Context(), e)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}

			fmt.Fprintf(out, "%s %s: %s (from %s)\n", rec.Icon, rec.Emotion.Label(), rec.Vibe, rec.Source)
			if len(rec.Playlists) > 0 {
				printPlaylists(out, rec.Playlists)
				return nil
			}
			for _, s := range rec.Songs {
				fmt.Fprintf(out, "  %s - %s\n", s.Title, s.Artist)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the recommendation as JSON")
	return cmd
}

func newTrendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trend",
		Short: "Show the prevailing mood over archived detections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if a.DB == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "No database configured; the in-memory history of this process is empty.")
			}
			trend, err := a.Trend(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), clustering.FormatTrend(trend))
			return nil
		},
	}
}
