package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mindboard/application/materializer"
	"mindboard/application/ports"
	"mindboard/domain/board"
	domainconfig "mindboard/domain/config"
	"mindboard/domain/layout"
	"mindboard/domain/placement"
	"mindboard/domain/serializer"
	"mindboard/domain/suggestion"
	"mindboard/infrastructure/ai/openai"
	"mindboard/infrastructure/config"
	"mindboard/pkg/clock"
)

// app carries what every subcommand shares
type app struct {
	engine  *domainconfig.DomainConfig
	cfg     *config.Config
	logger  *zap.Logger
	verbose bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "boardctl",
		Short:         "Work on exported mind map boards",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			a.cfg = cfg
			a.engine = cfg.Engine

			a.logger = zap.NewNop()
			if a.verbose {
				if a.logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		a.layoutCmd(),
		a.placeCmd(),
		a.contextCmd(),
		a.suggestCmd(),
		a.convertCmd(),
	)
	return root
}

func (a *app) layoutOptions(direction string) (layout.Options, error) {
	dir, err := layout.ParseDirection(direction)
	if err != nil {
		return layout.Options{}, err
	}
	opts := layout.DefaultOptions()
	opts.Direction = dir
	opts.RankSeparation = a.engine.RankSeparation
	opts.NodeSeparation = a.engine.NodeSeparation
	return opts, nil
}

func (a *app) placementOptions() placement.Options {
	opts := placement.DefaultOptions()
	opts.MarginX = a.engine.PlacementMarginX
	opts.MarginY = a.engine.PlacementMarginY
	opts.Step = a.engine.PlacementStep
	opts.MaxStep = a.engine.PlacementMaxStep
	return opts
}

func (a *app) layoutCmd() *cobra.Command {
	var direction, output string

	cmd := &cobra.Command{
		Use:   "layout <board-file>",
		Short: "Re-position every node with the hierarchical layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := readEnvelope(args[0])
			if err != nil {
				return err
			}
			opts, err := a.layoutOptions(direction)
			if err != nil {
				return err
			}

			res := layout.Compute(board.Snapshot{Nodes: env.Nodes, Edges: env.Edges}, opts)
			env.Nodes = res.Apply(env.Nodes)
			a.logger.Info("Layout computed",
				zap.String("direction", string(res.Direction)),
				zap.Int("nodes", len(env.Nodes)),
			)
			return writeEnvelope(cmd.OutOrStdout(), output, env)
		},
	}
	cmd.Flags().StringVarP(&direction, "direction", "d", "auto", "layout direction: TB, LR or auto")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file; the extension picks the format (default stdout, json)")
	return cmd
}

func (a *app) placeCmd() *cobra.Command {
	var label, text string
	var x, y float64

	cmd := &cobra.Command{
		Use:   "place <board-file>",
		Short: "Find a free spot for a new node",
		Long: "Find a free spot for a new text node. Without --x and --y the search starts " +
			"one column to the right of the rightmost node.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := readEnvelope(args[0])
			if err != nil {
				return err
			}

			opts := a.placementOptions()
			sizes := layout.DefaultSizeModel()
			size := sizes.Estimate(board.NewTextNode("", board.Position{}, label, text))

			anchor := sizes.RightOf(env.Nodes, 2*opts.MarginX)
			if cmd.Flags().Changed("x") || cmd.Flags().Changed("y") {
				anchor = board.Position{X: x, Y: y}
			}

			p := placement.NewSolver(opts).Place(anchor, size.Width, size.Height, sizes.Footprints(env.Nodes))
			return printJSON(cmd, map[string]interface{}{
				"position": p.Position,
				"strategy": p.Strategy,
				"width":    size.Width,
				"height":   size.Height,
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "label of the new node")
	cmd.Flags().StringVar(&text, "text", "", "HTML content of the new node")
	cmd.Flags().Float64Var(&x, "x", 0, "preferred x")
	cmd.Flags().Float64Var(&y, "y", 0, "preferred y")
	return cmd
}

func (a *app) contextCmd() *cobra.Command {
	var focal string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "context <board-file>",
		Short: "Print the focus context sent to the AI collaborator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := readEnvelope(args[0])
			if err != nil {
				return err
			}
			c, err := serializer.Serialize(board.Snapshot{Nodes: env.Nodes, Edges: env.Edges}, focal)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, c)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), c.Render())
			return err
		},
	}
	cmd.Flags().StringVarP(&focal, "focal", "f", "", "focal node id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the structured context")
	return cmd
}

func (a *app) suggestCmd() *cobra.Command {
	var (
		focal, message, model, apiKey, baseURL, output string
		apply                                          bool
		timeout                                        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "suggest <board-file>",
		Short: "Ask the AI collaborator for ideas around a node",
		Long: "Ask the AI collaborator for ideas around the focal node. The validated tree is " +
			"printed; with --apply the ideas are added to the board instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := readEnvelope(args[0])
			if err != nil {
				return err
			}
			if focal == "" && len(env.Nodes) > 0 {
				focal = env.Nodes[0].ID
			}
			snap := board.Snapshot{Nodes: env.Nodes, Edges: env.Edges}
			c, err := serializer.Serialize(snap, focal)
			if err != nil {
				return err
			}

			suggester := openai.NewSuggester(openai.Config{
				APIKey:  firstNonEmpty(apiKey, a.cfg.OpenAIAPIKey),
				BaseURL: firstNonEmpty(baseURL, a.cfg.OpenAIBaseURL),
				Model:   firstNonEmpty(model, a.cfg.OpenAIModel),
			}, a.logger)

			if message == "" {
				message = suggestion.DefaultMessage
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			raw, err := suggester.Suggest(ctx, ports.SuggestRequest{
				Message: message,
				Context: []ports.Message{
					{Role: "system", Content: suggestion.SystemPrompt},
					{Role: "system", Content: c.Render()},
				},
			})
			if err != nil {
				return err
			}

			parsed, err := suggestion.Parse(raw, suggestion.ParseOptions{MaxDepth: a.engine.MaxSuggestionDepth})
			if err != nil {
				return err
			}
			if !apply {
				return printJSON(cmd, parsed)
			}

			m := materializer.New(materializer.OptionsFromConfig(a.engine), board.NewIDGenerator(clock.Real()), a.logger, nil)
			plan, err := m.Plan(snap, focal, parsed.Tree)
			if err != nil {
				return err
			}
			env.Nodes = append(env.Nodes, plan.Nodes...)
			env.Edges = append(env.Edges, plan.Edges...)
			return writeEnvelope(cmd.OutOrStdout(), output, env)
		},
	}
	cmd.Flags().StringVarP(&focal, "focal", "f", "", "focal node id (default: the first node)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "instruction for the AI collaborator")
	cmd.Flags().StringVar(&model, "model", "", "model name")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (default OPENAI_API_KEY)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "OpenAI-compatible endpoint")
	cmd.Flags().BoolVar(&apply, "apply", false, "add the ideas to the board")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file for --apply (default stdout, json)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")
	return cmd
}

func (a *app) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert a board between json, yaml and markdown",
		Long:  "Convert a board file. Formats follow the file extensions; markdown is write-only.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := readEnvelope(args[0])
			if err != nil {
				return err
			}
			return writeEnvelope(cmd.OutOrStdout(), args[1], env)
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
