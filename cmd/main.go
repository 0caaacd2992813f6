package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"finops-agent/internal/agent"
	"finops-agent/internal/config"
	"finops-agent/internal/helper"
)

const configFilePath = "./configs/config.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "finops-agent",
		Short:         "Answer Azure cost questions with retrieved runbooks and cost data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cfgPath := root.PersistentFlags().String("config", configFilePath, "path to the config file")

	ask := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *cfgPath, func(a *app) error {
				return answer(cmd.Context(), a, strings.Join(args, " "), asJSON, cmd.OutOrStdout())
			})
		},
	}
	ask.Flags().Bool("json", false, "print the full run as JSON")

	chat := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), *cfgPath, func(a *app) error {
				return chatLoop(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}

	ingest := &cobra.Command{
		Use:   "ingest",
		Short: "Index the runbooks into the vector store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *cfgPath, func(a *app) error {
				n, err := a.ingest(cmd.Context(), force)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks\n", n)
				return nil
			})
		},
	}
	ingest.Flags().Bool("force", false, "clear the store and re-embed every chunk")

	export := &cobra.Command{
		Use:   "export",
		Short: "Write the encrypted knowledge collection to disk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), *cfgPath, func(a *app) error {
				path, err := a.export(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported collection to %s\n", path)
				return nil
			})
		},
	}

	root.AddCommand(ask, chat, ingest, export)
	return root
}

func withApp(ctx context.Context, cfgPath string, fn func(*app) error) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	helper.SetupLogger(cfg.LogLevel)
	log.Debug().Str("mode", cfg.Mode).Str("backend", cfg.RAG.Backend).Msg("Loaded config")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func answer(ctx context.Context, a *app, question string, asJSON bool, w io.Writer) error {
	if _, err := a.ingest(ctx, false); err != nil {
		return err
	}
	run, err := a.controller.Run(ctx, question)
	if err != nil {
		return err
	}
	printRun(w, run, asJSON)
	return nil
}

func printRun(w io.Writer, run *agent.AgentRun, asJSON bool) {
	if asJSON {
		helper.FprettyPrint(w, run)
		return
	}
	fmt.Fprintf(w, "\n%s\n\n", run.Answer)
	fmt.Fprintf(w, "Score: %d/10 | Tool: %s\n", run.Reflection.Score, run.ToolCalled)
}

func chatLoop(ctx context.Context, a *app, in io.Reader, w io.Writer) error {
	if _, err := a.ingest(ctx, false); err != nil {
		return err
	}
	fmt.Fprintln(w, "Ask about your Azure spend. Type exit to quit.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" || q == "exit" || q == "quit" {
			return nil
		}
		run, err := a.controller.Run(ctx, q)
		if err != nil {
			log.Error().Err(err).Msg("Error answering question")
			continue
		}
		printRun(w, run, false)
	}
}
