package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/OFFIS-RIT/mt2n/internal/config"
	"github.com/OFFIS-RIT/mt2n/internal/pipeline"
	"github.com/OFFIS-RIT/mt2n/internal/storage"
	"github.com/OFFIS-RIT/mt2n/internal/util"
	"github.com/OFFIS-RIT/mt2n/pkg/export"
	pgxstore "github.com/OFFIS-RIT/mt2n/pkg/store/pgx"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// s3FromEnv creates a client from the AWS_* variables, or returns nil when no
// region is set.
func s3FromEnv(ctx context.Context) (*awss3.Client, error) {
	region := util.GetEnv(config.KeyAWSRegion)
	if region == "" {
		return nil, nil
	}
	return storage.NewS3Client(ctx, storage.NewS3ClientParams{
		Region:    region,
		Endpoint:  util.GetEnv(config.KeyAWSEndpoint),
		AccessKey: util.GetEnv(config.KeyAWSAccessKey),
		SecretKey: util.GetEnv(config.KeyAWSSecretKey),
	})
}

func ingestCmd() *cobra.Command {
	var (
		configPath string
		runID      string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest the sources listed in a properties file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			opts := pipeline.Options{RunID: runID}
			if cfg.DatabaseURL != "" {
				pool, err := pgxstore.Connect(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer pool.Close()
				opts.Storage = pgxstore.NewGraphDBStorageWithConnection(pool)
			}

			result, err := pipeline.Run(ctx, cfg, opts)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Graph.RunID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Properties file describing the run")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id (generated when empty)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func mergeCmd() *cobra.Command {
	var (
		out         string
		summary     string
		identifiers string
		runID       string
	)

	cmd := &cobra.Command{
		Use:   "merge --out merged.json graph1.json graph2.json...",
		Short: "Merge JSON graph exports into one graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			ids := map[string]string{}
			if identifiers != "" {
				f, err := os.Open(identifiers)
				if err != nil {
					return fmt.Errorf("failed to open identifiers: %w", err)
				}
				ids, err = config.ReadIdentifiers(f)
				f.Close()
				if err != nil {
					return err
				}
			}

			client, err := s3FromEnv(ctx)
			if err != nil {
				return err
			}

			g, err := pipeline.Merge(ctx, pipeline.MergeParams{
				Inputs:      args,
				Identifiers: ids,
				RunID:       runID,
				S3:          client,
			})
			if err != nil {
				return err
			}

			return export.WriteAll(ctx, g, export.Targets{
				JSON:    out,
				Summary: summary,
			}, storage.NewDestination(client))
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Path of the merged JSON graph")
	cmd.Flags().StringVar(&summary, "summary", "", "Optional path of a text summary")
	cmd.Flags().StringVar(&identifiers, "identifiers", "", "Identifier table (Type<TAB>property)")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id (generated when empty)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
