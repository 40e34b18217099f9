package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrcode/bioclear/internal/autostart"
	"github.com/mrcode/bioclear/internal/chart"
	"github.com/mrcode/bioclear/internal/decay"
	"github.com/mrcode/bioclear/internal/estimator"
	"github.com/mrcode/bioclear/internal/models"
	"github.com/mrcode/bioclear/internal/training"
)

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit a half-life model on synthetic data and write the artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			n, _ := cmd.Flags().GetInt("samples")
			seed, _ := cmd.Flags().GetInt64("seed")
			kind, _ := cmd.Flags().GetString("kind")
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = cfg.ModelPath
			}

			samples, err := training.GenerateSynthetic(n, seed)
			if err != nil {
				return err
			}

			var artifact *estimator.Artifact
			switch kind {
			case estimator.KindForest:
				opts := training.DefaultForestOptions()
				opts.Seed = seed
				opts.Trees, _ = cmd.Flags().GetInt("trees")
				opts.MaxDepth, _ = cmd.Flags().GetInt("depth")
				opts.MinLeaf, _ = cmd.Flags().GetInt("min-leaf")
				artifact, err = training.FitForest(samples, opts)
			case estimator.KindLinear:
				artifact, err = training.FitLinear(samples)
			default:
				return fmt.Errorf("unknown model kind %q (want %q or %q)", kind, estimator.KindForest, estimator.KindLinear)
			}
			if err != nil {
				return fmt.Errorf("training %s model: %w", kind, err)
			}

			if err := artifact.Save(output); err != nil {
				return err
			}

			log.Info("Model trained", "kind", kind, "samples", n, "seed", seed, "rmse", artifact.TrainingRMSE, "output", output)
			fmt.Printf("Wrote %s model to %s (training RMSE %.2f h)\n", kind, output, artifact.TrainingRMSE)
			return nil
		},
	}

	defaults := training.DefaultForestOptions()
	cmd.Flags().Int("samples", 2000, "Number of synthetic patients")
	cmd.Flags().Int64("seed", defaults.Seed, "Random seed")
	cmd.Flags().String("kind", estimator.KindForest, "Model kind: forest or linear")
	cmd.Flags().Int("trees", defaults.Trees, "Number of trees (forest)")
	cmd.Flags().Int("depth", defaults.MaxDepth, "Maximum tree depth (forest)")
	cmd.Flags().Int("min-leaf", defaults.MinLeaf, "Minimum samples per leaf (forest)")
	cmd.Flags().String("output", "", "Artifact path (defaults to MODEL_PATH)")
	return cmd
}

func curveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Print a single concentration curve and its detection window",
		RunE: func(cmd *cobra.Command, args []string) error {
			dose, _ := cmd.Flags().GetFloat64("dose")
			halfLife, _ := cmd.Flags().GetFloat64("half-life")
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			horizon, _ := cmd.Flags().GetFloat64("horizon")
			height, _ := cmd.Flags().GetInt("height")

			curve, err := decay.Curve(dose, halfLife, horizon, sparkWidth)
			if err != nil {
				return err
			}

			fmt.Printf("Dose %.1f mg, half-life %.1f h, horizon %.0f h\n\n", dose, halfLife, horizon)
			fmt.Println(chart.Sparkline(curve.Values(), height))
			fmt.Println()

			hours, err := decay.TimeToThreshold(dose, halfLife, threshold)
			if err != nil {
				fmt.Printf("Threshold %.1f ng/mL: %v\n", threshold, err)
				return nil
			}
			fmt.Printf("Below %.1f ng/mL after %.1f h (%.1f days)\n", threshold, hours, hours/24)
			return nil
		},
	}

	defaults := models.DefaultSettings()
	cmd.Flags().Float64("dose", defaults.DefaultDose, "Dose in mg")
	cmd.Flags().Float64("half-life", 24, "Half-life in hours")
	cmd.Flags().Float64("threshold", defaults.DetectionThreshold, "Detection threshold in ng/mL")
	cmd.Flags().Float64("horizon", defaults.HorizonHours, "Time horizon in hours")
	cmd.Flags().Int("height", 10, "Chart height in lines")
	return cmd
}

// sparkWidth is the terminal column budget for curves
const sparkWidth = 60

func drugsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drugs",
		Short: "List the reference drug table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}

			drugs := models.DefaultDrugTable()
			if cfg.DrugTablePath != "" {
				if drugs, err = models.LoadDrugTable(cfg.DrugTablePath); err != nil {
					return err
				}
			}
			printDrugs(drugs.All())
			return nil
		},
	}
}

func printDrugs(drugs []models.ReferenceDrug) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tHALF-LIFE (h)\tDESCRIPTION")
	for _, d := range drugs {
		fmt.Fprintf(w, "%s\t%.1f\t%s\n", d.Name, d.BaselineHalfLifeHours, d.Description)
	}
	_ = w.Flush()
}

func autostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Start the server at login",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Register `bioclear serve` to run at login",
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := autostart.ServerEntry()
			if err != nil {
				return err
			}
			if err := autostart.Enable(entry); err != nil {
				return fmt.Errorf("enabling autostart: %w", err)
			}
			fmt.Println("Autostart enabled")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Remove the login entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := autostart.Disable(); err != nil {
				return fmt.Errorf("disabling autostart: %w", err)
			}
			fmt.Println("Autostart disabled")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether autostart is enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := autostart.IsEnabled()
			if err != nil {
				return err
			}
			fmt.Printf("Autostart enabled: %t\n", enabled)
			return nil
		},
	})

	return cmd
}
