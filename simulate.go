package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrcode/bioclear/internal/app"
	"github.com/mrcode/bioclear/internal/chart"
	"github.com/mrcode/bioclear/internal/models"
	"github.com/mrcode/bioclear/internal/study"
)

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <cohort.yaml>",
		Short: "Run a cohort through the estimator and export the study",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			if model, _ := cmd.Flags().GetString("model"); model != "" {
				cfg.ModelPath = model
			}
			outDir, _ := cmd.Flags().GetString("out")
			upload, _ := cmd.Flags().GetBool("upload")
			if !upload {
				cfg.S3Bucket = ""
			}

			cohort, err := study.LoadCohort(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			svc := application.Service()
			if !svc.Available() {
				return fmt.Errorf("no half-life model at %s, run `bioclear train` first", cfg.ModelPath)
			}

			_, rowErrs := svc.AddCohort(cohort)
			for _, e := range rowErrs {
				fmt.Fprintln(os.Stderr, "Skipped", e)
			}

			clearances, err := svc.ClearanceTimes(0)
			if err != nil {
				return err
			}
			printClearances(clearances)

			curves, err := svc.Curves(0, 0)
			if err != nil {
				return err
			}
			printSparklines(curves)

			res, err := application.Export(ctx, outDir)
			if err != nil {
				return err
			}
			fmt.Printf("\nWrote %s and %s\n", res.CSVPath, res.PNGPath)
			if res.CSVLink != "" {
				fmt.Printf("Uploaded %s\n         %s\n", res.CSVLink, res.PNGLink)
			}
			return nil
		},
	}
	cmd.Flags().String("out", ".", "Directory for the CSV and chart")
	cmd.Flags().String("model", "", "Model artifact path (overrides MODEL_PATH)")
	cmd.Flags().Bool("upload", true, "Upload exports when S3 is configured")
	return cmd
}

func printClearances(clearances []study.Clearance) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDRUG\tHALF-LIFE (h)\tDOSE (mg)\tCLEAR (h)\tSTATUS")
	for _, c := range clearances {
		drug := c.Drug
		if drug == "" {
			drug = "-"
		}
		clearCell := "never"
		if c.Reachable {
			clearCell = fmt.Sprintf("%.1f", c.ClearTimeHours)
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.0f\t%s\t%s\n", c.Name, drug, c.HalfLifeHours, c.Dose, clearCell, c.Status)
	}
	_ = w.Flush()
}

func printSparklines(curves []models.PatientCurve) {
	for _, pc := range curves {
		fmt.Printf("\n%s\n%s\n", pc.Label, chart.CompactSparkline(chart.Downsample(pc.Curve.Values(), sparkWidth)))
	}
}
