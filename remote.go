package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrcode/bioclear/internal/api"
	"github.com/mrcode/bioclear/internal/client"
	"github.com/mrcode/bioclear/internal/models"
	"github.com/mrcode/bioclear/internal/study"
)

func remoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Work with the study of a running server",
	}
	cmd.PersistentFlags().String("url", "", "Server URL (defaults to http://localhost:$HTTP_PORT)")

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}

			var p models.PatientProfile
			p.Name, _ = cmd.Flags().GetString("name")
			p.Drug, _ = cmd.Flags().GetString("drug")
			p.BMI, _ = cmd.Flags().GetFloat64("bmi")
			p.Age, _ = cmd.Flags().GetInt("age")
			p.Dose, _ = cmd.Flags().GetFloat64("dose")

			res, err := c.AddPatient(p)
			if err != nil {
				return err
			}
			fmt.Printf("Added %s: half-life %.1f h\n", res.Record.Name, res.Record.HalfLifeHours)
			for _, w := range res.Warnings {
				fmt.Fprintln(os.Stderr, "Warning:", w)
			}
			return nil
		},
	}
	addCmd.Flags().String("name", "", "Patient name (defaults to Patient N)")
	addCmd.Flags().String("drug", "", "Reference drug")
	addCmd.Flags().Float64("bmi", 22, "Body mass index")
	addCmd.Flags().Int("age", 30, "Age in years")
	addCmd.Flags().Float64("dose", 0, "Dose in mg (0 uses the server default)")
	cmd.AddCommand(addCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List study records",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			records, err := c.ListPatients()
			if err != nil {
				return err
			}
			printRecords(records)

			threshold, _ := cmd.Flags().GetFloat64("threshold")
			sum, err := c.Summary(threshold)
			if err != nil {
				return err
			}
			printSummary(sum)
			return nil
		},
	}
	listCmd.Flags().Float64("threshold", 0, "Detection threshold for the summary (0 uses the server default)")
	cmd.AddCommand(listCmd)

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every record from the study",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			n, err := c.ClearPatients()
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d records\n", n)
			return nil
		},
	}
	cmd.AddCommand(clearCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Download the study CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			output, _ := cmd.Flags().GetString("output")

			data, err := c.ExportCSV(threshold)
			if err != nil {
				return err
			}
			if output == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0600); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", output)
			return nil
		},
	}
	exportCmd.Flags().Float64("threshold", 0, "Detection threshold (0 uses the server default)")
	exportCmd.Flags().String("output", study.ExportFilename, "Output file, - for stdout")
	cmd.AddCommand(exportCmd)

	showCmd := &cobra.Command{
		Use:   "show <index>",
		Short: "Show one record by its 0-based index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			r, err := c.Patient(index)
			if err != nil {
				return err
			}
			printRecords([]models.StudyRecord{*r})
			return nil
		},
	}
	cmd.AddCommand(showCmd)

	cmd.AddCommand(remoteSettingsCmd())
	cmd.AddCommand(remoteAlertsCmd())

	return cmd
}

func remoteSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the server settings, saving any values given as flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}

			changes := map[string]interface{}{}
			flags := cmd.Flags()
			if flags.Changed("dose") {
				changes["defaultDose"], _ = flags.GetFloat64("dose")
			}
			if flags.Changed("threshold") {
				changes["detectionThreshold"], _ = flags.GetFloat64("threshold")
			}
			if flags.Changed("horizon") {
				changes["horizonHours"], _ = flags.GetFloat64("horizon")
			}
			if flags.Changed("samples") {
				changes["sampleCount"], _ = flags.GetInt("samples")
			}
			if flags.Changed("mode") {
				changes["estimationMode"], _ = flags.GetString("mode")
			}
			if flags.Changed("notifications") {
				changes["enableNotifications"], _ = flags.GetBool("notifications")
			}

			var resp *api.SettingsResponse
			if len(changes) > 0 {
				resp, err = c.UpdateSettings(changes)
			} else {
				resp, err = c.Settings()
			}
			if err != nil {
				return err
			}
			printSettings(resp)
			return nil
		},
	}
	cmd.Flags().Float64("dose", 0, "Default dose in mg")
	cmd.Flags().Float64("threshold", 0, "Detection threshold in ng/mL")
	cmd.Flags().Float64("horizon", 0, "Curve horizon in hours")
	cmd.Flags().Int("samples", 0, "Points per curve")
	cmd.Flags().String("mode", "", "Estimation mode for the next start: direct or hybrid")
	cmd.Flags().Bool("notifications", false, "Enable desktop notifications")
	return cmd
}

func remoteAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Manage desktop alerts on the server",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			if err := c.TestNotification(); err != nil {
				return err
			}
			fmt.Println("Test notification sent")
			return nil
		},
	})

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Let suppressed alerts fire again",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			alertType, _ := cmd.Flags().GetString("type")
			if err := c.ResetAlerts(alertType); err != nil {
				return err
			}
			fmt.Println("Alert state reset")
			return nil
		},
	}
	resetCmd.Flags().String("type", "", "Alert type to reset (default all)")
	cmd.AddCommand(resetCmd)

	return cmd
}

func printSettings(resp *api.SettingsResponse) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SETTING\tSAVED\tIN USE")
	s, e := resp.Saved, resp.Effective
	fmt.Fprintf(w, "default dose (mg)\t%g\t%g\n", s.DefaultDose, e.DefaultDose)
	fmt.Fprintf(w, "detection threshold (ng/mL)\t%g\t%g\n", s.DetectionThreshold, e.DetectionThreshold)
	fmt.Fprintf(w, "horizon (h)\t%g\t%g\n", s.HorizonHours, e.HorizonHours)
	fmt.Fprintf(w, "samples\t%d\t%d\n", s.SampleCount, e.SampleCount)
	fmt.Fprintf(w, "estimation mode\t%s\t%s\n", s.EstimationMode, e.EstimationMode)
	fmt.Fprintf(w, "notifications\t%t\t%t\n", s.EnableNotifications, e.EnableNotifications)
	_ = w.Flush()
}

func remoteClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, _, err := setup()
	if err != nil {
		return nil, err
	}

	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		url = "http://localhost:" + cfg.HTTPPort
	}
	return client.NewClient(url), nil
}

func printRecords(records []models.StudyRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tDRUG\tBMI\tAGE\tDOSE (mg)\tHALF-LIFE (h)\tMODE")
	for i, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%d\t%.0f\t%.1f\t%s\n", i+1, r.Name, r.Drug, r.BMI, r.Age, r.Dose, r.HalfLifeHours, r.Mode)
	}
	_ = w.Flush()
}

func printSummary(sum *study.Summary) {
	if sum.Count == 0 {
		return
	}
	fmt.Printf("\n%d patients, threshold %.1f ng/mL\n", sum.Count, sum.Threshold)
	fmt.Printf("Half-life  min %.1f  mean %.1f  max %.1f h\n", sum.HalfLife.Min, sum.HalfLife.Mean, sum.HalfLife.Max)
	fmt.Printf("Clear time min %.1f  mean %.1f  max %.1f h\n", sum.ClearTime.Min, sum.ClearTime.Mean, sum.ClearTime.Max)
	if sum.Unreachable > 0 {
		fmt.Printf("%d never fall below the threshold\n", sum.Unreachable)
	}
}
