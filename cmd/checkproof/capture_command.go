package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"checkproof/internal/config"
	"checkproof/internal/ipc"
)

type captureFlags struct {
	latitude    float64
	longitude   float64
	takenAt     string
	brand       string
	noWatermark bool
}

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var flags captureFlags

	cmd := &cobra.Command{
		Use:   "capture <photo>",
		Short: "Stamp a photo and upload it, queueing it when offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildSubmitRequest(cmd, args[0], flags)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(req)
				if err != nil {
					return fmt.Errorf("submit capture: %w", err)
				}
				if ctx.json() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, resp.Message)
				fmt.Fprintf(out, "  id:      %s\n", resp.ID)
				if resp.Address != "" {
					fmt.Fprintf(out, "  address: %s\n", strings.ReplaceAll(resp.Address, "\n", ", "))
				}
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&flags.latitude, "lat", 0, "Latitude in decimal degrees")
	cmd.Flags().Float64Var(&flags.longitude, "lon", 0, "Longitude in decimal degrees")
	cmd.Flags().StringVar(&flags.takenAt, "taken-at", "", "Capture time (RFC3339); defaults to now")
	cmd.Flags().StringVar(&flags.brand, "brand", "", "Brand label for the stamp; defaults to capture.brand")
	cmd.Flags().BoolVar(&flags.noWatermark, "no-watermark", false, "Skip the diagonal watermark")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
	return cmd
}

func buildSubmitRequest(cmd *cobra.Command, photoArg string, flags captureFlags) (ipc.SubmitRequest, error) {
	path, err := config.ExpandPath(strings.TrimSpace(photoArg))
	if err != nil {
		return ipc.SubmitRequest{}, fmt.Errorf("resolve photo path: %w", err)
	}
	photo, err := os.ReadFile(path)
	if err != nil {
		return ipc.SubmitRequest{}, fmt.Errorf("read photo: %w", err)
	}
	req := ipc.SubmitRequest{
		Photo:       photo,
		Brand:       strings.TrimSpace(flags.brand),
		NoWatermark: flags.noWatermark,
	}
	if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
		lat, lon := flags.latitude, flags.longitude
		req.Latitude = &lat
		req.Longitude = &lon
	}
	if raw := strings.TrimSpace(flags.takenAt); raw != "" {
		if _, err := time.Parse(time.RFC3339, raw); err != nil {
			return ipc.SubmitRequest{}, fmt.Errorf("--taken-at must be RFC3339: %w", err)
		}
		req.TakenAt = raw
	}
	return req, nil
}
