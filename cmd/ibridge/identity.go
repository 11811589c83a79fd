package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func identityCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Query brand, model, hardware/firmware version and UID",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := e.client.Connect(ctx); err != nil {
				return err
			}
			if err := e.client.RequestIdentity(ctx); err != nil {
				return err
			}

			ticker := time.NewTicker(20 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return fmt.Errorf("no identity response within %s", timeout)
				case <-e.client.Done():
					if err := e.client.Err(); err != nil {
						return fmt.Errorf("meter disconnected: %w", err)
					}
					return errors.New("meter disconnected")
				case <-ticker.C:
					id, ok := e.client.LatestIdentity()
					if !ok {
						continue
					}
					fmt.Printf("Brand:     %s\n", id.Brand)
					fmt.Printf("Model:     %s\n", id.Model)
					fmt.Printf("Hardware:  %s\n", id.HardwareVersion)
					fmt.Printf("Firmware:  %s\n", id.FirmwareVersion)
					if id.HasUID {
						fmt.Printf("UID:       %s\n", id.UID)
					}
					return nil
				}
			}
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 3*time.Second, "how long to wait for the response")
	return cmd
}
