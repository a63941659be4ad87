package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// buildCallCmd creates the "call" command that places an outbound call
// through a running callflow server.
func buildCallCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "call <phone>",
		Short: "Place an outbound call to a registered patient",
		Example: `  # Place a call through the local server
  callflow call +15551234567

  # Against a remote server
  callflow call +15551234567 --server https://callflow.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runCall(serverURL, args[0])
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Callflow server base URL")
	return cmd
}

func runCall(serverURL, phone string) error {
	payload, err := json.Marshal(map[string]string{"phone": phone})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(serverURL+"/api/calls", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result struct {
		CallID string `json:"call_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	fmt.Printf("Call placed: %s\n", result.CallID)
	return nil
}
