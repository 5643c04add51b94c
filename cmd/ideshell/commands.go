package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loykin/ideshell/pkg/client"
)

func newAPIClient(f *GlobalFlags) *client.Client {
	return client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout})
}

func previewStart(cmd *cobra.Command, c *client.Client, f PreviewFlags) error {
	res, err := c.StartPreview(cmd.Context(), f.ServiceID, f.ServiceName, f.Port)
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), res)
	return nil
}

func previewStop(cmd *cobra.Command, c *client.Client, serviceID string) error {
	res, err := c.StopPreview(cmd.Context(), serviceID)
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), res)
	return nil
}

func previewStatus(cmd *cobra.Command, c *client.Client, serviceID string) error {
	st, err := c.PreviewStatus(cmd.Context(), serviceID)
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), st)
	return nil
}

func saveFile(cmd *cobra.Command, c *client.Client, f SaveFlags) error {
	var (
		b   []byte
		err error
	)
	if f.From == "-" || f.From == "" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(filepath.Clean(f.From))
	}
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}
	res, err := c.SaveFile(cmd.Context(), f.FileID, string(b))
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), res)
	return nil
}

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(b))
}
