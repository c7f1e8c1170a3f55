package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	rpcerrors "github.com/vinayprograms/reipc/errors"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportError writes err as a JSON object in JSON mode. Otherwise it is
// returned for main to print.
func (c *commandContext) reportError(cmd *cobra.Command, err error) error {
	if !c.jsonOutput(cmd) {
		return err
	}

	var payload any = err.Error()
	if rpcErr := rpcerrors.AsRPCError(err); rpcErr != nil {
		payload = rpcErr
	}
	if werr := writeJSON(cmd, map[string]any{"error": payload}); werr != nil {
		return err
	}
	return errReported
}
