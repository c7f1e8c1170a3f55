package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/reipc/codec"
	"github.com/vinayprograms/reipc/provider"
	"github.com/vinayprograms/reipc/shutdown"
)

func newCallCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [params-json]",
		Short: "Issue one call and print its result",
		Long: `Issue one call and print its result as JSON.

Params, when given, must be a JSON array or object:

  reipc call eth_getBalance '["0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae", "latest"]'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := args[0]
			params, err := parseParams(ctx.cfg.Codec, args[1:])
			if err != nil {
				return err
			}

			return ctx.withProvider(cmd, func(runCtx context.Context, p *provider.Provider, _ *shutdown.Coordinator) error {
				result, err := callResult(runCtx, p, method, params)
				if err != nil {
					return ctx.reportError(cmd, err)
				}
				return writeJSON(cmd, result)
			})
		},
	}
}

// parseParams validates the optional params argument. For JSON the text is
// sent as is; other codecs need a decoded value to re-encode.
func parseParams(codecName string, args []string) (interface{}, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, nil
	}
	raw := json.RawMessage(args[0])

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	switch v.(type) {
	case []interface{}, map[string]interface{}:
	default:
		return nil, fmt.Errorf("params must be a JSON array or object, got %s", args[0])
	}

	if c, err := codec.ByName(codecName); err == nil && c.Name() == (codec.JSON{}).Name() {
		return raw, nil
	}
	return v, nil
}

// callResult returns the result in a form writeJSON can print. JSON results
// are passed through untouched.
func callResult(ctx context.Context, p *provider.Provider, method string, params interface{}) (interface{}, error) {
	if p.Codec().Name() == (codec.JSON{}).Name() {
		raw, err := provider.Call[json.RawMessage](ctx, p, method, params)
		if err != nil {
			return nil, err
		}
		return raw, nil
	}
	return provider.Call[interface{}](ctx, p, method, params)
}
