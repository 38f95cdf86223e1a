package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/quant/pricing"
	"github.com/wyfcoding/quant/xerrors"
)

// batchRecord 批量定价的一行输出
type batchRecord struct {
	Line   int             `json:"line"`
	Result *pricing.Result `json:"result,omitempty"`
	Error  *batchError     `json:"error,omitempty"`
}

// batchError 失败请求的错误摘要，Status 为 gRPC 状态码名称
type batchError struct {
	Status  string         `json:"status"`
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

func newBatchError(err error) *batchError {
	xe, ok := xerrors.FromError(err)
	if !ok {
		xe = xerrors.WrapInternal(err, "pricing failed")
	}
	st := xe.ToGRPCStatus()
	return &batchError{
		Status:  st.Code().String(),
		Code:    xe.Code,
		Message: st.Message(),
		Context: xe.Context,
	}
}

func newBatchCommand(g *globalFlags) *cobra.Command {
	var (
		input string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Price JSON requests read line by line and write one JSON result per line",
		Long: "Price JSON requests read line by line and write one JSON result per line.\n\n" +
			"Each input line is a request such as\n" +
			`  {"method":"binomial","option_type":"PUT","spot":50,"strike":52,"rate":0.05,"expiry":2,"volatility":0.3}` + "\n" +
			"With --watch and --config, edits to the config file apply to the lines priced afterwards.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := cmd.InOrStdin()
			if input != "" && input != "-" {
				file, err := os.Open(input)
				if err != nil {
					return err
				}
				defer file.Close()
				in = file
			}
			return runBatch(cmd, g, in, watch)
		},
	}
	cmd.Flags().StringVar(&input, "input", "-", "request file, - reads stdin")
	cmd.Flags().BoolVar(&watch, "watch", false, "hot-reload the config file while the stream runs")
	return cmd
}

func runBatch(cmd *cobra.Command, g *globalFlags, in io.Reader, watch bool) error {
	b, err := setup(cmd, g, watch)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx := cmd.Context()
	enc := json.NewEncoder(cmd.OutOrStdout())
	scanner := bufio.NewScanner(in)

	var line, total, failed int
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return xerrors.Aborted(err)
		}
		total++

		rec := batchRecord{Line: line}
		res, err := priceLine(cmd, b.Engine, raw, line)
		if err != nil {
			failed++
			rec.Error = newBatchError(err)
		} else {
			rec.Result = res
		}
		if err := enc.Encode(rec); err != nil {
			return xerrors.WrapInternal(err, "write batch result")
		}
	}
	if err := scanner.Err(); err != nil {
		return xerrors.InvalidInput(err, "read batch input after line %d", line)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, total)
	}
	return nil
}

func priceLine(cmd *cobra.Command, engine *pricing.Engine, raw []byte, line int) (*pricing.Result, error) {
	var req pricing.Request
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, xerrors.InvalidInput(err, "line %d is not a pricing request", line).WithContext("line", line)
	}

	res, err := engine.Price(cmd.Context(), req)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrInternal, fmt.Sprintf("line %d", line)).WithContext("line", line)
	}
	return res, nil
}
