package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/quant/xerrors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runWithInput(t, "", args...)
	return out, err
}

func runWithInput(t *testing.T, input string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

var contract = []string{"--type", "put", "--spot", "50", "--strike", "52", "--rate", "0.05", "--expiry", "2", "--vol", "0.3"}

func TestBinomialCommand(t *testing.T) {
	out, err := run(t, append([]string{"binomial", "--steps", "100"}, contract...)...)
	require.NoError(t, err)
	assert.Equal(t, "binomial PUT price: 6.7781\n", out)
}

func TestBlackScholesCommand(t *testing.T) {
	out, err := run(t, append([]string{"bs", "--digits", "2"}, contract...)...)
	require.NoError(t, err)
	assert.Equal(t, "black_scholes PUT price: 6.76\n", out)
}

func TestBlackScholesDelta(t *testing.T) {
	out, err := run(t, append([]string{"bs", "--delta"}, contract...)...)
	require.NoError(t, err)
	assert.Equal(t, "black_scholes PUT price: 6.7601\nblack_scholes PUT delta: -0.3611\n", out)
}

func TestMonteCarloCommand(t *testing.T) {
	out, err := run(t, append([]string{"mc", "--sims", "2000", "--seed", "3", "--metrics"}, contract...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "monte_carlo PUT price: ")
	assert.Contains(t, out, "pricing_requests_total")
}

func TestCompareCommand(t *testing.T) {
	out, err := run(t, append([]string{"compare", "--steps", "500", "--sims", "5000", "--seed", "11"}, contract...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "binomial")
	assert.Contains(t, out, "monte_carlo")
	assert.Contains(t, out, "black_scholes")
	assert.Contains(t, out, "6.756900")
	assert.Contains(t, out, "6.760100")
	assert.Contains(t, out, "500 steps")
	assert.Contains(t, out, "5000 sims")
}

func TestCompareWithDividendAndZeroVol(t *testing.T) {
	out, err := run(t, "compare", "--type", "call", "--spot", "50", "--strike", "52", "--rate", "0.05",
		"--expiry", "2", "--vol", "0.3", "--dividend", "0.02", "--sims", "2000", "--seed", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "binomial")
	assert.NotContains(t, out, "note:")

	out, err = run(t, "compare", "--type", "put", "--spot", "50", "--strike", "52", "--rate", "0.05",
		"--expiry", "2", "--vol", "0", "--sims", "100", "--seed", "5")
	require.NoError(t, err)
	assert.Contains(t, out, zeroVolNote)
}

func TestConvergeCommand(t *testing.T) {
	out, err := run(t, append([]string{"converge", "--from", "10", "--to", "30", "--by", "10"}, contract...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "6.747000")
	assert.Contains(t, out, "6.784100")
	assert.Contains(t, out, "6.789200")
	assert.Contains(t, out, "black_scholes PUT reference: 6.7601")

	_, err = run(t, append([]string{"converge", "--from", "0"}, contract...)...)
	assert.ErrorIs(t, err, xerrors.ErrInvalidParameter)
}

func TestPrintConfig(t *testing.T) {
	out, stderr, err := runWithInput(t, "", append([]string{"bs", "--print-config"}, contract...)...)
	require.NoError(t, err)
	assert.Equal(t, "black_scholes PUT price: 6.7601\n", out)
	assert.Contains(t, stderr, `"default_steps": 500`)
}

func TestBatchCommand(t *testing.T) {
	input := strings.Join([]string{
		`{"method":"binomial","option_type":"PUT","spot":50,"strike":52,"rate":0.05,"expiry":2,"volatility":0.3,"steps":100}`,
		``,
		`{"method":"binomial",`,
		`{"method":"black_scholes","option_type":"PUT","spot":-50,"strike":52,"rate":0.05,"expiry":2,"volatility":0.3}`,
		`{"method":"black_scholes","option_type":"CALL","spot":50,"strike":52,"rate":0.05,"expiry":2,"volatility":0.3}`,
	}, "\n")

	out, _, err := runWithInput(t, input, "batch")
	require.Error(t, err)
	assert.Equal(t, "2 of 4 requests failed", err.Error())

	var records []batchRecord
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var rec batchRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 4)

	assert.Equal(t, 1, records[0].Line)
	require.NotNil(t, records[0].Result)
	assert.Equal(t, 6.7781, records[0].Result.Price)

	assert.Equal(t, 3, records[1].Line)
	require.NotNil(t, records[1].Error)
	assert.Equal(t, "InvalidArgument", records[1].Error.Status)
	assert.Equal(t, xerrors.CodeInvalidInput, records[1].Error.Code)

	assert.Equal(t, 4, records[2].Line)
	require.NotNil(t, records[2].Error)
	assert.Equal(t, xerrors.CodeInvalidParameter, records[2].Error.Code)
	assert.Contains(t, records[2].Error.Message, "Spot violates gt=0")
	assert.Equal(t, 4.0, records[2].Error.Context["line"])

	require.NotNil(t, records[3].Result)
	assert.Equal(t, 9.7086, records[3].Result.Price)
}

func TestBatchCommandWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricer.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pricing]\ndefault_steps = 10\n"), 0o600))

	input := `{"method":"binomial","option_type":"PUT","spot":50,"strike":52,"rate":0.05,"expiry":2,"volatility":0.3}`
	out, _, err := runWithInput(t, input, "batch", "--watch", "--config", path)
	require.NoError(t, err)

	var rec batchRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	require.NotNil(t, rec.Result)
	assert.Equal(t, 10, rec.Result.Steps)
	assert.Equal(t, 6.747, rec.Result.Price)

	_, _, err = runWithInput(t, "", "batch", "--input", filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 2, exitCode(xerrors.InvalidParameter("spot")))
	assert.Equal(t, 130, exitCode(xerrors.Aborted(context.Canceled)))
	assert.Equal(t, 1, exitCode(xerrors.Aborted(context.DeadlineExceeded)))
	assert.Equal(t, 1, exitCode(xerrors.WrapInternal(errors.New("disk"), "write")))
}

func TestCommandErrors(t *testing.T) {
	_, err := run(t, "binomial", "--spot", "50")
	assert.Error(t, err, "missing required flags")

	_, err = run(t, "binomial", "--type", "straddle", "--spot", "50", "--strike", "52", "--expiry", "1", "--vol", "0.2")
	assert.ErrorIs(t, err, xerrors.ErrInvalidOptionType)

	_, err = run(t, "bs", "--spot", "-50", "--strike", "52", "--expiry", "1", "--vol", "0.2")
	assert.ErrorIs(t, err, xerrors.ErrInvalidParameter)

	_, err = run(t, append([]string{"binomial", "--steps", "3000000000"}, contract...)...)
	require.ErrorIs(t, err, xerrors.ErrInvalidParameter)
	assert.Equal(t, 2, exitCode(err))
}
