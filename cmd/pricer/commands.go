package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/wyfcoding/quant/algorithm/types"
	"github.com/wyfcoding/quant/bootstrap"
	"github.com/wyfcoding/quant/config"
	"github.com/wyfcoding/quant/pricing"
)

// globalFlags 为所有子命令共享的运行参数
type globalFlags struct {
	configPath  string
	printConfig bool
	showMetrics bool
}

// contractFlags 描述一份合约及其数值参数
type contractFlags struct {
	optionType string
	product    string
	spot       float64
	strike     float64
	rate       float64
	expiry     float64
	volatility float64
	dividend   float64
	digits     int

	steps       int
	simulations int
	seed        uint64
}

func (f *contractFlags) request(method pricing.Method) pricing.Request {
	req := pricing.Request{
		Method:      method,
		OptionType:  types.OptionType(strings.ToUpper(f.optionType)),
		Product:     types.Product(f.product),
		Spot:        f.spot,
		Strike:      f.strike,
		Rate:        f.rate,
		Expiry:      f.expiry,
		Volatility:  f.volatility,
		Dividend:    f.dividend,
		Steps:       f.steps,
		Simulations: f.simulations,
		Seed:        f.seed,
	}
	if f.digits >= 0 {
		d := f.digits
		req.RoundDigits = &d
	}
	return req
}

// addContractFlags 注册合约参数，spot、strike、expiry 必填
func addContractFlags(cmd *cobra.Command, f *contractFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.optionType, "type", "CALL", "option type: CALL or PUT")
	fs.StringVar(&f.product, "product", "", "cost-of-carry model: stock_option, stock_option_with_dividend, futures_option, margined_futures_option, currency_option")
	fs.Float64Var(&f.spot, "spot", 0, "spot price of the underlying")
	fs.Float64Var(&f.strike, "strike", 0, "strike price")
	fs.Float64Var(&f.rate, "rate", 0, "continuously compounded risk-free rate")
	fs.Float64Var(&f.expiry, "expiry", 0, "time to expiry in years")
	fs.Float64Var(&f.volatility, "vol", 0, "annualized volatility")
	fs.Float64Var(&f.dividend, "dividend", 0, "continuous dividend yield (foreign rate for currency options)")
	fs.IntVar(&f.digits, "digits", -1, "rounding digits, negative uses config")
	for _, name := range []string{"spot", "strike", "expiry"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

const zeroVolNote = "note: at zero volatility the binomial lattice discounts the payoff at today's spot, " +
	"while monte_carlo and black_scholes use the forward price, so they may disagree."

func newRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "pricer",
		Short:         "Price European options with a binomial lattice, Monte Carlo or Black-Scholes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "path to TOML config file")
	pf.BoolVar(&g.printConfig, "print-config", false, "print the effective config (secrets masked) to stderr")
	pf.BoolVar(&g.showMetrics, "metrics", false, "print pricing metrics after the result")

	root.AddCommand(
		newSingleCommand(g, pricing.MethodBinomial),
		newSingleCommand(g, pricing.MethodMonteCarlo),
		newSingleCommand(g, pricing.MethodBlackScholes),
		newCompareCommand(g),
		newConvergeCommand(g),
		newBatchCommand(g),
	)
	return root
}

func newSingleCommand(g *globalFlags, method pricing.Method) *cobra.Command {
	f := &contractFlags{}
	var showDelta bool

	cmd := &cobra.Command{
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSingle(cmd, g, f, method, showDelta)
		},
	}
	addContractFlags(cmd, f)

	switch method {
	case pricing.MethodBinomial:
		cmd.Use = "binomial"
		cmd.Short = "Price with a Cox-Ross-Rubinstein binomial lattice"
		cmd.Flags().IntVar(&f.steps, "steps", 0, "lattice steps, 0 uses config")
	case pricing.MethodMonteCarlo:
		cmd.Use = "montecarlo"
		cmd.Aliases = []string{"mc"}
		cmd.Short = "Price with Monte Carlo simulation of terminal prices"
		cmd.Flags().IntVar(&f.simulations, "sims", 0, "number of simulations, 0 uses config")
		cmd.Flags().Uint64Var(&f.seed, "seed", 0, "random seed, 0 uses config or crypto/rand")
	case pricing.MethodBlackScholes:
		cmd.Use = "bs"
		cmd.Short = "Price with the closed-form generalized Black-Scholes formula"
		cmd.Flags().BoolVar(&showDelta, "delta", false, "also print the option delta")
	}
	return cmd
}

func newCompareCommand(g *globalFlags) *cobra.Command {
	f := &contractFlags{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Price the same contract with every method and tabulate the results",
		Long: "Price the same contract with every method and tabulate the results.\n\n" +
			"At zero volatility the binomial lattice returns payoff(spot)*exp(-rate*expiry), " +
			"while Monte Carlo and Black-Scholes return the forward limit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompare(cmd, g, f)
		},
	}
	addContractFlags(cmd, f)
	cmd.Flags().IntVar(&f.steps, "steps", 0, "lattice steps, 0 uses config")
	cmd.Flags().IntVar(&f.simulations, "sims", 0, "number of simulations, 0 uses config")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "random seed, 0 uses config or crypto/rand")
	return cmd
}

func newConvergeCommand(g *globalFlags) *cobra.Command {
	f := &contractFlags{}
	var from, to, by int
	cmd := &cobra.Command{
		Use:   "converge",
		Short: "Sweep binomial step counts and show convergence to Black-Scholes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConverge(cmd, g, f, from, to, by)
		},
	}
	addContractFlags(cmd, f)
	cmd.Flags().IntVar(&from, "from", 10, "first step count")
	cmd.Flags().IntVar(&to, "to", 200, "last step count (inclusive)")
	cmd.Flags().IntVar(&by, "by", 10, "step count increment")
	return cmd
}

func setup(cmd *cobra.Command, g *globalFlags, watch bool) (*bootstrap.Bootstrapper, error) {
	b := bootstrap.New("pricer", version)
	opts := bootstrap.Options{ConfigPath: g.configPath, Watch: watch, LogOutput: cmd.ErrOrStderr()}
	if err := b.Initialize(opts); err != nil {
		return nil, err
	}
	if g.printConfig {
		if err := config.PrintWithMask(cmd.ErrOrStderr(), b.Config.Get()); err != nil {
			_ = b.Close()
			return nil, err
		}
	}
	return b, nil
}

func runSingle(cmd *cobra.Command, g *globalFlags, f *contractFlags, method pricing.Method, showDelta bool) error {
	b, err := setup(cmd, g, false)
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.Engine.Price(cmd.Context(), f.request(method))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s price: %v\n", res.Method, res.OptionType, res.Price)
	if showDelta {
		if res.Delta == nil {
			fmt.Fprintf(out, "%s %s delta: undefined at zero volatility\n", res.Method, res.OptionType)
		} else {
			fmt.Fprintf(out, "%s %s delta: %v\n", res.Method, res.OptionType, *res.Delta)
		}
	}
	if g.showMetrics {
		return printMetrics(out, b)
	}
	return nil
}

func runCompare(cmd *cobra.Command, g *globalFlags, f *contractFlags) error {
	b, err := setup(cmd, g, false)
	if err != nil {
		return err
	}
	defer b.Close()

	results, err := b.Engine.Compare(cmd.Context(), f.request(""))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := renderComparison(out, results); err != nil {
		return err
	}
	if f.volatility == 0 {
		fmt.Fprintln(out, zeroVolNote)
	}
	if g.showMetrics {
		return printMetrics(out, b)
	}
	return nil
}

func runConverge(cmd *cobra.Command, g *globalFlags, f *contractFlags, from, to, by int) error {
	b, err := setup(cmd, g, false)
	if err != nil {
		return err
	}
	defer b.Close()

	req := f.request(pricing.MethodBlackScholes)
	ref, err := b.Engine.Price(cmd.Context(), req)
	if err != nil {
		return err
	}
	results, err := b.Engine.Converge(cmd.Context(), req, from, to, by)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	table := tablewriter.NewWriter(out)
	table.Header("Steps", "Binomial", "Diff vs BS")
	for _, r := range results {
		if err := table.Append(
			fmt.Sprintf("%d", r.Steps),
			fmt.Sprintf("%.6f", r.Price),
			fmt.Sprintf("%+.6f", r.Price-ref.Price),
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(out, "black_scholes %s reference: %v\n", ref.OptionType, ref.Price)
	if g.showMetrics {
		return printMetrics(out, b)
	}
	return nil
}

// renderComparison 以 Black-Scholes 为基准列出各方法的偏差。
func renderComparison(w io.Writer, results []*pricing.Result) error {
	reference := math.NaN()
	for _, r := range results {
		if r.Method == pricing.MethodBlackScholes {
			reference = r.Price
		}
	}

	table := tablewriter.NewWriter(w)
	table.Header("Method", "Type", "Price", "Diff vs BS", "Steps/Sims", "Elapsed")
	for _, r := range results {
		size := "-"
		switch {
		case r.Steps > 0:
			size = fmt.Sprintf("%d steps", r.Steps)
		case r.Simulations > 0:
			size = fmt.Sprintf("%d sims", r.Simulations)
		}
		if err := table.Append(
			string(r.Method),
			string(r.OptionType),
			fmt.Sprintf("%.6f", r.Price),
			fmt.Sprintf("%+.6f", r.Price-reference),
			size,
			r.Elapsed.String(),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func printMetrics(w io.Writer, b *bootstrap.Bootstrapper) error {
	if b.Metrics == nil {
		fmt.Fprintln(w, "metrics disabled")
		return nil
	}
	samples, err := b.Metrics.Snapshot("")
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Labels", "Value")
	for _, s := range samples {
		if !strings.Contains(s.Name, "pricing_") && !strings.HasSuffix(s.Name, "build_info") {
			continue
		}
		if err := table.Append(s.Name, s.Labels, fmt.Sprintf("%g", s.Value)); err != nil {
			return err
		}
	}
	return table.Render()
}
