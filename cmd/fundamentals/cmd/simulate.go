package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/application"
	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/infrastructure/chart"
)

// param 一个计算参数：JSON 字段名与说明，命令行标志名为字段名的短横线形式
type param struct {
	key   string
	usage string
}

func (p param) flag() string { return strings.ReplaceAll(p.key, "_", "-") }

var seedParam = param{"seed", "random seed; omit for a fresh seed"}

var moduleParams = map[domain.Module][]param{
	domain.ModuleLawOfLargeNumbers: {
		{"probability", "true accident probability"},
		{"max_sample_size", "largest number of drivers"},
		seedParam,
	},
	domain.ModuleRiskPooling: {
		{"policyholders", "number of policyholders"},
		{"claim_probability", "probability of a claim per policyholder"},
		{"severity_mean", "mean claim amount"},
		{"severity_std_dev", "claim amount standard deviation; 0 for a fixed amount"},
		{"trials", "trials per pool size on the variance curve"},
		seedParam,
	},
	domain.ModuleBalanceSheet: {
		{"premium", "annual premium ($M)"},
		{"baseline_assets", "invested capital ($M)"},
		{"baseline_liabilities", "other reserves ($M)"},
		{"loss_ratios", "comma separated loss ratios, one scenario each"},
		{"expense_ratio", "expense ratio"},
		{"investment_return", "investment return"},
		{"receivable_ratio", "premiums receivable as a share of premium"},
		{"unearned_ratio", "unearned premium reserve as a share of premium"},
		{"min_capital_ratio", "minimum capital as a share of premium"},
	},
	domain.ModulePremium: {
		{"frequency", "accident frequency"},
		{"severity", "average claim cost ($)"},
		{"pure_premium", "pure premium ($); overrides frequency x severity"},
		{"expense_load", "expense loading"},
		{"profit_load", "profit loading"},
		{"risk_margin", "risk margin"},
		{"convention", "loading convention: additive, multiplicative or gross_up"},
	},
	domain.ModuleCapital: {
		{"initial_capital", "initial capital ($M)"},
		{"premium", "annual premium ($M)"},
		{"expected_loss_ratio", "expected loss ratio"},
		{"loss_ratio_std_dev", "loss ratio standard deviation"},
		{"loss_ratio_floor", "lowest possible loss ratio"},
		{"expense_ratio", "expense ratio"},
		{"investment_return", "return on capital"},
		{"years", "years to simulate"},
		{"trials", "number of simulated companies"},
		{"capital_levels", "comma separated capital levels for the ruin curve"},
		seedParam,
	},
}

type outputOptions struct {
	json  bool
	chart string
}

func newSimulateCmd(use string, module domain.Module) *cobra.Command {
	var out outputOptions
	params := moduleParams[module]

	cmd := &cobra.Command{
		Use:   use,
		Short: "Run the " + module.Title() + " simulation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initCLILogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			raw, err := changedParams(cmd.Flags(), params)
			if err != nil {
				return err
			}

			svc := application.NewSimulationService(serviceOptions(cfg)...)
			report, err := svc.Run(cmd.Context(), module, raw)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report, out)
		},
	}

	defaults := defaultValues(module)
	for _, p := range params {
		cmd.Flags().String(p.flag(), defaults[p.key], p.usage)
	}
	cmd.Flags().BoolVar(&out.json, "json", false, "print the full report as JSON")
	cmd.Flags().StringVar(&out.chart, "chart", "", "write an HTML chart page to this file")
	return cmd
}

func init() {
	rootCmd.AddCommand(
		newSimulateCmd("lln", domain.ModuleLawOfLargeNumbers),
		newSimulateCmd("pooling", domain.ModuleRiskPooling),
		newSimulateCmd("balance-sheet", domain.ModuleBalanceSheet),
		newSimulateCmd("premium", domain.ModulePremium),
		newSimulateCmd("capital", domain.ModuleCapital),
	)
}

// changedParams 只取用户显式设置的标志，其余参数沿用默认值
func changedParams(flags *pflag.FlagSet, params []param) (json.RawMessage, error) {
	values := make(map[string]string)
	for _, p := range params {
		if !flags.Changed(p.flag()) {
			continue
		}
		v, err := flags.GetString(p.flag())
		if err != nil {
			return nil, err
		}
		values[p.key] = v
	}
	return application.ParamsFromStrings(values)
}

// defaultValues 模块默认参数的字符串形式，用于帮助信息
func defaultValues(module domain.Module) map[string]string {
	raw, err := json.Marshal(application.NewSimulationService().DefaultRequest(module))
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	out := make(map[string]string, len(fields))
	for key, v := range fields {
		switch val := v.(type) {
		case []any:
			parts := make([]string, len(val))
			for i, item := range val {
				parts[i] = fmt.Sprint(item)
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return out
}

func writeReport(w io.Writer, report *domain.Report, out outputOptions) error {
	if out.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "%s\n", report.Module.Title())
		if report.Seed != nil {
			fmt.Fprintf(w, "seed: %d\n", *report.Seed)
		}
		fmt.Fprintln(w)
		for _, line := range report.Interpretation {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	if out.chart == "" {
		return nil
	}
	f, err := os.Create(out.chart)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if err := chart.Render(f, report); err != nil {
		_ = f.Close()
		return fmt.Errorf("render chart: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if !out.json {
		fmt.Fprintf(w, "\nchart written to %s\n", out.chart)
	}
	return nil
}
