// Package cmd 命令行入口：serve 启动仪表盘服务，其余子命令在终端运行单个计算模块
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/application"
	"github.com/wyfcoding/insurancefundamentals/pkg/config"
	"github.com/wyfcoding/insurancefundamentals/pkg/logger"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fundamentals",
	Short: "Insurance fundamentals - interactive simulations",
	Long: `Interactive simulations of five insurance fundamentals:

  lln            - law of large numbers
  pooling        - risk pooling
  balance-sheet  - insurer balance sheet and income statement
  premium        - premium calculation
  capital        - role of capital and probability of ruin

Run "fundamentals serve" for the web dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令
func Execute() error {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		printError(err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/fundamentals/config.toml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func loggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}
}

// initCLILogger 终端命令只向 stderr 输出告警以上的文本日志
func initCLILogger() {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger.InitWithWriter(os.Stderr, logger.Config{Level: level, Format: "text"})
}

// serviceOptions 由配置得到的服务选项
func serviceOptions(cfg *config.Config) []application.Option {
	opts := []application.Option{
		application.WithDefaults(application.Defaults{
			MaxSampleSize: cfg.Simulation.MaxSampleSize,
			PoolingTrials: cfg.Simulation.PoolingTrials,
			CapitalTrials: cfg.Simulation.CapitalTrials,
		}),
	}
	if cfg.Simulation.Seed != nil {
		opts = append(opts, application.WithDefaultSeed(*cfg.Simulation.Seed))
	}
	return opts
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
