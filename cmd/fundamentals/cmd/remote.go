package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	grpcapi "github.com/wyfcoding/insurancefundamentals/internal/fundamentals/interfaces/grpc"
	"github.com/wyfcoding/insurancefundamentals/pkg/grpcclient"
)

var (
	remoteAddr    string
	remoteParams  string
	remoteTimeout int
	// remoteDialOptions 附加的拨号选项，例如自定义 dialer
	remoteDialOptions []grpc.DialOption
)

var remoteCmd = &cobra.Command{
	Use:   "remote [module]",
	Short: "Run a simulation on a running server over gRPC",
	Long: `Runs a simulation on a running "fundamentals serve" instance over gRPC and
prints the report as JSON. Without a module, lists the modules the server offers.

Examples:
  fundamentals remote capital --params '{"initial_capital": 30, "seed": 7}'
  fundamentals remote premium --params @premium.json
  fundamentals remote --addr 10.0.0.5:50051`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRemote,
}

func init() {
	rootCmd.AddCommand(remoteCmd)

	remoteCmd.Flags().StringVar(&remoteAddr, "addr", "localhost:50051", "gRPC server address")
	remoteCmd.Flags().StringVarP(&remoteParams, "params", "p", "", "JSON parameters, or @file to read them from a file")
	remoteCmd.Flags().IntVar(&remoteTimeout, "timeout", 60, "request timeout in seconds")
}

func runRemote(cmd *cobra.Command, args []string) error {
	initCLILogger()

	conn, err := grpcclient.NewClient(grpcclient.ClientConfig{
		Target:         remoteAddr,
		ConnTimeout:    5,
		RequestTimeout: remoteTimeout,
		MaxRetries:     2,
		RetryDelay:     200,
	}, remoteDialOptions...)
	if err != nil {
		return err
	}
	defer conn.Close()

	client := grpcapi.NewClient(conn)

	var raw json.RawMessage
	if len(args) == 0 {
		raw, err = client.ListModules(cmd.Context())
	} else {
		var module domain.Module
		if module, err = domain.ParseModule(args[0]); err != nil {
			return err
		}
		var params json.RawMessage
		if params, err = readParams(remoteParams); err != nil {
			return err
		}
		raw, err = client.Run(cmd.Context(), module, params)
	}
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(cmd.OutOrStdout())
	return err
}

func readParams(s string) (json.RawMessage, error) {
	if name, ok := strings.CutPrefix(s, "@"); ok {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read params: %w", err)
		}
		return b, nil
	}
	return json.RawMessage(s), nil
}
