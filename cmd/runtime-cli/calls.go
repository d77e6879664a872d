package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/goforj/godump"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	fri "github.com/3s-rg-codes/openruntimes-go/pkg/functionRuntimeInterface"
	"github.com/3s-rg-codes/openruntimes-go/pkg/stats"
	"github.com/3s-rg-codes/openruntimes-go/pkg/utils"
)

type CallOptions struct {
	Address    string
	Secret     string
	Payload    string
	Variables  map[string]string
	UseGRPC    bool
	Attempts   int
	RetryDelay time.Duration
}

type executor interface {
	Execute(ctx context.Context, payload string, variables map[string]string) (*fri.Result, error)
}

// CallFunction executes the function, retrying only while the runtime cannot be reached.
// A failed execution is returned together with its result so logs can still be shown.
func CallFunction(ctx context.Context, opts CallOptions) (*fri.Result, error) {
	var client executor
	if opts.UseGRPC {
		conn, err := grpc.NewClient(opts.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC client: %w", err)
		}
		defer conn.Close()
		client = fri.NewGRPCClient(conn, opts.Secret)
	} else {
		client = fri.NewClient(opts.Address, opts.Secret)
	}

	var failed *fri.Result
	result, err := utils.CallWithRetry(ctx, func() (*fri.Result, error) {
		r, err := client.Execute(ctx, opts.Payload, opts.Variables)
		if err == nil {
			return r, nil
		}
		if !retryable(err) {
			failed = r
			return nil, utils.Permanent(err)
		}
		return nil, err
	}, opts.Attempts, opts.RetryDelay)
	if err != nil {
		return failed, err
	}
	return result, nil
}

func retryable(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return status.Code(err) == codes.Unavailable
}

func GetStats(ctx context.Context, address, secret string) (stats.Snapshot, error) {
	return fri.NewClient(address, secret).Stats(ctx)
}

func PrintResult(w io.Writer, result *fri.Result, dump bool) {
	if dump {
		godump.Fdump(w, result)
		return
	}
	fmt.Fprintf(w, "%s\n", result.Response)
	if result.Stdout != "" {
		fmt.Fprintf(w, "--- stdout (%s) ---\n%s", result.ExecutionID, result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprintf(w, "--- stderr (%s) ---\n%s", result.ExecutionID, result.Stderr)
	}
}
