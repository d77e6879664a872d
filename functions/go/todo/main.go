package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	fri "github.com/3s-rg-codes/openruntimes-go/pkg/functionRuntimeInterface"
	"github.com/3s-rg-codes/openruntimes-go/pkg/stats"
	"github.com/3s-rg-codes/openruntimes-go/pkg/todo"
	"github.com/3s-rg-codes/openruntimes-go/pkg/utils"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "todo",
		Usage: "sample function fetching a todo from jsonplaceholder",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "address",
				Value:   "0.0.0.0:3000",
				Usage:   "executor protocol listen address",
				Sources: cli.EnvVars("OPEN_RUNTIMES_ADDRESS"),
			},
			&cli.StringFlag{
				Name:    "grpc-address",
				Value:   "",
				Usage:   "gRPC listen address, empty disables gRPC",
				Sources: cli.EnvVars("OPEN_RUNTIMES_GRPC_ADDRESS"),
			},
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "secret expected in x-internal-challenge",
				Sources: cli.EnvVars("OPEN_RUNTIMES_SECRET"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   0,
				Usage:   "per execution timeout, 0 disables it",
				Sources: cli.EnvVars("OPEN_RUNTIMES_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "idle-timeout",
				Value:   0,
				Usage:   "stop after this long without executions, 0 disables it",
				Sources: cli.EnvVars("OPEN_RUNTIMES_IDLE_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "todo-base-url",
				Value:   todo.DefaultBaseURL,
				Usage:   "base URL of the todo API",
				Sources: cli.EnvVars("TODO_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "log format (text, json, dev)",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "log file path (defaults to stdout)",
				Sources: cli.EnvVars("LOG_FILE"),
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logger, err := utils.SetupLogger(cmd.String("log-level"), cmd.String("log-format"), cmd.String("log-file"))
	if err != nil {
		return err
	}

	settings := fri.DefaultSettings()
	settings.HTTPAddress = cmd.String("address")
	settings.GRPCAddress = cmd.String("grpc-address")
	settings.Secret = cmd.String("secret")
	settings.ExecutionTimeout = cmd.Duration("timeout")
	settings.IdleTimeout = cmd.Duration("idle-timeout")

	logger.Info("starting todo function",
		"address", settings.HTTPAddress,
		"grpc_address", settings.GRPCAddress,
		"todo_base_url", cmd.String("todo-base-url"),
		"timeout", settings.ExecutionTimeout.String(),
		"idle_timeout", settings.IdleTimeout.String(),
	)

	fn := &todoFunction{todos: todo.NewClient(cmd.String("todo-base-url"), logger)}
	recorder := stats.NewRecorder(logger, stats.DefaultWindow)
	runtime := fri.New(settings, fn.Handle, logger, recorder)

	start := time.Now()
	err = runtime.Serve(ctx)
	logger.Info("todo function stopped", "uptime", time.Since(start).String())
	return err
}
