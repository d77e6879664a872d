package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

var addressFlag = &cli.StringFlag{
	Name:    "address",
	Usage:   "address of the runtime (HTTP, or gRPC with --grpc)",
	Value:   "localhost:3000",
	Aliases: []string{"a"},
	Sources: cli.EnvVars("OPEN_RUNTIMES_ADDRESS"),
}

var secretFlag = &cli.StringFlag{
	Name:    "secret",
	Usage:   "value sent as x-internal-challenge",
	Sources: cli.EnvVars("OPEN_RUNTIMES_SECRET"),
}

var timeoutFlag = &cli.DurationFlag{
	Name:    "timeout",
	Usage:   "example: 30s, 1m, 1h",
	Aliases: []string{"t"},
	Value:   30 * time.Second,
}

func main() {
	cmd := &cli.Command{
		Name:  "runtime-cli",
		Usage: "talk to a running function runtime",
		Flags: []cli.Flag{
			addressFlag,
			secretFlag,
			timeoutFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "call",
				Usage: "execute the function once",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Usage:   "payload passed to the function",
						Aliases: []string{"d"},
					},
					&cli.StringMapFlag{
						Name:    "variable",
						Usage:   "variable passed to the function, repeatable (key=value)",
						Aliases: []string{"v"},
					},
					&cli.BoolFlag{
						Name:  "grpc",
						Usage: "use the gRPC surface instead of HTTP",
					},
					&cli.Int64Flag{
						Name:  "retries",
						Usage: "attempts while the runtime is not reachable yet",
						Value: 5,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "delay between attempts",
						Value: 500 * time.Millisecond,
					},
					&cli.BoolFlag{
						Name:  "dump",
						Usage: "dump the decoded result instead of printing it",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
					defer cancel()

					result, err := CallFunction(ctx, CallOptions{
						Address:    cmd.String("address"),
						Secret:     cmd.String("secret"),
						Payload:    cmd.String("data"),
						Variables:  cmd.StringMap("variable"),
						UseGRPC:    cmd.Bool("grpc"),
						Attempts:   int(cmd.Int64("retries")),
						RetryDelay: cmd.Duration("retry-delay"),
					})
					if result != nil {
						PrintResult(os.Stdout, result, cmd.Bool("dump"))
					}
					return err
				},
			},
			{
				Name:  "stats",
				Usage: "print execution statistics of the runtime",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
					defer cancel()

					s, err := GetStats(ctx, cmd.String("address"), cmd.String("secret"))
					if err != nil {
						return err
					}
					fmt.Printf("%+v\n", s)
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
