// cmd/rm.go

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func rm(ctx *cli.Context) error {
	setLoggerLevel(ctx)
	if ctx.Args().Len() < 2 {
		return fmt.Errorf("STORE-URL and at least one CONTAINER/KEY are needed")
	}
	bs, s := openVolume(ctx)
	defer s.Close()

	for i := 1; i < ctx.Args().Len(); i++ {
		container, key := splitTarget(ctx.Args().Get(i))
		if key == "" {
			if err := bs.DeleteContainer(container); err != nil {
				logger.Fatalf("delete container %s: %s", container, err)
			}
			logger.Infof("Deleted container %s", container)
			continue
		}
		if err := bs.DeleteObject(container, key); err != nil {
			logger.Fatalf("delete %s/%s: %s", container, key, err)
		}
		logger.Infof("Deleted %s/%s", container, key)
	}
	return nil
}

func rmFlags() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "remove objects or whole containers",
		ArgsUsage: "STORE-URL CONTAINER[/KEY] ...",
		Action:    rm,
	}
}
