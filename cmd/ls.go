// cmd/ls.go

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func ls(ctx *cli.Context) error {
	setLoggerLevel(ctx)
	if ctx.Args().Len() < 1 {
		return fmt.Errorf("STORE-URL is needed")
	}
	bs, s := openVolume(ctx)
	defer s.Close()

	if ctx.Args().Len() < 2 {
		containers, err := bs.ListContainers()
		if err != nil {
			logger.Fatalf("list containers: %s", err)
		}
		for _, name := range containers {
			if ctx.Bool("long") {
				info, err := bs.ContainerMetadata(name)
				if err != nil {
					logger.Fatalf("container %s: %s", name, err)
				}
				fmt.Printf("%-11s %s %s\n", info.Access, info.CreatedAt.Format("2006-01-02 15:04:05"), name)
			} else {
				fmt.Println(name)
			}
		}
		return nil
	}

	container, _ := splitTarget(ctx.Args().Get(1))
	keys, err := bs.ListObjects(container)
	if err != nil {
		logger.Fatalf("list %s: %s", container, err)
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

func lsFlags() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "list containers or the objects of one container",
		ArgsUsage: "STORE-URL [CONTAINER]",
		Action:    ls,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "long",
				Aliases: []string{"l"},
				Usage:   "show access mode and creation time of containers",
			},
		},
	}
}
