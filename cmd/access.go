// cmd/access.go

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"ChunkFS/pkg/blob"
)

func access(ctx *cli.Context) error {
	setLoggerLevel(ctx)
	if ctx.Args().Len() < 2 {
		return fmt.Errorf("STORE-URL and CONTAINER[/KEY] are needed")
	}
	bs, s := openVolume(ctx)
	defer s.Close()

	container, key := splitTarget(ctx.Args().Get(1))
	mode := ctx.Args().Get(2)
	if mode == "" {
		var a blob.Access
		var err error
		if key == "" {
			a, err = bs.ContainerAccess(container)
		} else {
			a, err = bs.ObjectAccess(container, key)
		}
		if err != nil {
			logger.Fatalf("access of %s: %s", ctx.Args().Get(1), err)
		}
		fmt.Println(a)
		return nil
	}

	a, ok := blob.ParseAccess(mode)
	if !ok {
		return fmt.Errorf("unknown access mode %q (private, public-read)", mode)
	}
	var err error
	if key == "" {
		err = bs.SetContainerAccess(container, a)
	} else {
		err = bs.SetObjectAccess(container, key, a)
	}
	if err != nil {
		logger.Fatalf("set access of %s: %s", ctx.Args().Get(1), err)
	}
	logger.Infof("Access of %s is now %s", ctx.Args().Get(1), a)
	return nil
}

func accessFlags() *cli.Command {
	return &cli.Command{
		Name:      "access",
		Usage:     "show or change who may read a container or object",
		ArgsUsage: "STORE-URL CONTAINER[/KEY] [private|public-read]",
		Action:    access,
	}
}
