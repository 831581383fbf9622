// cmd/status.go

package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"ChunkFS/pkg/store"
)

type sections struct {
	Setting *store.Format
	Files   int
}

func printJson(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatalf("json: %s", err)
	}
	fmt.Println(string(output))
}

func status(ctx *cli.Context) error {
	setLoggerLevel(ctx)
	if ctx.Args().Len() < 1 {
		return fmt.Errorf("STORE-URL is needed")
	}
	s, err := store.Create(ctx.Args().Get(0))
	if err != nil {
		logger.Fatalf("chunk store: %s", err)
	}
	defer s.Close()

	format, err := s.Load()
	if err != nil {
		logger.Fatalf("load setting: %s", err)
	}
	format.RemoveSecret()

	files, err := s.ListFiles("")
	if err != nil {
		logger.Fatalf("list files: %s", err)
	}

	printJson(&sections{format, len(files)})
	return nil
}

func statusFlags() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "show status of a volume",
		ArgsUsage: "STORE-URL",
		Action:    status,
	}
}
