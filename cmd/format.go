// cmd/format.go

package main

import (
	"bytes"
	"crypto/md5"
	crand "crypto/rand"
	"fmt"
	"math/rand"
	"os"
	"path"
	"regexp"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"ChunkFS/pkg/cipher"
	"ChunkFS/pkg/compress"
	"ChunkFS/pkg/header"
	"ChunkFS/pkg/store"
)

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

func randSeq(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

// hashID is the fixed 32 character form of a company or application name
// used in chunk headers.
func hashID(name string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(name)))
}

func doTesting(s store.Store, key string, data []byte) error {
	if err := s.Put(key, data); err != nil {
		return fmt.Errorf("Failed to put: %s", err)
	}
	data2, err := s.Get(key)
	if err != nil {
		return fmt.Errorf("Failed to get: %s", err)
	}
	if !bytes.Equal(data, data2) {
		return fmt.Errorf("Read wrong data")
	}
	if err = s.Delete(key); err != nil {
		// it's OK to don't have deletion permission
		fmt.Printf("Failed to delete: %s", err)
	}
	return nil
}

func test(s store.Store) error {
	key := "testing/" + randSeq(10)
	data := make([]byte, 100)
	crand.Read(data)
	nRetry := 3
	var err error
	for i := 0; i < nRetry; i++ {
		err = doTesting(s, key, data)
		if err == nil {
			return nil
		}
		time.Sleep(time.Second * time.Duration(i*3+1))
	}
	return err
}

func format(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		logger.Fatalf("Store URL and name are required")
	}
	s, err := store.Create(c.Args().Get(0))
	if err != nil {
		logger.Fatalf("chunk store: %s", err)
	}
	defer s.Close()

	if c.Args().Len() < 2 {
		logger.Fatalf("Please give it a name")
	}
	name := c.Args().Get(1)
	validName := regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{1,61}[a-z0-9]$`)
	if !validName.MatchString(name) {
		logger.Fatalf("invalid name: %s, only alphabet, number and - are allowed, and the length should be 3 to 63 characters.", name)
	}

	compressor := compress.NewCompressor(c.String("compress"))
	if compressor == nil {
		logger.Fatalf("Unsupported compress algorithm: %s", c.String("compress"))
	}
	if c.Bool("no-update") {
		if _, err := s.Load(); err == nil {
			return nil
		}
	}

	format := store.Format{
		Name:            name,
		UUID:            uuid.New().String(),
		BaseDir:         c.String("basedir"),
		AutoContentType: c.Bool("auto-content-type"),
		Cipher:          c.String("cipher"),
		Compression:     c.String("compress"),
		ChunkSize:       c.Int("chunk-size"),
		HeaderSize:      c.Int("header-size"),
		CompanyHash:     hashID(c.String("company")),
		ApplicationHash: hashID(c.String("application")),
		RaidLevel:       c.String("raid-level"),
		RaidLength:      c.String("raid-length"),
		ContentTag:      c.String("content-tag"),
		CacheSize:       c.Int("cache-size"),
	}
	if format.ContentTag == "" {
		format.ContentTag = hashID(name)
	}

	keyPath := c.String("encrypt-rsa-key")
	if keyPath != "" {
		pem, err := os.ReadFile(keyPath)
		if err != nil {
			logger.Fatalf("load RSA key from %s: %s", keyPath, err)
		}
		format.EncryptKey = string(pem)
	}
	if format.Cipher != "" && format.Cipher != cipher.None && format.EncryptKey == "" {
		logger.Fatalf("cipher %s needs --encrypt-rsa-key", format.Cipher)
	}

	if _, err := header.NewCodec(&format); err != nil {
		logger.Fatalf("chunk layout: %s", err)
	}

	if err := test(s); err != nil {
		logger.Fatalf("Store %s is not configured correctly: %s", s.Name(), err)
	}

	err = s.Init(&format, c.Bool("force"))
	if err != nil {
		logger.Fatalf("format: %s", err)
	}
	format.RemoveSecret()
	logger.Infof("Volume is formatted as %+v", format)
	return nil
}

func formatFlags() *cli.Command {
	var defaultBase string
	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Fatalf("%v", err)
		}
		defaultBase = path.Join(homeDir, ".chunkfs", "local")
	case "windows":
		defaultBase = path.Join("C:/chunkfs/local")
	default:
		defaultBase = "/var/chunkfs"
	}
	return &cli.Command{
		Name:      "format",
		Usage:     "format a volume",
		ArgsUsage: "STORE-URL NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "basedir",
				Value: defaultBase,
				Usage: "local directory for containers and placeholders",
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Value: 1 << 20,
				Usage: "size of a chunk in bytes, header included",
			},
			&cli.IntFlag{
				Name:  "header-size",
				Value: 161,
				Usage: "size of the chunk header block in bytes",
			},
			&cli.StringFlag{
				Name:  "company",
				Value: "chunkfs",
				Usage: "company name, hashed into every chunk header",
			},
			&cli.StringFlag{
				Name:  "application",
				Value: "chunkfs",
				Usage: "application name, hashed into every chunk header",
			},
			&cli.StringFlag{
				Name:  "raid-level",
				Value: "0",
				Usage: "raid level tag written into chunk headers",
			},
			&cli.StringFlag{
				Name:  "raid-length",
				Value: "0",
				Usage: "raid length tag written into chunk headers",
			},
			&cli.StringFlag{
				Name:  "content-tag",
				Usage: "constant content tag used in chunk keys (defaults to a hash of the name)",
			},
			&cli.StringFlag{
				Name:  "cipher",
				Value: "none",
				Usage: "payload cipher (none, aes128, aes192, aes256)",
			},
			&cli.StringFlag{
				Name:  "encrypt-rsa-key",
				Usage: "A path to RSA private key (PEM)",
			},
			&cli.StringFlag{
				Name:  "compress",
				Value: "none",
				Usage: "compression algorithm (lz4, zstd, none)",
			},
			&cli.IntFlag{
				Name:  "cache-size",
				Value: 100,
				Usage: "size of the chunk read cache in MiB, 0 to disable",
			},
			&cli.BoolFlag{
				Name:  "auto-content-type",
				Usage: "detect the content type of uploads without one",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "overwrite existing format",
			},
			&cli.BoolFlag{
				Name:  "no-update",
				Usage: "don't update existing volume",
			},
		},
		Action: format,
	}
}
