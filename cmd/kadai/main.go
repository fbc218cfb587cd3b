package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/loqalabs/kadai/internal/catalog"
	"github.com/loqalabs/kadai/internal/config"
	"github.com/loqalabs/kadai/internal/httpc"
)

var version = "0.1.0-dev"

func main() {
	var configPath string
	searchCmd := flag.NewFlagSet("search", flag.ExitOnError)
	searchCmd.StringVar(&configPath, "config", "", "Path to configuration file")
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validateCmd.StringVar(&configPath, "config", "kadai.yaml", "Path to configuration file")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'search', 'validate' or 'version'")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "search":
		_ = searchCmd.Parse(os.Args[2:])
		term := strings.Join(searchCmd.Args(), " ")
		if err := runSearch(configPath, term, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "validate":
		_ = validateCmd.Parse(os.Args[2:])
		if _, err := config.Load(configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("config valid")
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

// runSearch queries the catalog once and prints one line per item.
func runSearch(configPath, term string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := catalog.NewClient(httpc.New(cfg.Catalog, logger), logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Catalog.TimeoutMS)*time.Millisecond)
	defer cancel()
	items, err := client.Search(ctx, term)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "no items found")
		return nil
	}
	for _, item := range items {
		fmt.Fprintf(out, "%s\t%s\t₹%s\t%s\n", item.Name, item.Category, item.Price.String(), item.Description)
	}
	return nil
}
