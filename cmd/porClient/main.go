package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/codec"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/config"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/logger"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/porclient"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the client CLI
func newApp() *cli.App {
	return &cli.App{
		Name:  "por-client",
		Usage: "Proof of Reserve client for account holders",
		Description: `Fetches the published reserve root and your inclusion proof from a proof
server and checks locally that your balance is committed to by the root.

This client can:
- Print the currently published root
- Download the inclusion proof for a user
- Verify a user's inclusion end to end, or verify a saved proof offline`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Aliases: []string{"url"},
				Usage:   "Proof server base URL",
				Value:   fmt.Sprintf("http://localhost:%d", config.DefaultPort),
				EnvVars: []string{config.EnvPORServerURL},
			},
			&cli.StringFlag{
				Name:    "leaf-tag",
				Value:   config.DefaultLeafTag,
				Usage:   "Tag for leaf hashing",
				EnvVars: []string{config.EnvPORLeafTag},
			},
			&cli.StringFlag{
				Name:    "branch-tag",
				Value:   config.DefaultBranchTag,
				Usage:   "Tag for branch hashing",
				EnvVars: []string{config.EnvPORBranchTag},
			},
			&cli.BoolFlag{
				Name:  "cbor",
				Usage: "Request proofs as CBOR",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvPORVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "root",
				Usage:  "Print the published merkle root",
				Action: rootCommand,
			},
			{
				Name:  "proof",
				Usage: "Download the inclusion proof for a user",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "user-id",
						Usage:    "User ID to fetch the proof for",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output file for the proof JSON",
						Value: "",
					},
				},
				Action: proofCommand,
			},
			{
				Name:  "verify",
				Usage: "Fetch the root and a user's proof and verify inclusion",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "user-id",
						Usage:    "User ID to verify",
						Required: true,
					},
				},
				Action: verifyCommand,
			},
			{
				Name:  "verify-file",
				Usage: "Verify a saved proof against a root without contacting the server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "proof",
						Usage:    "Path to a proof JSON file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "root",
						Usage:    "Expected merkle root (64 hex chars)",
						Required: true,
					},
				},
				Action: verifyFileCommand,
			},
		},
	}
}

// createClient creates a new proof-of-reserve client from CLI context
func createClient(c *cli.Context) (*porclient.Client, error) {
	zapLogger, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	client, err := porclient.NewClient(&porclient.ClientConfig{
		BaseURL:   c.String("server-url"),
		Logger:    zapLogger,
		LeafTag:   c.String("leaf-tag"),
		BranchTag: c.String("branch-tag"),
		UseCBOR:   c.Bool("cbor"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create proof client: %w", err)
	}
	return client, nil
}

// rootCommand handles the root subcommand
func rootCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}

	root, err := client.GetRoot(c.Context)
	if err != nil {
		return fmt.Errorf("failed to fetch root: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Merkle root: %s\n", root.Root)
	fmt.Fprintf(c.App.Writer, "Leaf count:  %d\n", root.LeafCount)
	return nil
}

// proofCommand handles the proof subcommand
func proofCommand(c *cli.Context) error {
	userID := c.Int64("user-id")
	outputFile := c.String("output")

	client, err := createClient(c)
	if err != nil {
		return err
	}

	result, err := client.GetProof(c.Context, userID)
	if err != nil {
		return fmt.Errorf("failed to fetch proof: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode proof: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, data, 0644); err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "Proof for user %d written to: %s\n", userID, outputFile)
		return nil
	}

	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}

// verifyCommand handles the verify subcommand
func verifyCommand(c *cli.Context) error {
	userID := c.Int64("user-id")

	client, err := createClient(c)
	if err != nil {
		return err
	}

	report, err := client.VerifyUser(c.Context, userID)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "User balance: %s\n", report.UserBalance)
	fmt.Fprintf(c.App.Writer, "Merkle root:  %s (%d leaves)\n", report.Root, report.LeafCount)
	fmt.Fprintf(c.App.Writer, "Proof steps:  %d\n", report.ProofLength)
	if !report.Valid {
		return cli.Exit(fmt.Sprintf("Verification FAILED: %s", report.Reason), 1)
	}
	fmt.Fprintln(c.App.Writer, "Verification succeeded: balance is included in the published root")
	return nil
}

// verifyFileCommand handles the verify-file subcommand
func verifyFileCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(c.String("proof"))
	if err != nil {
		return fmt.Errorf("failed to read proof file: %w", err)
	}

	result, err := codec.DecodeProofResult(codec.FormatJSON, data)
	if err != nil {
		return err
	}

	valid, err := client.VerifyProof(result, c.String("root"))
	if err != nil {
		return fmt.Errorf("malformed proof or root: %w", err)
	}
	if !valid {
		return cli.Exit(fmt.Sprintf("Verification FAILED for %s", result.UserBalance), 1)
	}

	fmt.Fprintf(c.App.Writer, "Verification succeeded for %s\n", result.UserBalance)
	return nil
}
