// Package porclient fetches the published reserve root and a user's inclusion
// proof from a proof server, then verifies the proof locally.
package porclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/codec"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/hasher"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/merkle"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
)

// ErrUserNotFound is returned when the server has no balance for the user
var ErrUserNotFound = errors.New("user not found")

// APIError is a non-2xx response from the proof server
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("proof server returned %d: %s (request %s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("proof server returned %d: %s", e.StatusCode, e.Message)
}

// ClientConfig holds the configuration for the proof-of-reserve client
type ClientConfig struct {
	BaseURL    string
	Logger     *zap.Logger
	HTTPClient *http.Client

	// Must match the tags the server commits with
	LeafTag   string
	BranchTag string

	// Request proofs as CBOR instead of JSON
	UseCBOR bool

	// Nil uses DefaultRetryConfig
	Retry *RetryConfig
}

// Client talks to a single proof server
type Client struct {
	baseURL    string
	httpClient *http.Client
	hasher     *hasher.TaggedHasher
	format     codec.Format
	retry      RetryConfig
	logger     *zap.Logger
}

// VerificationReport is the outcome of checking one user's inclusion
type VerificationReport struct {
	UserID      int64  `json:"userId"`
	UserBalance string `json:"userBalance"`
	Root        string `json:"root"`
	LeafCount   int    `json:"leafCount"`
	ProofLength int    `json:"proofLength"`
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason,omitempty"`
}

// NewClient creates a new proof-of-reserve client instance
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if config.LeafTag == "" || config.BranchTag == "" {
		return nil, fmt.Errorf("leaf and branch tags are required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	format := codec.FormatJSON
	if config.UseCBOR {
		format = codec.FormatCBOR
	}

	retry := DefaultRetryConfig
	if config.Retry != nil {
		retry = *config.Retry
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		hasher:     hasher.NewTaggedHasher(config.LeafTag, config.BranchTag),
		format:     format,
		retry:      retry,
		logger:     config.Logger,
	}, nil
}

// GetRoot fetches the currently published root
func (c *Client) GetRoot(ctx context.Context) (*types.RootResponse, error) {
	body, format, err := c.get(ctx, "/api/proof/root", codec.FormatJSON)
	if err != nil {
		return nil, err
	}

	root, err := codec.DecodeRootResponse(format, body)
	if err != nil {
		return nil, err
	}

	c.logger.Sugar().Debugw("Fetched merkle root", "root", root.Root, "leaf_count", root.LeafCount)
	return root, nil
}

// GetProof fetches the inclusion proof for userID. Returns ErrUserNotFound on 404.
func (c *Client) GetProof(ctx context.Context, userID int64) (*types.MerkleProofResult, error) {
	body, format, err := c.get(ctx, fmt.Sprintf("/api/proof/%d", userID), c.format)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("user ID %d: %w", userID, ErrUserNotFound)
		}
		return nil, err
	}

	result, err := codec.DecodeProofResult(format, body)
	if err != nil {
		return nil, err
	}

	c.logger.Sugar().Debugw("Fetched inclusion proof",
		"user_id", userID,
		"user_balance", result.UserBalance,
		"steps", len(result.ProofPath),
	)
	return result, nil
}

// VerifyProof checks result against rootHex with the client's tags. A malformed
// proof or root is an error; a well-formed proof for a different root is false.
func (c *Client) VerifyProof(result *types.MerkleProofResult, rootHex string) (bool, error) {
	return merkle.VerifyResult(c.hasher, result, rootHex)
}

// VerifyUser fetches the root and the user's proof and verifies inclusion locally
func (c *Client) VerifyUser(ctx context.Context, userID int64) (*VerificationReport, error) {
	root, err := c.GetRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch root: %w", err)
	}

	result, err := c.GetProof(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch proof: %w", err)
	}

	report := &VerificationReport{
		UserID:      userID,
		UserBalance: result.UserBalance,
		Root:        root.Root,
		LeafCount:   root.LeafCount,
		ProofLength: len(result.ProofPath),
	}

	valid, err := c.VerifyProof(result, root.Root)
	if err != nil {
		return nil, fmt.Errorf("malformed proof from server: %w", err)
	}

	switch {
	case !valid:
		report.Reason = "proof does not lead to the published root"
	case !strings.HasPrefix(result.UserBalance, fmt.Sprintf("(%d,", userID)):
		report.Reason = fmt.Sprintf("proof is for %s, not user %d", result.UserBalance, userID)
	default:
		report.Valid = true
	}

	c.logger.Sugar().Infow("Verified user inclusion",
		"user_id", userID,
		"valid", report.Valid,
		"root", report.Root,
		"reason", report.Reason,
	)
	return report, nil
}

type response struct {
	body   []byte
	format codec.Format
}

// get fetches path, retrying transient failures
func (c *Client) get(ctx context.Context, path string, want codec.Format) ([]byte, codec.Format, error) {
	resp, err := withRetry(ctx, c.retry, func() (*response, error) {
		r, err := c.getOnce(ctx, path, want)
		if err != nil && retryable(err) {
			c.logger.Sugar().Debugw("Retrying request", "path", path, "error", err)
		}
		return r, err
	})
	if err != nil {
		return nil, codec.FormatJSON, err
	}
	return resp.body, resp.format, nil
}

func (c *Client) getOnce(ctx context.Context, path string, want codec.Format) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", want.ContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("request to %s failed: %w", path, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var errResp types.ErrorResponse
		if decodeErr := codec.Decode(codec.FormatJSON, body, &errResp); decodeErr == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			apiErr.RequestID = errResp.RequestID
		}
		return nil, apiErr
	}

	format, err := codec.FormatFromContentType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	return &response{body: body, format: format}, nil
}
