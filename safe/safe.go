package safe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	log "github.com/sirupsen/logrus"

	"zkgm/retry"
)

// ModuleName is the error codespace of this package.
const ModuleName = "safe"

var (
	ErrInvalidURL = errorsmod.Register(ModuleName, 2, "invalid multisig service url")
	errPending    = errorsmod.Register(ModuleName, 3, "multisig transaction not executed yet")
)

// Resolver turns a multisig proposal hash into the hash of the transaction
// that executed it.
type Resolver struct {
	base   *url.URL
	policy retry.Policy
	http   *http.Client
	logger log.FieldLogger
}

// Option adjusts a Resolver.
type Option func(*Resolver)

// WithPolicy overrides retry.SafeResolution.
func WithPolicy(p retry.Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithHTTPClient sets the http client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.http = c }
}

// WithLogger sets the logger.
func WithLogger(l log.FieldLogger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver points at a multisig coordination service base URL.
func NewResolver(baseURL string, opts ...Option) (*Resolver, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errorsmod.Wrapf(ErrInvalidURL, "%q", baseURL)
	}
	r := &Resolver{
		base:   u,
		policy: retry.SafeResolution,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type multisigTransaction struct {
	TransactionHash *string `json:"transactionHash"`
}

// Resolve polls for the executed transaction hash. A 404 means the hash is
// already final and is echoed back. When attempts run out, or ctx ends,
// the result is ("", false); it is never an error.
func (r *Resolver) Resolve(ctx context.Context, hash string) (string, bool) {
	logger := r.logger.WithField("safe_hash", hash)
	var resolved string
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		h, err := r.fetch(ctx, hash)
		if err != nil {
			return err
		}
		resolved = h
		return nil
	}, retry.Notify(func(err error, attempt int, next time.Duration) {
		logger.WithError(err).WithField("attempt", attempt).Debug("multisig hash not resolved, retrying")
	}))
	if err != nil {
		logger.WithError(err).Warn("multisig hash unresolved")
		return "", false
	}
	return resolved, true
}

func (r *Resolver) fetch(ctx context.Context, hash string) (string, error) {
	endpoint := r.base.JoinPath("api", "v1", "multisig-transactions", hash).String() + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return hash, nil
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("multisig service returned status %d", resp.StatusCode)
	}

	var tx multisigTransaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return "", fmt.Errorf("decode multisig transaction: %w", err)
	}
	if tx.TransactionHash == nil || *tx.TransactionHash == "" {
		return "", errPending
	}
	return *tx.TransactionHash, nil
}
