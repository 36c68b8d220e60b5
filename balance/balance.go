package balance

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"zkgm/chainevm"
	"zkgm/client"
	"zkgm/retry"
)

// ModuleName is the error codespace of this package.
const ModuleName = "balance"

var (
	ErrInsufficientFunds = errorsmod.Register(ModuleName, 2, "insufficient funds")
	ErrBalanceQuery      = errorsmod.Register(ModuleName, 3, "balance query failed")
)

// Fetcher reads one balance. An empty token means the native token.
type Fetcher interface {
	Balance(ctx context.Context, account string, token []byte) (*big.Int, error)
}

var _ Fetcher = (*chainevm.EVMChain)(nil)

// Result - one token balance
type Result struct {
	Token  []byte
	Amount *big.Int
}

// InsufficientFundsError names the first token the account cannot cover.
type InsufficientFundsError struct {
	Account string
	Token   []byte
	Have    *big.Int
	Want    *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s holds %s of %s, needs %s", e.Account, e.Have, hexutil.Encode(e.Token), e.Want)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// Checker reads balances with a retry policy.
type Checker struct {
	fetcher Fetcher
	policy  retry.Policy
	retryIf func(error) bool
	logger  log.FieldLogger
}

// Option adjusts a Checker.
type Option func(*Checker)

func WithPolicy(p retry.Policy) Option {
	return func(c *Checker) { c.policy = p }
}

// WithRetryIf limits retries to errors for which fn is true.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Checker) { c.retryIf = fn }
}

func WithLogger(l log.FieldLogger) Option {
	return func(c *Checker) { c.logger = l }
}

// NewChecker uses retry.BalanceCheck unless overridden.
func NewChecker(f Fetcher, opts ...Option) *Checker {
	c := &Checker{fetcher: f, policy: retry.BalanceCheck, logger: log.StandardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewEVMChecker retries only transient network errors, on the slow EVM
// schedule.
func NewEVMChecker(f Fetcher, opts ...Option) *Checker {
	base := []Option{WithPolicy(retry.EVMBalanceCheck), WithRetryIf(chainevm.IsTransient)}
	return NewChecker(f, append(base, opts...)...)
}

// Balance reads one balance.
func (c *Checker) Balance(ctx context.Context, account string, token []byte) (*big.Int, error) {
	var out *big.Int
	opts := []retry.Option{retry.Notify(func(err error, attempt int, next time.Duration) {
		c.logger.WithFields(log.Fields{
			"account": account,
			"token":   hexutil.Encode(token),
			"attempt": attempt,
		}).WithError(err).Warnf("balance query failed, retrying in %s", next)
	})}
	if c.retryIf != nil {
		opts = append(opts, retry.RetryIf(c.retryIf))
	}
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		b, err := c.fetcher.Balance(ctx, account, token)
		if err != nil {
			return err
		}
		out = b
		return nil
	}, opts...)
	if err != nil {
		return nil, errorsmod.Wrapf(ErrBalanceQuery, "%s %s: %v", account, hexutil.Encode(token), err)
	}
	return out, nil
}

// CheckAll reads every token concurrently. Results keep the order of tokens;
// the first failure cancels the rest.
func (c *Checker) CheckAll(ctx context.Context, account string, tokens [][]byte) ([]Result, error) {
	results := make([]Result, len(tokens))
	g, ctx := errgroup.WithContext(ctx)
	for i, token := range tokens {
		g.Go(func() error {
			amount, err := c.Balance(ctx, account, token)
			if err != nil {
				return err
			}
			results[i] = Result{Token: token, Amount: amount}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// EnsureFunds checks the sender holds every base amount the request spends.
func (c *Checker) EnsureFunds(ctx context.Context, req *client.Request) error {
	funds := req.Funds()
	keys := make([]string, 0, len(funds))
	for k := range funds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tokens := make([][]byte, len(keys))
	for i, k := range keys {
		tokens[i] = []byte(k)
	}
	results, err := c.CheckAll(ctx, req.Source.Sender, tokens)
	if err != nil {
		return err
	}
	for _, r := range results {
		want := funds[string(r.Token)]
		if r.Amount.Cmp(want) < 0 {
			return &InsufficientFundsError{Account: req.Source.Sender, Token: r.Token, Have: r.Amount, Want: want}
		}
	}
	return nil
}
