package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"

	"ledgerindex/internal/amount"
	"ledgerindex/internal/models"
)

// ErrTransport matches every failure to reach or understand the remote ledger
var ErrTransport = errors.New("ledger transport error")

// TransportError wraps a failed RPC call. It is always worth retrying.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ledger rpc %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransport) hold for any TransportError
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Temporary reports that the call may succeed if repeated
func (e *TransportError) Temporary() bool { return true }

// Client is the remote ledger as seen by the indexer
type Client interface {
	// LatestVersion returns the newest committed version on the remote ledger
	LatestVersion(ctx context.Context) (uint64, error)

	// FetchRange returns up to limit committed transactions starting at start
	FetchRange(ctx context.Context, start uint64, limit uint64) (*TransactionPage, error)

	// AccountState returns balance and counters of one account
	AccountState(ctx context.Context, address string) (*models.AccountState, error)

	// MintAccount returns the address whose transactions are mints
	MintAccount() string

	Close() error
}

// Options configures Dial
type Options struct {
	Endpoint    string
	MintAccount string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// RPCClient talks JSON-RPC 2.0 over HTTP to a ledger node
type RPCClient struct {
	rpc         *jrpc2.Client
	mintAccount string
	timeout     time.Duration
}

// Dial connects to the ledger node and verifies it answers
func Dial(ctx context.Context, opts Options) (*RPCClient, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("ledger endpoint is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	ch := jhttp.NewChannel(opts.Endpoint, &jhttp.ChannelOptions{Client: httpClient})
	c := &RPCClient{
		rpc:         jrpc2.NewClient(ch, nil),
		mintAccount: strings.ToLower(opts.MintAccount),
		timeout:     opts.Timeout,
	}

	version, err := c.LatestVersion(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to connect to ledger at %s: %w", opts.Endpoint, err)
	}

	slog.Info("Connected to ledger", "endpoint", opts.Endpoint, "latest_version", version)
	return c, nil
}

func (c *RPCClient) call(ctx context.Context, method string, params, result any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.rpc.CallResult(ctx, method, params, result); err != nil {
		return &TransportError{Method: method, Err: err}
	}
	return nil
}

// LatestVersion returns the newest committed version on the remote ledger
func (c *RPCClient) LatestVersion(ctx context.Context) (uint64, error) {
	var res latestVersionResult
	if err := c.call(ctx, methodLatestVersion, nil, &res); err != nil {
		return 0, err
	}
	return res.Version, nil
}

// FetchRange returns up to limit committed transactions starting at start
func (c *RPCClient) FetchRange(ctx context.Context, start uint64, limit uint64) (*TransactionPage, error) {
	var page TransactionPage
	params := transactionsParams{StartVersion: start, Limit: limit}
	if err := c.call(ctx, methodTransactions, params, &page); err != nil {
		return nil, err
	}

	slog.Debug("Fetched transactions",
		"start_version", start,
		"limit", limit,
		"first_version", page.FirstVersion,
		"count", len(page.Transactions))
	return &page, nil
}

// AccountState returns balance and counters of one account
func (c *RPCClient) AccountState(ctx context.Context, address string) (*models.AccountState, error) {
	var res accountStateResult
	params := accountStateParams{Address: address}
	if err := c.call(ctx, methodAccountState, params, &res); err != nil {
		return nil, err
	}

	if res.Address == "" {
		res.Address = address
	}
	return &models.AccountState{
		Address:             strings.ToLower(res.Address),
		Balance:             amount.ToDecimal(res.Balance),
		SequenceNumber:      res.SequenceNumber,
		SentEventsCount:     res.SentEventsCount,
		ReceivedEventsCount: res.ReceivedEventsCount,
	}, nil
}

// MintAccount returns the address whose transactions are mints
func (c *RPCClient) MintAccount() string {
	return c.mintAccount
}

// Close releases the underlying RPC client
func (c *RPCClient) Close() error {
	return c.rpc.Close()
}
