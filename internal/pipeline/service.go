package pipeline

import (
	"context"
	"sync"

	"github.com/yieldroute/yieldroute/internal/chain"
	"github.com/yieldroute/yieldroute/internal/config"
	"github.com/yieldroute/yieldroute/internal/errors"
	"github.com/yieldroute/yieldroute/pkg/logger"
)

// ErrRunInProgress is returned by Start while a previous run is still
// executing. There is one signing key, so runs never overlap.
var ErrRunInProgress = &errors.PreconditionError{Check: "single run", Detail: "a pipeline run is already in progress"}

// Status is the JSON-friendly snapshot served over HTTP.
type Status struct {
	State        string   `json:"state"`
	Running      bool     `json:"running"`
	Transactions []string `json:"transactions,omitempty"`
	AmountOut    string   `json:"amount_out,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Service owns the connection to the node and runs at most one pipeline at
// a time. The client is dialed lazily on the first run.
type Service struct {
	cfg      config.Config
	creator  chain.ClientCreator
	notifier Notifier

	mu      sync.Mutex
	tm      *chain.TxManager
	current *Pipeline
	running bool
	lastErr error
}

// NewService builds a service. A nil creator dials a real node; tests pass
// their own.
func NewService(cfg config.Config, creator chain.ClientCreator, notifier Notifier) *Service {
	if creator == nil {
		creator = chain.DefaultClientCreator
	}
	return &Service{cfg: cfg, creator: creator, notifier: notifier}
}

func (s *Service) txManager(ctx context.Context) (*chain.TxManager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tm != nil {
		return s.tm, nil
	}

	client, err := s.creator(s.cfg.RPCURL)
	if err != nil {
		return nil, &errors.ChainError{Operation: "dial node", Err: err}
	}

	tm, err := chain.NewTxManager(ctx, client, s.cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	s.tm = tm
	logger.Info("Connected to node %s as %s", s.cfg.RPCURL, tm.From().Hex())
	return tm, nil
}

// Start launches one pipeline run in the background. It fails fast with
// ErrRunInProgress if a run is active, or with a config/connection error
// before anything is submitted on-chain.
func (s *Service) Start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()

	tm, err := s.txManager(ctx)
	if err != nil {
		s.finish(err)
		return err
	}

	p := New(s.cfg, tm, s.notifier)
	s.mu.Lock()
	s.current = p
	s.lastErr = nil
	s.mu.Unlock()

	go func() {
		_, err := p.Run(context.Background())
		s.finish(err)
	}()

	return nil
}

// Run executes one pipeline synchronously, for command-line use.
func (s *Service) Run(ctx context.Context) (Result, error) {
	if err := s.cfg.Validate(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Result{}, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()

	tm, err := s.txManager(ctx)
	if err != nil {
		s.finish(err)
		return Result{}, err
	}

	p := New(s.cfg, tm, s.notifier)
	s.mu.Lock()
	s.current = p
	s.lastErr = nil
	s.mu.Unlock()

	result, err := p.Run(ctx)
	s.finish(err)
	return result, err
}

func (s *Service) finish(err error) {
	s.mu.Lock()
	s.running = false
	s.lastErr = err
	s.mu.Unlock()
}

// Status reports the most recent pipeline's state and transactions.
func (s *Service) Status() Status {
	s.mu.Lock()
	current, running, lastErr := s.current, s.running, s.lastErr
	s.mu.Unlock()

	status := Status{State: StateIdle.String(), Running: running}
	if lastErr != nil {
		status.Error = lastErr.Error()
	}
	if current == nil {
		return status
	}

	status.State = current.State().String()
	result := current.Result()
	for _, h := range result.TxHashes() {
		status.Transactions = append(status.Transactions, h.Hex())
	}
	if result.AmountOut != nil {
		status.AmountOut = s.cfg.TokenOut.Display(result.AmountOut).String()
	}
	return status
}
