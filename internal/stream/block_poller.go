package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/metrics"
	"github.com/aman-zulfiqar/simpledex-engine/internal/storage"
	"github.com/sirupsen/logrus"
)

// BlockNumberer reads the chain head height. *rpc.Client satisfies it.
type BlockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// BlockPoller implements storage.BlockSource by polling eth_blockNumber
type BlockPoller struct {
	client       BlockNumberer
	pollInterval time.Duration
	metrics      *metrics.Metrics
	logger       *logrus.Logger

	mu        sync.Mutex
	lastBlock uint64
	running   bool
	cancel    context.CancelFunc
}

// BlockPollerConfig holds configuration for the block poller
type BlockPollerConfig struct {
	Client       BlockNumberer
	PollInterval time.Duration
	Metrics      *metrics.Metrics
	Logger       *logrus.Logger
}

var _ storage.BlockSource = (*BlockPoller)(nil)

// NewBlockPoller creates a new block poller
func NewBlockPoller(cfg BlockPollerConfig) *BlockPoller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 12 * time.Second
	}

	return &BlockPoller{
		client:       cfg.Client,
		pollInterval: cfg.PollInterval,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// Start polls until ctx ends or Stop is called, invoking handler once per
// new head. Heights that do not advance are ignored.
func (p *BlockPoller) Start(ctx context.Context, handler storage.BlockHandler) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		cancel()
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.logger.WithField("interval", p.pollInterval).Info("starting block polling")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	// first poll right away so subscribers see state without waiting a tick
	p.poll(ctx, handler)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx, handler)
		}
	}
}

// Stop stops the poller
func (p *BlockPoller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// LastBlock returns the highest block seen so far.
func (p *BlockPoller) LastBlock() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastBlock
}

func (p *BlockPoller) poll(ctx context.Context, handler storage.BlockHandler) {
	block, err := p.client.BlockNumber(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.WithError(err).Error("poll error")
		}
		return
	}

	p.mu.Lock()
	if block <= p.lastBlock {
		p.mu.Unlock()
		p.logger.WithField("block", block).Debug("no new block")
		return
	}
	p.lastBlock = block
	p.mu.Unlock()

	p.metrics.SetLatestBlock(block)
	p.logger.WithField("block", block).Debug("new block")
	handler(ctx, block)
}
