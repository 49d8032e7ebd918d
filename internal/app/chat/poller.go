package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Poller drives the near-real-time refresh loop with two independent
// tickers: a short one for the active conversation's messages and a longer
// one for the conversation list. Ticks that land while a store fetch is in
// flight are dropped by the stores' guards, never queued.
type Poller struct {
	store  *ConversationStore
	logger *slog.Logger

	messageInterval      time.Duration
	conversationInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PollerOptions configures the two intervals.
type PollerOptions struct {
	MessageInterval      time.Duration
	ConversationInterval time.Duration
}

// NewPoller builds a poller over the conversation store.
func NewPoller(store *ConversationStore, opts PollerOptions, logger *slog.Logger) *Poller {
	mi := opts.MessageInterval
	if mi <= 0 {
		mi = 3 * time.Second
	}
	ci := opts.ConversationInterval
	if ci <= 0 {
		ci = 5 * time.Second
	}
	return &Poller{
		store:                store,
		logger:               logger,
		messageInterval:      mi,
		conversationInterval: ci,
	}
}

// Start launches both loops. Any previous loops are stopped first, so
// repeated Start calls never stack duplicate tickers, and the whole
// stop-then-arm sequence runs under the lock so concurrent Start calls
// cannot leak a loop pair. The loops exit when ctx is cancelled or Stop is
// called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(2)
	go p.messageLoop(runCtx)
	go p.conversationLoop(runCtx)
}

// Stop tears both loops down and waits for them to exit, so no tick fires
// after it returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// stopLocked cancels the running loops and waits them out. Safe while
// holding mu: the loops never touch the poller's lock.
func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.wg.Wait()
}

// messageLoop force-fetches the active conversation's messages every tick.
// Ticks with no active conversation do nothing.
func (p *Poller) messageLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.messageInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id := p.store.ActiveID()
			if id == "" {
				continue
			}
			if err := p.store.Messages().Fetch(ctx, id, true); err != nil {
				p.warn("message poll failed", "conversation_id", id, "error", err)
			}
		}
	}
}

// conversationLoop refreshes the list every tick and closes the latency gap
// for the active thread: when the list's last_message is missing from the
// in-memory message array, a new message arrived between message ticks and
// an out-of-band fetch picks it up immediately.
func (p *Poller) conversationLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.conversationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.store.FetchConversations(ctx, true); err != nil {
				p.warn("conversation poll failed", "error", err)
				continue
			}
			p.fillActiveGap(ctx)
		}
	}
}

func (p *Poller) fillActiveGap(ctx context.Context) {
	activeID := p.store.ActiveID()
	if activeID == "" {
		return
	}
	for _, c := range p.store.Conversations() {
		if c.ID != activeID || c.LastMessage == nil {
			continue
		}
		if !p.store.Messages().Contains(c.LastMessage.ID) {
			if err := p.store.Messages().Fetch(ctx, activeID, true); err != nil {
				p.warn("gap fetch failed", "conversation_id", activeID, "error", err)
			}
		}
		return
	}
}

func (p *Poller) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
