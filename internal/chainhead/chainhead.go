// Package chainhead tracks the current L2 block number, adapted from the
// teacher's blocksub package: poll the execution client over HTTP and keep a
// websocket subscription alive in parallel, reconnecting on timeout or
// error. TIPS uses the current head in tips-ingress-rpc's readiness check.
package chainhead

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/flashbots/tips/logutils"
)

// Tracker keeps the current head block number/hash up to date and fans out
// new headers to subscribers.
type Tracker struct {
	PollTimeout time.Duration
	SubTimeout  time.Duration

	httpURI string
	wsURI   string

	ctx     context.Context
	headerC chan<- *ethtypes.Header

	httpClient  *ethclient.Client
	wsClient    *ethclient.Client
	wsSub       ethereum.Subscription
	internalC   chan *ethtypes.Header
	latestWsHdr *ethtypes.Header

	currentNumber atomic.Uint64
	currentHash   atomic.String

	wsIsConnecting atomic.Bool
}

// New builds a Tracker against httpURI (polling) and wsURI (push
// subscription, reconnected on drop). Either may be empty to disable that
// transport. New headers deduped by (number, hash) are forwarded on ch.
func New(ctx context.Context, httpURI, wsURI string, ch chan<- *ethtypes.Header) *Tracker {
	return &Tracker{
		PollTimeout: 2 * time.Second,
		SubTimeout:  30 * time.Second,
		httpURI:     httpURI,
		wsURI:       wsURI,
		ctx:         ctx,
		headerC:     ch,
		internalC:   make(chan *ethtypes.Header),
	}
}

// CurrentBlockNumber returns the most recently observed head block number.
func (t *Tracker) CurrentBlockNumber() uint64 {
	return t.currentNumber.Load()
}

// CurrentBlockHash returns the most recently observed head block hash.
func (t *Tracker) CurrentBlockHash() string {
	return t.currentHash.Load()
}

// Start dials the configured transports and begins tracking. Returns once
// the initial HTTP dial (if configured) succeeds; polling/websocket run in
// background goroutines until ctx is cancelled.
func (t *Tracker) Start() (err error) {
	log := logutils.ZapFromContext(t.ctx)

	go t.runListener()

	if t.httpURI != "" {
		t.httpClient, err = ethclient.Dial(t.httpURI)
		if err != nil {
			return err
		}
		log.Info("chainhead: HTTP connected", zap.String("uri", t.httpURI))
		go t.runPollThread()
	}

	if t.wsURI != "" {
		go t.startWebsocket()
	}

	return nil
}

// runListener accepts headers from both transports, keeping only the latest
// by block number, and forwards genuinely new heads downstream.
func (t *Tracker) runListener() {
	for {
		select {
		case <-t.ctx.Done():
			return
		case header := <-t.internalC:
			num := header.Number.Uint64()
			hash := header.Hash().Hex()
			if num >= t.currentNumber.Load() && hash != t.currentHash.Load() {
				t.currentNumber.Store(num)
				t.currentHash.Store(hash)
				if t.headerC != nil {
					t.headerC <- header
				}
			}
		}
	}
}

func (t *Tracker) runPollThread() {
	log := logutils.ZapFromContext(t.ctx)
	for {
		if t.ctx.Err() != nil {
			return
		}

		header, err := t.httpClient.HeaderByNumber(t.ctx, nil)
		if err != nil {
			log.Warn("chainhead: poll failed", zap.Error(err))
			time.Sleep(t.PollTimeout)
			continue
		}

		t.internalC <- header

		if t.latestWsHdr != nil && t.latestWsHdr.Number.Uint64()+2 < header.Number.Uint64() {
			log.Warn("chainhead: forcing websocket reconnect from polling lag",
				zap.Uint64("wsBlockNum", t.latestWsHdr.Number.Uint64()),
				zap.Uint64("pollBlockNum", header.Number.Uint64()))
			go t.startWebsocket()
		}

		time.Sleep(t.PollTimeout)
	}
}

func (t *Tracker) startWebsocket() {
	if t.wsIsConnecting.Swap(true) {
		return
	}
	defer t.wsIsConnecting.Store(false)

	log := logutils.ZapFromContext(t.ctx)

	for {
		if t.ctx.Err() != nil {
			return
		}
		if t.wsClient != nil {
			t.wsClient.Close()
		}

		if err := t.connectWebsocket(); err != nil {
			log.Warn("chainhead: websocket connect failed", zap.Error(err))
		} else {
			return
		}
	}
}

func (t *Tracker) connectWebsocket() (err error) {
	log := logutils.ZapFromContext(t.ctx)

	t.wsClient, err = ethclient.Dial(t.wsURI)
	if err != nil {
		return err
	}

	wsHeaderC := make(chan *ethtypes.Header)
	t.wsSub, err = t.wsClient.SubscribeNewHead(t.ctx, wsHeaderC)
	if err != nil {
		return err
	}

	go func() {
		timer := time.NewTimer(t.SubTimeout)
		defer timer.Stop()

		for {
			select {
			case err := <-t.wsSub.Err():
				if err == nil {
					return
				}
				log.Warn("chainhead: websocket subscription failed, reconnecting", zap.Error(err))
				t.startWebsocket()
				return
			case <-timer.C:
				log.Warn("chainhead: websocket timeout, reconnecting", zap.Duration("timeout", t.SubTimeout))
				t.startWebsocket()
				return
			case header := <-wsHeaderC:
				timer.Reset(t.SubTimeout)
				t.latestWsHdr = header
				t.internalC <- header
			case <-t.ctx.Done():
				return
			}
		}
	}()

	log.Info("chainhead: websocket connected", zap.String("uri", t.wsURI))
	return nil
}
