package partyinfo

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"txmanager/internal/model"
	"txmanager/internal/utils/log"
)

const maxConcurrentPeers = 8

type (
	// Transport sends our snapshot to a peer and returns the peer's snapshot.
	Transport interface {
		SendPartyInfo(ctx context.Context, url string, info model.PartyInfo) (model.PartyInfo, error)
	}

	Poller struct {
		service   *Service
		transport Transport
		interval  time.Duration
	}
)

func NewPoller(service *Service, transport Transport, interval time.Duration) *Poller {
	return &Poller{
		service:   service,
		transport: transport,
		interval:  interval,
	}
}

// Run polls every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce exchanges snapshots with every known party. Recipients learned
// from a reply are pushed on to the other parties.
func (p *Poller) PollOnce(ctx context.Context) {
	snapshot := p.service.GetPartyInfo()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPeers)
	for _, party := range snapshot.PartyList() {
		url := party.URL
		if url == p.service.OurURL() {
			continue
		}
		g.Go(func() error {
			reply, err := p.transport.SendPartyInfo(ctx, url, snapshot)
			if err != nil {
				log.Warn("party info exchange failed", zap.String("url", url), zap.Error(err))
				return nil
			}
			if unsaved := p.service.UpdatePartyInfo(reply); len(unsaved) > 0 {
				p.Propagate(ctx, unsaved, url)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Propagate sends only the given recipients to every known party except
// ourselves and the excluded URLs.
func (p *Poller) Propagate(ctx context.Context, recipients []model.Recipient, exclude ...string) {
	if len(recipients) == 0 {
		return
	}

	skip := map[string]bool{p.service.OurURL(): true}
	for _, u := range exclude {
		skip[NormalizeURL(u)] = true
	}
	delta := model.NewPartyInfo(p.service.OurURL(), recipients, nil)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPeers)
	for _, party := range p.service.GetPartyInfo().PartyList() {
		url := party.URL
		if skip[url] {
			continue
		}
		g.Go(func() error {
			if _, err := p.transport.SendPartyInfo(ctx, url, delta); err != nil {
				log.Warn("party info propagation failed", zap.String("url", url), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
