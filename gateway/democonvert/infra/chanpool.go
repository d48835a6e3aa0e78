package infra

import (
	"context"
	"sync"

	"demo-gateway/gateway/democonvert/domain"
)

// ChanPool limita conversões simultâneas ao upstream com um channel bufferizado.
type ChanPool struct {
	sem chan struct{}
}

var _ domain.SlotPool = (*ChanPool)(nil)

func NewChanPool(max int) *ChanPool {
	return &ChanPool{sem: make(chan struct{}, max)}
}

// Acquire espera uma vaga ou o fim do ctx. Chamar release mais de uma vez é inofensivo.
func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-p.sem }) }, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *ChanPool) InUse() int    { return len(p.sem) }
func (p *ChanPool) Capacity() int { return cap(p.sem) }
