package testutil

import (
	"context"
	"sync"

	"github.com/programhub/apiserver/types"
)

// ProgramCache is an in-memory active program cache that counts its calls.
type ProgramCache struct {
	mu            sync.Mutex
	program       *types.ProgramSetting
	version       int64
	Hits          int
	Invalidations int
	StaleWrites   int
}

func (c *ProgramCache) Get(context.Context) (types.ProgramSetting, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.program == nil {
		return types.ProgramSetting{}, false, nil
	}
	c.Hits++
	return *c.program, true, nil
}

func (c *ProgramCache) Version(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, nil
}

func (c *ProgramCache) Set(_ context.Context, program types.ProgramSetting, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != c.version {
		c.StaleWrites++
		return nil
	}
	c.program = &program
	return nil
}

func (c *ProgramCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.program = nil
	c.version++
	c.Invalidations++
	return nil
}

// Snapshots records every published active program snapshot.
type Snapshots struct {
	mu        sync.Mutex
	Published []*types.ProgramSetting
}

func (s *Snapshots) PublishActive(_ context.Context, program *types.ProgramSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Published = append(s.Published, program)
	return nil
}

// Publisher records every published activity entry.
type Publisher struct {
	mu      sync.Mutex
	Entries []types.UpdateLog
	Err     error
}

func (p *Publisher) PublishActivity(_ context.Context, entry types.UpdateLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Entries = append(p.Entries, entry)
	return nil
}
