// Package mediatest provides in-memory media platforms for tests.
package mediatest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/neuraadapt/engage/internal/media"
)

// Issuer is a RefIssuer that records every issue and revoke.
type Issuer struct {
	Fail    error
	seq     int
	names   map[string]string
	revoked map[string]int
	log     []string
	mu      sync.Mutex
}

// NewIssuer creates an empty issuer.
func NewIssuer() *Issuer {
	return &Issuer{names: make(map[string]string), revoked: make(map[string]int)}
}

func (i *Issuer) Issue(f media.File) (media.DisplayRef, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.Fail != nil {
		return media.DisplayRef{}, i.Fail
	}
	i.seq++
	id := fmt.Sprintf("ref-%d", i.seq)
	i.names[id] = f.Name()
	i.log = append(i.log, "issue:"+f.Name())
	return media.DisplayRef{ID: id, URL: "mem://" + id}, nil
}

func (i *Issuer) Revoke(ref media.DisplayRef) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.revoked[ref.ID]++
	i.log = append(i.log, "revoke:"+i.names[ref.ID])
}

// Log returns the ordered issue/revoke history as "issue:<name>" and "revoke:<name>".
func (i *Issuer) Log() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.log...)
}

// Revocations returns how many times ref was revoked.
func (i *Issuer) Revocations(ref media.DisplayRef) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.revoked[ref.ID]
}

// Stream counts how often it is closed.
type Stream struct {
	id     string
	closes atomic.Int32
}

// NewStream creates a stream with the given id.
func NewStream(id string) *Stream {
	return &Stream{id: id}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Close() error {
	s.closes.Add(1)
	return nil
}

// Closes returns the number of Close calls.
func (s *Stream) Closes() int {
	return int(s.closes.Load())
}

type outcome struct {
	stream *Stream
	err    error
}

// Camera grants immediately, denies with Err, or in Manual mode parks each
// Acquire until the test resolves it with Grant or Deny.
type Camera struct {
	Err     error
	Manual  bool
	calls   int
	pending []chan outcome
	mu      sync.Mutex
}

func (c *Camera) Acquire(ctx context.Context) (media.Stream, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	if !c.Manual {
		err := c.Err
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return NewStream(fmt.Sprintf("cam-%d", n)), nil
	}
	ch := make(chan outcome, 1)
	c.pending = append(c.pending, ch)
	c.mu.Unlock()

	select {
	case o := <-ch:
		if o.err != nil {
			return nil, o.err
		}
		return o.stream, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Calls returns the number of Acquire calls so far.
func (c *Camera) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Grant resolves the i-th parked request (zero based) with a new stream.
func (c *Camera) Grant(i int) *Stream {
	s := NewStream(fmt.Sprintf("cam-%d", i+1))
	c.resolve(i, outcome{stream: s})
	return s
}

// Deny resolves the i-th parked request with err.
func (c *Camera) Deny(i int, err error) {
	c.resolve(i, outcome{err: err})
}

func (c *Camera) resolve(i int, o outcome) {
	c.mu.Lock()
	ch := c.pending[i]
	c.mu.Unlock()
	ch <- o
}

// Player records loads, plays and pauses.
type Player struct {
	PlayErr error
	loaded  []media.DisplayRef
	plays   int
	pauses  int
	mu      sync.Mutex
}

func (p *Player) Load(ref media.DisplayRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = append(p.loaded, ref)
}

func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	return p.PlayErr
}

func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses++
	return nil
}

// Current returns the most recently loaded reference.
func (p *Player) Current() media.DisplayRef {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.loaded) == 0 {
		return media.DisplayRef{}
	}
	return p.loaded[len(p.loaded)-1]
}

// Plays returns the number of Play calls.
func (p *Player) Plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

// Preview records the bound stream.
type Preview struct {
	bound media.Stream
	binds int
	mu    sync.Mutex
}

func (p *Preview) Bind(stream media.Stream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bound = stream
	p.binds++
}

// Bound returns the stream currently bound, or nil.
func (p *Preview) Bound() media.Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bound
}

// Binds returns how many times Bind was called.
func (p *Preview) Binds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.binds
}
