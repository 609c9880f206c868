/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"container/heap"
	"sync"

	"github.com/sourcegraph/conc"
)

// Priority orders broadcast work relative to ordinary session I/O so a
// flood of low-priority chatter (e.g. WALLOPS fanout) can never starve
// high-priority traffic (e.g. a PING/error that must reach a client before
// its registered timeout fires).
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// broadcastJob is a single unit of fanout work: render msg and deliver it to
// every member of targets, excluding the nick in exclude (if any).
type broadcastJob struct {
	priority Priority
	seq      uint64 // tie-break, preserves submission order within a priority
	targets  []*User
	msg      *Message
	exclude  string
}

// jobHeap is a container/heap.Interface over pending jobs, ordered by
// priority descending then seq ascending.
type jobHeap []*broadcastJob

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)   { *h = append(*h, x.(*broadcastJob)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Broadcaster fans messages out to sets of users off the connection
// goroutines that submit them, so a slow channel Send never blocks a
// client's read loop. It drains a fixed per-tick budget of jobs at a time,
// highest priority first, so a burst of low-priority work cannot starve
// pings or error replies queued behind it.
type Broadcaster struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    jobHeap
	nextSeq  uint64
	budget   int
	closed   bool
	wg       conc.WaitGroup
}

// NewBroadcaster starts a Broadcaster whose worker drains up to tickBudget
// jobs per wakeup before yielding, so a single goroutine can service every
// priority tier without needing per-priority worker pools.
func NewBroadcaster(tickBudget int) *Broadcaster {
	if tickBudget <= 0 {
		tickBudget = 64
	}

	b := &Broadcaster{budget: tickBudget}
	b.cond = sync.NewCond(&b.mu)

	b.wg.Go(b.run)
	return b
}

// Submit enqueues a fanout job at the given priority. Non-blocking.
func (b *Broadcaster) Submit(priority Priority, targets []*User, msg *Message, exclude string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	job := &broadcastJob{priority: priority, seq: b.nextSeq, targets: targets, msg: msg, exclude: exclude}
	b.nextSeq++
	heap.Push(&b.queue, job)
	b.mu.Unlock()
	b.cond.Signal()
}

func (b *Broadcaster) run() {
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if b.closed && len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}

		drained := make([]*broadcastJob, 0, b.budget)
		for len(drained) < b.budget && len(b.queue) > 0 {
			drained = append(drained, heap.Pop(&b.queue).(*broadcastJob))
		}
		b.mu.Unlock()

		for _, job := range drained {
			deliver(job)
		}
	}
}

// deliver renders msg once, then gives each recipient its own buffer copy:
// Conn.write recycles the buffer it is handed, so sharing one buffer across
// multiple recipients' async write queues would race and double-recycle.
func deliver(job *broadcastJob) {
	rendered := job.msg.Render()
	excludeFold := CaseFold(job.exclude)

	for _, user := range job.targets {
		if excludeFold != "" && CaseFold(user.Nick()) == excludeFold {
			continue
		}
		buf := bufpool.New()
		buf.WriteString(rendered)
		user.conn.Write(buf)
	}
}

// Close drains any remaining queued jobs and stops the worker.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
	b.wg.Wait()
}
