package jobs

import (
	"log"
	"time"

	"cleaning-booking-server/booking"
)

const sweepInterval = time.Minute

// DraftExpiryJob abandons booking wizards nobody has touched for longer
// than the draft TTL, so their in-memory drafts don't pile up.
type DraftExpiryJob struct {
	registry *booking.Registry
	ttl      time.Duration
	interval time.Duration
	stopChan chan bool
}

func NewDraftExpiryJob(registry *booking.Registry, ttl time.Duration) *DraftExpiryJob {
	return &DraftExpiryJob{
		registry: registry,
		ttl:      ttl,
		interval: sweepInterval,
		stopChan: make(chan bool),
	}
}

// Start begins sweeping in the background.
func (j *DraftExpiryJob) Start() {
	go j.run()
	log.Printf("🚀 Draft expiry job started (ttl %s)", j.ttl)
}

// Stop blocks until the sweep loop has exited.
func (j *DraftExpiryJob) Stop() {
	j.stopChan <- true
	log.Println("🛑 Draft expiry job stopped")
}

func (j *DraftExpiryJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stopChan:
			return
		}
	}
}

func (j *DraftExpiryJob) sweep() int {
	swept := j.registry.Sweep(j.ttl)
	if swept > 0 {
		log.Printf("⏰ Abandoned %d idle booking drafts, %d still open", swept, j.registry.Len())
	}
	return swept
}
