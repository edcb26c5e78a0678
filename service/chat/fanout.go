package chat

import (
	"hash/fnv"
	"sync"

	"ChatWave/logger"
)

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout delivers one payload to many clients through a small worker pool.
// Jobs are routed to a worker by key, so two broadcasts for the same
// conversation are always handled by the same worker in submission order.
// Delivery per client is best-effort: a full send queue drops the payload.
type Fanout struct {
	queues []chan fanoutJob
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1024
	}
	f := &Fanout{queues: make([]chan fanoutJob, workers)}
	for i := range f.queues {
		f.queues[i] = make(chan fanoutJob, queue)
		f.wg.Add(1)
		go f.worker(f.queues[i])
	}
	return f
}

func (f *Fanout) worker(jobs <-chan fanoutJob) {
	defer f.wg.Done()
	for job := range jobs {
		for _, c := range job.conns {
			if !c.enqueue(job.payload) {
				// slow or closed client: drop, the persisted record is the
				// source of truth and a later fetch recovers the event
				logger.Infof("[fanout] drop payload conn=%s user=%s",
					c.Session.ConnID, c.Session.UserID)
			}
		}
	}
}

// Broadcast enqueues a delivery job keyed by ordering domain (the
// conversation id for message events). After Close it is a no-op, so
// connections torn down during shutdown cannot hit a closed queue.
func (f *Fanout) Broadcast(key string, conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	f.queues[f.pick(key)] <- fanoutJob{conns: conns, payload: payload}
}

func (f *Fanout) pick(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(f.queues)))
}

// Close drains and stops the workers. In-flight Broadcast calls finish
// before the queues close; later ones are dropped.
func (f *Fanout) Close() {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		for _, q := range f.queues {
			close(q)
		}
		f.wg.Wait()
	})
}
