package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher delivers a digest batch to a topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type DigestConfig struct {
	Interval  time.Duration // flush period
	MaxUnique int           // flush early once this many distinct errors are pending
	Topic     string
	Publisher Publisher
}

// DigestEntry is one distinct error with its repeat count.
type DigestEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Digest deduplicates error events and publishes them in periodic batches.
type Digest struct {
	cfg     DigestConfig
	mu      sync.Mutex
	pending map[string]*DigestEntry
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewDigest(cfg DigestConfig) *Digest {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxUnique <= 0 {
		cfg.MaxUnique = 100
	}
	d := &Digest{cfg: cfg, pending: make(map[string]*DigestEntry), stop: make(chan struct{})}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Digest) Add(level, msg string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := digestKey(level, msg, fields, caller)

	d.mu.Lock()
	if e, ok := d.pending[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		d.pending[key] = &DigestEntry{
			Level: level, Message: msg, Fields: fields, Caller: caller,
			Count: 1, FirstSeen: now, LastSeen: now,
		}
	}
	var batch []DigestEntry
	if len(d.pending) >= d.cfg.MaxUnique {
		batch = d.drainLocked()
	}
	d.mu.Unlock()

	if batch != nil {
		go d.publish(batch)
	}
}

// Pending returns the number of distinct entries waiting to be flushed.
func (d *Digest) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func digestKey(level, msg string, fields map[string]interface{}, caller string) string {
	b, _ := json.Marshal(struct {
		L string                 `json:"l"`
		M string                 `json:"m"`
		F map[string]interface{} `json:"f"`
		C string                 `json:"c"`
	}{level, msg, fields, caller})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (d *Digest) loop() {
	defer d.wg.Done()
	t := time.NewTicker(d.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			d.Flush()
		case <-d.stop:
			d.Flush()
			return
		}
	}
}

// Flush publishes everything pending synchronously.
func (d *Digest) Flush() {
	d.mu.Lock()
	batch := d.drainLocked()
	d.mu.Unlock()
	if batch != nil {
		d.publish(batch)
	}
}

func (d *Digest) drainLocked() []DigestEntry {
	if len(d.pending) == 0 {
		return nil
	}
	out := make([]DigestEntry, 0, len(d.pending))
	for _, e := range d.pending {
		out = append(out, *e)
	}
	d.pending = make(map[string]*DigestEntry)
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func (d *Digest) publish(batch []DigestEntry) {
	if d.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.cfg.Publisher.PublishMessage(ctx, d.cfg.Topic, batch); err != nil {
		// logging through l here would recurse into the digest
		_, _ = os.Stderr.WriteString("log digest publish failed: " + err.Error() + "\n")
	}
}

func (d *Digest) Close() {
	d.once.Do(func() {
		close(d.stop)
		d.wg.Wait()
	})
}
