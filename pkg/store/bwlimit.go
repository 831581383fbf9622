// pkg/store/bwlimit.go

package store

import (
	"github.com/juju/ratelimit"
)

type bwlimit struct {
	Store
	upLimit   *ratelimit.Bucket
	downLimit *ratelimit.Bucket
}

// WithLimits caps upload and download bandwidth (bytes per second) of a
// store. Zero disables the corresponding limit.
func WithLimits(s Store, up, down int64) Store {
	bw := &bwlimit{s, nil, nil}
	if up > 0 {
		// there are overheads coming from the transport underneath
		bw.upLimit = ratelimit.NewBucketWithRate(float64(up)*0.85, up)
	}
	if down > 0 {
		bw.downLimit = ratelimit.NewBucketWithRate(float64(down)*0.85, down)
	}
	return bw
}

func (p *bwlimit) Put(key string, data []byte) error {
	if p.upLimit != nil {
		p.upLimit.Wait(int64(len(data)))
	}
	return p.Store.Put(key, data)
}

func (p *bwlimit) Get(key string) ([]byte, error) {
	data, err := p.Store.Get(key)
	if p.downLimit != nil {
		p.downLimit.Wait(int64(len(data)))
	}
	return data, err
}
