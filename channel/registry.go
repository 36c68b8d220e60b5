package channel

import (
	"context"
	"os"

	errorsmod "cosmossdk.io/errors"
	"github.com/BurntSushi/toml"
	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"zkgm/chains"
)

// DefaultCacheSize bounds the number of cached resolutions.
const DefaultCacheSize = 256

// Source lists channel records between two chains. Implementations may
// return unrelated rows; Resolve filters them.
type Source interface {
	Channels(ctx context.Context, src, dst chains.UniversalChainID) ([]Record, error)
}

type pair struct {
	src, dst chains.UniversalChainID
}

// Registry resolves the single channel between two chains. Only successful
// resolutions are cached.
type Registry struct {
	source Source
	cache  *lru.Cache[pair, Channel]
	logger log.FieldLogger
}

// NewRegistry wraps source with an LRU of cacheSize entries (DefaultCacheSize
// when <= 0). A nil logger means the standard logrus logger.
func NewRegistry(source Source, cacheSize int, logger log.FieldLogger) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[pair, Channel](cacheSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Registry{source: source, cache: cache, logger: logger}, nil
}

// Resolve returns the one complete channel from src to dst. Zero matches,
// several matches, or a match with a missing leg fail with *ValidationError.
func (r *Registry) Resolve(ctx context.Context, src, dst chains.UniversalChainID) (Channel, error) {
	key := pair{src, dst}
	if ch, ok := r.cache.Get(key); ok {
		return ch, nil
	}

	records, err := r.source.Channels(ctx, src, dst)
	if err != nil {
		return Channel{}, errorsmod.Wrapf(ErrSourceUnavailable, "%s -> %s: %v", src, dst, err)
	}

	var candidates []Record
	for _, rec := range records {
		if rec.Connects(src, dst) {
			candidates = append(candidates, rec)
		}
	}

	fail := func(cause error) (Channel, error) {
		r.logger.WithFields(log.Fields{
			"source":      src,
			"destination": dst,
			"candidates":  len(candidates),
		}).Debug("channel resolution failed")
		return Channel{}, &ValidationError{Source: src, Destination: dst, Cause: cause}
	}

	switch len(candidates) {
	case 0:
		return fail(ErrNoChannel)
	case 1:
	default:
		return fail(errorsmod.Wrapf(ErrAmbiguousChannel, "%d candidates", len(candidates)))
	}

	ch, err := candidates[0].Channel()
	if err != nil {
		return fail(err)
	}
	r.cache.Add(key, ch)
	return ch, nil
}

// Purge drops every cached resolution.
func (r *Registry) Purge() {
	r.cache.Purge()
}

// StaticSource serves a fixed set of records.
type StaticSource struct {
	records []Record
}

// NewStaticSource returns a source over records.
func NewStaticSource(records ...Record) *StaticSource {
	return &StaticSource{records: records}
}

type registryFile struct {
	Channels []Record `toml:"channel"`
}

// ParseStaticSource reads records from TOML, one [[channel]] table each.
func ParseStaticSource(data string) (*StaticSource, error) {
	var f registryFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, errorsmod.Wrap(ErrInvalidChannelFile, err.Error())
	}
	return NewStaticSource(f.Channels...), nil
}

// LoadStaticSource reads a TOML registry file.
func LoadStaticSource(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorsmod.Wrapf(ErrInvalidChannelFile, "%s: %v", path, err)
	}
	return ParseStaticSource(string(data))
}

// Channels returns every record between src and dst.
func (s *StaticSource) Channels(_ context.Context, src, dst chains.UniversalChainID) ([]Record, error) {
	var out []Record
	for _, rec := range s.records {
		if rec.Connects(src, dst) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// All returns every record.
func (s *StaticSource) All() []Record {
	return append([]Record(nil), s.records...)
}
