// Package redis stores designs and locus trees in Redis and provides a
// distributed single-writer lock for designs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
	"github.com/aretw0/ludics/pkg/ports"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "ludics:"

// noExpiry is the index score of keys without TTL (2100-01-01).
const noExpiry = 4102444800

// Store implements ports.Store using Redis.
//
// Keys:
//
//	<prefix>design:<id>            design JSON
//	<prefix>designs                ZSET of every design ID, scored by expiry
//	<prefix>dialogue:<id>:designs  ZSET of a dialogue's design IDs
//	<prefix>loci:<id>              HASH path -> locus JSON
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for designs and locus trees.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, e.g. to build a Locker on it.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) designKey(id string) string {
	return s.prefix + "design:" + id
}

func (s *Store) indexKey() string {
	return s.prefix + "designs"
}

func (s *Store) dialogueKey(dialogueID string) string {
	return s.prefix + "dialogue:" + dialogueID + ":designs"
}

func (s *Store) lociKey(dialogueID string) string {
	return s.prefix + "loci:" + dialogueID
}

func (s *Store) score() float64 {
	if s.ttl == 0 {
		return noExpiry
	}
	return float64(time.Now().Add(s.ttl).Unix())
}

// EnsureLocus creates the locus and its missing ancestors with HSETNX, so
// concurrent callers converge on the first record written.
func (s *Store) EnsureLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	chain, err := ports.LocusChain(path)
	if err != nil {
		return nil, err
	}
	key := s.lociKey(dialogueID)

	for _, p := range chain {
		data, err := json.Marshal(ports.NewLocus(dialogueID, p))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal locus: %w", err)
		}
		if err := s.client.HSetNX(ctx, key, p, data).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrEnsureLocusFailed, err)
		}
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return nil, fmt.Errorf("failed to refresh locus ttl: %w", err)
		}
	}
	return s.GetLocus(ctx, dialogueID, chain[len(chain)-1])
}

// GetLocus reads one field of the dialogue's locus hash.
func (s *Store) GetLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	val, err := s.client.HGet(ctx, s.lociKey(dialogueID), locus.Normalize(path)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrNoSuchLocus
		}
		return nil, fmt.Errorf("failed to get locus from redis: %w", err)
	}
	var l domain.Locus
	if err := json.Unmarshal([]byte(val), &l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal locus: %w", err)
	}
	return &l, nil
}

// ListLoci returns the dialogue's loci in canonical order.
func (s *Store) ListLoci(ctx context.Context, dialogueID string) ([]domain.Locus, error) {
	vals, err := s.client.HVals(ctx, s.lociKey(dialogueID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list loci: %w", err)
	}
	out := make([]domain.Locus, 0, len(vals))
	for _, v := range vals {
		var l domain.Locus
		if err := json.Unmarshal([]byte(v), &l); err != nil {
			return nil, fmt.Errorf("failed to unmarshal locus: %w", err)
		}
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b domain.Locus) int { return locus.Compare(a.Path, b.Path) })
	return out, nil
}

// CreateDesign stores a new design with SET NX.
func (s *Store) CreateDesign(ctx context.Context, d *domain.Design) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal design: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.designKey(d.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	if !ok {
		return domain.ErrDesignExists
	}
	return s.index(ctx, d)
}

// SaveDesign overwrites an existing design with SET XX.
func (s *Store) SaveDesign(ctx context.Context, d *domain.Design) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal design: %w", err)
	}
	ok, err := s.client.SetXX(ctx, s.designKey(d.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	if !ok {
		return domain.ErrNoSuchDesign
	}
	return s.index(ctx, d)
}

func (s *Store) index(ctx context.Context, d *domain.Design) error {
	member := backend.Z{Score: s.score(), Member: d.ID}
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.indexKey(), member)
	pipe.ZAdd(ctx, s.dialogueKey(d.DeliberationID), member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index design: %w", err)
	}
	return nil
}

// GetDesign retrieves a design from Redis.
func (s *Store) GetDesign(ctx context.Context, id string) (*domain.Design, error) {
	val, err := s.client.Get(ctx, s.designKey(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrNoSuchDesign
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var d domain.Design
	if err := json.Unmarshal([]byte(val), &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal design: %w", err)
	}
	if d.Acts == nil {
		d.Acts = []domain.Act{}
	}
	d.SortActs()
	return &d, nil
}

// DeleteDesign removes the design and its index entries.
func (s *Store) DeleteDesign(ctx context.Context, id string) error {
	d, err := s.GetDesign(ctx, id)
	if errors.Is(err, domain.ErrNoSuchDesign) {
		// An expired design may still sit in the index.
		if zerr := s.client.ZRem(ctx, s.indexKey(), id).Err(); zerr != nil {
			return zerr
		}
		return err
	}
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.designKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	pipe.ZRem(ctx, s.dialogueKey(d.DeliberationID), id)
	_, err = pipe.Exec(ctx)
	return err
}

// ListDesigns reads the ZSET index after pruning expired members.
func (s *Store) ListDesigns(ctx context.Context, dialogueID string) ([]string, error) {
	key := s.indexKey()
	if dialogueID != "" {
		key = s.dialogueKey(dialogueID)
	}

	// Lazy cleanup: without TTL nothing is ever below now.
	now := fmt.Sprintf("%d", time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired designs: %w", err)
	}

	ids, err := s.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list designs: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
