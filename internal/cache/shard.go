package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
)

// ShardStore keeps unit component lists in flat JSON files, one file per leading character
// of the normalized unit key: components_<UPPER>.json holding {unitKey: [component, ...]}.
// Files are read and written whole; writes go through a temp file and rename.
type ShardStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewShardStore(dir string) (*ShardStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errs.MissingConfig("SHARD_DIR")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Transient("shard", "mkdir", err)
	}
	return &ShardStore{dir: dir, locks: map[string]*sync.Mutex{}}, nil
}

func (s *ShardStore) Name() string              { return "shard" }
func (s *ShardStore) DefaultTTL() time.Duration { return 0 }

// ShardFile names the file holding key.
func ShardFile(key string) string {
	r, _ := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError || !(unicode.IsLetter(r) || unicode.IsDigit(r)) || r > unicode.MaxASCII {
		return "components__.json"
	}
	return fmt.Sprintf("components_%s.json", strings.ToUpper(string(r)))
}

func (s *ShardStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if key == "" {
		return nil, false, nil
	}
	shard, err := s.read(ShardFile(key))
	if err != nil {
		return nil, false, err
	}
	raw, ok := shard[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(raw), true, nil
}

func (s *ShardStore) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return nil
	}
	if !json.Valid(value) {
		return fmt.Errorf("shard value for %q is not valid JSON", key)
	}
	return s.update(ShardFile(key), func(shard map[string]json.RawMessage) {
		shard[key] = json.RawMessage(append([]byte(nil), value...))
	})
}

func (s *ShardStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return nil
	}
	return s.update(ShardFile(key), func(shard map[string]json.RawMessage) {
		delete(shard, key)
	})
}

func (s *ShardStore) lockFor(file string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[file]
	if !ok {
		l = &sync.Mutex{}
		s.locks[file] = l
	}
	return l
}

func (s *ShardStore) read(file string) (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, file))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, errs.Transient("shard", "read", err)
	}
	shard := map[string]json.RawMessage{}
	if len(raw) == 0 {
		return shard, nil
	}
	if err := json.Unmarshal(raw, &shard); err != nil {
		return nil, errs.Transient("shard", "decode "+file, err)
	}
	return shard, nil
}

func (s *ShardStore) update(file string, mutate func(map[string]json.RawMessage)) error {
	l := s.lockFor(file)
	l.Lock()
	defer l.Unlock()

	shard, err := s.read(file)
	if err != nil {
		return err
	}
	mutate(shard)
	body, err := json.Marshal(shard)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.dir, file), body)
}

func writeAtomic(path string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errs.Transient("shard", "create temp", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errs.Transient("shard", "write", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errs.Transient("shard", "sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errs.Transient("shard", "close", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errs.Transient("shard", "rename", err)
	}
	return nil
}
