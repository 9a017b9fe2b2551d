package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"leetbot/internal/domain"
	logx "leetbot/pkg/logx"
)

// fileStore keeps the whole state in memory and rewrites one JSON document
// on every mutation (temp file + fsync + rename).
//
// Layout:
//
//	{"users": {...}, "daily_problems": {...}, "configs": {...}, "user_solves": [...]}
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	doc    document
	closed bool
}

type document struct {
	Users         map[string]domain.User               `json:"users"`
	DailyProblems map[string]domain.DailyProblemRecord `json:"daily_problems"`
	Configs       map[string]domain.GuildConfig        `json:"configs"`
	UserSolves    []domain.SolveEntry                  `json:"user_solves"`
	NextSeq       int64                                `json:"next_seq"`
}

func emptyDocument() document {
	return document{
		Users:         map[string]domain.User{},
		DailyProblems: map[string]domain.DailyProblemRecord{},
		Configs:       map[string]domain.GuildConfig{},
		UserSolves:    []domain.SolveEntry{},
	}
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	doc, err := loadDocument(path, log)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path, doc: doc}, nil
}

// loadDocument falls back to an empty document when the file is missing or
// malformed. A malformed file is moved aside so it is not overwritten.
func loadDocument(path string, log logx.Logger) (document, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info("store file not found, starting empty", logx.String("path", path))
		return emptyDocument(), nil
	}
	if err != nil {
		return document{}, fmt.Errorf("read store %s: %w", path, err)
	}

	doc := emptyDocument()
	if len(strings.TrimSpace(string(b))) > 0 {
		if err := json.Unmarshal(b, &doc); err != nil {
			backup := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
			if rerr := os.Rename(path, backup); rerr != nil {
				log.Error("store file malformed and could not be moved aside", logx.String("path", path), logx.Err(rerr))
			} else {
				log.Warn("store file malformed, starting empty", logx.String("backup", backup), logx.Err(err))
			}
			return emptyDocument(), nil
		}
	}
	doc.normalize()
	return doc, nil
}

func (d *document) normalize() {
	if d.Users == nil {
		d.Users = map[string]domain.User{}
	}
	if d.DailyProblems == nil {
		d.DailyProblems = map[string]domain.DailyProblemRecord{}
	}
	if d.Configs == nil {
		d.Configs = map[string]domain.GuildConfig{}
	}
	if d.UserSolves == nil {
		d.UserSolves = []domain.SolveEntry{}
	}
	for id, u := range d.Users {
		if u.ID == "" {
			u.ID = id
		}
		if u.Seq > d.NextSeq {
			d.NextSeq = u.Seq
		}
		d.Users[id] = u
	}
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// flushLocked writes the document atomically. On failure undo restores the
// in-memory state so memory and disk do not diverge.
func (s *fileStore) flushLocked(undo func()) error {
	if err := writeFileAtomic(s.path, s.doc); err != nil {
		undo()
		s.log.Error("store flush failed", logx.String("path", s.path), logx.Err(err))
		return fmt.Errorf("flush store: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, doc document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *fileStore) GetUser(ctx context.Context, id string) (domain.User, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.User{}, false, ErrClosed
	}
	u, ok := s.doc.Users[id]
	return u, ok, nil
}

func (s *fileStore) SaveUser(ctx context.Context, u domain.User) error {
	_ = ctx
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("storage: user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	prev, existed := s.doc.Users[u.ID]
	prevSeq := s.doc.NextSeq
	if existed {
		u.Seq = prev.Seq
	} else {
		s.doc.NextSeq++
		u.Seq = s.doc.NextSeq
	}
	s.doc.Users[u.ID] = u

	return s.flushLocked(func() {
		s.doc.NextSeq = prevSeq
		if existed {
			s.doc.Users[u.ID] = prev
		} else {
			delete(s.doc.Users, u.ID)
		}
	})
}

func (s *fileStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]domain.User, 0, len(s.doc.Users))
	for _, u := range s.doc.Users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *fileStore) GetConfig(ctx context.Context, guildID string) (domain.GuildConfig, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.GuildConfig{}, false, ErrClosed
	}
	c, ok := s.doc.Configs[guildID]
	return c, ok, nil
}

func (s *fileStore) SaveConfig(ctx context.Context, c domain.GuildConfig) error {
	_ = ctx
	if strings.TrimSpace(c.GuildID) == "" {
		return errors.New("storage: guild id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	prev, existed := s.doc.Configs[c.GuildID]
	s.doc.Configs[c.GuildID] = c
	return s.flushLocked(func() {
		if existed {
			s.doc.Configs[c.GuildID] = prev
		} else {
			delete(s.doc.Configs, c.GuildID)
		}
	})
}

func (s *fileStore) DeleteConfig(ctx context.Context, guildID string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	prev, existed := s.doc.Configs[guildID]
	if !existed {
		return false, nil
	}
	delete(s.doc.Configs, guildID)
	if err := s.flushLocked(func() { s.doc.Configs[guildID] = prev }); err != nil {
		return false, err
	}
	return true, nil
}

func (s *fileStore) ListConfigs(ctx context.Context) ([]domain.GuildConfig, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]domain.GuildConfig, 0, len(s.doc.Configs))
	for _, c := range s.doc.Configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out, nil
}

func (s *fileStore) GetDailyRecord(ctx context.Context, guildID, date string) (domain.DailyProblemRecord, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.DailyProblemRecord{}, false, ErrClosed
	}
	r, ok := s.doc.DailyProblems[domain.RecordKey(guildID, date)]
	return r, ok, nil
}

func (s *fileStore) CreateDailyRecord(ctx context.Context, r domain.DailyProblemRecord) error {
	_ = ctx
	if r.GuildID == "" || r.Date == "" {
		return errors.New("storage: daily record needs guild and date")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	key := r.Key()
	if _, ok := s.doc.DailyProblems[key]; ok {
		return ErrRecordExists
	}
	s.doc.DailyProblems[key] = r
	return s.flushLocked(func() { delete(s.doc.DailyProblems, key) })
}

func (s *fileStore) AppendSolve(ctx context.Context, e domain.SolveEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	n := len(s.doc.UserSolves)
	s.doc.UserSolves = append(s.doc.UserSolves, e)
	return s.flushLocked(func() { s.doc.UserSolves = s.doc.UserSolves[:n] })
}
