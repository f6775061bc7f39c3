// Package protectiontest provides in-memory implementations of the protection ports.
package protectiontest

import (
	"context"
	"errors"
	"sync"
	"time"

	"guardbot/internal/protection"
	"guardbot/internal/storage"
)

type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ConfigStore keeps configs in memory and starts every guild from Defaults.
type ConfigStore struct {
	mu       sync.Mutex
	Defaults protection.Config
	configs  map[string]protection.Config
	LoadErr  error
	Updates  int
}

func NewConfigStore(defaults protection.Config) *ConfigStore {
	return &ConfigStore{Defaults: defaults, configs: make(map[string]protection.Config)}
}

func (s *ConfigStore) Put(guildID string, cfg protection.Config) {
	s.mu.Lock()
	s.configs[guildID] = cfg
	s.mu.Unlock()
}

func (s *ConfigStore) LoadConfig(_ context.Context, guildID string) (protection.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return protection.Config{}, s.LoadErr
	}
	if cfg, ok := s.configs[guildID]; ok {
		return cfg.Clone(), nil
	}
	return s.Defaults.Clone(), nil
}

func (s *ConfigStore) UpdateConfig(_ context.Context, guildID string, mutate func(*protection.Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[guildID]
	if !ok {
		cfg = s.Defaults
	}
	cfg = cfg.Clone()
	if err := mutate(&cfg); err != nil {
		return err
	}
	s.configs[guildID] = cfg
	s.Updates++
	return nil
}

type AuditSource struct {
	mu      sync.Mutex
	Entries map[protection.ActionKind]*protection.AuditEntry
	Err     error
}

func NewAuditSource() *AuditSource {
	return &AuditSource{Entries: make(map[protection.ActionKind]*protection.AuditEntry)}
}

func (a *AuditSource) Set(kind protection.ActionKind, entry *protection.AuditEntry) {
	a.mu.Lock()
	a.Entries[kind] = entry
	a.mu.Unlock()
}

func (a *AuditSource) FetchRecentEntry(_ context.Context, _ string, kind protection.ActionKind) (*protection.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	entry := a.Entries[kind]
	if entry == nil {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

// Call is one recorded actuator invocation.
type Call struct {
	Method   string
	GuildID  string
	TargetID string
	Reason   string
	Duration time.Duration
	RoleIDs  []string
	Entity   protection.EntityRef
}

// Actuator records every call and fails the methods listed in Fail.
type Actuator struct {
	mu    sync.Mutex
	Calls []Call
	Fail  map[string]error
}

func NewActuator() *Actuator {
	return &Actuator{Fail: make(map[string]error)}
}

var ErrForbidden = errors.New("403 forbidden")

func (a *Actuator) record(call Call) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls = append(a.Calls, call)
	return a.Fail[call.Method]
}

func (a *Actuator) Count(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, call := range a.Calls {
		if call.Method == method {
			n++
		}
	}
	return n
}

func (a *Actuator) Find(method string) (Call, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, call := range a.Calls {
		if call.Method == method {
			return call, true
		}
	}
	return Call{}, false
}

func (a *Actuator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Calls)
}

func (a *Actuator) Ban(_ context.Context, guildID, userID, reason string) error {
	return a.record(Call{Method: "ban", GuildID: guildID, TargetID: userID, Reason: reason})
}

func (a *Actuator) Kick(_ context.Context, guildID, userID, reason string) error {
	return a.record(Call{Method: "kick", GuildID: guildID, TargetID: userID, Reason: reason})
}

func (a *Actuator) Timeout(_ context.Context, guildID, userID string, duration time.Duration, reason string) error {
	return a.record(Call{Method: "timeout", GuildID: guildID, TargetID: userID, Duration: duration, Reason: reason})
}

func (a *Actuator) Unban(_ context.Context, guildID, userID, reason string) error {
	return a.record(Call{Method: "unban", GuildID: guildID, TargetID: userID, Reason: reason})
}

func (a *Actuator) DeleteEntity(_ context.Context, guildID string, ref protection.EntityRef, reason string) error {
	return a.record(Call{Method: "delete_entity", GuildID: guildID, TargetID: ref.ID, Entity: ref, Reason: reason})
}

func (a *Actuator) SetRoles(_ context.Context, guildID, userID string, roleIDs []string) error {
	return a.record(Call{Method: "set_roles", GuildID: guildID, TargetID: userID, RoleIDs: append([]string(nil), roleIDs...)})
}

func (a *Actuator) SendDM(_ context.Context, userID, content string) error {
	return a.record(Call{Method: "dm", TargetID: userID, Reason: content})
}

func (a *Actuator) SendMessage(_ context.Context, channelID, content string) error {
	return a.record(Call{Method: "message", TargetID: channelID, Reason: content})
}

func (a *Actuator) DeleteMessage(_ context.Context, channelID, messageID string) error {
	return a.record(Call{Method: "delete_message", GuildID: channelID, TargetID: messageID})
}

// Directory serves members from a map; the bot is stored under SelfID.
type Directory struct {
	mu      sync.Mutex
	Owner   string
	SelfID  string
	Members map[string]*protection.Member
}

func NewDirectory(owner string, self *protection.Member) *Directory {
	d := &Directory{Owner: owner, SelfID: self.UserID, Members: make(map[string]*protection.Member)}
	d.Members[self.UserID] = self
	return d
}

func (d *Directory) Add(member *protection.Member) {
	d.mu.Lock()
	d.Members[member.UserID] = member
	d.mu.Unlock()
}

func (d *Directory) OwnerID(context.Context, string) (string, error) {
	return d.Owner, nil
}

func (d *Directory) Member(_ context.Context, _ string, userID string) (*protection.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Members[userID], nil
}

func (d *Directory) Self(ctx context.Context, guildID string) (*protection.Member, error) {
	return d.Member(ctx, guildID, d.SelfID)
}

// LogSink collects audit rows.
type LogSink struct {
	mu   sync.Mutex
	Logs []storage.AuditLog
	Err  error
}

func (s *LogSink) AddAuditLog(_ context.Context, entry storage.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Logs = append(s.Logs, entry)
	return nil
}

func (s *LogSink) Events(event string) []storage.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.AuditLog
	for _, entry := range s.Logs {
		if entry.Event == event {
			out = append(out, entry)
		}
	}
	return out
}
