package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"moodsun/api/internal/account"
	"moodsun/api/internal/engine"
	"moodsun/api/internal/images"
	"moodsun/api/internal/store"
)

// Pinger is a dependency whose reachability /api/ready reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Engine   *engine.Engine
	Accounts *account.Service
	Images   images.Store
	Checks   map[string]Pinger
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

// Service binds the engine, accounts and image storage into the operations
// the HTTP surface exposes.
type Service struct {
	engine   *engine.Engine
	accounts *account.Service
	images   images.Store
	checks   map[string]Pinger
	gatherer prometheus.Gatherer
	log      *zap.Logger
}

func NewService(deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	imgs := deps.Images
	if imgs == nil {
		imgs = images.Disabled{}
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Service{
		engine:   deps.Engine,
		accounts: deps.Accounts,
		images:   imgs,
		checks:   deps.Checks,
		gatherer: gatherer,
		log:      log,
	}
}

// Ready pings every dependency and reports each one by name.
func (s *Service) Ready(ctx context.Context) (bool, map[string]any) {
	ready := true
	checks := make(map[string]any, len(s.checks))
	for name, dep := range s.checks {
		started := time.Now()
		if err := dep.Ping(ctx); err != nil {
			ready = false
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok", "latencyMs": time.Since(started).Milliseconds()}
	}
	return ready, checks
}

type GroupSchemaChange struct {
	CreatedGroups []store.GroupView `json:"createdGroups"`
	UpdatedGroups []store.GroupView `json:"updatedGroups"`
	DeletedGroups []string          `json:"deletedGroups"`
}

// AccountData is everything a client renders after a schema change.
type AccountData struct {
	AccountGroups []store.GroupView     `json:"accountGroups"`
	MoodEntries   []store.MoodEntryView `json:"moodEntries"`
}

// ApplyGroupSchema creates, updates and deletes groups in that order. Steps
// that ran before a failure stay applied, so the current data is returned
// alongside the error.
func (s *Service) ApplyGroupSchema(ctx context.Context, accountID string, change GroupSchemaChange) (AccountData, error) {
	applyErr := s.applyGroupSchema(ctx, accountID, change)
	if applyErr != nil {
		s.log.Warn("group schema change stopped", zap.String("account", accountID), zap.Error(applyErr))
	}
	data, err := s.AccountData(ctx, accountID)
	if err != nil {
		return AccountData{}, errors.Join(applyErr, err)
	}
	return data, applyErr
}

func (s *Service) applyGroupSchema(ctx context.Context, accountID string, change GroupSchemaChange) error {
	if len(change.CreatedGroups) > 0 {
		if _, err := s.engine.CreateGroups(ctx, accountID, change.CreatedGroups); err != nil {
			return fmt.Errorf("create groups: %w", err)
		}
	}
	if len(change.UpdatedGroups) > 0 {
		if err := s.engine.UpdateGroups(ctx, accountID, change.UpdatedGroups); err != nil {
			return fmt.Errorf("update groups: %w", err)
		}
	}
	if len(change.DeletedGroups) > 0 {
		if _, err := s.engine.RemoveGroups(ctx, accountID, change.DeletedGroups); err != nil {
			return fmt.Errorf("delete groups: %w", err)
		}
	}
	return nil
}

func (s *Service) AccountData(ctx context.Context, accountID string) (AccountData, error) {
	groups, err := s.engine.GetAllGroupsWithActivities(ctx, accountID)
	if err != nil {
		return AccountData{}, err
	}
	entries, err := s.engine.GetAllMoodEntriesWithActivities(ctx, accountID)
	if err != nil {
		return AccountData{}, err
	}
	return AccountData{AccountGroups: groups, MoodEntries: entries}, nil
}

// ImageUpload is one image file sent with a mood entry.
type ImageUpload struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// CreateMoodEntry uploads the new images, then stores the entry holding them.
// Uploaded images are released again when the entry cannot be stored.
func (s *Service) CreateMoodEntry(ctx context.Context, accountID string, entry store.MoodEntry, uploads []ImageUpload) (store.MoodEntryView, error) {
	refs, err := s.upload(ctx, uploads)
	if err != nil {
		return store.MoodEntryView{}, err
	}
	entry.Images = append(append([]string{}, entry.Images...), refs...)
	view, err := s.engine.InsertMoodEntry(ctx, accountID, entry)
	if err != nil {
		s.destroy(ctx, accountID, refs)
		return store.MoodEntryView{}, err
	}
	return view, nil
}

// UpdateMoodEntry replaces the entry. kept lists the images the entry keeps;
// nil keeps whatever the record names. deleted images are destroyed once the
// update is stored, but only those the stored entry actually held.
func (s *Service) UpdateMoodEntry(ctx context.Context, accountID string, entry store.MoodEntry, kept []string, uploads []ImageUpload, deleted []string) (store.MoodEntryView, error) {
	current, err := s.engine.GetMoodEntry(ctx, accountID, entry.ID)
	if err != nil {
		return store.MoodEntryView{}, err
	}
	refs, err := s.upload(ctx, uploads)
	if err != nil {
		return store.MoodEntryView{}, err
	}
	if kept == nil {
		kept = entry.Images
	}
	entry.Images = append(append([]string{}, kept...), refs...)

	view, err := s.engine.UpdateMoodEntry(ctx, accountID, entry)
	if err != nil {
		s.destroy(ctx, accountID, refs)
		return store.MoodEntryView{}, err
	}
	s.destroy(ctx, accountID, released(current.Images, entry.Images, deleted))
	return view, nil
}

func (s *Service) DeleteMoodEntry(ctx context.Context, accountID, id string) error {
	refs, err := s.engine.DeleteMoodEntry(ctx, accountID, id)
	if err != nil {
		return err
	}
	s.destroy(ctx, accountID, refs)
	return nil
}

func (s *Service) upload(ctx context.Context, uploads []ImageUpload) ([]string, error) {
	refs := make([]string, 0, len(uploads))
	for _, u := range uploads {
		ref, err := s.images.Upload(ctx, u.ContentType, u.Body, u.Size)
		if err != nil {
			s.destroy(ctx, "", refs)
			return nil, fmt.Errorf("upload image: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *Service) destroy(ctx context.Context, accountID string, refs []string) {
	for _, ref := range refs {
		if err := s.images.Destroy(ctx, ref); err != nil {
			s.log.Warn("destroy image", zap.String("account", accountID), zap.String("image", ref), zap.Error(err))
		}
	}
}

// released returns the deleted refs the entry held before and no longer holds.
func released(before, after, deleted []string) []string {
	held := make(map[string]bool, len(before))
	for _, ref := range before {
		held[ref] = true
	}
	for _, ref := range after {
		delete(held, ref)
	}
	var out []string
	for _, ref := range deleted {
		if held[ref] {
			out = append(out, ref)
			delete(held, ref)
		}
	}
	return out
}
