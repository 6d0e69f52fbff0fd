package search

import (
	"context"
	"log"

	"missioncontrol/api/internal/store"
)

type fallbackStore interface {
	SearchEntities(ctx context.Context, q store.EntityQuery) ([]store.Entity, int, error)
	ListEntities(ctx context.Context, teamID string) ([]store.Entity, error)
}

// Service tries Meilisearch first and falls back to a SQL substring match.
type Service struct {
	meili *Meili
	store fallbackStore
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, store fallbackStore) *Service {
	return &Service{meili: meili, store: store}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "meilisearch"}
		}
		log.Printf("search: meilisearch error, falling back to sql: %v", err)
	}

	entities, total, err := s.store.SearchEntities(ctx, store.EntityQuery{
		TeamID:   q.TeamID,
		Text:     q.Text,
		OwnerID:  q.OwnerID,
		OnlyOpen: q.OnlyOpen,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		log.Printf("search: sql error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: "sql"}
	}
	results := make([]Result, 0, len(entities))
	for _, e := range entities {
		results = append(results, fromEntity(e))
	}
	return Response{Results: results, Total: total, Query: q.Text, Backend: "sql"}
}

// IndexEntity indexes an entity (fire-and-forget to Meilisearch).
func (s *Service) IndexEntity(e store.Entity) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := RecordFor(e)
	go func() {
		if err := s.meili.IndexEntity(record); err != nil {
			log.Printf("search: index entity %s: %v", record.ID, err)
		}
	}()
}

// DeleteEntity removes an entity from the index (fire-and-forget).
func (s *Service) DeleteEntity(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteEntity(id); err != nil {
			log.Printf("search: delete entity %s: %v", id, err)
		}
	}()
}

// ReindexTeam pushes every entity of teamID to Meilisearch.
func (s *Service) ReindexTeam(ctx context.Context, teamID string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	entities, err := s.store.ListEntities(ctx, teamID)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	records := make([]EntityRecord, 0, len(entities))
	for _, e := range entities {
		records = append(records, RecordFor(e))
	}
	if err := s.meili.IndexEntities(records); err != nil {
		log.Printf("search: reindex entities: %v", err)
	}
}

func RecordFor(e store.Entity) EntityRecord {
	return EntityRecord{
		ID:          e.ID,
		ExternalID:  e.ExternalID,
		TeamID:      e.TeamID,
		OwnerID:     e.OwnerID,
		Name:        e.Name,
		Description: e.Description,
		Kind:        e.Kind,
		Priority:    e.Priority,
		Completed:   e.Completed,
	}
}

func fromEntity(e store.Entity) Result {
	return Result{
		ID:         e.ID,
		ExternalID: e.ExternalID,
		Name:       e.Name,
		Snippet:    e.Description,
		OwnerID:    e.OwnerID,
		TeamID:     e.TeamID,
		Kind:       e.Kind,
		Completed:  e.Completed,
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
