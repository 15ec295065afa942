package handlers

import (
	"context"
	"fmt"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/services/authorization"
	"github.com/kataoka/daicho/internal/services/lifecycle"
)

// stubResolver answers authorization checks from a fixed decision table.
type stubResolver struct {
	// levels maps "person|type:instance" to the effective level.
	levels map[string]entities.Level
	err    error
}

func stubKey(personID, entityType, instanceID string) string {
	return fmt.Sprintf("%s|%s:%s", personID, entityType, instanceID)
}

func (s *stubResolver) Authorize(ctx context.Context, personID, entityType, instanceID string, required entities.Level) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	level, ok := s.levels[stubKey(personID, entityType, instanceID)]
	if !ok {
		return false, nil
	}
	return level.Satisfies(required), nil
}

func (s *stubResolver) Resolve(ctx context.Context, personID, entityType, instanceID string) (entities.Level, error) {
	if s.err != nil {
		return entities.LevelNone, s.err
	}
	if level, ok := s.levels[stubKey(personID, entityType, instanceID)]; ok {
		return level, nil
	}
	return entities.LevelNone, nil
}

func (s *stubResolver) MemberRoles(ctx context.Context, personID string) ([]string, error) {
	return nil, nil
}

// stubFilterBuilder returns a canned access filter.
type stubFilterBuilder struct {
	filter *authorization.AccessFilter
	err    error
}

func (s *stubFilterBuilder) BuildAccessFilter(ctx context.Context, personID, entityType string, required entities.Level) (*authorization.AccessFilter, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.filter, nil
}

// stubLifecycle records orchestrator calls and returns canned results.
type stubLifecycle struct {
	createReq *lifecycle.CreateRequest
	updated   map[string]interface{}
	deleted   []string
	hardUsed  bool
	err       error
}

func (s *stubLifecycle) CreateEntity(ctx context.Context, req *lifecycle.CreateRequest) (*lifecycle.CreateResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.createReq = req
	record := map[string]interface{}{"id": "new-id"}
	for col, value := range req.Data {
		record[col] = value
	}
	return &lifecycle.CreateResult{InstanceID: "new-id", Record: record}, nil
}

func (s *stubLifecycle) UpdateEntity(ctx context.Context, typeCode, instanceID string, updates map[string]interface{}) (map[string]interface{}, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.updated = updates
	record := map[string]interface{}{"id": instanceID}
	for col, value := range updates {
		record[col] = value
	}
	return record, nil
}

func (s *stubLifecycle) DeleteEntity(ctx context.Context, typeCode, instanceID string, hard bool) (*lifecycle.DeleteResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.deleted = append(s.deleted, typeCode+":"+instanceID)
	s.hardUsed = hard
	return &lifecycle.DeleteResult{LinksRemoved: 2, GrantsRemoved: 1}, nil
}

func (s *stubLifecycle) GetEntity(ctx context.Context, typeCode, instanceID string) (map[string]interface{}, error) {
	if s.err != nil {
		return nil, s.err
	}
	return map[string]interface{}{"id": instanceID, "name": "Alpha"}, nil
}
