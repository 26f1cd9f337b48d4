package service

import (
	"context"

	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/model"
)

// GroupRepository is the group persistence used by GroupService.
type GroupRepository interface {
	GroupStore
	Delete(ctx context.Context, id string) error
}

// GroupService manages groups.  Routes restrict it to administrators.
type GroupService struct {
	groups GroupRepository
	log    logging.Logger
}

func NewGroupService(groups GroupRepository, log logging.Logger) *GroupService {
	return &GroupService{groups: groups, log: log.With("component", "groups")}
}

func (s *GroupService) Create(ctx context.Context, name string) (model.Group, error) {
	if err := validateGroupName(name); err != nil {
		return model.Group{}, err
	}
	g, err := s.groups.Create(ctx, name)
	if err != nil {
		return model.Group{}, err
	}
	s.log.Info(ctx, "group created", "group_id", g.ID, "name", g.Name)
	return g, nil
}

func (s *GroupService) Get(ctx context.Context, id string) (model.Group, error) {
	return s.groups.GetByID(ctx, id)
}

// Delete removes an empty group.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	if err := s.groups.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info(ctx, "group deleted", "group_id", id)
	return nil
}
