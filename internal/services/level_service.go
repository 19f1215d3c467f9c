package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"eccnsw/memberdesk/internal/db"
	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/utils"
)

// ErrValidation is returned when input fails validation; no state is changed.
var ErrValidation = errors.New("validation failed")

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

const membershipGroupsCollection = "membership_groups"

// ILevelService defines the interface for membership level catalog operations.
type ILevelService interface {
	ListGroups(ctx context.Context) ([]models.MembershipGroup, error)
	CreateGroup(ctx context.Context, group models.MembershipGroup) (*models.MembershipGroup, error)
	UpdateGroup(ctx context.Context, group models.MembershipGroup) (*models.MembershipGroup, error)
	DeleteGroup(ctx context.Context, groupID utils.SixID) error
	FindLevel(ctx context.Context, levelID utils.SixID) (*models.MembershipLevel, error)
	SeedDefaults(ctx context.Context) error
}

// levelService implements ILevelService.
type levelService struct {
	db *mongo.Database
}

// NewLevelService creates a new LevelService.
func NewLevelService(db *mongo.Database) ILevelService {
	return &levelService{db: db}
}

func (s *levelService) ListGroups(ctx context.Context) ([]models.MembershipGroup, error) {
	cursor, err := s.db.Collection(membershipGroupsCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error listing membership groups: %w", err)
	}
	var groups []models.MembershipGroup
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("error decoding membership groups: %w", err)
	}
	return groups, nil
}

// validateGroup checks names before any write so a failed call leaves the
// catalog untouched.
func validateGroup(group *models.MembershipGroup) error {
	if strings.TrimSpace(group.GroupName) == "" {
		return fmt.Errorf("%w: group name is required", ErrValidation)
	}
	for i := range group.Levels {
		if strings.TrimSpace(group.Levels[i].Name) == "" {
			return fmt.Errorf("%w: level name is required", ErrValidation)
		}
		if group.Levels[i].JoiningFee < 0 || group.Levels[i].AnnualFee < 0 {
			return fmt.Errorf("%w: fees cannot be negative", ErrValidation)
		}
	}
	return nil
}

func (s *levelService) CreateGroup(ctx context.Context, group models.MembershipGroup) (*models.MembershipGroup, error) {
	if err := validateGroup(&group); err != nil {
		return nil, err
	}
	group.GenIDIfEmpty()
	for i := range group.Levels {
		if group.Levels[i].ID == (utils.SixID{}) {
			group.Levels[i].ID = utils.NewSixID()
		}
	}

	err := db.Try(func() error {
		group.GenIDIfEmpty()
		_, insertErr := s.db.Collection(membershipGroupsCollection).InsertOne(ctx, group)
		if db.IsMongoDuplicateKeyError(insertErr) {
			group.GenID()
		}
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("error creating membership group: %w", err)
	}
	return &group, nil
}

func (s *levelService) UpdateGroup(ctx context.Context, group models.MembershipGroup) (*models.MembershipGroup, error) {
	if err := validateGroup(&group); err != nil {
		return nil, err
	}
	for i := range group.Levels {
		if group.Levels[i].ID == (utils.SixID{}) {
			group.Levels[i].ID = utils.NewSixID()
		}
	}

	res, err := s.db.Collection(membershipGroupsCollection).ReplaceOne(ctx, bson.M{"_id": group.ID}, group)
	if err != nil {
		return nil, fmt.Errorf("error updating membership group %s: %w", group.ID.String(), err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: membership group %s", ErrNotFound, group.ID.String())
	}
	return &group, nil
}

func (s *levelService) DeleteGroup(ctx context.Context, groupID utils.SixID) error {
	res, err := s.db.Collection(membershipGroupsCollection).DeleteOne(ctx, bson.M{"_id": groupID})
	if err != nil {
		return fmt.Errorf("error deleting membership group %s: %w", groupID.String(), err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: membership group %s", ErrNotFound, groupID.String())
	}
	// Invoices keep working regardless: they carry a snapshot of the level
	// they were issued against.
	return nil
}

// FindLevel resolves a level id across all groups. Returns ErrNotFound when
// the id no longer exists in the catalog.
func (s *levelService) FindLevel(ctx context.Context, levelID utils.SixID) (*models.MembershipLevel, error) {
	groups, err := s.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	level := models.FindLevel(groups, levelID)
	if level == nil {
		return nil, fmt.Errorf("%w: membership level %s", ErrNotFound, levelID.String())
	}
	return level, nil
}

// SeedDefaults inserts the default level catalog when the collection is
// empty. Called once at startup.
func (s *levelService) SeedDefaults(ctx context.Context) error {
	count, err := s.db.Collection(membershipGroupsCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("error counting membership groups: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, group := range defaultCatalog() {
		if _, err := s.CreateGroup(ctx, group); err != nil {
			return fmt.Errorf("error seeding default catalog: %w", err)
		}
	}
	log.Println("Seeded default membership level catalog.")
	return nil
}

func defaultCatalog() []models.MembershipGroup {
	level := func(name string, joining, annual float64, delegates, youth int) models.MembershipLevel {
		return models.MembershipLevel{
			ID:         utils.NewSixID(),
			Name:       name,
			JoiningFee: joining,
			AnnualFee:  annual,
			DelegateOptions: models.DelegateOptions{
				Delegates:      delegates,
				YouthDelegates: youth,
			},
		}
	}
	return []models.MembershipGroup{
		{
			Base:      models.NewBase(),
			GroupName: "Associate Member",
			Levels: []models.MembershipLevel{
				level("Individual Member", 8, 22, 0, 0),
				level("Student Member", 0, 0, 0, 0),
				level("Honorary Life Member", 0, 0, 0, 0),
			},
		},
		{
			Base:      models.NewBase(),
			GroupName: "Affiliate Organisation Member",
			Levels: []models.MembershipLevel{
				level("Organisation 1 Delegate", 11, 33, 1, 0),
				level("Organisation 2 Delegates", 22, 66, 2, 0),
				level("Organisation 3 Delegates", 33, 99, 3, 0),
				level("Organisation 1 Delegate + 1 Youth Delegate", 11, 66, 1, 1),
				level("Organisation 2 Delegates + 1 Youth Delegate", 22, 99, 2, 1),
				level("Organisation 3 Delegates + 1 Youth Delegate", 33, 132, 3, 1),
			},
		},
		{
			Base:      models.NewBase(),
			GroupName: "Corporate or Government Member",
			Levels: []models.MembershipLevel{
				level("Corporate Member", 200, 500, 3, 1),
			},
		},
	}
}
