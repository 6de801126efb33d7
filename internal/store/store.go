package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/confkit/confkit/internal/domain"
)

// Store implements the session's durability interface on gorm.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite database at path and migrates the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&ConferenceRecord{}, &ParticipantRecord{}, &BreakoutRoomRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open gorm handle; the caller owns migration.
func New(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) SaveConference(ctx context.Context, c *domain.Conference) error {
	rec := toConferenceRecord(c)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

func (s *Store) GetConference(ctx context.Context, id domain.ConferenceID) (*domain.Conference, error) {
	var rec ConferenceRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.E(domain.KindNotFound, "conference %s unknown", id)
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func (s *Store) SaveParticipant(ctx context.Context, p *domain.Participant) error {
	rec := toParticipantRecord(p)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

func (s *Store) SaveParticipants(ctx context.Context, ps []*domain.Participant) error {
	if len(ps) == 0 {
		return nil
	}
	recs := make([]ParticipantRecord, 0, len(ps))
	for _, p := range ps {
		recs = append(recs, toParticipantRecord(p))
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&recs).Error
}

func (s *Store) SaveRooms(ctx context.Context, rooms []*domain.BreakoutRoom) error {
	if len(rooms) == 0 {
		return nil
	}
	recs := make([]BreakoutRoomRecord, 0, len(rooms))
	for _, b := range rooms {
		recs = append(recs, toRoomRecord(b))
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&recs).Error
}

// Participants lists the stored memberships of one conference in join
// order, soft-retained leavers included.
func (s *Store) Participants(ctx context.Context, id domain.ConferenceID) ([]ParticipantRecord, error) {
	var recs []ParticipantRecord
	err := s.db.WithContext(ctx).
		Where("conference_id = ?", string(id)).
		Order("joined_at").
		Find(&recs).Error
	return recs, err
}
