package service

import (
	"context"
	"errors"
	"strings"

	"github.com/fakhrymubarak/weather-tracker/internal/config"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/fakhrymubarak/weather-tracker/internal/repository"
)

var ErrEmptyNote = errors.New("note is empty")

type NoteServiceInterface interface {
	Get(ctx context.Context, key model.CityKey) (string, bool)
	Save(ctx context.Context, key model.CityKey, text string) error
	Delete(ctx context.Context, key model.CityKey) error
}

// NoteService keeps one free-text note per city.
type NoteService struct {
	CityRepo repository.CityRepository
}

func NewNoteService(repo repository.CityRepository) *NoteService {
	return &NoteService{CityRepo: repo}
}

// Get returns the note for key. A store failure reads as no note.
func (s *NoteService) Get(ctx context.Context, key model.CityKey) (string, bool) {
	note, found, err := s.CityRepo.GetNote(ctx, key)
	if err != nil {
		config.GetLogger().Warnw("Failed to load note", "city", key.String(), "error", err)
		return "", false
	}
	return note, found
}

// Save stores text as given. Blank text is rejected.
func (s *NoteService) Save(ctx context.Context, key model.CityKey, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyNote
	}
	if err := s.CityRepo.SaveNote(ctx, key, text); err != nil {
		config.GetLogger().Errorw("Failed to save note", "city", key.String(), "error", err)
		return err
	}
	return nil
}

func (s *NoteService) Delete(ctx context.Context, key model.CityKey) error {
	if err := s.CityRepo.DeleteNote(ctx, key); err != nil {
		config.GetLogger().Errorw("Failed to delete note", "city", key.String(), "error", err)
		return err
	}
	return nil
}
