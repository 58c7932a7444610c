package seed

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	appModels "github.com/tutorium/backend/internal/app/models"
	appRepos "github.com/tutorium/backend/internal/app/repositories"
	"github.com/tutorium/backend/internal/pkg/auth"
)

// CreateDefaultData seeds bookable rooms and a demo tutor with students and
// courses so a fresh install can schedule meetings immediately. Every step is
// idempotent across restarts.
func CreateDefaultData(ctx context.Context, dbPool *pgxpool.Pool, lgr zerolog.Logger) error {
	roomRepo := appRepos.NewRoomRepository(dbPool)
	courseRepo := appRepos.NewCourseRepository(dbPool)
	userRepo := appRepos.NewUserRepository(dbPool)

	lgr.Info().Msg("Checking/Creating default data (rooms, demo users, courses)...")
	var finalErr error

	// --- Rooms --- //
	rooms := []*appModels.Room{
		{Name: "Study Room A", Campus: "Main", Capacity: 4},
		{Name: "Study Room B", Campus: "Main", Capacity: 6},
		{Name: "Seminar Room 1", Campus: "North", Capacity: 12},
	}
	for _, room := range rooms {
		if err := roomRepo.Create(ctx, room); err != nil {
			lgr.Error().Err(err).Str("room", room.Name).Msg("Error creating default room")
			finalErr = errors.Join(finalErr, err)
		}
	}

	// --- Demo tutor --- //
	tutor, err := userRepo.FindByEmail(ctx, "tutor@tutorium.app")
	if err != nil {
		lgr.Error().Err(err).Msg("Error looking up demo tutor")
		return errors.Join(finalErr, err)
	}
	if tutor != nil {
		lgr.Info().Msg("Default data already present, skipping user seed")
		return finalErr
	}

	hashed, err := auth.HashPassword("tutorium-demo")
	if err != nil {
		return errors.Join(finalErr, err)
	}

	tutor = &appModels.User{
		Email:     "tutor@tutorium.app",
		Password:  hashed,
		FirstName: "Taylor",
		LastName:  "Nguyen",
		RoleType:  appModels.RoleTutor,
		IsActive:  true,
	}
	if err := userRepo.Create(ctx, tutor); err != nil {
		lgr.Error().Err(err).Msg("Error creating demo tutor")
		return errors.Join(finalErr, err)
	}

	// --- Demo students --- //
	students := []*appModels.User{
		{Email: "student1@tutorium.app", FirstName: "Alex", LastName: "Kim"},
		{Email: "student2@tutorium.app", FirstName: "Sam", LastName: "Rivera"},
	}
	for _, student := range students {
		student.Password = hashed
		student.RoleType = appModels.RoleStudent
		student.IsActive = true
		if err := userRepo.Create(ctx, student); err != nil {
			lgr.Error().Err(err).Str("email", student.Email).Msg("Error creating demo student")
			finalErr = errors.Join(finalErr, err)
		}
	}

	// --- Courses for the demo tutor --- //
	courses := []*appModels.Course{
		{TutorID: tutor.ID, Title: "Calculus I"},
		{TutorID: tutor.ID, Title: "Linear Algebra"},
	}
	for _, course := range courses {
		if err := courseRepo.Create(ctx, course); err != nil {
			lgr.Error().Err(err).Str("course", course.Title).Msg("Error creating default course")
			finalErr = errors.Join(finalErr, err)
		}
	}

	lgr.Info().Msg("Default data created")
	return finalErr
}
