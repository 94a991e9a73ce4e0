package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/model"
)

func TestCalculateGoal(t *testing.T) {
	tests := []struct {
		name     string
		weight   float64
		height   float64
		age      int
		gender   model.Gender
		activity float64
		want     int
	}{
		{"default male sedentary", 70, 170, 30, model.GenderMale, 1.2, 1941},
		{"female moderate", 60, 165, 28, model.GenderFemale, 1.55, 2062},
		{"male very active", 90, 185, 40, model.GenderMale, 1.9, 3536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateGoal(tt.weight, tt.height, tt.age, tt.gender, tt.activity); got != tt.want {
				t.Errorf("CalculateGoal() = %d, want %d", got, tt.want)
			}
		})
	}
}

func newTestProfileService() (*ProfileService, *fakeProfileRepo, *fakeUserRepo) {
	profiles := newFakeProfileRepo()
	users := newFakeUserRepo()
	return NewProfileService(profiles, users, testLogger()), profiles, users
}

func validUpdate() ProfileUpdate {
	return ProfileUpdate{
		Weight:        60,
		Height:        165,
		Age:           28,
		Gender:        model.GenderFemale,
		ActivityLevel: 1.55,
	}
}

func TestGet_DefaultsWhenMissing(t *testing.T) {
	svc, _, _ := newTestProfileService()

	p, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.UserID != "u1" || p.DailyKcalGoal != 1941 || p.UseCustomGoal {
		t.Errorf("Get() = %+v, want defaults for u1", p)
	}
}

func TestUpdate_ComputesGoal(t *testing.T) {
	svc, profiles, _ := newTestProfileService()

	in := validUpdate()
	in.DailyKcalGoal = 1200 // ignored without UseCustomGoal
	p, err := svc.Update(context.Background(), "u1", in)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.DailyKcalGoal != 2062 {
		t.Errorf("DailyKcalGoal = %d, want 2062", p.DailyKcalGoal)
	}
	if profiles.profiles["u1"] == nil {
		t.Error("profile not stored")
	}
}

func TestUpdate_CustomGoal(t *testing.T) {
	svc, _, _ := newTestProfileService()

	in := validUpdate()
	in.UseCustomGoal = true
	in.DailyKcalGoal = 1800
	p, err := svc.Update(context.Background(), "u1", in)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.DailyKcalGoal != 1800 {
		t.Errorf("DailyKcalGoal = %d, want 1800", p.DailyKcalGoal)
	}

	goal, err := svc.Goal(context.Background(), "u1")
	if err != nil || goal != 1800 {
		t.Errorf("Goal() = %d, %v; want 1800", goal, err)
	}
}

func TestUpdate_UpdatesDisplayName(t *testing.T) {
	svc, _, users := newTestProfileService()
	u := &model.User{Email: "a@x.com", DisplayName: "Old"}
	if err := users.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	in := validUpdate()
	name := "  New Name "
	in.Name = &name
	if _, err := svc.Update(context.Background(), u.ID, in); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := users.GetUserByID(context.Background(), u.ID)
	if got.DisplayName != "New Name" {
		t.Errorf("DisplayName = %q, want %q", got.DisplayName, "New Name")
	}
}

func TestDisplayName(t *testing.T) {
	svc, _, users := newTestProfileService()
	u := &model.User{Email: "a@x.com", DisplayName: "Old"}
	if err := users.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	in := validUpdate()
	name := "Renamed"
	in.Name = &name
	if _, err := svc.Update(context.Background(), u.ID, in); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := svc.DisplayName(context.Background(), u.ID)
	if err != nil || got != "Renamed" {
		t.Errorf("DisplayName() = %q, %v; want %q", got, err, "Renamed")
	}

	if _, err := svc.DisplayName(context.Background(), "nobody"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DisplayName(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestUpdate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ProfileUpdate)
	}{
		{"weight too low", func(p *ProfileUpdate) { p.Weight = 19 }},
		{"height too high", func(p *ProfileUpdate) { p.Height = 251 }},
		{"age too low", func(p *ProfileUpdate) { p.Age = 9 }},
		{"unknown gender", func(p *ProfileUpdate) { p.Gender = "other" }},
		{"unknown activity", func(p *ProfileUpdate) { p.ActivityLevel = 1.3 }},
		{"custom goal too low", func(p *ProfileUpdate) { p.UseCustomGoal = true; p.DailyKcalGoal = 500 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, profiles, _ := newTestProfileService()
			in := validUpdate()
			tt.mutate(&in)

			if _, err := svc.Update(context.Background(), "u1", in); !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
			if len(profiles.profiles) != 0 {
				t.Error("invalid profile was stored")
			}
		})
	}
}

func TestGet_StorageError(t *testing.T) {
	svc, profiles, _ := newTestProfileService()
	profiles.err = apperror.Storage("sqlite: getting profile", errors.New("disk I/O error"))

	if _, err := svc.Get(context.Background(), "u1"); !errors.Is(err, apperror.ErrStorage) {
		t.Errorf("error = %v, want ErrStorage", err)
	}
}
