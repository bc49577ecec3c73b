package models

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed seed.yaml
var seedFixture []byte

type seedData struct {
	Users []struct {
		Email     string `yaml:"email"`
		Name      string `yaml:"name"`
		Phone     string `yaml:"phone"`
		JobTitle  string `yaml:"jobTitle"`
		Timezone  string `yaml:"timezone"`
		AvatarURL string `yaml:"avatarUrl"`
	} `yaml:"users"`
	Stages []string `yaml:"stages"`
	Deals  []struct {
		Title string  `yaml:"title"`
		Value float64 `yaml:"value"`
		Stage string  `yaml:"stage"`
		// Omitted for open deals
		ClosedMonthsAgo *int `yaml:"closedMonthsAgo"`
	} `yaml:"deals"`
	Events []struct {
		Title    string        `yaml:"title"`
		Color    string        `yaml:"color"`
		StartsIn time.Duration `yaml:"startsIn"`
		Duration time.Duration `yaml:"duration"`
	} `yaml:"events"`
}

// Seed loads the embedded demo fixture into an empty database. Deal close
// dates and event start times are relative to now. Returns false without
// touching the database when users already exist.
func Seed(db *gorm.DB, now time.Time) (bool, error) {
	var count int64
	if err := db.Model(&User{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	var data seedData
	if err := yaml.Unmarshal(seedFixture, &data); err != nil {
		return false, fmt.Errorf("failed to parse seed fixture: %w", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, u := range data.Users {
			user := User{
				Email:     u.Email,
				Name:      u.Name,
				Phone:     u.Phone,
				JobTitle:  u.JobTitle,
				Timezone:  u.Timezone,
				AvatarURL: u.AvatarURL,
			}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("failed to create user %s: %w", u.Email, err)
			}
		}

		stageIDs := make(map[string]string, len(data.Stages))
		for _, title := range data.Stages {
			stage := DealStage{Title: title}
			if err := tx.Create(&stage).Error; err != nil {
				return fmt.Errorf("failed to create stage %s: %w", title, err)
			}
			stageIDs[title] = stage.ID
		}

		for _, d := range data.Deals {
			stageID, ok := stageIDs[d.Stage]
			if !ok {
				return fmt.Errorf("deal %q references unknown stage %s", d.Title, d.Stage)
			}
			deal := Deal{Title: d.Title, Value: d.Value, StageID: stageID}
			if d.ClosedMonthsAgo != nil {
				closed := now.UTC().AddDate(0, -*d.ClosedMonthsAgo, 0)
				deal.CloseDate = &closed
			}
			if err := tx.Create(&deal).Error; err != nil {
				return fmt.Errorf("failed to create deal %q: %w", d.Title, err)
			}
		}

		for _, e := range data.Events {
			start := now.Add(e.StartsIn)
			event := Event{
				Title:     e.Title,
				Color:     e.Color,
				StartDate: start,
				EndDate:   start.Add(e.Duration),
			}
			if err := tx.Create(&event).Error; err != nil {
				return fmt.Errorf("failed to create event %q: %w", e.Title, err)
			}
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return true, nil
}
